package gateway

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kverrall/namecue/internal/cue"
	"github.com/kverrall/namecue/internal/health"
	"github.com/kverrall/namecue/internal/observe"
	"github.com/kverrall/namecue/internal/store"
	"github.com/kverrall/namecue/pkg/provider/stt"
	"github.com/kverrall/namecue/pkg/types"
)

// Option configures a [Server].
type Option func(*Server)

// WithSpeakerFactory enables server-side narration. Each session builds a
// speaker playing through the connection's audio channel, with the
// companion's own synthesis as fallback.
func WithSpeakerFactory(f SpeakerFactory) Option {
	return func(s *Server) {
		s.speakerFactory = f
	}
}

// WithListener enables server-side recognition. The companion relays
// microphone audio as binary frames; its own recognition stays as fallback.
func WithListener(l stt.Listener) Option {
	return func(s *Server) {
		s.listener = l
	}
}

// Server exposes the session websocket next to the operational endpoints:
// Prometheus metrics on /metrics, liveness on /healthz and readiness
// (storage reachability) on /readyz.
type Server struct {
	store   store.Store
	metrics *observe.Metrics
	health  *health.Handler

	speakerFactory SpeakerFactory
	listener       stt.Listener

	// practice and defaults are hot-reloadable; sessions capture them at
	// connection time.
	mu       sync.RWMutex
	practice cue.Config
	defaults types.MatchSettings
}

// NewServer wires a gateway over the given store. practice carries the cue
// timing configuration and defaults the match settings used for users
// without stored preferences.
func NewServer(st store.Store, practice cue.Config, defaults types.MatchSettings, opts ...Option) *Server {
	s := &Server{
		store:    st,
		practice: practice,
		defaults: defaults,
		metrics:  observe.DefaultMetrics(),
		health:   health.New(health.Check{Name: "storage", Probe: st.Ping}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetPractice swaps the cue timing configuration for future sessions.
func (s *Server) SetPractice(p cue.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.practice = p
}

// SetDefaults swaps the default match settings for future sessions.
func (s *Server) SetDefaults(d types.MatchSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults = d
}

// Handler returns the full HTTP surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)
	return withSentryRecovery(observe.Middleware(s.metrics)(mux))
}

// handleWS upgrades the connection and runs one companion session on it.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session ended")

	s.mu.RLock()
	practice, defaults := s.practice, s.defaults
	s.mu.RUnlock()

	sess := newSession(newWSConn(r.Context(), conn), s, practice, defaults)
	sess.run(r.Context())

	conn.Close(websocket.StatusNormalClosure, "")
}

// withSentryRecovery reports panics in HTTP handlers to Sentry and converts
// them into 500 responses.
func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}
