package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/getsentry/sentry-go"

	"github.com/kverrall/namecue/internal/cue"
	"github.com/kverrall/namecue/internal/observe"
	"github.com/kverrall/namecue/internal/resilience"
	"github.com/kverrall/namecue/internal/store"
	"github.com/kverrall/namecue/internal/trial"
	"github.com/kverrall/namecue/pkg/provider/stt"
	"github.com/kverrall/namecue/pkg/provider/tts"
	"github.com/kverrall/namecue/pkg/types"
)

// session is one companion connection: the provider adapters, at most one
// trial run, and the frame dispatch loop.
type session struct {
	conn     *wsConn
	store    store.Store
	practice cue.Config
	defaults types.MatchSettings
	metrics  *observe.Metrics

	// remoteSpeaker and remoteListener route companion frames regardless
	// of which backend a run ends up on; speaker and listener are what
	// the trial runner actually uses.
	remoteSpk *remoteSpeaker
	remoteLis *remoteListener
	speaker   tts.Speaker
	listener  *trackingListener

	mu     sync.Mutex
	runner *trial.Runner
}

func newSession(conn *wsConn, srv *Server, practice cue.Config, defaults types.MatchSettings) *session {
	s := &session{
		conn:      conn,
		store:     srv.store,
		practice:  practice,
		defaults:  defaults,
		metrics:   srv.metrics,
		remoteSpk: newRemoteSpeaker(conn),
		remoteLis: newRemoteListener(conn),
	}
	s.speaker = s.buildSpeaker(srv.speakerFactory)
	s.listener = newTrackingListener(s.buildListener(srv.listener))
	return s
}

// buildSpeaker picks the narration backend: server-side synthesis with the
// companion as fallback when a factory is configured, otherwise the
// companion alone.
func (s *session) buildSpeaker(factory SpeakerFactory) tts.Speaker {
	if factory == nil {
		return s.remoteSpk
	}
	primary, err := factory(s.playAudio)
	if err != nil {
		slog.Warn("server-side speaker unavailable, using companion synthesis", "error", err)
		return s.remoteSpk
	}
	fb := resilience.NewSpeakerFallback(primary, "server", resilience.FallbackConfig{})
	fb.AddFallback("companion", s.remoteSpk)
	return fb
}

// buildListener picks the recognition backend in the same way.
func (s *session) buildListener(server stt.Listener) stt.Listener {
	if server == nil {
		return s.remoteLis
	}
	fb := resilience.NewListenerFallback(server, "server", resilience.FallbackConfig{})
	fb.AddFallback("companion", s.remoteLis)
	return fb
}

// playAudio streams synthesised PCM to the companion as binary frames.
func (s *session) playAudio(ctx context.Context, pcm io.Reader) error {
	buf := make([]byte, 4096)
	for {
		n, err := pcm.Read(buf)
		if n > 0 {
			if werr := s.conn.sendBinary(ctx, buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// run reads frames until the connection or context ends. It owns the only
// reader goroutine for the socket.
func (s *session) run(ctx context.Context) {
	s.metrics.ActiveSessions.Add(ctx, 1)
	defer s.metrics.ActiveSessions.Add(ctx, -1)
	defer s.stopRunner()

	for {
		typ, data, err := s.conn.read(ctx)
		if err != nil {
			slog.Debug("session closed", "error", err)
			return
		}
		if typ == websocket.MessageBinary {
			s.listener.feed(data)
			continue
		}
		env, err := Decode(data)
		if err != nil {
			s.sendError(err)
			continue
		}
		s.dispatch(ctx, env)
	}
}

func (s *session) dispatch(ctx context.Context, env Envelope) {
	switch env.Type {
	case TypeStart:
		var req StartRequest
		if err := DecodePayload(env, &req); err != nil {
			s.sendError(err)
			return
		}
		if err := s.handleStart(ctx, req); err != nil {
			s.sendError(err)
		}

	case TypeContinue:
		if r := s.currentRunner(); r != nil {
			r.Continue()
		}

	case TypeStop:
		s.stopRunner()

	case TypeSpeakDone:
		var done SpeakDone
		if err := DecodePayload(env, &done); err != nil {
			s.sendError(err)
			return
		}
		s.remoteSpk.resolve(done.ID, nil)

	case TypeSpeakError:
		var fail SpeakError
		if err := DecodePayload(env, &fail); err != nil {
			s.sendError(err)
			return
		}
		s.remoteSpk.resolve(fail.ID, speakError(fail.Message))

	case TypeTranscript:
		var t Transcript
		if err := DecodePayload(env, &t); err != nil {
			s.sendError(err)
			return
		}
		s.remoteLis.deliver(t)

	case TypeListenError:
		var e ListenError
		if err := DecodePayload(env, &e); err != nil {
			s.sendError(err)
			return
		}
		s.remoteLis.deliverError(e)

	default:
		slog.Debug("unknown frame type", "type", env.Type)
	}
}

// handleStart loads the user's settings and stimuli and begins a run.
func (s *session) handleStart(ctx context.Context, req StartRequest) error {
	if r := s.currentRunner(); r != nil && r.Running() {
		return errors.New("gateway: run already in progress")
	}

	settings := s.defaults
	if req.UserID != "" {
		stored, err := s.store.Settings(ctx, req.UserID)
		switch {
		case err == nil:
			settings = stored
		case errors.Is(err, store.ErrNotFound):
			// First visit: the configured defaults apply.
		default:
			sentry.CaptureException(err)
			return fmt.Errorf("gateway: load settings for %q: %w", req.UserID, err)
		}
	}

	stimuli, err := s.selectStimuli(ctx, req)
	if err != nil {
		return err
	}

	cfg := s.practice
	cfg.Voice = tts.Options{Gender: settings.VoicePreference}

	r := trial.NewRunner(s.speaker, s.listener, cue.SettingsEvaluator{Settings: settings}, cfg, s.events())
	s.mu.Lock()
	s.runner = r
	s.mu.Unlock()

	slog.Info("practice run starting",
		"user", req.UserID,
		"stimuli", len(stimuli),
		"category", req.Category,
	)
	return r.Start(ctx, stimuli)
}

// selectStimuli resolves the run's stimulus list. Explicit ids win over the
// category filter and preserve the requested order.
func (s *session) selectStimuli(ctx context.Context, req StartRequest) ([]types.Stimulus, error) {
	if len(req.StimulusIDs) > 0 {
		stimuli := make([]types.Stimulus, 0, len(req.StimulusIDs))
		for _, id := range req.StimulusIDs {
			stim, err := s.store.Stimulus(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("gateway: stimulus %q: %w", id, err)
			}
			stimuli = append(stimuli, *stim)
		}
		return stimuli, nil
	}

	stimuli, err := s.store.ListStimuli(ctx, req.Category)
	if err != nil {
		sentry.CaptureException(err)
		return nil, fmt.Errorf("gateway: list stimuli: %w", err)
	}
	if len(stimuli) == 0 {
		return nil, errors.New("gateway: no stimuli match the request")
	}
	return stimuli, nil
}

// events mirrors runner progress to the companion.
func (s *session) events() trial.Events {
	return trial.Events{
		OnTrialStart: func(stim types.Stimulus, index, total int) {
			s.sendEvent(TypeTrial, TrialStart{StimulusID: stim.ID, Index: index, Total: total})
		},
		OnCue: func(level cue.Level, text string) {
			s.sendEvent(TypeCue, CueEvent{Level: int(level), Text: text})
		},
		OnAnswer: func(answer string, correct bool) {
			s.sendEvent(TypeAnswer, AnswerEvent{Answer: answer, Correct: correct})
		},
		OnOutcome: func(o trial.Outcome) {
			if o.Revealed {
				s.sendEvent(TypeFinalAnswer, FinalAnswerEvent{Name: o.Name})
			}
		},
		OnComplete: func(outcomes []trial.Outcome) {
			s.sendEvent(TypeSummary, summaryEvent(outcomes))
		},
		OnWarning: func(err error) {
			s.sendEvent(TypeError, ErrorEvent{Message: err.Error()})
		},
	}
}

func (s *session) currentRunner() *trial.Runner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runner
}

func (s *session) stopRunner() {
	if r := s.currentRunner(); r != nil {
		r.Stop()
	}
}

func (s *session) sendEvent(typ string, payload any) {
	if err := s.conn.send(typ, payload); err != nil {
		slog.Warn("event send failed", "type", typ, "error", err)
	}
}

func (s *session) sendError(err error) {
	slog.Warn("session error", "error", err)
	s.sendEvent(TypeError, ErrorEvent{Message: err.Error()})
}

// summaryEvent converts runner outcomes to their wire form.
func summaryEvent(outcomes []trial.Outcome) SummaryEvent {
	ev := SummaryEvent{Outcomes: make([]TrialOutcome, 0, len(outcomes))}
	for _, o := range outcomes {
		ev.Outcomes = append(ev.Outcomes, TrialOutcome{
			StimulusID: o.StimulusID,
			Name:       o.Name,
			Level:      int(o.Level),
			Correct:    o.Correct,
			Revealed:   o.Revealed,
			Answer:     o.Answer,
			DurationMS: o.Duration.Milliseconds(),
		})
	}
	return ev
}
