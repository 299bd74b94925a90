// Package deepgram provides a Deepgram-backed [stt.Listener] using the
// Deepgram streaming WebSocket API, for deployments where recognition runs
// server-side instead of in a browser companion. The host feeds raw PCM
// audio into the session via [Session.SendAudio].
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/coder/websocket"

	"github.com/kverrall/namecue/pkg/provider/stt"
)

const (
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000
)

// Option is a functional option for configuring the Deepgram Listener.
type Option func(*Listener)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(l *Listener) {
		l.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en").
func WithLanguage(language string) Option {
	return func(l *Listener) {
		l.language = language
	}
}

// WithSampleRate sets the audio sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(l *Listener) {
		l.sampleRate = rate
	}
}

// WithKeywords sets vocabulary hints that boost recognition probability for
// the current stimulus names.
func WithKeywords(keywords []string) Option {
	return func(l *Listener) {
		l.keywords = keywords
	}
}

// Listener implements [stt.Listener] backed by the Deepgram streaming API.
type Listener struct {
	apiKey     string
	model      string
	language   string
	sampleRate int
	keywords   []string
}

var _ stt.Listener = (*Listener)(nil)

// New creates a new Deepgram Listener. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Listener, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	l := &Listener{
		apiKey:     apiKey,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Listen opens a streaming recognition session with Deepgram.
func (l *Listener) Listen(ctx context.Context) (stt.Session, error) {
	wsURL, err := l.buildURL()
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+l.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	sess := &Session{
		conn:    conn,
		results: make(chan stt.Result, 64),
		errs:    make(chan stt.EngineError, 16),
		audio:   make(chan []byte, 256),
		done:    make(chan struct{}),
	}

	sess.wg.Add(2)
	go sess.readLoop(ctx)
	go sess.writeLoop(ctx)

	return sess, nil
}

// buildURL constructs the Deepgram streaming endpoint URL.
func (l *Listener) buildURL() (string, error) {
	u, err := url.Parse(deepgramEndpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", l.model)
	q.Set("language", l.language)
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("sample_rate", strconv.Itoa(l.sampleRate))
	for _, kw := range l.keywords {
		q.Add("keywords", kw)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

// deepgramResponse is the JSON structure returned by Deepgram for a Results
// event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Session is a live Deepgram streaming session. It implements [stt.Session];
// the host additionally feeds it microphone audio via [Session.SendAudio].
type Session struct {
	conn    *websocket.Conn
	results chan stt.Result
	errs    chan stt.EngineError
	audio   chan []byte

	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	aborted bool
}

var _ stt.Session = (*Session)(nil)

// SendAudio queues a PCM audio chunk for delivery to Deepgram.
func (s *Session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("deepgram: session is closed")
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return errors.New("deepgram: session is closed")
	}
}

// Results returns the channel of interim and final recognition results.
func (s *Session) Results() <-chan stt.Result { return s.results }

// Errors returns the channel of classified engine errors.
func (s *Session) Errors() <-chan stt.EngineError { return s.errs }

// Stop terminates the session cleanly, flushing pending audio.
func (s *Session) Stop() error {
	s.close(false)
	return nil
}

// Abort tears the session down immediately. Safe to call repeatedly and
// safe to call on an already-closed session.
func (s *Session) Abort() {
	s.close(true)
}

func (s *Session) close(abort bool) {
	s.once.Do(func() {
		s.aborted = abort
		close(s.done)
		if !abort {
			// Ask Deepgram to flush pending audio before closing.
			_ = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		}
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
}

// writeLoop reads from the audio channel and sends binary messages.
func (s *Session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// readLoop receives JSON messages from Deepgram and dispatches results.
func (s *Session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.results)
	defer close(s.errs)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			select {
			case <-s.done:
				// Deliberate teardown; not an engine error.
			default:
				s.emitError(stt.EngineError{Kind: stt.KindNetwork, Err: err})
			}
			return
		}

		result, ok := parseResponse(msg)
		if !ok {
			continue
		}
		if result.Text == "" {
			// Deepgram emits empty results when it hears silence.
			if result.IsFinal {
				s.emitError(stt.EngineError{Kind: stt.KindNoSpeech})
			}
			continue
		}

		select {
		case s.results <- result:
		case <-s.done:
			return
		}
	}
}

// emitError delivers an error without blocking teardown.
func (s *Session) emitError(e stt.EngineError) {
	select {
	case s.errs <- e:
	case <-s.done:
	}
}

// parseResponse parses a raw Deepgram WebSocket message into a Result.
// Returns (zero, false) when the message should be ignored.
func parseResponse(data []byte) (stt.Result, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return stt.Result{}, false
	}
	if resp.Type != "Results" {
		return stt.Result{}, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return stt.Result{}, false
	}

	alt := resp.Channel.Alternatives[0]
	return stt.Result{
		Text:       alt.Transcript,
		IsFinal:    resp.IsFinal,
		Confidence: alt.Confidence,
	}, true
}
