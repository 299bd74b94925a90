// Package mock provides scriptable in-memory [stt.Listener] and
// [stt.Session] implementations for tests.
package mock

import (
	"context"
	"sync"

	"github.com/kverrall/namecue/pkg/provider/stt"
)

// Listener is a mock [stt.Listener]. Each Listen call produces a new
// [Session] whose result and error channels the test drives directly.
//
// All methods are safe for concurrent use.
type Listener struct {
	mu       sync.Mutex
	sessions []*Session

	// ListenErr, when non-nil, is returned by Listen.
	ListenErr error
}

var _ stt.Listener = (*Listener)(nil)

// Listen opens a new mock session and records it.
func (l *Listener) Listen(ctx context.Context) (stt.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ListenErr != nil {
		return nil, l.ListenErr
	}
	s := newSession()
	l.sessions = append(l.sessions, s)
	return s, nil
}

// Sessions returns all sessions opened so far.
func (l *Listener) Sessions() []*Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Session, len(l.sessions))
	copy(out, l.sessions)
	return out
}

// Last returns the most recently opened session, or nil.
func (l *Listener) Last() *Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.sessions) == 0 {
		return nil
	}
	return l.sessions[len(l.sessions)-1]
}

// Session is a mock [stt.Session] driven by the test via Emit and EmitError.
type Session struct {
	results chan stt.Result
	errs    chan stt.EngineError

	mu      sync.Mutex
	closed  bool
	aborted bool
	stopped bool
}

var _ stt.Session = (*Session)(nil)

func newSession() *Session {
	return &Session{
		results: make(chan stt.Result, 16),
		errs:    make(chan stt.EngineError, 16),
	}
}

// Emit delivers a recognition result to the session's consumer. It is a
// no-op after the session is closed.
func (s *Session) Emit(text string, final bool, confidence float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.results <- stt.Result{Text: text, IsFinal: final, Confidence: confidence}
}

// EmitError delivers an engine error to the session's consumer.
func (s *Session) EmitError(kind stt.ErrorKind, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.errs <- stt.EngineError{Kind: kind, Err: err}
}

// Results returns the result channel.
func (s *Session) Results() <-chan stt.Result { return s.results }

// Errors returns the error channel.
func (s *Session) Errors() <-chan stt.EngineError { return s.errs }

// Stop closes the session gracefully.
func (s *Session) Stop() error {
	s.close(false)
	return nil
}

// Abort closes the session immediately. Safe to call repeatedly.
func (s *Session) Abort() {
	s.close(true)
}

// Aborted reports whether Abort was called.
func (s *Session) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// Closed reports whether the session has ended (Stop or Abort).
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) close(abort bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if abort {
			s.aborted = true
		}
		return
	}
	s.closed = true
	if abort {
		s.aborted = true
	} else {
		s.stopped = true
	}
	close(s.results)
	close(s.errs)
}
