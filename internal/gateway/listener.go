package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/kverrall/namecue/pkg/provider/stt"
)

// remoteListener adapts the companion's speech recognition into a
// [stt.Listener]. At most one recognition session is live per connection;
// starting a new one tears the previous one down so stale transcripts
// cannot cross trials.
type remoteListener struct {
	conn *wsConn

	mu     sync.Mutex
	active *remoteSession
}

var _ stt.Listener = (*remoteListener)(nil)

func newRemoteListener(conn *wsConn) *remoteListener {
	return &remoteListener{conn: conn}
}

// Listen implements [stt.Listener].
func (l *remoteListener) Listen(ctx context.Context) (stt.Session, error) {
	id := l.conn.nextID()
	sess := &remoteSession{
		id:      id,
		conn:    l.conn,
		results: make(chan stt.Result, 64),
		errs:    make(chan stt.EngineError, 16),
	}

	l.mu.Lock()
	if l.active != nil {
		l.active.close()
	}
	l.active = sess
	l.mu.Unlock()

	if err := l.conn.send(TypeListenStart, ListenStart{ID: id}); err != nil {
		l.mu.Lock()
		if l.active == sess {
			l.active = nil
		}
		l.mu.Unlock()
		sess.close()
		return nil, err
	}
	return sess, nil
}

// deliver routes a transcript frame to the session it belongs to.
// Transcripts for superseded ops are discarded.
func (l *remoteListener) deliver(t Transcript) {
	l.mu.Lock()
	sess := l.active
	l.mu.Unlock()
	if sess == nil || sess.id != t.ID {
		return
	}
	sess.emit(stt.Result{Text: t.Text, IsFinal: t.Final, Confidence: t.Confidence})
}

// deliverError routes a recognition error frame to its session.
func (l *remoteListener) deliverError(e ListenError) {
	l.mu.Lock()
	sess := l.active
	l.mu.Unlock()
	if sess == nil || sess.id != e.ID {
		return
	}
	sess.emitError(errorKind(e.Kind), errors.New(e.Message))
}

// errorKind maps a wire kind string onto [stt.ErrorKind], defaulting to
// [stt.KindOther] for anything unrecognized.
func errorKind(kind string) stt.ErrorKind {
	switch k := stt.ErrorKind(kind); k {
	case stt.KindNoSpeech, stt.KindAborted, stt.KindNetwork, stt.KindOther:
		return k
	default:
		return stt.KindOther
	}
}

// remoteSession is one companion recognition session.
type remoteSession struct {
	id   string
	conn *wsConn

	mu      sync.Mutex
	closed  bool
	results chan stt.Result
	errs    chan stt.EngineError
}

var _ stt.Session = (*remoteSession)(nil)

// Results implements [stt.Session].
func (s *remoteSession) Results() <-chan stt.Result { return s.results }

// Errors implements [stt.Session].
func (s *remoteSession) Errors() <-chan stt.EngineError { return s.errs }

// Stop implements [stt.Session].
func (s *remoteSession) Stop() error {
	err := s.conn.send(TypeListenAbort, ListenAbort{ID: s.id})
	s.close()
	return err
}

// Abort implements [stt.Session].
func (s *remoteSession) Abort() {
	_ = s.conn.send(TypeListenAbort, ListenAbort{ID: s.id})
	s.close()
}

// close closes both channels, honouring the [stt.Session] promise that
// Results and Errors are closed when the session ends. Consumers ranging
// over them unblock; later frames for this op are dropped by emit.
func (s *remoteSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.results)
	close(s.errs)
}

// emit delivers a result unless the session is closed. A full buffer drops
// the result rather than blocking the connection read loop.
func (s *remoteSession) emit(res stt.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.results <- res:
	default:
	}
}

func (s *remoteSession) emitError(kind stt.ErrorKind, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.errs <- stt.EngineError{Kind: kind, Err: err}:
	default:
	}
}
