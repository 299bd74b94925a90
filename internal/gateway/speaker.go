package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/kverrall/namecue/pkg/provider/tts"
)

// remoteSpeaker adapts the companion's speech synthesis into a
// [tts.Speaker]. Speak sends a narration request and blocks until the
// companion reports playback done or failed for the same op id.
type remoteSpeaker struct {
	conn *wsConn

	mu      sync.Mutex
	pending map[string]chan error
}

var _ tts.Speaker = (*remoteSpeaker)(nil)

func newRemoteSpeaker(conn *wsConn) *remoteSpeaker {
	return &remoteSpeaker{
		conn:    conn,
		pending: make(map[string]chan error),
	}
}

// Speak implements [tts.Speaker].
func (s *remoteSpeaker) Speak(ctx context.Context, text string, opts tts.Options) error {
	id := s.conn.nextID()
	done := make(chan error, 1)

	s.mu.Lock()
	s.pending[id] = done
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	req := SpeakRequest{
		ID:     id,
		Text:   text,
		Gender: string(opts.Gender),
		Volume: opts.Volume,
	}
	if err := s.conn.send(TypeSpeak, req); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// The companion may still be mid-sentence; cut it off.
		_ = s.conn.send(TypeSpeakStop, nil)
		return ctx.Err()
	}
}

// Stop implements [tts.Speaker]. Every in-flight Speak returns
// [tts.ErrStopped].
func (s *remoteSpeaker) Stop() {
	_ = s.conn.send(TypeSpeakStop, nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, done := range s.pending {
		done <- tts.ErrStopped
		delete(s.pending, id)
	}
}

// resolve completes the pending Speak for id. Replies for ops already
// resolved by Stop are dropped.
func (s *remoteSpeaker) resolve(id string, err error) {
	s.mu.Lock()
	done, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	if ok {
		done <- err
	}
}

// speakError converts a [SpeakError] payload message into an error value.
func speakError(msg string) error {
	if msg == "" {
		msg = "narration failed"
	}
	return errors.New("gateway: companion: " + msg)
}
