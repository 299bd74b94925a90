// Package mock provides a scriptable in-memory [tts.Speaker] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/kverrall/namecue/pkg/provider/tts"
)

// Speaker is a mock [tts.Speaker]. It records every Speak call and can be
// scripted to fail or block. The zero value completes every Speak
// immediately with no error.
//
// All methods are safe for concurrent use.
type Speaker struct {
	mu      sync.Mutex
	calls   []Call
	stops   int
	playing context.CancelFunc

	// SpeakErr, when non-nil, is returned by every Speak call after the
	// call is recorded.
	SpeakErr error

	// SpeakFn, when non-nil, replaces the default behaviour entirely.
	SpeakFn func(ctx context.Context, text string, opts tts.Options) error

	// Block, when true, makes Speak wait until Stop is called or ctx is
	// cancelled, simulating long playback.
	Block bool
}

// Call records the arguments of one Speak invocation.
type Call struct {
	Text string
	Opts tts.Options
}

var _ tts.Speaker = (*Speaker)(nil)

// Speak records the call and then behaves as scripted.
func (s *Speaker) Speak(ctx context.Context, text string, opts tts.Options) error {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Text: text, Opts: opts})
	fn := s.SpeakFn
	err := s.SpeakErr
	block := s.Block

	var playCtx context.Context
	if block {
		playCtx, s.playing = context.WithCancel(ctx)
	}
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, opts)
	}
	if err != nil {
		return err
	}
	if block {
		<-playCtx.Done()
		if ctx.Err() != nil {
			return tts.ErrStopped
		}
		return tts.ErrStopped
	}
	return nil
}

// Stop cancels a blocked Speak, if any, and counts the call.
func (s *Speaker) Stop() {
	s.mu.Lock()
	s.stops++
	cancel := s.playing
	s.playing = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Calls returns a copy of all recorded Speak calls.
func (s *Speaker) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Texts returns just the narrated texts, in call order.
func (s *Speaker) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = c.Text
	}
	return out
}

// Stops returns how many times Stop was called.
func (s *Speaker) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}
