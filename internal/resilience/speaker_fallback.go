package resilience

import (
	"context"
	"errors"

	"github.com/kverrall/namecue/pkg/provider/tts"
)

// SpeakerFallback implements [tts.Speaker] with automatic failover across
// multiple TTS backends. Each backend has its own circuit breaker, so a dead
// primary is bypassed without delaying narration.
type SpeakerFallback struct {
	group *FallbackGroup[tts.Speaker]
}

// Compile-time interface assertion.
var _ tts.Speaker = (*SpeakerFallback)(nil)

// NewSpeakerFallback creates a [SpeakerFallback] with primary as the
// preferred backend.
func NewSpeakerFallback(primary tts.Speaker, primaryName string, cfg FallbackConfig) *SpeakerFallback {
	return &SpeakerFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional speaker as a fallback.
func (f *SpeakerFallback) AddFallback(name string, speaker tts.Speaker) {
	f.group.AddFallback(name, speaker)
}

// Speak narrates text on the first healthy backend. A deliberate stop
// ([tts.ErrStopped] or context cancellation) ends the attempt without
// counting as a backend failure and without trying fallbacks: a cancelled
// cue must not be re-narrated by the next speaker in line.
func (f *SpeakerFallback) Speak(ctx context.Context, text string, opts tts.Options) error {
	var stopped bool
	err := f.group.Execute(func(s tts.Speaker) error {
		err := s.Speak(ctx, text, opts)
		if errors.Is(err, tts.ErrStopped) || ctx.Err() != nil {
			stopped = true
			return nil
		}
		return err
	})
	if stopped {
		return tts.ErrStopped
	}
	return err
}

// Stop cancels in-flight playback on every backend. Stop on an idle speaker
// is a no-op per the [tts.Speaker] contract, so fanning out is safe.
func (f *SpeakerFallback) Stop() {
	for i := range f.group.entries {
		f.group.entries[i].value.Stop()
	}
}
