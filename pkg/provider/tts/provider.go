// Package tts defines the Speaker interface for text-to-speech narration.
//
// A Speaker wraps a speech synthesis backend (a browser companion reached
// over the session websocket, ElevenLabs, or a local engine) and presents a
// blocking narration call: Speak returns once playback has finished, so the
// cue engine can sequence "narrate, then listen" without callback chains.
//
// Implementations must be safe for concurrent use, and Stop must be safe to
// call when nothing is playing.
package tts

import (
	"context"
	"errors"

	"github.com/kverrall/namecue/pkg/types"
)

// ErrStopped is returned by Speak when playback was cancelled by Stop or by
// context cancellation before it completed.
var ErrStopped = errors.New("tts: playback stopped")

// Options carries per-utterance narration parameters.
type Options struct {
	// Gender selects the narration voice. The zero value lets the backend
	// pick its default voice.
	Gender types.VoiceGender

	// Volume is the playback volume in [0, 1]. Zero means backend default.
	Volume float64
}

// Speaker is the abstraction over any TTS backend.
//
// The currently-playing utterance is a singleton resource: starting a new
// Speak must first tear down any prior playback, which implementations may
// do internally or rely on the caller invoking Stop first.
type Speaker interface {
	// Speak narrates text and returns when playback ends. It returns
	// ErrStopped when playback was cancelled via Stop or ctx, and a
	// backend error on synthesis or transport failure. Callers treat all
	// failures as transient: they log, fall back to a timer, and move on.
	Speak(ctx context.Context, text string, opts Options) error

	// Stop cancels any in-flight playback immediately. It is safe to call
	// when idle and safe to call concurrently with Speak.
	Stop()
}
