// Package stt defines the Listener interface for continuous speech
// recognition.
//
// A Listener wraps a real-time recognition backend (a browser companion
// reached over the session websocket, or Deepgram's streaming API) and hands
// out Sessions. A Session emits interim and final recognition results on a
// channel; only final results drive answer evaluation. Engine errors carry a
// kind so callers can distinguish the expected "no speech yet" non-event from
// genuine failures.
//
// Implementations must be safe for concurrent use. Abort must be safe to
// call whether or not the session is still live — a session left listening
// across trials would leak microphone input into the next trial, so callers
// abort eagerly.
package stt

import "context"

// ErrorKind classifies recognition engine errors.
type ErrorKind string

const (
	// KindNoSpeech means the engine timed out waiting for speech. This is
	// an expected non-event: callers restart listening silently.
	KindNoSpeech ErrorKind = "no-speech"

	// KindAborted means the session was torn down deliberately.
	KindAborted ErrorKind = "aborted"

	// KindNetwork covers transport failures to the recognition backend.
	KindNetwork ErrorKind = "network"

	// KindOther covers everything else; surfaced to the caller as a soft
	// warning without aborting the trial.
	KindOther ErrorKind = "other"
)

// Result is one recognition result. Interim results may arrive repeatedly
// for the same utterance; a final result supersedes them.
type Result struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether the engine has committed to this result.
	IsFinal bool

	// Confidence is the engine's confidence in [0, 1]; zero when the
	// backend does not report one.
	Confidence float64
}

// EngineError is a classified recognition error.
type EngineError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e EngineError) Error() string {
	if e.Err == nil {
		return "stt: " + string(e.Kind)
	}
	return "stt: " + string(e.Kind) + ": " + e.Err.Error()
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e EngineError) Unwrap() error { return e.Err }

// Session is one live continuous-recognition session.
type Session interface {
	// Results returns the channel of interim and final results. It is
	// closed when the session ends.
	Results() <-chan Result

	// Errors returns the channel of classified engine errors. It is
	// closed when the session ends. KindNoSpeech errors are expected and
	// should be handled by restarting, not by surfacing.
	Errors() <-chan EngineError

	// Stop ends the session gracefully, flushing any pending audio.
	Stop() error

	// Abort tears the session down immediately, discarding pending
	// results. Safe to call when the session is already closed, and safe
	// to call more than once.
	Abort()
}

// Listener is the abstraction over any continuous speech-recognition
// backend. The currently-listening session is a singleton resource: callers
// abort any prior session before opening a new one.
type Listener interface {
	// Listen opens a new recognition session. Returns an error if the
	// backend cannot be reached or ctx is already cancelled.
	Listen(ctx context.Context) (Session, error)
}
