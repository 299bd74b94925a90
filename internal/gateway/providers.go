package gateway

import (
	"context"
	"io"
	"sync"

	"github.com/kverrall/namecue/pkg/provider/stt"
	"github.com/kverrall/namecue/pkg/provider/tts"
)

// PlayFunc delivers synthesised PCM audio to the companion for playback. It
// returns once the audio has been flushed to the socket; the companion's
// jitter buffer absorbs the remaining playback latency.
type PlayFunc func(ctx context.Context, pcm io.Reader) error

// SpeakerFactory builds a server-side speaker that plays through the given
// sink. Deployments that synthesise narration server-side (ElevenLabs)
// register one; without it the companion's own speech synthesis is used.
type SpeakerFactory func(play PlayFunc) (tts.Speaker, error)

// AudioWriter is the optional audio-ingest side of a recognition session.
// Server-side listeners (Deepgram) consume microphone audio relayed by the
// companion as binary frames.
type AudioWriter interface {
	SendAudio(chunk []byte) error
}

// trackingListener remembers the most recently opened session so incoming
// binary audio can be forwarded to it.
type trackingListener struct {
	inner stt.Listener

	mu   sync.Mutex
	last stt.Session
}

var _ stt.Listener = (*trackingListener)(nil)

func newTrackingListener(inner stt.Listener) *trackingListener {
	return &trackingListener{inner: inner}
}

// Listen implements [stt.Listener].
func (l *trackingListener) Listen(ctx context.Context) (stt.Session, error) {
	sess, err := l.inner.Listen(ctx)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.last = sess
	l.mu.Unlock()
	return sess, nil
}

// feed forwards one audio chunk to the live session when it accepts audio.
// Sessions served by the companion's own recognition ignore relayed audio.
func (l *trackingListener) feed(chunk []byte) {
	l.mu.Lock()
	sess := l.last
	l.mu.Unlock()
	if aw, ok := sess.(AudioWriter); ok {
		_ = aw.SendAudio(chunk)
	}
}
