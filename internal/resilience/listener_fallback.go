package resilience

import (
	"context"

	"github.com/kverrall/namecue/pkg/provider/stt"
)

// ListenerFallback implements [stt.Listener] with automatic failover across
// multiple recognition backends. Each backend has its own circuit breaker.
//
// Only session establishment is covered by failover; once a session is open,
// mid-session errors surface on its error channel and the cue engine's
// restart logic takes over.
type ListenerFallback struct {
	group *FallbackGroup[stt.Listener]
}

// Compile-time interface assertion.
var _ stt.Listener = (*ListenerFallback)(nil)

// NewListenerFallback creates a [ListenerFallback] with primary as the
// preferred backend.
func NewListenerFallback(primary stt.Listener, primaryName string, cfg FallbackConfig) *ListenerFallback {
	return &ListenerFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional listener as a fallback.
func (f *ListenerFallback) AddFallback(name string, listener stt.Listener) {
	f.group.AddFallback(name, listener)
}

// Listen opens a recognition session against the first healthy backend.
func (f *ListenerFallback) Listen(ctx context.Context) (stt.Session, error) {
	return ExecuteWithResult(f.group, func(l stt.Listener) (stt.Session, error) {
		return l.Listen(ctx)
	})
}
