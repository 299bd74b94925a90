package resilience

import (
	"context"
	"errors"
	"testing"

	sttmock "github.com/kverrall/namecue/pkg/provider/stt/mock"
)

func TestListenerFallback_PrimarySuccess(t *testing.T) {
	primary := &sttmock.Listener{}
	secondary := &sttmock.Listener{}

	f := NewListenerFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	sess, err := f.Listen(context.Background())
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	defer sess.Abort()

	if len(primary.Sessions()) != 1 {
		t.Errorf("primary sessions = %d, want 1", len(primary.Sessions()))
	}
	if len(secondary.Sessions()) != 0 {
		t.Errorf("secondary sessions = %d, want 0", len(secondary.Sessions()))
	}
}

func TestListenerFallback_FailsOverToSecondary(t *testing.T) {
	primary := &sttmock.Listener{ListenErr: errors.New("unreachable")}
	secondary := &sttmock.Listener{}

	f := NewListenerFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	sess, err := f.Listen(context.Background())
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	defer sess.Abort()

	if len(secondary.Sessions()) != 1 {
		t.Errorf("secondary sessions = %d, want 1", len(secondary.Sessions()))
	}
}

func TestListenerFallback_AllFail(t *testing.T) {
	primary := &sttmock.Listener{ListenErr: errors.New("down")}
	secondary := &sttmock.Listener{ListenErr: errors.New("also down")}

	f := NewListenerFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	if _, err := f.Listen(context.Background()); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("Listen() error = %v, want ErrAllFailed", err)
	}
}

func TestListenerFallback_BreakerSkipsDeadPrimary(t *testing.T) {
	primary := &sttmock.Listener{ListenErr: errors.New("down")}
	secondary := &sttmock.Listener{}

	f := NewListenerFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2},
	})
	f.AddFallback("secondary", secondary)

	for i := 0; i < 3; i++ {
		if sess, err := f.Listen(context.Background()); err == nil {
			sess.Abort()
		}
	}

	// The primary's breaker is open now; Listen must come straight from
	// the fallback.
	sess, err := f.Listen(context.Background())
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	defer sess.Abort()
	if got := f.group.entries[0].breaker.State(); got != StateOpen {
		t.Errorf("primary breaker state = %v, want open", got)
	}
}
