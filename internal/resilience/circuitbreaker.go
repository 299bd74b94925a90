// Package resilience keeps narration and recognition running when a speech
// backend misbehaves.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open) that
// stops hammering a backend once it fails repeatedly. [FallbackGroup]
// composes several backends of one provider type behind per-backend
// breakers, so [SpeakerFallback] and [ListenerFallback] can route a cue to
// the next healthy voice or recogniser without the session noticing.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// rejects calls outright.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call; this is the normal state.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrCircuitOpen]. Entered after too
	// many consecutive failures, left once the reset timeout elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of trial calls through to see
	// whether the backend has recovered.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero fields fall back to
// the defaults noted per field.
type CircuitBreakerConfig struct {
	// Name labels the guarded backend in log output.
	Name string

	// MaxFailures is how many consecutive failures trip the breaker open.
	// Default: 5.
	MaxFailures int

	// ResetTimeout is how long an open breaker waits before letting trial
	// calls through. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is how many trial calls must succeed in half-open before
	// the breaker closes again, and also the cap on concurrent trials.
	// Default: 3.
	HalfOpenMax int
}

// CircuitBreaker guards one speech backend. A run of failures opens it;
// after the reset timeout a few trial calls decide whether it closes again.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu        sync.Mutex
	state     State
	failures  int       // consecutive failures while closed
	openedAt  time.Time // when the breaker last tripped
	trials    int       // trial calls started in this half-open episode
	trialWins int       // trial calls that succeeded
}

// NewCircuitBreaker builds a breaker from cfg, filling zero fields with
// defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
	}
}

// Execute runs fn unless the breaker is rejecting calls, in which case it
// returns [ErrCircuitOpen] without invoking fn. The error from fn, nil or
// not, is passed through to the caller.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.admit() {
		return ErrCircuitOpen
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
	return err
}

// admit decides whether a call may proceed, performing the open→half-open
// transition when the reset timeout has elapsed.
func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.openedAt) < cb.resetTimeout {
			return false
		}
		cb.state = StateHalfOpen
		cb.trials = 1
		cb.trialWins = 0
		slog.Info("breaker trialling backend", "backend", cb.name)
		return true
	default: // half-open
		if cb.trials >= cb.halfOpenMax {
			return false
		}
		cb.trials++
		return true
	}
}

// onFailure runs with cb.mu held.
func (cb *CircuitBreaker) onFailure() {
	if cb.state == StateHalfOpen {
		// One bad trial is enough — back to open for a full timeout.
		cb.state = StateOpen
		cb.openedAt = time.Now()
		slog.Warn("breaker re-opened, trial call failed", "backend", cb.name)
		return
	}
	if cb.state == StateOpen {
		return
	}
	cb.failures++
	if cb.failures >= cb.maxFailures {
		cb.state = StateOpen
		cb.openedAt = time.Now()
		slog.Warn("breaker opened",
			"backend", cb.name,
			"consecutive_failures", cb.failures)
	}
}

// onSuccess runs with cb.mu held.
func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateHalfOpen:
		cb.trialWins++
		if cb.trialWins >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.failures = 0
			slog.Info("breaker closed, backend recovered", "backend", cb.name)
		}
	case StateClosed:
		cb.failures = 0
	}
	// A trial that succeeds after the breaker already re-opened changes
	// nothing: the failed trial's verdict stands.
}

// State reports the breaker's mode. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the stored state changes on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.trials = 0
	cb.trialWins = 0
	slog.Info("breaker reset", "backend", cb.name)
}
