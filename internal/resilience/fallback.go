package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed means every backend in a [FallbackGroup] either failed or was
// behind an open breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig is shared breaker tuning for every backend a
// [FallbackGroup] guards. Each backend still gets its own breaker instance.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary backend plus any number of fallbacks of the
// same provider type, each behind its own [CircuitBreaker]. Calls go to the
// first backend, in registration order, whose breaker admits them and whose
// attempt succeeds.
//
// Register all backends before the first call; after that the group is safe
// for concurrent use.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup starts a group with primary as its preferred backend.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.add(primaryName, primary)
	return fg
}

// AddFallback appends a backend tried after all earlier registrations.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	fg.add(name, fallback)
}

func (fg *FallbackGroup[T]) add(name string, value T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Execute runs fn against backends in order until one succeeds. Backends
// with an open breaker are skipped without an attempt. When no backend
// succeeds the result wraps [ErrAllFailed] around the last attempt's error.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult is [FallbackGroup.Execute] for calls that produce a
// value, such as opening a recognition session. It is a free function
// because methods cannot introduce their own type parameters.
func ExecuteWithResult[T, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range fg.entries {
		entry := &fg.entries[i]

		var result R
		err := entry.breaker.Execute(func() error {
			var err error
			result, err = fn(entry.value)
			return err
		})
		if err == nil {
			return result, nil
		}
		lastErr = err

		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("backend skipped, breaker open", "backend", entry.name)
		} else {
			slog.Warn("backend failed, trying next",
				"backend", entry.name, "err", err)
		}
	}

	var zero R
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
