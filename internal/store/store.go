// Package store defines persistence for the stimulus catalogue and per-user
// match settings.
//
// The cue engine and matchers never talk to storage directly: callers load a
// [types.Stimulus] and a [types.MatchSettings] and pass them in by value. Two
// implementations are provided — [PostgresStore] for deployments with a
// database and [MemStore] for DSN-less runs and tests.
//
// Every implementation must be safe for concurrent use.
package store

import (
	"context"
	"errors"

	"github.com/kverrall/namecue/pkg/types"
)

// ErrNotFound is returned when a requested stimulus or settings row does not
// exist.
var ErrNotFound = errors.New("store: not found")

// Store is the storage abstraction for stimuli and user settings.
type Store interface {
	// Stimulus returns the stimulus with the given ID.
	// Returns [ErrNotFound] when no such stimulus exists.
	Stimulus(ctx context.Context, id string) (*types.Stimulus, error)

	// ListStimuli returns all stimuli, optionally filtered by category.
	// An empty category matches everything. Results are ordered by ID.
	ListStimuli(ctx context.Context, category string) ([]types.Stimulus, error)

	// SaveStimulus inserts or updates a stimulus keyed by its ID.
	SaveStimulus(ctx context.Context, stim *types.Stimulus) error

	// Settings returns the persisted match settings for userID.
	// Returns [ErrNotFound] when the user has no stored settings; callers
	// fall back to their configured defaults.
	Settings(ctx context.Context, userID string) (types.MatchSettings, error)

	// SaveSettings inserts or updates the match settings for userID.
	SaveSettings(ctx context.Context, userID string, s types.MatchSettings) error

	// Ping verifies the backing storage is reachable. Used by the
	// readiness probe.
	Ping(ctx context.Context) error

	// Close releases held resources.
	Close()
}
