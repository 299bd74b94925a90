package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kverrall/namecue/pkg/types"
)

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store] for DSN-less runs and tests. The zero
// value is not usable; construct with [NewMemStore], which seeds a small
// practice catalogue of everyday objects.
type MemStore struct {
	mu       sync.RWMutex
	stimuli  map[string]types.Stimulus
	settings map[string]types.MatchSettings
}

// NewMemStore returns a MemStore pre-seeded with [SeedStimuli].
func NewMemStore() *MemStore {
	m := &MemStore{
		stimuli:  make(map[string]types.Stimulus),
		settings: make(map[string]types.MatchSettings),
	}
	for _, stim := range SeedStimuli() {
		m.stimuli[stim.ID] = stim
	}
	return m
}

// SeedStimuli returns the built-in practice catalogue of everyday objects.
func SeedStimuli() []types.Stimulus {
	return []types.Stimulus{
		{
			ID:           "broom",
			Name:         "broom",
			Alternatives: []string{"sweeper"},
			Category:     "a cleaning tool",
			Action:       "you sweep the floor with it",
			Association:  "a dustpan",
			Features:     "a long wooden handle with bristles",
			Location:     "in a closet",
		},
		{
			ID:          "whistle",
			Name:        "whistle",
			Category:    "something you blow into",
			Action:      "you blow into it to make a loud sound",
			Association: "a referee",
			Features:    "small and metal with a little ball inside",
			Location:    "around a coach's neck",
		},
		{
			ID:           "sofa",
			Name:         "sofa",
			Alternatives: []string{"couch", "settee"},
			Category:     "a piece of furniture",
			Action:       "you sit on it",
			Association:  "cushions",
			Features:     "long and soft with armrests",
			Location:     "in a living room",
		},
		{
			ID:           "kettle",
			Name:         "kettle",
			Alternatives: []string{"teakettle"},
			Category:     "a kitchen appliance",
			Action:       "you boil water in it",
			Association:  "a cup of tea",
			Features:     "a spout and a handle, and it whistles when ready",
			Location:     "on a kitchen counter",
		},
		{
			ID:           "umbrella",
			Name:         "umbrella",
			Alternatives: []string{"brolly"},
			Category:     "something you carry outside",
			Action:       "you open it to keep the rain off",
			Association:  "a raincoat",
			Features:     "folding spokes under a round canopy",
			Location:     "by the front door",
		},
	}
}

// Stimulus implements [Store].
func (m *MemStore) Stimulus(_ context.Context, id string) (*types.Stimulus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stim, ok := m.stimuli[id]
	if !ok {
		return nil, fmt.Errorf("stimulus %q: %w", id, ErrNotFound)
	}
	return &stim, nil
}

// ListStimuli implements [Store].
func (m *MemStore) ListStimuli(_ context.Context, category string) ([]types.Stimulus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Stimulus, 0, len(m.stimuli))
	for _, stim := range m.stimuli {
		if category != "" && stim.Category != category {
			continue
		}
		out = append(out, stim)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveStimulus implements [Store].
func (m *MemStore) SaveStimulus(_ context.Context, stim *types.Stimulus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stimuli[stim.ID] = *stim
	return nil
}

// Settings implements [Store].
func (m *MemStore) Settings(_ context.Context, userID string) (types.MatchSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[userID]
	if !ok {
		return types.MatchSettings{}, fmt.Errorf("settings for %q: %w", userID, ErrNotFound)
	}
	return s, nil
}

// SaveSettings implements [Store].
func (m *MemStore) SaveSettings(_ context.Context, userID string, s types.MatchSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[userID] = s
	return nil
}

// Ping implements [Store]. The in-memory store is always reachable.
func (m *MemStore) Ping(context.Context) error { return nil }

// Close implements [Store].
func (m *MemStore) Close() {}
