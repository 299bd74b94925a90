package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kverrall/namecue/internal/store"
	"github.com/kverrall/namecue/pkg/types"
)

func TestMemStoreSeededCatalogue(t *testing.T) {
	t.Parallel()

	m := store.NewMemStore()
	ctx := context.Background()

	all, err := m.ListStimuli(ctx, "")
	if err != nil {
		t.Fatalf("ListStimuli() error: %v", err)
	}
	if len(all) != len(store.SeedStimuli()) {
		t.Fatalf("seeded %d stimuli, want %d", len(all), len(store.SeedStimuli()))
	}

	stim, err := m.Stimulus(ctx, "broom")
	if err != nil {
		t.Fatalf("Stimulus(broom) error: %v", err)
	}
	if stim.Name != "broom" || stim.Category == "" {
		t.Errorf("Stimulus(broom) = %+v, want populated cue fields", stim)
	}
}

func TestMemStoreStimulusNotFound(t *testing.T) {
	t.Parallel()

	m := store.NewMemStore()
	_, err := m.Stimulus(context.Background(), "does-not-exist")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Stimulus() error = %v, want ErrNotFound", err)
	}
}

func TestMemStoreListByCategory(t *testing.T) {
	t.Parallel()

	m := store.NewMemStore()
	got, err := m.ListStimuli(context.Background(), "a cleaning tool")
	if err != nil {
		t.Fatalf("ListStimuli() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "broom" {
		t.Errorf("ListStimuli(cleaning tool) = %v, want just broom", got)
	}
}

func TestMemStoreSaveStimulusUpsert(t *testing.T) {
	t.Parallel()

	m := store.NewMemStore()
	ctx := context.Background()

	stim := &types.Stimulus{ID: "mirror", Name: "mirror", Category: "bathroom fixtures"}
	if err := m.SaveStimulus(ctx, stim); err != nil {
		t.Fatalf("SaveStimulus() error: %v", err)
	}

	stim.Category = "bedroom fixtures"
	if err := m.SaveStimulus(ctx, stim); err != nil {
		t.Fatalf("SaveStimulus() update error: %v", err)
	}

	got, err := m.Stimulus(ctx, "mirror")
	if err != nil {
		t.Fatalf("Stimulus(mirror) error: %v", err)
	}
	if got.Category != "bedroom fixtures" {
		t.Errorf("Category = %q, want the updated value", got.Category)
	}
}

func TestMemStoreSettingsRoundTrip(t *testing.T) {
	t.Parallel()

	m := store.NewMemStore()
	ctx := context.Background()

	if _, err := m.Settings(ctx, "alex"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Settings(unknown) error = %v, want ErrNotFound", err)
	}

	want := types.DefaultMatchSettings()
	want.SynonymMatching = false
	want.VoicePreference = types.VoiceMale
	if err := m.SaveSettings(ctx, "alex", want); err != nil {
		t.Fatalf("SaveSettings() error: %v", err)
	}

	got, err := m.Settings(ctx, "alex")
	if err != nil {
		t.Fatalf("Settings() error: %v", err)
	}
	if got != want {
		t.Errorf("Settings() = %+v, want %+v", got, want)
	}
}

func TestMemStoreStimulusCopyIsolation(t *testing.T) {
	t.Parallel()

	m := store.NewMemStore()
	ctx := context.Background()

	a, err := m.Stimulus(ctx, "broom")
	if err != nil {
		t.Fatal(err)
	}
	a.Name = "mutated"

	b, err := m.Stimulus(ctx, "broom")
	if err != nil {
		t.Fatal(err)
	}
	if b.Name != "broom" {
		t.Error("mutating a returned stimulus leaked into the store")
	}
}
