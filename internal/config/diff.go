package config

import (
	"reflect"

	"github.com/kverrall/namecue/pkg/types"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// storage changes require a restart and are reported as such.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PracticeChanged is true when a trial timing knob changed. New
	// trials pick up the new values; running trials keep theirs.
	PracticeChanged bool
	NewPractice     PracticeConfig

	// DefaultsChanged is true when the fallback match settings changed.
	// Applies to sessions started after the reload.
	DefaultsChanged bool
	NewDefaults     types.MatchSettings

	// RestartRequired is true when a non-hot-reloadable section
	// (providers, storage, server) changed.
	RestartRequired bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Practice != new.Practice {
		d.PracticeChanged = true
		d.NewPractice = new.Practice
	}

	if old.Defaults.MatchDefaults() != new.Defaults.MatchDefaults() {
		d.DefaultsChanged = true
		d.NewDefaults = new.Defaults.MatchDefaults()
	}

	if !providerEntryEqual(old.Providers.TTS, new.Providers.TTS) ||
		!providerEntryEqual(old.Providers.STT, new.Providers.STT) ||
		old.Storage != new.Storage ||
		serverChangedBeyondLogLevel(old.Server, new.Server) {
		d.RestartRequired = true
	}

	return d
}

// providerEntryEqual compares entries field by field. The free-form Options
// map may hold nested maps, so it is compared structurally.
func providerEntryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	return reflect.DeepEqual(a.Options, b.Options)
}

// serverChangedBeyondLogLevel reports whether any server field other than the
// hot-reloadable log level differs.
func serverChangedBeyondLogLevel(a, b ServerConfig) bool {
	if a.ListenAddr != b.ListenAddr {
		return true
	}
	if (a.TLS == nil) != (b.TLS == nil) {
		return true
	}
	if a.TLS != nil && *a.TLS != *b.TLS {
		return true
	}
	return false
}
