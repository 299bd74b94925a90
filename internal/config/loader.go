package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"tts": {"elevenlabs", "coqui"},
	"stt": {"deepgram"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)

	// Server-side providers need credentials; a browser-side stage (empty
	// name) needs nothing. The self-hosted coqui backend authenticates with
	// nothing and needs a server address instead.
	switch cfg.Providers.TTS.Name {
	case "":
	case "coqui":
		if cfg.Providers.TTS.BaseURL == "" {
			errs = append(errs, errors.New("providers.tts.base_url is required when providers.tts.name is \"coqui\""))
		}
	default:
		if cfg.Providers.TTS.APIKey == "" {
			errs = append(errs, fmt.Errorf("providers.tts.api_key is required when providers.tts.name is %q", cfg.Providers.TTS.Name))
		}
	}
	if cfg.Providers.STT.Name != "" && cfg.Providers.STT.APIKey == "" {
		errs = append(errs, fmt.Errorf("providers.stt.api_key is required when providers.stt.name is %q", cfg.Providers.STT.Name))
	}

	// Practice timing
	if cfg.Practice.NarrationFallback < 0 {
		errs = append(errs, fmt.Errorf("practice.narration_fallback %s is negative", cfg.Practice.NarrationFallback))
	}
	if cfg.Practice.NoResponseTimeout < 0 {
		errs = append(errs, fmt.Errorf("practice.no_response_timeout %s is negative", cfg.Practice.NoResponseTimeout))
	}

	// Default match settings
	if m := cfg.Defaults.Match; m != nil {
		if m.VoicePreference != "" && !m.VoicePreference.IsValid() {
			errs = append(errs, fmt.Errorf("defaults.match.voice_preference %q is invalid; valid values: male, female, neutral", m.VoicePreference))
		}
	}

	// Storage availability
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; stimuli and settings are served from the in-memory store")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
