package config_test

import (
	"testing"

	"github.com/kverrall/namecue/internal/config"
	"github.com/kverrall/namecue/pkg/types"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   config.LogInfo,
		},
		Providers: config.ProvidersConfig{
			TTS: config.ProviderEntry{Name: "elevenlabs", APIKey: "el-test"},
		},
		Practice: config.PracticeConfig{
			NarrationFallback: config.Duration(3e9),
			NoResponseTimeout: config.Duration(30e9),
		},
	}
}

func TestDiffNoChanges(t *testing.T) {
	d := config.Diff(baseConfig(), baseConfig())
	if d != (config.ConfigDiff{}) {
		t.Errorf("Diff(identical) = %+v, want zero diff", d)
	}
}

func TestDiffLogLevel(t *testing.T) {
	newCfg := baseConfig()
	newCfg.Server.LogLevel = config.LogDebug

	d := config.Diff(baseConfig(), newCfg)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("Diff() = %+v, want LogLevelChanged with debug", d)
	}
	if d.RestartRequired {
		t.Error("log level change must not require a restart")
	}
}

func TestDiffPracticeTiming(t *testing.T) {
	newCfg := baseConfig()
	newCfg.Practice.NoResponseTimeout = config.Duration(45e9)

	d := config.Diff(baseConfig(), newCfg)
	if !d.PracticeChanged {
		t.Fatalf("Diff() = %+v, want PracticeChanged", d)
	}
	if d.NewPractice.NoResponseTimeout != config.Duration(45e9) {
		t.Errorf("NewPractice = %+v, want 45s no-response timeout", d.NewPractice)
	}
}

func TestDiffMatchDefaults(t *testing.T) {
	newCfg := baseConfig()
	m := types.DefaultMatchSettings()
	m.SynonymMatching = false
	newCfg.Defaults.Match = &m

	d := config.Diff(baseConfig(), newCfg)
	if !d.DefaultsChanged {
		t.Fatalf("Diff() = %+v, want DefaultsChanged", d)
	}
	if d.NewDefaults.SynonymMatching {
		t.Error("NewDefaults kept synonym matching enabled")
	}
}

func TestDiffExplicitDefaultsEqualToFallback(t *testing.T) {
	// Spelling out the built-in defaults is not a change.
	newCfg := baseConfig()
	m := types.DefaultMatchSettings()
	newCfg.Defaults.Match = &m

	if d := config.Diff(baseConfig(), newCfg); d.DefaultsChanged {
		t.Errorf("Diff() = %+v; explicit defaults must equal the fallback", d)
	}
}

func TestDiffRestartRequired(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"listen addr", func(c *config.Config) { c.Server.ListenAddr = ":9090" }},
		{"tls added", func(c *config.Config) { c.Server.TLS = &config.TLSConfig{CertFile: "c", KeyFile: "k"} }},
		{"tts provider", func(c *config.Config) { c.Providers.TTS.Name = "other" }},
		{"tts option", func(c *config.Config) { c.Providers.TTS.Options = map[string]any{"stability": 0.5} }},
		{"stt provider", func(c *config.Config) { c.Providers.STT.Name = "deepgram" }},
		{"storage dsn", func(c *config.Config) { c.Storage.PostgresDSN = "postgres://other" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newCfg := baseConfig()
			tt.mutate(newCfg)
			if d := config.Diff(baseConfig(), newCfg); !d.RestartRequired {
				t.Errorf("Diff() = %+v, want RestartRequired", d)
			}
		})
	}
}
