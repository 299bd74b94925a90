package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kverrall/namecue/internal/config"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "namecue.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Server.ListenAddr = %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("Load() = nil error for a missing file")
	}
}

func TestLoadInvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server:\n  log_level: shouty\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("Load() accepted an invalid log level")
	}
}

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    float64 // seconds
		wantErr bool
	}{
		{name: "seconds", yaml: "practice:\n  no_response_timeout: 30s\n", want: 30},
		{name: "composite", yaml: "practice:\n  no_response_timeout: 1m30s\n", want: 90},
		{name: "nanoseconds integer", yaml: "practice:\n  no_response_timeout: 1000000000\n", want: 1},
		{name: "garbage", yaml: "practice:\n  no_response_timeout: soon\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("LoadFromReader(%q) = nil error", tt.yaml)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadFromReader(%q) error: %v", tt.yaml, err)
			}
			if got := cfg.Practice.NoResponseTimeout.Std().Seconds(); got != tt.want {
				t.Errorf("NoResponseTimeout = %vs, want %vs", got, tt.want)
			}
		})
	}
}
