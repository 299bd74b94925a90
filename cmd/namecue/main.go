// Command namecue serves the word-finding practice gateway: adaptive cue
// escalation, spoken-answer verification, and the companion websocket
// surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"golang.org/x/sync/errgroup"

	"github.com/kverrall/namecue/internal/config"
	"github.com/kverrall/namecue/internal/cue"
	"github.com/kverrall/namecue/internal/gateway"
	"github.com/kverrall/namecue/internal/observe"
	"github.com/kverrall/namecue/internal/store"
	"github.com/kverrall/namecue/pkg/provider/stt"
	"github.com/kverrall/namecue/pkg/provider/stt/deepgram"
	"github.com/kverrall/namecue/pkg/provider/tts"
	"github.com/kverrall/namecue/pkg/provider/tts/coqui"
	"github.com/kverrall/namecue/pkg/provider/tts/elevenlabs"
	"github.com/kverrall/namecue/pkg/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "namecue: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "namecue: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("namecue starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Sentry ────────────────────────────────────────────────────────────────
	if dsn := cfg.Observability.SentryDSN; dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: cfg.Observability.Environment,
		})
		if err != nil {
			slog.Warn("sentry init failed", "err", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "namecue",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Storage ───────────────────────────────────────────────────────────────
	st, err := openStore(ctx, cfg)
	if err != nil {
		sentry.CaptureException(err)
		slog.Error("failed to open storage", "err", err)
		return 1
	}
	defer st.Close()

	// ── Gateway ───────────────────────────────────────────────────────────────
	gwOpts, err := providerOptions(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	gw := gateway.NewServer(st, practiceConfig(cfg), cfg.Defaults.MatchDefaults(), gwOpts...)

	// ── Config hot-reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, updated *config.Config) {
		applyConfigChange(gw, logLevel, old, updated)
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready", "listen_addr", srv.Addr)
		var err error
		if tlsCfg := cfg.Server.TLS; tlsCfg != nil {
			err = srv.ListenAndServeTLS(tlsCfg.CertFile, tlsCfg.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		sentry.CaptureException(err)
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Storage wiring ────────────────────────────────────────────────────────────

// openStore connects to Postgres when a DSN is configured and falls back to
// the seeded in-memory catalogue otherwise. A configured catalogue file is
// imported into whichever backend is in use.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var st store.Store
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pg, err := store.NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		slog.Info("storage ready", "backend", "postgres")
		st = pg
	} else {
		slog.Warn("no postgres_dsn configured, using the in-memory catalogue")
		st = store.NewMemStore()
	}

	if path := cfg.Storage.CatalogueFile; path != "" {
		cat, err := store.LoadCatalogueFile(path)
		if err != nil {
			st.Close()
			return nil, err
		}
		n, err := store.ImportCatalogue(ctx, st, cat)
		if err != nil {
			st.Close()
			return nil, err
		}
		slog.Info("stimulus catalogue imported", "file", path, "stimuli", n)
	}
	return st, nil
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// providerOptions turns the configured speech providers into gateway
// options. Without configured providers the companion's browser engines
// carry narration and recognition alone.
func providerOptions(cfg *config.Config) ([]gateway.Option, error) {
	var opts []gateway.Option

	if entry := cfg.Providers.TTS; entry.Name != "" {
		factory, err := speakerFactory(entry)
		if err != nil {
			return nil, fmt.Errorf("tts provider %q: %w", entry.Name, err)
		}
		opts = append(opts, gateway.WithSpeakerFactory(factory))
		slog.Info("provider configured", "kind", "tts", "name", entry.Name)
	}

	if entry := cfg.Providers.STT; entry.Name != "" {
		listener, err := buildListener(entry)
		if err != nil {
			return nil, fmt.Errorf("stt provider %q: %w", entry.Name, err)
		}
		opts = append(opts, gateway.WithListener(listener))
		slog.Info("provider configured", "kind", "stt", "name", entry.Name)
	}

	return opts, nil
}

// registerSpeechProviders wires the built-in provider factories into reg.
// sink is the audio channel server-side narration plays through; STT
// factories ignore it.
func registerSpeechProviders(reg *config.Registry, sink elevenlabs.AudioSink) {
	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Speaker, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if format := optString(entry.Options, "output_format"); format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		if voice := optString(entry.Options, "voice_id"); voice != "" {
			opts = append(opts, elevenlabs.WithDefaultVoice(voice))
		}
		return elevenlabs.New(entry.APIKey, sink, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Speaker, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		for gender, key := range map[types.VoiceGender]string{
			types.VoiceMale:    "speaker_id_male",
			types.VoiceFemale:  "speaker_id_female",
			types.VoiceNeutral: "speaker_id",
		} {
			if id := optString(entry.Options, key); id != "" {
				opts = append(opts, coqui.WithSpeakerID(gender, id))
			}
		}
		return coqui.New(entry.BaseURL, sink, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Listener, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})
}

// speakerFactory defers provider construction until a session hands over
// its audio channel; the registry rejects unknown provider names up front.
func speakerFactory(entry config.ProviderEntry) (gateway.SpeakerFactory, error) {
	probe := config.NewRegistry()
	registerSpeechProviders(probe, discardSink{})
	if _, err := probe.CreateTTS(entry); err != nil {
		return nil, err
	}
	return func(play gateway.PlayFunc) (tts.Speaker, error) {
		reg := config.NewRegistry()
		registerSpeechProviders(reg, playSink(play))
		return reg.CreateTTS(entry)
	}, nil
}

// buildListener constructs a server-side STT provider. The companion relays
// microphone audio to it over the session socket.
func buildListener(entry config.ProviderEntry) (stt.Listener, error) {
	reg := config.NewRegistry()
	registerSpeechProviders(reg, discardSink{})
	return reg.CreateSTT(entry)
}

// playSink adapts a [gateway.PlayFunc] to the [elevenlabs.AudioSink]
// interface.
type playSink gateway.PlayFunc

func (p playSink) Play(ctx context.Context, pcm io.Reader) error {
	return gateway.PlayFunc(p)(ctx, pcm)
}

// discardSink satisfies the sink requirement for construction probes that
// never play audio.
type discardSink struct{}

func (discardSink) Play(_ context.Context, pcm io.Reader) error {
	_, err := io.Copy(io.Discard, pcm)
	return err
}

// ── Config reload ─────────────────────────────────────────────────────────────

// practiceConfig maps the config file's practice timing onto the cue
// machine's configuration.
func practiceConfig(cfg *config.Config) cue.Config {
	return cue.Config{
		NarrationFallback: cfg.Practice.NarrationFallback.Std(),
		NoResponseTimeout: cfg.Practice.NoResponseTimeout.Std(),
	}
}

// applyConfigChange applies the hot-reloadable parts of a config update.
func applyConfigChange(gw *gateway.Server, logLevel *slog.LevelVar, old, updated *config.Config) {
	diff := config.Diff(old, updated)

	if diff.LogLevelChanged {
		logLevel.Set(slogLevel(diff.NewLogLevel))
		slog.Info("log level updated", "level", diff.NewLogLevel)
	}
	if diff.PracticeChanged {
		gw.SetPractice(practiceConfig(updated))
		slog.Info("practice timing updated",
			"narration_fallback", updated.Practice.NarrationFallback.Std(),
			"no_response_timeout", updated.Practice.NoResponseTimeout.Std(),
		)
	}
	if diff.DefaultsChanged {
		gw.SetDefaults(diff.NewDefaults)
		slog.Info("default match settings updated")
	}
	if diff.RestartRequired {
		slog.Warn("configuration change requires a restart to take effect")
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}
