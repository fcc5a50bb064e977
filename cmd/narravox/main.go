// Command narravox is the narration-editor server: it manages projects,
// keeps text chunks in sync, drives audio generation, and assembles exports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/narravox/narravox/internal/chunks"
	"github.com/narravox/narravox/internal/config"
	"github.com/narravox/narravox/internal/export"
	"github.com/narravox/narravox/internal/health"
	"github.com/narravox/narravox/internal/httpapi"
	"github.com/narravox/narravox/internal/observe"
	"github.com/narravox/narravox/internal/project"
	"github.com/narravox/narravox/internal/project/postgres"
	"github.com/narravox/narravox/internal/variants"
	"github.com/narravox/narravox/pkg/provider/concat"
	"github.com/narravox/narravox/pkg/provider/concat/ffmpegapi"
	"github.com/narravox/narravox/pkg/provider/tts"
	"github.com/narravox/narravox/pkg/provider/tts/elevenlabs"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "narravox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "narravox: %v\n", err)
		}
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("narravox starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "narravox",
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
	metrics := observe.DefaultMetrics()

	// ── Storage ───────────────────────────────────────────────────────────────
	var (
		store    project.Store
		checkers []health.Checker
	)
	if cfg.Database.DSN != "" {
		pgStore, pool, err := postgres.Connect(ctx, cfg.Database.DSN)
		if err != nil {
			slog.Error("failed to connect to database", "err", err)
			return 1
		}
		defer pool.Close()
		store = pgStore
		checkers = append(checkers, health.Database(pool))
		slog.Info("using postgres store")
	} else {
		store = project.NewMemStore()
		slog.Info("using in-memory store; data is lost on restart")
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	var synth tts.Provider
	if key := cfg.Providers.ElevenLabs.APIKey; key != "" {
		var opts []elevenlabs.Option
		if cfg.Providers.ElevenLabs.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(cfg.Providers.ElevenLabs.BaseURL))
		}
		synth, err = elevenlabs.New(key, opts...)
		if err != nil {
			slog.Error("failed to create synthesis provider", "err", err)
			return 1
		}
		checkers = append(checkers, health.Synthesis(synth))
	} else {
		synth = unconfiguredTTS{}
	}

	var concatenator concat.Concatenator
	if key := cfg.Providers.FFmpegAPI.APIKey; key != "" {
		var opts []ffmpegapi.Option
		if cfg.Providers.FFmpegAPI.BaseURL != "" {
			opts = append(opts, ffmpegapi.WithBaseURL(cfg.Providers.FFmpegAPI.BaseURL))
		}
		concatenator, err = ffmpegapi.New("Basic "+key, opts...)
		if err != nil {
			slog.Error("failed to create concatenation provider", "err", err)
			return 1
		}
	} else {
		concatenator = unconfiguredConcat{}
	}

	// ── Services ──────────────────────────────────────────────────────────────
	reconciler := chunks.NewReconciler(store, metrics)
	generator := variants.NewGenerator(store, synth, metrics, cfg.Generation.MaxVariants)
	activator := variants.NewActivator(store)
	assembler := export.NewAssembler(store, concatenator, metrics)

	api := httpapi.New(store, reconciler, generator, activator, assembler, synth,
		health.New(checkers...), metrics)

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", srv.Addr)
		if tlsCfg := cfg.Server.TLS; tlsCfg != nil {
			serverErr <- srv.ListenAndServeTLS(tlsCfg.CertFile, tlsCfg.KeyFile)
		} else {
			serverErr <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping…")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// unconfiguredTTS stands in when no synthesis credentials are configured so
// the server can still serve projects, text editing, and archives.
type unconfiguredTTS struct{}

func (unconfiguredTTS) Synthesize(context.Context, tts.SynthesisRequest) ([]byte, error) {
	return nil, &tts.ProviderError{StatusCode: http.StatusServiceUnavailable, Detail: "synthesis provider not configured"}
}

func (unconfiguredTTS) ListVoices(context.Context) ([]tts.Voice, error) {
	return nil, &tts.ProviderError{StatusCode: http.StatusServiceUnavailable, Detail: "synthesis provider not configured"}
}

func (unconfiguredTTS) ListModels(context.Context) ([]tts.Model, error) {
	return nil, &tts.ProviderError{StatusCode: http.StatusServiceUnavailable, Detail: "synthesis provider not configured"}
}

// unconfiguredConcat stands in when no concatenation credentials are
// configured.
type unconfiguredConcat struct{}

func (unconfiguredConcat) Concatenate(context.Context, [][]byte, string) ([]byte, error) {
	return nil, &concat.ProviderError{StatusCode: http.StatusServiceUnavailable, Detail: "concatenation provider not configured"}
}
