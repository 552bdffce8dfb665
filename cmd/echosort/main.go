// Command echosort is the voice-triggered garbage-classification assistant.
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
	"strings"
	"syscall"
	"time"

	"github.com/echosort/echosort/internal/app"
	"github.com/echosort/echosort/internal/config"
	"github.com/echosort/echosort/internal/health"
	"github.com/echosort/echosort/internal/observe"
	"github.com/echosort/echosort/pkg/audio"
	"github.com/echosort/echosort/pkg/classify"
	"github.com/echosort/echosort/pkg/i2c"
	"github.com/echosort/echosort/pkg/kws"
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
			fmt.Fprintf(os.Stderr, "echosort: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "echosort: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("echosort starting",
		"config", *configPath,
		"log_level", cfg.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("metrics provider shutdown error", "err", err)
		}
	}()

	// ── External collaborators ────────────────────────────────────────────────
	providers, cleanup, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	defer cleanup()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Diagnostics listener: /metrics, /healthz, /readyz ─────────────────────
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		probes := health.New(
			health.Classifier(cfg.Classifier.Endpoint, nil),
			health.Bus(application.Driver()),
		)
		metricsSrv = observe.MetricsServer(cfg.MetricsAddr, probes.Register)
		go func() {
			slog.Info("diagnostics endpoint listening", "addr", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("diagnostics server error", "err", err)
			}
		}()
	}

	slog.Info("assistant ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown error", "err", err)
		}
	}

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildProviders constructs the real hardware-facing collaborators: the
// peripheral bus, the inference engine subprocess, the playback device, and
// the capture command. The returned cleanup runs in reverse-construction
// order and is safe to call after a partial failure.
func buildProviders(cfg *config.Config) (*app.Providers, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				slog.Warn("provider close error", "err", err)
			}
		}
	}

	dev, err := i2c.Open(cfg.Bus.ID, cfg.Bus.Address)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open peripheral bus %d at %#x: %w", cfg.Bus.ID, cfg.Bus.Address, err)
	}
	closers = append(closers, dev.Close)
	slog.Info("peripheral bus open", "bus", cfg.Bus.ID, "address", fmt.Sprintf("%#x", cfg.Bus.Address))

	if _, err := os.Stat(cfg.KWS.ModelPath); err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("model artifact %q: %w", cfg.KWS.ModelPath, err)
	}
	// The model path rides along as the engine command's final argument.
	engineArgs := make([]string, 0, len(cfg.KWS.EngineCommand))
	engineArgs = append(engineArgs, cfg.KWS.EngineCommand[1:]...)
	engineArgs = append(engineArgs, cfg.KWS.ModelPath)
	engine, err := kws.NewStdioEngine(cfg.KWS.EngineCommand[0], engineArgs...)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	closers = append(closers, engine.Close)
	slog.Info("inference engine started", "command", cfg.KWS.EngineCommand[0], "model", cfg.KWS.ModelPath)

	player, err := audio.NewMalgoPlayer(*cfg.Volume)
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("initialise playback: %w", err)
	}
	closers = append(closers, player.Close)

	camera, err := classify.NewCommandCamera(cfg.Camera.SnapshotPath, cfg.Camera.CaptureCommand)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}

	return &app.Providers{
		Engine: engine,
		Camera: camera,
		Player: player,
		Bus:    dev,
	}, cleanup, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         echosort — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Bus", fmt.Sprintf("i2c-%d @ %#x", cfg.Bus.ID, cfg.Bus.Address))
	printField("Keywords", strings.Join(phrases(cfg), ", "))
	printField("Cooldown", cfg.Cooldown.Std().String())
	printField("Classifier", cfg.Classifier.Endpoint)
	printField("Categories", fmt.Sprintf("%d", len(cfg.Categories)))
	printField("Volume", fmt.Sprintf("%d", *cfg.Volume))
	if cfg.MetricsAddr != "" {
		printField("Metrics", cfg.MetricsAddr)
	} else {
		printField("Metrics", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printField(name, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", name, value)
}

func phrases(cfg *config.Config) []string {
	out := make([]string, len(cfg.KWS.Keywords))
	for i, kw := range cfg.KWS.Keywords {
		out[i] = kw.Phrase
	}
	return out
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
