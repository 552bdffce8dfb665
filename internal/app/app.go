// Package app wires all echosort subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the detection and trigger loops, and Shutdown
// tears everything down in order.
//
// For testing, inject doubles via the Providers struct; New only builds the
// plumbing between them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/echosort/echosort/internal/config"
	"github.com/echosort/echosort/internal/observe"
	"github.com/echosort/echosort/internal/resilience"
	"github.com/echosort/echosort/internal/trigger"
	"github.com/echosort/echosort/pkg/actuator"
	"github.com/echosort/echosort/pkg/audio"
	"github.com/echosort/echosort/pkg/classify"
	"github.com/echosort/echosort/pkg/kws"
)

// Providers holds the external collaborators the pipeline is built around.
// All fields are required; main.go constructs the real implementations and
// tests inject doubles.
type Providers struct {
	// Engine is the keyword-spotting inference engine.
	Engine kws.Engine

	// Camera captures one frame per trigger.
	Camera classify.Camera

	// Player plays local WAV assets.
	Player audio.Player

	// Bus is the peripheral register bus.
	Bus actuator.Bus
}

// App owns all subsystem lifetimes and runs the trigger pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	spotter      *kws.Spotter
	driver       *actuator.Driver
	classifier   *classify.Client
	responder    *audio.Responder
	orchestrator *trigger.Orchestrator

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// New creates an App by wiring all subsystems together. Configured category
// and event assets are validated up front: an unreadable or mis-formatted
// WAV file is a configuration error and fails startup.
func New(cfg *config.Config, providers *Providers, opts ...trigger.Option) (*App, error) {
	if providers == nil {
		return nil, fmt.Errorf("app: providers are required")
	}
	if providers.Engine == nil || providers.Camera == nil || providers.Player == nil || providers.Bus == nil {
		return nil, fmt.Errorf("app: engine, camera, player and bus providers are all required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
	}

	categories, err := buildCategories(cfg)
	if err != nil {
		return nil, err
	}
	for key, path := range cfg.Events {
		if err := audio.CheckFile(path); err != nil {
			return nil, fmt.Errorf("app: event %q: %w", key, err)
		}
	}

	thresholds := make([]float64, len(cfg.KWS.Keywords))
	for i, kw := range cfg.KWS.Keywords {
		thresholds[i] = kw.Threshold
	}
	a.spotter, err = kws.NewSpotter(providers.Engine, thresholds,
		kws.WithCapacity(cfg.ChannelCapacity))
	if err != nil {
		return nil, fmt.Errorf("app: create spotter: %w", err)
	}

	a.driver = actuator.New(providers.Bus)
	a.responder = audio.NewResponder(categories, cfg.Events, providers.Player,
		instrumentedSpeaker{driver: a.driver})

	a.classifier, err = classify.New(providers.Camera, cfg.Classifier.Endpoint,
		classify.WithTimeout(cfg.Classifier.Timeout.Std()))
	if err != nil {
		return nil, fmt.Errorf("app: create classifier: %w", err)
	}

	guarded := resilience.NewGuardedClassifier(a.classifier,
		resilience.NewBreaker(resilience.Config{Name: "classifier"}))

	triggerOpts := append([]trigger.Option{
		trigger.WithPostTriggerDelay(cfg.PostTriggerDelay.Std()),
	}, opts...)
	a.orchestrator = trigger.New(a.spotter.Events(), guarded, a.responder,
		a.spotter, cfg.Cooldown.Std(), triggerOpts...)

	a.closers = append(a.closers, providers.Engine.Close)

	return a, nil
}

// buildCategories converts the config mapping into the responder's form,
// validating every configured asset.
func buildCategories(cfg *config.Config) (map[string]audio.Category, error) {
	categories := make(map[string]audio.Category, len(cfg.Categories))
	for label, cat := range cfg.Categories {
		if cat.Asset != "" {
			if err := audio.CheckFile(cat.Asset); err != nil {
				return nil, fmt.Errorf("app: category %q: %w", label, err)
			}
		}
		categories[label] = audio.Category{
			AssetPath: cat.Asset,
			PhraseID:  byte(cat.PhraseID),
		}
	}
	return categories, nil
}

// instrumentedSpeaker counts peripheral writes while delegating to the
// actuator driver.
type instrumentedSpeaker struct {
	driver *actuator.Driver
}

func (s instrumentedSpeaker) Speak(t actuator.CommandType, phraseID byte) error {
	err := s.driver.Speak(t, phraseID)
	status := "ok"
	if err != nil {
		status = "error"
	}
	observe.DefaultMetrics().RecordActuatorWrite(context.Background(), status)
	return err
}

var _ audio.Speaker = instrumentedSpeaker{}

// Responder exposes the audio responder, mainly for startup announcements.
func (a *App) Responder() *audio.Responder {
	return a.responder
}

// Driver exposes the actuator driver for diagnostics.
func (a *App) Driver() *actuator.Driver {
	return a.driver
}

// Run starts the detection producer and trigger orchestrator and blocks
// until ctx is cancelled or either loop fails. The two loops share nothing
// but the bounded event channel and the advisory pause flag.
func (a *App) Run(ctx context.Context) error {
	slog.Info("pipeline running",
		"keywords", len(a.cfg.KWS.Keywords),
		"cooldown", a.cfg.Cooldown.Std(),
		"channel_capacity", a.cfg.ChannelCapacity)

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.spotter.Run(runCtx)
	})
	g.Go(func() error {
		return a.orchestrator.Run(runCtx)
	})
	g.Go(func() error {
		// The spotter can be blocked inside an inference step with no
		// cancellation point of its own; closing the engine unblocks it.
		<-runCtx.Done()
		return a.providers.Engine.Close()
	})
	err := g.Wait()
	switch {
	case errors.Is(err, context.Canceled):
		err = nil
	case errors.Is(err, kws.ErrEngineClosed):
		// Expected when the shutdown watchdog closed the engine. An engine
		// that died on its own while the parent context is still live is a
		// real failure and must surface.
		if ctx.Err() != nil {
			err = nil
		} else {
			slog.Error("inference engine terminated unexpectedly", "err", err)
		}
	}

	if dropped := a.spotter.Dropped(); dropped > 0 {
		slog.Warn("detection events were dropped on a full channel", "count", dropped)
		observe.DefaultMetrics().RecordEventsDropped(context.Background(), int64(dropped))
	}
	return err
}

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
