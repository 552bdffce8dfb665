package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/echosort/echosort/internal/app"
	"github.com/echosort/echosort/internal/config"
	actuatormock "github.com/echosort/echosort/pkg/actuator/mock"
	audiomock "github.com/echosort/echosort/pkg/audio/mock"
	classifymock "github.com/echosort/echosort/pkg/classify/mock"
	kwsmock "github.com/echosort/echosort/pkg/kws/mock"
)

// testConfig returns a minimal valid config pointing at endpoint.
func testConfig(endpoint string) *config.Config {
	volume := 85
	return &config.Config{
		LogLevel: config.LogInfo,
		Bus:      config.BusConfig{ID: 4, Address: 0x34},
		KWS: config.KWSConfig{
			ModelPath:     "/tmp/model.mud",
			SampleRate:    16000,
			EngineCommand: []string{"true"},
			Keywords:      []config.KeywordConfig{{Phrase: "kai1 qi3 la1 ji1", Threshold: 0.2}},
		},
		Cooldown:        config.Duration(3 * time.Second),
		ChannelCapacity: 4,
		Volume:          &volume,
		Camera: config.CameraConfig{
			SnapshotPath:   "/tmp/snapshot.jpg",
			CaptureCommand: []string{"true"},
		},
		Classifier: config.ClassifierConfig{
			Endpoint: endpoint,
			Timeout:  config.Duration(2 * time.Second),
		},
		Categories: map[string]config.CategoryConfig{
			"可回收物": {PhraseID: 1},
		},
	}
}

func testProviders(imagePath string) *app.Providers {
	return &app.Providers{
		Engine: kwsmock.NewEngine(),
		Camera: &classifymock.Camera{CaptureResult: imagePath},
		Player: &audiomock.Player{},
		Bus:    &actuatormock.Bus{},
	}
}

func TestNew_RequiresAllProviders(t *testing.T) {
	t.Parallel()
	cfg := testConfig("http://localhost/predict")

	if _, err := app.New(cfg, nil); err == nil {
		t.Error("expected error for nil providers, got nil")
	}

	p := testProviders("/tmp/frame.jpg")
	p.Bus = nil
	if _, err := app.New(cfg, p); err == nil {
		t.Error("expected error for missing bus, got nil")
	}
}

func TestNew_RejectsUnreadableAsset(t *testing.T) {
	t.Parallel()
	bogus := filepath.Join(t.TempDir(), "not-a-wav.wav")
	if err := os.WriteFile(bogus, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cfg := testConfig("http://localhost/predict")
	cfg.Categories["厨余垃圾"] = config.CategoryConfig{Asset: bogus, PhraseID: 2}

	if _, err := app.New(cfg, testProviders("/tmp/frame.jpg")); err == nil {
		t.Error("expected error for unreadable category asset, got nil")
	}
}

func TestRun_KeywordTriggersAnnouncement(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"category": "可回收物"}`))
	}))
	defer srv.Close()

	imagePath := filepath.Join(t.TempDir(), "frame.jpg")
	if err := os.WriteFile(imagePath, []byte{0xff, 0xd8, 0xff}, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	engine := kwsmock.NewEngine()
	bus := &actuatormock.Bus{}
	providers := &app.Providers{
		Engine: engine,
		Camera: &classifymock.Camera{CaptureResult: imagePath},
		Player: &audiomock.Player{},
		Bus:    bus,
	}

	a, err := app.New(testConfig(srv.URL), providers)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// One threshold crossing should produce exactly one announcement.
	engine.Feed([]float64{0.9})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(bus.BlockCalls()) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	calls := bus.BlockCalls()
	if len(calls) != 1 {
		t.Fatalf("actuator block writes = %d, want 1", len(calls))
	}
	if calls[0].Reg != 0x6e {
		t.Errorf("write register = %#x, want 0x6e", calls[0].Reg)
	}
	if len(calls[0].Data) != 2 || calls[0].Data[0] != 0xff || calls[0].Data[1] != 1 {
		t.Errorf("wire bytes = %v, want [255 1]", calls[0].Data)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestRun_SurfacesSpontaneousEngineDeath(t *testing.T) {
	t.Parallel()

	engine := kwsmock.NewEngine()
	providers := testProviders("/tmp/frame.jpg")
	providers.Engine = engine

	a, err := app.New(testConfig("http://localhost/predict"), providers)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// The engine dies on its own while the context is still live. Run must
	// report the failure rather than exit as if a shutdown was requested.
	engine.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Run returned nil after a spontaneous engine death")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after the engine died")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()
	a, err := app.New(testConfig("http://localhost/predict"), testProviders("/tmp/frame.jpg"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}
