package kws_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/echosort/echosort/pkg/kws"
	"github.com/echosort/echosort/pkg/kws/mock"
)

// newSpotter builds a Spotter over a mock engine with a single 0.5 threshold
// and the given channel capacity.
func newSpotter(t *testing.T, capacity int, thresholds ...float64) (*kws.Spotter, *mock.Engine) {
	t.Helper()
	if len(thresholds) == 0 {
		thresholds = []float64{0.5}
	}
	eng := mock.NewEngine()
	s, err := kws.NewSpotter(eng, thresholds, kws.WithCapacity(capacity))
	if err != nil {
		t.Fatalf("NewSpotter: %v", err)
	}
	return s, eng
}

func TestNewSpotter_Validation(t *testing.T) {
	t.Parallel()

	eng := mock.NewEngine()

	t.Run("nil engine", func(t *testing.T) {
		if _, err := kws.NewSpotter(nil, []float64{0.5}); err == nil {
			t.Fatal("want error for nil engine")
		}
	})
	t.Run("no thresholds", func(t *testing.T) {
		if _, err := kws.NewSpotter(eng, nil); err == nil {
			t.Fatal("want error for empty thresholds")
		}
	})
	t.Run("threshold out of range", func(t *testing.T) {
		if _, err := kws.NewSpotter(eng, []float64{1.5}); err == nil {
			t.Fatal("want error for threshold > 1")
		}
		if _, err := kws.NewSpotter(eng, []float64{0}); err == nil {
			t.Fatal("want error for threshold 0")
		}
	})
}

func TestSpotter_ThresholdCrossingProducesEvent(t *testing.T) {
	t.Parallel()

	s, _ := newSpotter(t, 4, 0.5, 0.3)

	// Second keyword crosses, first does not.
	s.Observe([]float64{0.4, 0.9})

	select {
	case ev := <-s.Events():
		if ev.KeywordIndex != 1 {
			t.Fatalf("KeywordIndex = %d, want 1", ev.KeywordIndex)
		}
		if ev.At.IsZero() {
			t.Fatal("event timestamp is zero")
		}
	default:
		t.Fatal("no event produced")
	}
}

func TestSpotter_BelowThresholdIsSilent(t *testing.T) {
	t.Parallel()

	s, _ := newSpotter(t, 4)
	s.Observe([]float64{0.5}) // equal to threshold: not a crossing
	s.Observe([]float64{0.1})

	if s.QueueLen() != 0 {
		t.Fatalf("queued events = %d, want 0", s.QueueLen())
	}
}

func TestSpotter_FullChannelDropsNewest(t *testing.T) {
	t.Parallel()

	s, _ := newSpotter(t, 2)

	start := time.Now()
	s.Observe([]float64{0.9}) // queued first
	s.Observe([]float64{0.9})
	s.Observe([]float64{0.9}) // overflow: dropped, must not block

	if got := s.Dropped(); got != 1 {
		t.Fatalf("Dropped() = %d, want 1", got)
	}

	// The oldest queued event survives; the overflowing one was discarded.
	ev := <-s.Events()
	if ev.At.Before(start) {
		t.Fatalf("event timestamp %v predates production", ev.At)
	}
	if s.QueueLen() != 1 {
		t.Fatalf("remaining queued events = %d, want 1", s.QueueLen())
	}
}

func TestSpotter_PauseSuppressesAndResumeDrains(t *testing.T) {
	t.Parallel()

	s, _ := newSpotter(t, 4)

	s.Observe([]float64{0.9}) // queued before pause
	s.Pause()
	s.Observe([]float64{0.9}) // ignored while paused

	if s.QueueLen() != 0 {
		t.Fatalf("queued events during pause = %d, want 0", s.QueueLen())
	}

	s.Resume()
	if s.QueueLen() != 0 {
		t.Fatal("stale event leaked through resume")
	}

	// Detections after resume flow again.
	s.Observe([]float64{0.9})
	if s.QueueLen() != 1 {
		t.Fatalf("queued events after resume = %d, want 1", s.QueueLen())
	}
}

func TestSpotter_RunDeliversThroughEngine(t *testing.T) {
	t.Parallel()

	s, eng := newSpotter(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	eng.Feed([]float64{0.9})

	select {
	case ev := <-s.Events():
		if ev.KeywordIndex != 0 {
			t.Fatalf("KeywordIndex = %d, want 0", ev.KeywordIndex)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	cancel()
	eng.Feed([]float64{0.1}) // unblock a pending Step
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not observe cancellation")
	}
}

func TestSpotter_RunSkipsFailedSteps(t *testing.T) {
	t.Parallel()

	s, eng := newSpotter(t, 4)
	eng.StepErr = errors.New("transient inference failure")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// The failed step is skipped and the loop keeps consuming.
	eng.Feed([]float64{0.9})
	select {
	case <-s.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not survive a failed step")
	}

	cancel()
	eng.Close()
	<-done
}

func TestSpotter_RunStopsWhenEngineCloses(t *testing.T) {
	t.Parallel()

	s, eng := newSpotter(t, 4)
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	eng.Close()
	select {
	case err := <-done:
		if !errors.Is(err, kws.ErrEngineClosed) {
			t.Fatalf("Run returned %v, want ErrEngineClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after engine close")
	}
}
