package kws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrEngineClosed is reported by [Engine.Step] once the engine has been
// closed. The Spotter run loop treats it as terminal.
var ErrEngineClosed = errors.New("kws: engine closed")

const (
	// defaultCapacity is the bound of the detection event channel.
	defaultCapacity = 10

	// stepErrorBackoff throttles the run loop after a failed inference
	// step so a persistently broken engine does not spin a core.
	stepErrorBackoff = 100 * time.Millisecond
)

// Spotter turns engine probability callbacks into [DetectionEvent] values.
//
// Exactly one goroutine runs [Spotter.Run]; Pause, Resume, and the channel
// returned by Events may be used from a single consumer goroutine. The pause
// gate is the only state shared between the two and is atomic.
type Spotter struct {
	engine     Engine
	thresholds []float64
	events     chan DetectionEvent

	paused  atomic.Bool
	dropped atomic.Uint64
}

// Option configures a [Spotter] during construction.
type Option func(*Spotter)

// WithCapacity sets the bound of the detection event channel. The default
// is 10. Values below 1 are clamped to 1.
func WithCapacity(n int) Option {
	return func(s *Spotter) {
		if n < 1 {
			n = 1
		}
		s.events = make(chan DetectionEvent, n)
	}
}

// NewSpotter creates a Spotter that watches one threshold per keyword.
// thresholds[i] applies to keyword index i; probabilities for indexes beyond
// len(thresholds) are ignored. The Spotter registers itself as the engine's
// probability callback.
func NewSpotter(engine Engine, thresholds []float64, opts ...Option) (*Spotter, error) {
	if engine == nil {
		return nil, errors.New("kws: engine must not be nil")
	}
	if len(thresholds) == 0 {
		return nil, errors.New("kws: at least one keyword threshold is required")
	}
	for i, th := range thresholds {
		if th <= 0 || th > 1 {
			return nil, fmt.Errorf("kws: threshold[%d] %.3f is out of range (0, 1]", i, th)
		}
	}

	s := &Spotter{
		engine:     engine,
		thresholds: thresholds,
		events:     make(chan DetectionEvent, defaultCapacity),
	}
	for _, o := range opts {
		o(s)
	}

	engine.SetCallback(s.observe)
	return s, nil
}

// Events returns the bounded detection event channel. Events are delivered
// in production order; overflowing events are dropped, never reordered.
func (s *Spotter) Events() <-chan DetectionEvent {
	return s.events
}

// Dropped reports how many events have been discarded because the channel
// was full at production time.
func (s *Spotter) Dropped() uint64 {
	return s.dropped.Load()
}

// Run drives the engine until ctx is cancelled or the engine is closed.
// A failed inference step is logged and skipped; the loop continues.
//
// Run must be called promptly and continuously — the engine drains its audio
// buffer on every step, and a stalled loop is an overrun condition. Keep slow
// work on the consumer side of the event channel.
func (s *Spotter) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.engine.Step(); err != nil {
			if errors.Is(err, ErrEngineClosed) {
				return err
			}
			slog.Warn("kws: inference step failed, skipping", "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(stepErrorBackoff):
			}
		}
	}
}

// Pause suppresses detection: threshold crossings observed while paused are
// not turned into events, and any events already queued are discarded.
// Used while the assistant is producing speech output of its own.
func (s *Spotter) Pause() {
	s.paused.Store(true)
	s.drain()
}

// Resume re-enables detection. The queue is drained first so no event
// produced during the pause window leaks through to the consumer.
func (s *Spotter) Resume() {
	s.drain()
	s.paused.Store(false)
}

// observe is the engine probability callback. Its only side effect is a
// non-blocking push onto the event channel; all sequencing lives with the
// consumer.
func (s *Spotter) observe(probs []float64) {
	if s.paused.Load() {
		return
	}
	now := time.Now()
	for i, p := range probs {
		if i >= len(s.thresholds) {
			break
		}
		if p <= s.thresholds[i] {
			continue
		}
		select {
		case s.events <- DetectionEvent{KeywordIndex: i, At: now}:
		default:
			// Full channel: the producer must not block here.
			s.dropped.Add(1)
		}
	}
}

// drain discards all queued events without blocking.
func (s *Spotter) drain() {
	for {
		select {
		case <-s.events:
		default:
			return
		}
	}
}
