// Package mock provides test doubles for the kws package interfaces.
//
// Engine is a scripted inference engine: feed it probability vectors with
// Feed, and every Step delivers the next vector to the registered callback.
// Step blocks until a vector is available or the engine is closed, matching
// the audio-cadence blocking of a real engine.
//
// Example:
//
//	eng := mock.NewEngine()
//	spotter, _ := kws.NewSpotter(eng, []float64{0.2})
//	eng.Feed([]float64{0.9})
//	go spotter.Run(ctx)
package mock

import (
	"sync"

	"github.com/echosort/echosort/pkg/kws"
)

// Engine is a mock implementation of kws.Engine.
type Engine struct {
	mu sync.Mutex

	// StepErr, if non-nil, is returned by the next Step call and then
	// cleared. The scripted vector queue is untouched.
	StepErr error

	// CloseErr is returned by Close.
	CloseErr error

	// StepCalls counts Step invocations, including failed ones.
	StepCalls int

	cb     func(probs []float64)
	steps  chan []float64
	closed chan struct{}
	once   sync.Once
}

// NewEngine returns an Engine with room for 64 queued probability vectors.
func NewEngine() *Engine {
	return &Engine{
		steps:  make(chan []float64, 64),
		closed: make(chan struct{}),
	}
}

// Feed queues probability vectors for delivery, one per Step.
func (e *Engine) Feed(probs ...[]float64) {
	for _, p := range probs {
		e.steps <- p
	}
}

// SetCallback records the probability callback.
func (e *Engine) SetCallback(fn func(probs []float64)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cb = fn
}

// Step blocks until a fed vector is available, then delivers it to the
// callback. Returns StepErr once if set, and kws.ErrEngineClosed after Close.
func (e *Engine) Step() error {
	e.mu.Lock()
	e.StepCalls++
	if err := e.StepErr; err != nil {
		e.StepErr = nil
		e.mu.Unlock()
		return err
	}
	cb := e.cb
	e.mu.Unlock()

	select {
	case <-e.closed:
		return kws.ErrEngineClosed
	case probs := <-e.steps:
		if cb != nil {
			cb(probs)
		}
		return nil
	}
}

// Close unblocks any pending Step and makes future Steps fail.
func (e *Engine) Close() error {
	e.once.Do(func() { close(e.closed) })
	return e.CloseErr
}

// Compile-time assertion that Engine implements kws.Engine.
var _ kws.Engine = (*Engine)(nil)
