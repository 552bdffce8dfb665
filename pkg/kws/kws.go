// Package kws adapts a streaming keyword-spotting engine into a bounded
// stream of detection events.
//
// The inference engine itself is a black box behind the [Engine] interface:
// each Step consumes one frame of microphone audio and reports a probability
// per configured keyword through a callback. The [Spotter] owns the engine
// loop, translates threshold crossings into [DetectionEvent] values on a
// bounded channel, and exposes an advisory pause gate so the assistant does
// not react to its own speech output.
//
// The engine loop must run continuously: the engine drains a hardware audio
// buffer on every Step, and failing to call Step promptly overruns that
// buffer. For that reason the Spotter never blocks inside the probability
// callback — when the event channel is full, the newest event is dropped.
package kws

import "time"

// DetectionEvent records a single keyword threshold crossing.
// Events are immutable and consumed at most once.
type DetectionEvent struct {
	// KeywordIndex is the position of the detected keyword in the
	// configured keyword list.
	KeywordIndex int

	// At is the time the threshold crossing was observed.
	At time.Time
}

// Engine is a streaming keyword-spotting inference engine.
//
// Implementations own the microphone and the acoustic model. The Spotter
// drives the engine by calling Step in a tight loop; each step delivers one
// probability per configured keyword to the callback registered with
// SetCallback.
type Engine interface {
	// SetCallback registers the per-step probability callback. Must be
	// called once before the first Step. The callback's slice is only
	// valid for the duration of the call.
	SetCallback(fn func(probs []float64))

	// Step consumes one frame of audio and advances inference, invoking
	// the registered callback with the step's probabilities. Step blocks
	// for at most one frame of audio cadence. A non-nil error marks the
	// step as skipped; the engine remains usable unless the error wraps
	// [ErrEngineClosed].
	Step() error

	// Close releases the engine and its audio resources. After Close,
	// Step returns an error wrapping [ErrEngineClosed].
	Close() error
}
