// Package trigger contains the orchestrator that turns keyword detection
// events into capture → classify → announce cycles.
//
// The orchestrator is the single consumer of the detection event channel. It
// owns the trigger state machine exclusively; at most one cycle is in flight
// at any time, and a cooldown interval suppresses re-triggers after each
// completed cycle.
package trigger

import (
	"context"
	"log/slog"
	"time"

	"github.com/echosort/echosort/internal/observe"
	"github.com/echosort/echosort/pkg/kws"
)

// State is the orchestrator's position in the trigger cycle.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateClassifying
	StateAnnouncing
	StateCooldown
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateClassifying:
		return "classifying"
	case StateAnnouncing:
		return "announcing"
	case StateCooldown:
		return "cooldown"
	}
	return "unknown"
}

// Cycle outcomes recorded on the trigger-cycle counter.
const (
	OutcomeAnnounced     = "announced"
	OutcomeCaptureError  = "capture_error"
	OutcomeClassifyError = "classify_error"
	OutcomeAnnounceError = "announce_error"
)

// Classifier captures one frame and resolves it to a category label.
type Classifier interface {
	CaptureImage(ctx context.Context) (string, error)
	Classify(ctx context.Context, imagePath string) (string, error)
}

// Announcer voices a classification result or a named system event.
type Announcer interface {
	AnnounceCategory(ctx context.Context, category string) error
	Respond(ctx context.Context, eventKey string) error
}

// Pauser suppresses and restores keyword detection around the pipeline's own
// audio output.
type Pauser interface {
	Pause()
	Resume()
}

// Orchestrator consumes detection events and runs trigger cycles.
type Orchestrator struct {
	events     <-chan kws.DetectionEvent
	classifier Classifier
	announcer  Announcer
	producer   Pauser

	cooldown         time.Duration
	postTriggerDelay time.Duration

	log     *slog.Logger
	metrics *observe.Metrics
	now     func() time.Time

	// onTransition, when set, observes every state change. Test hook.
	onTransition func(State)

	state       State
	lastTrigger time.Time
}

// Option customises an [Orchestrator].
type Option func(*Orchestrator)

// WithPostTriggerDelay adds an extra wait after the announcement before
// keyword detection resumes.
func WithPostTriggerDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.postTriggerDelay = d }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithMetrics sets the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTransitionHook registers fn to be called on every state change, in
// transition order, from the orchestrator's own goroutine.
func WithTransitionHook(fn func(State)) Option {
	return func(o *Orchestrator) { o.onTransition = fn }
}

// New creates an orchestrator reading from events. The producer is paused for
// the duration of each cycle so the peripheral's own speech cannot re-trigger
// detection.
func New(events <-chan kws.DetectionEvent, classifier Classifier, announcer Announcer, producer Pauser, cooldown time.Duration, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		events:     events,
		classifier: classifier,
		announcer:  announcer,
		producer:   producer,
		cooldown:   cooldown,
		log:        slog.Default(),
		now:        time.Now,
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// State returns the current trigger state. Only meaningful from the
// orchestrator's own goroutine or after [Run] has returned.
func (o *Orchestrator) State() State {
	return o.state
}

// Run consumes detection events until ctx is cancelled. It returns nil on
// cancellation or when the event channel is closed.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-o.events:
			if !ok {
				return nil
			}
			o.handle(ctx, ev)
		}
	}
}

// handle runs one trigger cycle for ev, or discards it when still within the
// cooldown window. Any further events queued behind ev are drained and
// discarded: at most one trigger per cycle.
func (o *Orchestrator) handle(ctx context.Context, ev kws.DetectionEvent) {
	if n := o.drain(); n > 0 {
		o.log.Debug("discarded queued detection events", "count", n)
	}

	if !o.lastTrigger.IsZero() && ev.At.Before(o.lastTrigger.Add(o.cooldown)) {
		o.log.Debug("detection within cooldown, discarded",
			"keyword", ev.KeywordIndex, "at", ev.At)
		return
	}

	o.metrics.ActiveCycles.Add(ctx, 1)
	defer o.metrics.ActiveCycles.Add(ctx, -1)

	o.transition(StateCapturing)
	o.producer.Pause()
	defer o.resumeProducer(ctx)

	o.log.Info("trigger accepted", "keyword", ev.KeywordIndex)

	start := o.now()
	imagePath, err := o.classifier.CaptureImage(ctx)
	o.metrics.CaptureDuration.Record(ctx, o.now().Sub(start).Seconds())
	if err != nil {
		o.log.Error("image capture failed, cycle aborted", "error", err)
		o.metrics.RecordTriggerCycle(ctx, OutcomeCaptureError)
		o.finish()
		return
	}

	o.transition(StateClassifying)
	start = o.now()
	category, err := o.classifier.Classify(ctx, imagePath)
	o.metrics.ClassifyDuration.Record(ctx, o.now().Sub(start).Seconds())

	o.transition(StateAnnouncing)
	start = o.now()
	outcome := OutcomeAnnounced
	if err != nil {
		// No category resolved: the cycle still ends audibly with the
		// configured error response instead of silence.
		o.log.Error("classification failed", "error", err)
		outcome = OutcomeClassifyError
		if rerr := o.announcer.Respond(ctx, "error"); rerr != nil {
			o.log.Error("error response playback failed", "error", rerr)
		}
	} else {
		o.log.Info("classification result", "category", category)
		if aerr := o.announcer.AnnounceCategory(ctx, category); aerr != nil {
			o.log.Error("announcement failed", "category", category, "error", aerr)
			outcome = OutcomeAnnounceError
		}
	}
	o.metrics.AnnounceDuration.Record(ctx, o.now().Sub(start).Seconds())
	o.metrics.RecordTriggerCycle(ctx, outcome)

	o.transition(StateCooldown)
	o.finish()
}

// finish stamps the cooldown window and returns the machine to idle.
func (o *Orchestrator) finish() {
	o.lastTrigger = o.now()
	o.transition(StateIdle)
}

// resumeProducer drains stale events generated while the peripheral was
// speaking, waits out the post-trigger delay, and re-enables detection.
func (o *Orchestrator) resumeProducer(ctx context.Context) {
	if o.postTriggerDelay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(o.postTriggerDelay):
		}
	}
	o.drain()
	o.producer.Resume()
}

// drain discards all currently queued events and reports how many.
func (o *Orchestrator) drain() int {
	n := 0
	for {
		select {
		case _, ok := <-o.events:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

func (o *Orchestrator) transition(s State) {
	o.state = s
	if o.onTransition != nil {
		o.onTransition(s)
	}
}
