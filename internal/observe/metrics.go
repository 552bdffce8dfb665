// Package observe provides application-wide observability primitives for
// echosort: OpenTelemetry metrics and structured logging setup.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all echosort metrics.
const meterName = "github.com/echosort/echosort"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per trigger-cycle stage ---

	// CaptureDuration tracks frame capture latency.
	CaptureDuration metric.Float64Histogram

	// ClassifyDuration tracks remote classification latency.
	ClassifyDuration metric.Float64Histogram

	// AnnounceDuration tracks announcement playback latency.
	AnnounceDuration metric.Float64Histogram

	// --- Counters ---

	// TriggerCycles counts completed trigger cycles. Use with attribute:
	//   attribute.String("outcome", ...) — "announced", "capture_error",
	//   "classify_error", "announce_error"
	TriggerCycles metric.Int64Counter

	// EventsDropped counts detection events discarded because the event
	// channel was full.
	EventsDropped metric.Int64Counter

	// ActuatorWrites counts wire writes to the voice peripheral. Use with
	// attribute: attribute.String("status", ...)
	ActuatorWrites metric.Int64Counter

	// --- Gauges ---

	// ActiveCycles tracks trigger cycles currently in flight (0 or 1 in
	// normal operation; useful for spotting a stuck cycle).
	ActiveCycles metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for capture/classify/announce latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CaptureDuration, err = m.Float64Histogram("echosort.capture.duration",
		metric.WithDescription("Latency of frame capture."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ClassifyDuration, err = m.Float64Histogram("echosort.classify.duration",
		metric.WithDescription("Latency of remote classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnnounceDuration, err = m.Float64Histogram("echosort.announce.duration",
		metric.WithDescription("Latency of announcement playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.TriggerCycles, err = m.Int64Counter("echosort.trigger.cycles",
		metric.WithDescription("Total trigger cycles by outcome."),
	); err != nil {
		return nil, err
	}
	if met.EventsDropped, err = m.Int64Counter("echosort.events.dropped",
		metric.WithDescription("Detection events discarded because the event channel was full."),
	); err != nil {
		return nil, err
	}
	if met.ActuatorWrites, err = m.Int64Counter("echosort.actuator.writes",
		metric.WithDescription("Wire writes to the voice peripheral by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCycles, err = m.Int64UpDownCounter("echosort.active_cycles",
		metric.WithDescription("Trigger cycles currently in flight."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTriggerCycle records one completed trigger cycle with its outcome.
func (m *Metrics) RecordTriggerCycle(ctx context.Context, outcome string) {
	m.TriggerCycles.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordActuatorWrite records one wire write to the peripheral.
func (m *Metrics) RecordActuatorWrite(ctx context.Context, status string) {
	m.ActuatorWrites.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordEventsDropped records n detection events lost to a full channel.
func (m *Metrics) RecordEventsDropped(ctx context.Context, n int64) {
	m.EventsDropped.Add(ctx, n)
}
