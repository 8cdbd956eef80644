// Package observe provides application-wide observability primitives for
// mixctl: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all mixctl metrics.
const meterName = "github.com/faderpilot/mixctl"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// CompileDuration tracks utterance-to-command compilation latency.
	CompileDuration metric.Float64Histogram

	// DispatchDuration tracks console round-trip latency per dispatched
	// command, from write to acknowledgement (or timeout).
	DispatchDuration metric.Float64Histogram

	// --- Counters ---

	// Attempts counts compile attempts. Use with attribute:
	//   attribute.String("outcome", "compiled"|"failed")
	Attempts metric.Int64Counter

	// Corrections counts correction-candidate lifecycle transitions. Use
	// with attribute:
	//   attribute.String("state", "proposed"|"accepted"|"rejected"|"expired")
	Corrections metric.Int64Counter

	// Dispatches counts commands sent to the console. Use with attribute:
	//   attribute.String("outcome", "acknowledged"|"rejected"|"timeout")
	Dispatches metric.Int64Counter

	// --- Gauges ---

	// DictionarySize tracks the number of entries in the personal
	// dictionary.
	DictionarySize metric.Int64UpDownCounter

	// ActiveSessions tracks the number of live transcript sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for live-console latencies.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CompileDuration, err = m.Float64Histogram("mixctl.compile.duration",
		metric.WithDescription("Latency of utterance compilation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DispatchDuration, err = m.Float64Histogram("mixctl.dispatch.duration",
		metric.WithDescription("Console round-trip latency per dispatched command."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Attempts, err = m.Int64Counter("mixctl.attempts",
		metric.WithDescription("Total compile attempts by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Corrections, err = m.Int64Counter("mixctl.corrections",
		metric.WithDescription("Correction candidate transitions by state."),
	); err != nil {
		return nil, err
	}
	if met.Dispatches, err = m.Int64Counter("mixctl.dispatches",
		metric.WithDescription("Commands sent to the console by outcome."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.DictionarySize, err = m.Int64UpDownCounter("mixctl.dictionary.size",
		metric.WithDescription("Number of entries in the personal dictionary."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("mixctl.active_sessions",
		metric.WithDescription("Number of live transcript sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("mixctl.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// RecordAttempt records one compile attempt with its outcome and the time it
// took to compile.
func (m *Metrics) RecordAttempt(ctx context.Context, outcome string, d time.Duration) {
	m.Attempts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
	m.CompileDuration.Record(ctx, d.Seconds())
}

// RecordCorrection records a correction-candidate state transition.
func (m *Metrics) RecordCorrection(ctx context.Context, state string) {
	m.Corrections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("state", state)),
	)
}

// RecordDispatch records one console dispatch with its outcome and round-trip
// time.
func (m *Metrics) RecordDispatch(ctx context.Context, outcome string, d time.Duration) {
	m.Dispatches.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
	m.DispatchDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}
