// Package observe provides application-wide observability primitives for
// scriptcast: OpenTelemetry metrics, tracing, trace-aware structured logging,
// and HTTP middleware for the metrics listener.
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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all scriptcast metrics.
const meterName = "github.com/MrWong99/scriptcast"

// Turn sources reported on [Metrics.Turns].
const (
	SourceBackend   = "backend"
	SourceSynthetic = "synthetic"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// BackendDuration tracks the latency of single backend calls. Use with
	// attributes:
	//   attribute.String("backend", ...), attribute.String("status", ...)
	BackendDuration metric.Float64Histogram

	// BackendRequests counts backend calls by backend and status.
	BackendRequests metric.Int64Counter

	// BackendErrors counts failed backend calls by backend.
	BackendErrors metric.Int64Counter

	// Turns counts synthesized turns. Use with attribute:
	//   attribute.String("source", SourceBackend|SourceSynthetic)
	Turns metric.Int64Counter

	// FallbackActivations counts turns that exhausted every real backend and
	// were rendered by the synthetic generator.
	FallbackActivations metric.Int64Counter

	// TrackDuration records the playback length of exported tracks.
	TrackDuration metric.Float64Histogram

	// HTTPRequestDuration tracks request processing time on the metrics
	// listener. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for backend
// calls, from an in-process formant render up to a slow cloud request.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// trackBuckets defines histogram bucket boundaries (in seconds) for finished
// tracks.
var trackBuckets = []float64{
	5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.BackendDuration, err = m.Float64Histogram("scriptcast.backend.duration",
		metric.WithDescription("Latency of a single speech backend call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BackendRequests, err = m.Int64Counter("scriptcast.backend.requests",
		metric.WithDescription("Total speech backend calls by backend and status."),
	); err != nil {
		return nil, err
	}
	if met.BackendErrors, err = m.Int64Counter("scriptcast.backend.errors",
		metric.WithDescription("Total failed speech backend calls by backend."),
	); err != nil {
		return nil, err
	}
	if met.Turns, err = m.Int64Counter("scriptcast.turns",
		metric.WithDescription("Total synthesized dialogue turns by source."),
	); err != nil {
		return nil, err
	}
	if met.FallbackActivations, err = m.Int64Counter("scriptcast.fallback.activations",
		metric.WithDescription("Turns rendered by the synthetic fallback after every backend failed."),
	); err != nil {
		return nil, err
	}
	if met.TrackDuration, err = m.Float64Histogram("scriptcast.track.duration",
		metric.WithDescription("Playback length of exported tracks."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(trackBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("scriptcast.http.request.duration",
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

// RecordBackendAttempt records one backend call: its latency, a request
// increment with status "ok" or "error", and an error increment on failure.
func (m *Metrics) RecordBackendAttempt(ctx context.Context, backend string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.BackendErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
	}
	attrs := metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("status", status),
	)
	m.BackendDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.BackendRequests.Add(ctx, 1, attrs)
}

// RecordTurn records a synthesized turn and, for the synthetic source, a
// fallback activation.
func (m *Metrics) RecordTurn(ctx context.Context, source string) {
	m.Turns.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
	if source == SourceSynthetic {
		m.FallbackActivations.Add(ctx, 1)
	}
}

// RecordTrack records the length of an exported track.
func (m *Metrics) RecordTrack(ctx context.Context, d time.Duration) {
	m.TrackDuration.Record(ctx, d.Seconds())
}
