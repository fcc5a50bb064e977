// Package observe provides application-wide observability primitives for
// Narravox: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all Narravox metrics.
const meterName = "github.com/narravox/narravox"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// SynthesisDuration tracks text-to-speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// ReconcileDuration tracks text-to-chunk reconciliation latency.
	ReconcileDuration metric.Float64Histogram

	// ExportDuration tracks export assembly latency. Use with attribute:
	//   attribute.String("kind", "concat"|"archive")
	ExportDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors by provider name.
	ProviderErrors metric.Int64Counter

	// ChunkMutations counts chunk create/update/delete operations applied
	// by reconciliation. Use with attribute.String("op", ...).
	ChunkMutations metric.Int64Counter

	// --- Gauges ---

	// ActiveGenerations tracks the number of in-flight synthesis calls.
	ActiveGenerations metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// synthesis and export round trips to remote providers.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SynthesisDuration, err = m.Float64Histogram("narravox.synthesis.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ReconcileDuration, err = m.Float64Histogram("narravox.reconcile.duration",
		metric.WithDescription("Latency of text-to-chunk reconciliation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExportDuration, err = m.Float64Histogram("narravox.export.duration",
		metric.WithDescription("Latency of export assembly by kind."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("narravox.provider.requests",
		metric.WithDescription("Total provider API requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("narravox.provider.errors",
		metric.WithDescription("Total provider errors by provider."),
	); err != nil {
		return nil, err
	}
	if met.ChunkMutations, err = m.Int64Counter("narravox.chunk.mutations",
		metric.WithDescription("Total chunk mutations applied by reconciliation, by operation."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveGenerations, err = m.Int64UpDownCounter("narravox.active_generations",
		metric.WithDescription("Number of in-flight synthesis calls."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("narravox.http.request.duration",
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

// RecordSynthesis records one synthesis call's latency and outcome.
func (m *Metrics) RecordSynthesis(ctx context.Context, d time.Duration, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.SynthesisDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordReconcile records one reconciliation pass: its latency and the chunk
// mutations it applied.
func (m *Metrics) RecordReconcile(ctx context.Context, d time.Duration, updates, creates, deletes int) {
	m.ReconcileDuration.Record(ctx, d.Seconds())
	if updates > 0 {
		m.ChunkMutations.Add(ctx, int64(updates), metric.WithAttributes(attribute.String("op", "update")))
	}
	if creates > 0 {
		m.ChunkMutations.Add(ctx, int64(creates), metric.WithAttributes(attribute.String("op", "create")))
	}
	if deletes > 0 {
		m.ChunkMutations.Add(ctx, int64(deletes), metric.WithAttributes(attribute.String("op", "delete")))
	}
}

// RecordExport records one export assembly.
func (m *Metrics) RecordExport(ctx context.Context, kind string, d time.Duration, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.ExportDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// GenerationStarted marks one synthesis call in flight.
func (m *Metrics) GenerationStarted(ctx context.Context) {
	m.ActiveGenerations.Add(ctx, 1)
}

// GenerationFinished marks one synthesis call finished.
func (m *Metrics) GenerationFinished(ctx context.Context) {
	m.ActiveGenerations.Add(ctx, -1)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}
