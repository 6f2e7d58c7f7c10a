// Package observe provides application-wide observability primitives for
// fearkeeper: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint ([MetricsHandler]). A
// package-level default [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all fearkeeper metrics.
const meterName = "github.com/MrWong99/fearkeeper"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Combat ---

	// CombatEvents counts resolved combat events. Use with attributes:
	//   attribute.String("event", "damage"|"healing"|"stress"), attribute.String("status", ...)
	CombatEvents metric.Int64Counter

	// MinionsDefeated counts minions removed by damage.
	MinionsDefeated metric.Int64Counter

	// MinionsScaled counts minion instances created or removed by party-size
	// scaling. Use with attribute:
	//   attribute.String("direction", "up"|"down")
	MinionsScaled metric.Int64Counter

	// --- Storage ---

	// StorageWrites counts persistence writes. Use with attributes:
	//   attribute.String("key", ...), attribute.String("status", ...)
	StorageWrites metric.Int64Counter

	// StorageWriteDuration tracks persistence write latency.
	StorageWriteDuration metric.Float64Histogram

	// BreakerTransitions counts circuit breaker state changes. Use with
	// attributes:
	//   attribute.String("breaker", ...), attribute.String("to", "closed"|"open"|"half-open")
	BreakerTransitions metric.Int64Counter

	// --- Table ---

	// ActiveAdversaries tracks the number of adversaries in play.
	ActiveAdversaries metric.Int64UpDownCounter

	// FocusSubscribers tracks the number of connected focus feed clients.
	FocusSubscribers metric.Int64UpDownCounter

	// --- Tools ---

	// ToolCalls counts MCP tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// storage writes, which range from in-memory to a remote database.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.CombatEvents, err = m.Int64Counter("fearkeeper.combat.events",
		metric.WithDescription("Total combat events by event kind and status."),
	); err != nil {
		return nil, err
	}
	if met.MinionsDefeated, err = m.Int64Counter("fearkeeper.minions.defeated",
		metric.WithDescription("Total minions removed by damage."),
	); err != nil {
		return nil, err
	}
	if met.MinionsScaled, err = m.Int64Counter("fearkeeper.minions.scaled",
		metric.WithDescription("Total minion instances added or removed by party-size scaling."),
	); err != nil {
		return nil, err
	}
	if met.StorageWrites, err = m.Int64Counter("fearkeeper.storage.writes",
		metric.WithDescription("Total persistence writes by key and status."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("fearkeeper.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by breaker and target state."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("fearkeeper.tool.calls",
		metric.WithDescription("Total MCP tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.StorageWriteDuration, err = m.Float64Histogram("fearkeeper.storage.write.duration",
		metric.WithDescription("Latency of persistence writes."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveAdversaries, err = m.Int64UpDownCounter("fearkeeper.active_adversaries",
		metric.WithDescription("Number of adversaries currently in play."),
	); err != nil {
		return nil, err
	}
	if met.FocusSubscribers, err = m.Int64UpDownCounter("fearkeeper.focus.subscribers",
		metric.WithDescription("Number of connected focus feed clients."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("fearkeeper.http.request.duration",
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

// RecordCombatEvent records one resolved combat event.
func (m *Metrics) RecordCombatEvent(ctx context.Context, event, status string) {
	m.CombatEvents.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("event", event),
			attribute.String("status", status),
		),
	)
}

// RecordMinionsDefeated adds n to the defeated minion counter.
func (m *Metrics) RecordMinionsDefeated(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	m.MinionsDefeated.Add(ctx, int64(n))
}

// RecordMinionsScaled records n instances added (n > 0) or removed (n < 0).
func (m *Metrics) RecordMinionsScaled(ctx context.Context, n int) {
	switch {
	case n > 0:
		m.MinionsScaled.Add(ctx, int64(n), metric.WithAttributes(attribute.String("direction", "up")))
	case n < 0:
		m.MinionsScaled.Add(ctx, int64(-n), metric.WithAttributes(attribute.String("direction", "down")))
	}
}

// RecordStorageWrite records one persistence write and its latency.
func (m *Metrics) RecordStorageWrite(ctx context.Context, key, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("key", key),
		attribute.String("status", status),
	)
	m.StorageWrites.Add(ctx, 1, attrs)
	m.StorageWriteDuration.Record(ctx, seconds, attrs)
}

// RecordBreakerTransition counts one breaker moving into state to.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, to string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("breaker", breaker),
			attribute.String("to", to),
		),
	)
}

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}
