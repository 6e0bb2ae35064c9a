package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records hive metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordPublish records an event published to the queue and how many
	// cursors it was delivered to.
	RecordPublish(ctx context.Context, kind string, subscribers int)

	// RecordDispatch records a handler invocation with its duration and error status.
	RecordDispatch(ctx context.Context, actor, command string, duration time.Duration, err error)

	// RecordSkip records an event received by an actor with no handler for it.
	RecordSkip(ctx context.Context, actor, kind, command string)

	// RecordResources records a smoothed resource-usage sample (0.0-1.0).
	RecordResources(ctx context.Context, memory, cpu float64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	published   metric.Int64Counter
	fanout      metric.Int64Histogram
	dispatches  metric.Int64Counter
	latency     metric.Float64Histogram
	errors      metric.Int64Counter
	skipped     metric.Int64Counter
	memoryUsage metric.Float64Gauge
	cpuUsage    metric.Float64Gauge
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter(scopeName)

	published, err := meter.Int64Counter("eventhive.events.published",
		metric.WithDescription("Number of events published to the queue"),
	)
	if err != nil {
		return nil, err
	}

	fanout, err := meter.Int64Histogram("eventhive.events.fanout",
		metric.WithDescription("Number of cursors each event was delivered to"),
	)
	if err != nil {
		return nil, err
	}

	dispatches, err := meter.Int64Counter("eventhive.handler.invocations",
		metric.WithDescription("Number of handler invocations"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("eventhive.handler.latency_ms",
		metric.WithDescription("Handler latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	handlerErrors, err := meter.Int64Counter("eventhive.handler.errors",
		metric.WithDescription("Number of handler errors and panics"),
	)
	if err != nil {
		return nil, err
	}

	skipped, err := meter.Int64Counter("eventhive.events.skipped",
		metric.WithDescription("Events received by an actor without a matching handler"),
	)
	if err != nil {
		return nil, err
	}

	memoryUsage, err := meter.Float64Gauge("eventhive.resources.memory",
		metric.WithDescription("Smoothed memory usage fraction"),
	)
	if err != nil {
		return nil, err
	}

	cpuUsage, err := meter.Float64Gauge("eventhive.resources.cpu",
		metric.WithDescription("Smoothed CPU load fraction"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		published:   published,
		fanout:      fanout,
		dispatches:  dispatches,
		latency:     latency,
		errors:      handlerErrors,
		skipped:     skipped,
		memoryUsage: memoryUsage,
		cpuUsage:    cpuUsage,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordPublish records a published event.
func (m *otelMetrics) RecordPublish(ctx context.Context, kind string, subscribers int) {
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.published.Add(ctx, 1, attrs)
	m.fanout.Record(ctx, int64(subscribers), attrs)
}

// RecordDispatch records a handler invocation.
func (m *otelMetrics) RecordDispatch(ctx context.Context, actor, command string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("actor", actor),
		attribute.String("command", command),
	)

	m.dispatches.Add(ctx, 1, attrs)
	m.latency.Record(ctx, float64(duration.Microseconds())/1000, attrs)

	if err != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}

// RecordSkip records an unhandled event.
func (m *otelMetrics) RecordSkip(ctx context.Context, actor, kind, command string) {
	m.skipped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("actor", actor),
		attribute.String("kind", kind),
		attribute.String("command", command),
	))
}

// RecordResources records a resource sample.
func (m *otelMetrics) RecordResources(ctx context.Context, memory, cpu float64) {
	m.memoryUsage.Record(ctx, memory)
	m.cpuUsage.Record(ctx, cpu)
}
