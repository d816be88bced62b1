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

// MeterName is the instrumentation scope for stategraph metrics.
const MeterName = "stategraph"

// MetricsRecorder records stategraph metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records a node invocation with its function type,
	// duration and error status.
	RecordNodeExecution(ctx context.Context, nodeID, function string, duration time.Duration, err error)

	// RecordRun records a run reaching a terminal status.
	RecordRun(ctx context.Context, status string, duration time.Duration)

	// RecordLoopBudgetExceeded records a run stopped by the visit budget.
	RecordLoopBudgetExceeded(ctx context.Context, nodeID string)

	// RecordQueued adjusts the number of runs waiting for a worker.
	RecordQueued(ctx context.Context, delta int64)

	// RecordCheckpoint records a checkpoint save operation.
	RecordCheckpoint(ctx context.Context, nodeID string, sizeBytes int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	runs           metric.Int64Counter
	runLatency     metric.Float64Histogram
	loopBudget     metric.Int64Counter
	queued         metric.Int64UpDownCounter
	checkpointSize metric.Int64Histogram
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
	meter := otel.Meter(MeterName)
	m := &otelMetrics{}
	var err error

	if m.nodeExecutions, err = meter.Int64Counter("stategraph.node.executions",
		metric.WithDescription("Number of node invocations"),
	); err != nil {
		return nil, err
	}
	if m.nodeLatency, err = meter.Float64Histogram("stategraph.node.latency_ms",
		metric.WithDescription("Node invocation latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.nodeErrors, err = meter.Int64Counter("stategraph.node.errors",
		metric.WithDescription("Number of failed node invocations"),
	); err != nil {
		return nil, err
	}
	if m.runs, err = meter.Int64Counter("stategraph.runs",
		metric.WithDescription("Number of runs reaching a terminal status"),
	); err != nil {
		return nil, err
	}
	if m.runLatency, err = meter.Float64Histogram("stategraph.run.latency_ms",
		metric.WithDescription("Run latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.loopBudget, err = meter.Int64Counter("stategraph.run.loop_budget_exceeded",
		metric.WithDescription("Number of runs stopped by the per-node visit budget"),
	); err != nil {
		return nil, err
	}
	if m.queued, err = meter.Int64UpDownCounter("stategraph.tracker.queued",
		metric.WithDescription("Runs waiting for a worker"),
	); err != nil {
		return nil, err
	}
	if m.checkpointSize, err = meter.Int64Histogram("stategraph.checkpoint.size_bytes",
		metric.WithDescription("Checkpoint size in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
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

func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID, function string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.String("function", function),
	)
	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordRun(ctx context.Context, status string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.runs.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

func (m *otelMetrics) RecordLoopBudgetExceeded(ctx context.Context, nodeID string) {
	m.loopBudget.Add(ctx, 1, metric.WithAttributes(attribute.String("node_id", nodeID)))
}

func (m *otelMetrics) RecordQueued(ctx context.Context, delta int64) {
	m.queued.Add(ctx, delta)
}

func (m *otelMetrics) RecordCheckpoint(ctx context.Context, nodeID string, sizeBytes int64) {
	m.checkpointSize.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("node_id", nodeID)))
}
