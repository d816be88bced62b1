package stategraph

import (
	"context"
	"sync"
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
	"github.com/randalmurphal/stategraph/pkg/stategraph/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// The global providers only redirect their delegates on the first Set call,
// so they are installed once per test binary.
var (
	otelOnce     sync.Once
	spanExporter *tracetest.InMemoryExporter
	metricReader *sdkmetric.ManualReader
)

func installTelemetry(t *testing.T) (*tracetest.InMemoryExporter, *sdkmetric.ManualReader) {
	t.Helper()
	otelOnce.Do(func() {
		spanExporter = tracetest.NewInMemoryExporter()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(spanExporter)))
		metricReader = sdkmetric.NewManualReader()
		otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader)))
	})
	spanExporter.Reset()
	return spanExporter, metricReader
}

// int64Sum returns the sum data point of name whose attribute key equals value.
func int64Sum(t *testing.T, reader *sdkmetric.ManualReader, name, key, value string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
					return dp.Value
				}
			}
		}
	}
	return 0
}

// TestObservability_Logging tests that run and node logs carry identifiers.
func TestObservability_Logging(t *testing.T) {
	handler := newTestLogHandler()
	def := mustCompile(t, graderGraph())
	engine := NewEngine(WithObservabilityLogger(slogFor(handler)))

	snap, err := engine.Run(testCtx(), def, MustState(map[string]any{"score": 30}))
	require.NoError(t, err)

	started := handler.messages("run starting")
	require.Len(t, started, 1)
	assert.Equal(t, snap.RunID, started[0]["run_id"])
	assert.Equal(t, def.ID(), started[0]["graph_id"])

	completed := handler.messages("run completed")
	require.Len(t, completed, 1)
	assert.Equal(t, snap.RunID, completed[0]["run_id"])

	nodes := handler.messages("node completed")
	require.Len(t, nodes, 3)
	for i, r := range nodes {
		assert.Equal(t, snap.History[i].NodeID, r["node_id"])
		assert.Equal(t, snap.RunID, r["run_id"])
	}
}

// TestObservability_LoggingFailure tests the error records of a failed run.
func TestObservability_LoggingFailure(t *testing.T) {
	handler := newTestLogHandler()
	def := mustCompile(t, NewGraph("fails").
		Node("ok", "record", nil).
		Node("bad", "fail", nil).
		Edge("ok", "bad").
		SetStart("ok"))
	engine := NewEngine(WithObservabilityLogger(slogFor(handler)))

	snap, err := engine.Run(testCtx(), def, nil)
	require.Error(t, err)

	nodeErr := handler.messages("node failed")
	require.Len(t, nodeErr, 1)
	assert.Equal(t, "bad", nodeErr[0]["node_id"])
	assert.Equal(t, "ERROR", nodeErr[0]["level"])

	runErr := handler.messages("run failed")
	require.Len(t, runErr, 1)
	assert.Equal(t, snap.RunID, runErr[0]["run_id"])
	assert.Equal(t, "bad", runErr[0]["last_node"])
}

// TestObservability_NodeLogger tests that node functions log with context.
func TestObservability_NodeLogger(t *testing.T) {
	handler := newTestLogHandler()
	funcs := testFunctions()
	funcs.Register("chatty", func(ctx Context, _ *State, _ config.Config) error {
		ctx.Logger().Info("hello from node")
		return nil
	})
	def := mustCompile(t, NewGraph("chatty").Node("talker", "chatty", nil).SetStart("talker"),
		WithFunctions(funcs))

	snap, err := NewEngine(WithObservabilityLogger(slogFor(handler))).Run(testCtx(), def, nil)
	require.NoError(t, err)

	records := handler.messages("hello from node")
	require.Len(t, records, 1)
	assert.Equal(t, "talker", records[0]["node_id"])
	assert.Equal(t, snap.RunID, records[0]["run_id"])
	assert.Equal(t, def.ID(), records[0]["graph_id"])
}

// TestObservability_Tracing tests run and node spans.
func TestObservability_Tracing(t *testing.T) {
	exporter, _ := installTelemetry(t)
	def := mustCompile(t, NewGraph("traced").
		Node("ok", "record", nil).
		Node("bad", "fail", nil).
		Edge("ok", "bad").
		SetStart("ok"))

	_, err := newTestEngine(WithTracing(true)).Run(testCtx(), def, nil)
	require.Error(t, err)

	spans := exporter.GetSpans()
	byName := make(map[string]tracetest.SpanStub, len(spans))
	for _, s := range spans {
		byName[s.Name] = s
	}

	run, ok := byName["stategraph.run"]
	require.True(t, ok, "run span recorded")
	assert.Equal(t, codes.Error, run.Status.Code)

	okSpan, ok := byName["stategraph.node.ok"]
	require.True(t, ok)
	assert.Equal(t, codes.Ok, okSpan.Status.Code)
	assert.Equal(t, run.SpanContext.SpanID(), okSpan.Parent.SpanID(), "node spans are children of the run span")

	badSpan, ok := byName["stategraph.node.bad"]
	require.True(t, ok)
	assert.Equal(t, codes.Error, badSpan.Status.Code)
	assert.NotEmpty(t, badSpan.Events, "error recorded on the span")

	var scheduled bool
	for _, e := range run.Events {
		if e.Name == "successors_scheduled" {
			scheduled = true
		}
	}
	assert.True(t, scheduled)
}

// TestObservability_TracingDisabled tests that no spans are created by default.
func TestObservability_TracingDisabled(t *testing.T) {
	exporter, _ := installTelemetry(t)
	def := mustCompile(t, graderGraph())

	_, err := newTestEngine().Run(testCtx(), def, MustState(map[string]any{"score": 90}))
	require.NoError(t, err)
	assert.Empty(t, exporter.GetSpans())
}

// TestObservability_Metrics tests node, run and loop budget counters.
func TestObservability_Metrics(t *testing.T) {
	_, reader := installTelemetry(t)
	def := mustCompile(t, NewGraph("metered").
		Node("metered_step", "count", nil).
		Edge("metered_step", "metered_step").
		SetStart("metered_step"))

	_, err := newTestEngine(WithMetrics(true), WithMaxVisits(3)).Run(testCtx(), def, nil)
	require.ErrorIs(t, err, ErrLoopBudgetExceeded)

	assert.Equal(t, int64(3), int64Sum(t, reader, "stategraph.node.executions", "node_id", "metered_step"))
	assert.Equal(t, int64(1), int64Sum(t, reader, "stategraph.run.loop_budget_exceeded", "node_id", "metered_step"))
	assert.GreaterOrEqual(t, int64Sum(t, reader, "stategraph.runs", "status", string(StatusFailed)), int64(1))
}

// TestObservability_Events tests the lifecycle events of a tracked run.
func TestObservability_Events(t *testing.T) {
	bus := event.NewBus(event.BusConfig{NonBlocking: true})
	defer bus.Close()

	var mu sync.Mutex
	var types []string
	var payloads []event.RunPayload
	bus.SubscribeAll(event.TypedHandler(func(_ context.Context, p event.RunPayload, meta event.Metadata) error {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, meta.EventType)
		payloads = append(payloads, p)
		return nil
	}))

	tr := newTestTracker(t, WithEventBus(bus))
	def := mustCompile(t, graderGraph())
	snap, err := tr.Execute(context.Background(), def, MustState(map[string]any{"score": 95}))
	require.NoError(t, err)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(types) > 0 && types[len(types)-1] == event.TypeRunCompleted
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		event.TypeRunQueued,
		event.TypeRunStarted,
		event.TypeNodeCompleted,
		event.TypeNodeCompleted,
		event.TypeRunCompleted,
	}, types)
	for _, p := range payloads {
		assert.Equal(t, snap.RunID, p.RunID)
		assert.Equal(t, def.ID(), p.GraphID)
	}
	assert.Equal(t, []string{"evaluate_high"}, payloads[2].Scheduled)
}
