package stategraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
	"github.com/stretchr/testify/require"
)

// quietLogger discards everything so tests stay readable.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testCtx creates a simple test context.
func testCtx() context.Context {
	return context.Background()
}

// testFunctions returns the built-ins plus helpers used across tests:
//
//	record  appends params.label (or the node ID) to the "trail" list
//	fail    returns errBoom after setting "failed_at"
//	panic   panics with params.value
//	count   increments "counter", starting at 0
func testFunctions() *Functions {
	f := DefaultFunctions()
	f.Register("record", func(ctx Context, st *State, params config.Config) error {
		label := params.String("label", ctx.NodeID())
		trail, _ := st.Get("trail")
		items, _ := trail.AsList()
		st.Set("trail", List(append(items, String(label))...))
		return nil
	})
	f.Register("fail", func(ctx Context, st *State, _ config.Config) error {
		st.Set("failed_at", String(ctx.NodeID()))
		return errBoom
	})
	f.Register("panic", func(_ Context, _ *State, params config.Config) error {
		panic(params.Any("value", "boom"))
	})
	f.Register("count", func(_ Context, st *State, _ config.Config) error {
		v, _ := st.Get("counter")
		n, _ := v.AsNumber()
		st.Set("counter", Number(n+1))
		return nil
	})
	return f
}

var errBoom = errors.New("boom")

// mustCompile compiles g against testFunctions and fails the test on error.
func mustCompile(t *testing.T, g *Graph, opts ...CompileOption) *Definition {
	t.Helper()
	opts = append([]CompileOption{WithFunctions(testFunctions()), WithCompileLogger(quietLogger())}, opts...)
	def, err := g.Compile(opts...)
	require.NoError(t, err)
	return def
}

// newTestEngine creates an engine that logs nowhere.
func newTestEngine(opts ...Option) *Engine {
	return NewEngine(append([]Option{WithObservabilityLogger(quietLogger())}, opts...)...)
}

// graderGraph is the three-way decision tree: scores above 79 get an A,
// above 49 a C, everything else an F.
func graderGraph() *Graph {
	return NewGraph("grader").
		Node("start", FuncCustom, map[string]any{"message": "grading started"}).
		Node("evaluate_high", FuncSetValue, map[string]any{"key": "grade", "value": "A - Excellent"}).
		Node("evaluate_medium", FuncCustom, map[string]any{"message": "below 80"}).
		Node("grade_c", FuncSetValue, map[string]any{"key": "grade", "value": "C - Passed"}).
		Node("grade_f", FuncSetValue, map[string]any{"key": "grade", "value": "F - Failed"}).
		EdgeIf("start", "evaluate_high", CondKeyGreaterThan, map[string]any{"key": "score", "threshold": 79}).
		EdgeIf("start", "evaluate_medium", CondExpression, map[string]any{"expr": "score <= 79"}).
		EdgeIf("evaluate_medium", "grade_c", CondKeyGreaterThan, map[string]any{"key": "score", "threshold": 49}).
		EdgeIf("evaluate_medium", "grade_f", CondExpression, map[string]any{"expr": "score <= 49"}).
		SetStart("start").
		AddEnd("evaluate_high", "grade_c", "grade_f")
}

// trail reads the "trail" list written by record nodes.
func trail(t *testing.T, snap Snapshot) []string {
	t.Helper()
	v, ok := snap.Get("trail")
	if !ok {
		return nil
	}
	items, ok := v.AsList()
	require.True(t, ok, "trail must be a list")
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Text()
	}
	return out
}

// outcomes returns the outcome of every history entry in order.
func outcomes(snap Snapshot) []Outcome {
	out := make([]Outcome, len(snap.History))
	for i, e := range snap.History {
		out[i] = e.Outcome
	}
	return out
}

// testLogHandler captures log records for testing.
type testLogHandler struct {
	mu    *sync.Mutex
	buf   *bytes.Buffer
	attrs []slog.Attr
	level slog.Level
}

func newTestLogHandler() *testLogHandler {
	return &testLogHandler{
		mu:    &sync.Mutex{},
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testLogHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, a := range h.attrs {
		data[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	h.mu.Lock()
	defer h.mu.Unlock()
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &testLogHandler{
		mu:    h.mu,
		buf:   h.buf,
		attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...),
		level: h.level,
	}
}

func (h *testLogHandler) WithGroup(string) slog.Handler {
	return h
}

// records decodes every captured record, including those written through
// handlers derived with WithAttrs.
func (h *testLogHandler) records() []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	var records []map[string]any
	for _, line := range bytes.Split(h.buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err == nil {
			records = append(records, m)
		}
	}
	return records
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

// messages returns the captured records whose message is msg.
func (h *testLogHandler) messages(msg string) []map[string]any {
	var out []map[string]any
	for _, r := range h.records() {
		if r["msg"] == msg {
			out = append(out, r)
		}
	}
	return out
}

// slogFor wraps a capturing handler in a logger.
func slogFor(h *testLogHandler) *slog.Logger {
	return slog.New(h)
}
