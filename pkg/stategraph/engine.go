package stategraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"runtime/debug"
	"slices"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/event"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
	"github.com/randalmurphal/stategraph/pkg/stategraph/retry"
	"go.opentelemetry.io/otel/attribute"
)

// Engine executes runs. One Engine may execute any number of runs
// concurrently; each run owns its state, visit counts and history.
type Engine struct {
	opts options
}

// NewEngine creates an engine.
//
// Example:
//
//	engine := stategraph.NewEngine(
//	    stategraph.WithMaxVisits(10),
//	    stategraph.WithObservabilityLogger(logger))
//	snap, err := engine.Run(ctx, def, stategraph.MustState(map[string]any{"score": 30}))
func NewEngine(opts ...Option) *Engine {
	return &Engine{opts: buildOptions(opts)}
}

// MaxVisits returns the configured loop budget.
func (e *Engine) MaxVisits() int {
	return e.opts.maxVisits
}

// Run executes def synchronously against a copy of initial and returns the
// final snapshot. The error is nil exactly when the run COMPLETED; on
// failure the snapshot still carries the partial state and history.
func (e *Engine) Run(ctx context.Context, def *Definition, initial *State) (Snapshot, error) {
	if def == nil {
		return Snapshot{}, ErrNilDefinition
	}
	run := NewRun("", def, initial)
	err := e.Execute(ctx, run)
	return run.Snapshot(), err
}

// resumePoint carries traversal progress restored from a checkpoint.
type resumePoint struct {
	worklist []string
	visits   map[string]int
	history  []HistoryEntry
	sequence int
}

// traversal is the engine-private state of one run.
type traversal struct {
	run      *Run
	def      *Definition
	state    *State
	worklist []string
	pending  map[string]bool
	visits   map[string]int
	history  *History
	sequence int
	executed int
}

// Execute drives a QUEUED run to COMPLETED or FAILED.
//
// Execution flow:
//  1. Seed the worklist with the start node
//  2. Pop the next node and charge its visit; over budget fails the run
//  3. Invoke the node's function on the live state
//  4. Enqueue the target of every satisfied outgoing edge not already pending
//  5. Repeat until the worklist is empty
//
// Cancellation of ctx is ignored: a dispatched run always reaches a
// terminal status. ctx still carries values such as the parent span.
func (e *Engine) Execute(ctx context.Context, run *Run) (runErr error) {
	if ctx == nil {
		return ErrNilContext
	}
	if run == nil || run.def == nil {
		return ErrNilDefinition
	}
	ctx = context.WithoutCancel(ctx)

	startTime := time.Now()
	st, resume, ok := run.start(startTime.UTC())
	if !ok {
		return fmt.Errorf("run %s: already started", run.id)
	}

	t := &traversal{
		run:     run,
		def:     run.def,
		state:   st,
		pending: make(map[string]bool),
		visits:  make(map[string]int),
		history: &History{},
	}
	if resume != nil {
		t.visits = maps.Clone(resume.visits)
		t.history = newHistory(resume.history)
		t.sequence = resume.sequence
		for _, id := range resume.worklist {
			t.enqueue(id)
		}
	} else {
		t.enqueue(t.def.start)
	}

	logger := observability.EnrichLogger(e.opts.logger, run.id, t.def.id, "")
	observability.LogRunStart(logger, run.id, t.def.id)
	e.publishEvent(ctx, event.TypeRunStarted, t, event.RunPayload{Status: string(StatusRunning)})

	ctx, runSpan := e.opts.spans.StartRunSpan(ctx, t.def.id, run.id)
	defer func() {
		e.opts.spans.EndSpanWithError(runSpan, runErr)
	}()

	base := &executionContext{
		Context: ctx,
		logger:  logger,
		runID:   run.id,
		graphID: t.def.id,
	}

	runErr = e.traverse(ctx, base, t)

	duration := time.Since(startTime)
	status := StatusCompleted
	if runErr != nil {
		status = StatusFailed
	}
	run.publish(t.state.Clone(), t.history.Entries(), maps.Clone(t.visits))
	run.finish(status, runErr, time.Now().UTC())

	e.opts.metrics.RecordRun(ctx, string(status), duration)
	durationMs := float64(duration.Milliseconds())
	if runErr != nil {
		lastNode := ""
		if last, ok := t.history.Last(); ok {
			lastNode = last.NodeID
		}
		observability.LogRunError(logger, run.id, runErr, durationMs, lastNode)
		e.publishEvent(ctx, event.TypeRunFailed, t, event.RunPayload{
			Status: string(status),
			NodeID: lastNode,
			Error:  runErr.Error(),
		})
	} else {
		observability.LogRunComplete(logger, run.id, durationMs, t.executed)
		e.publishEvent(ctx, event.TypeRunCompleted, t, event.RunPayload{Status: string(status)})
	}
	return runErr
}

// traverse runs the worklist loop. It returns the error that failed the
// run, or nil once the worklist is empty.
func (e *Engine) traverse(ctx context.Context, base *executionContext, t *traversal) error {
	for len(t.worklist) > 0 {
		id := t.worklist[0]
		t.worklist = t.worklist[1:]
		delete(t.pending, id)

		node := t.def.nodes[id]
		t.visits[id]++
		visit := t.visits[id]

		if visit > e.opts.maxVisits {
			return e.loopBudgetExceeded(ctx, base, t, node, visit)
		}

		entry := HistoryEntry{
			NodeID:    id,
			NodeName:  node.spec.Name,
			Outcome:   OutcomeRunning,
			Visit:     visit,
			Timestamp: time.Now().UTC(),
		}
		t.run.begin(entry)

		nodeCtx := base.forNode(id, visit)
		observability.LogNodeStart(base.logger, id, visit)
		spanCtx, nodeSpan := e.opts.spans.StartNodeSpan(ctx, id, visit)
		nodeCtx.Context = spanCtx

		nodeStart := time.Now()
		err := e.invoke(nodeCtx, node, t.state)
		nodeDuration := time.Since(nodeStart)

		e.opts.metrics.RecordNodeExecution(spanCtx, id, node.spec.Function, nodeDuration, err)
		e.opts.spans.EndSpanWithError(nodeSpan, err)

		entry.Duration = nodeDuration
		entry.Message = nodeCtx.message()

		if err != nil {
			entry.Outcome = OutcomeFailed
			entry.Error = err.Error()
			t.history.Append(entry)
			observability.LogNodeError(base.logger, id, err)
			e.publishEvent(ctx, event.TypeNodeFailed, t, event.RunPayload{
				Status: string(OutcomeFailed),
				NodeID: id,
				Visit:  visit,
				Error:  err.Error(),
			})
			return err
		}

		entry.Outcome = OutcomeCompleted
		t.history.Append(entry)
		t.executed++
		observability.LogNodeComplete(base.logger, id, float64(nodeDuration.Milliseconds()))

		scheduled := e.schedule(base, t, id)
		observability.LogSuccessors(base.logger, id, scheduled)
		if len(scheduled) > 0 {
			e.opts.spans.AddSpanEvent(ctx, "successors_scheduled",
				attribute.String("node.id", id),
				attribute.StringSlice("node.successors", scheduled))
		}

		t.run.publish(t.state.Clone(), t.history.Entries(), maps.Clone(t.visits))

		if err := e.saveCheckpoint(ctx, base, t, id); err != nil {
			return err
		}

		e.publishEvent(ctx, event.TypeNodeCompleted, t, event.RunPayload{
			Status:    string(OutcomeCompleted),
			NodeID:    id,
			Visit:     visit,
			Scheduled: scheduled,
		})
	}
	return nil
}

// invoke calls the node function, converting panics into *PanicError and
// wrapping returned errors in *NodeError.
func (e *Engine) invoke(ctx *executionContext, node *compiledNode, st *State) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				NodeID: node.spec.ID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	if err := node.fn(ctx, st, node.params); err != nil {
		return &NodeError{
			NodeID: node.spec.ID,
			Op:     "execute",
			Err:    err,
		}
	}
	return nil
}

// schedule evaluates every outgoing edge of id against the post-mutation
// state, in declaration order, and enqueues each satisfied target that is
// not already pending. All satisfied edges fire; none excludes another.
func (e *Engine) schedule(base *executionContext, t *traversal, id string) []string {
	var scheduled []string
	for _, i := range t.def.outgoing[id] {
		edge := &t.def.edges[i]
		if !e.satisfied(base, edge, t.state) {
			continue
		}
		if t.enqueue(edge.spec.To) {
			scheduled = append(scheduled, edge.spec.To)
		}
	}
	return scheduled
}

// satisfied evaluates one edge. A panicking predicate counts as false.
func (e *Engine) satisfied(base *executionContext, edge *compiledEdge, st *State) (ok bool) {
	if edge.pred == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			base.logger.Warn("condition panicked",
				"from", edge.spec.From,
				"to", edge.spec.To,
				"condition", edge.spec.Condition.Type,
				"panic", r)
			ok = false
		}
	}()
	return edge.pred(st, edge.params)
}

// enqueue appends id to the worklist unless it is already pending.
func (t *traversal) enqueue(id string) bool {
	if t.pending[id] {
		return false
	}
	t.pending[id] = true
	t.worklist = append(t.worklist, id)
	return true
}

// loopBudgetExceeded records the over-budget visit and returns the run error.
func (e *Engine) loopBudgetExceeded(ctx context.Context, base *executionContext, t *traversal, node *compiledNode, visit int) error {
	err := &LoopBudgetError{NodeID: node.spec.ID, Visits: visit, Max: e.opts.maxVisits}
	t.history.Append(HistoryEntry{
		NodeID:    node.spec.ID,
		NodeName:  node.spec.Name,
		Outcome:   OutcomeLoopBudgetExceeded,
		Visit:     visit,
		Timestamp: time.Now().UTC(),
		Error:     err.Error(),
	})
	observability.LogLoopBudget(base.logger, node.spec.ID, visit, e.opts.maxVisits)
	e.opts.metrics.RecordLoopBudgetExceeded(ctx, node.spec.ID)
	e.opts.spans.AddSpanEvent(ctx, "loop_budget_exceeded",
		attribute.String("node.id", node.spec.ID),
		attribute.Int("node.visits", visit))
	e.publishEvent(ctx, event.TypeLoopBudgetExceeded, t, event.RunPayload{
		Status: string(OutcomeLoopBudgetExceeded),
		NodeID: node.spec.ID,
		Visit:  visit,
		Error:  err.Error(),
	})
	return err
}

// saveCheckpoint persists progress after a completed node.
// Failures are logged unless checkpoint failures are fatal.
func (e *Engine) saveCheckpoint(ctx context.Context, base *executionContext, t *traversal, nodeID string) error {
	store := e.opts.checkpointStore
	if store == nil {
		return nil
	}

	fail := func(op string, err error) error {
		if e.opts.checkpointFailureFatal {
			return &CheckpointError{NodeID: nodeID, Op: op, Err: err}
		}
		observability.LogCheckpointError(base.logger, nodeID, op, err)
		return nil
	}

	stateBytes, err := json.Marshal(t.state)
	if err != nil {
		return fail("serialize", err)
	}
	historyBytes, err := json.Marshal(t.history.entries)
	if err != nil {
		return fail("serialize", err)
	}

	t.sequence++
	cp := checkpoint.New(t.run.id, t.def.id, nodeID, t.sequence, stateBytes).
		WithPending(t.worklist).
		WithVisits(t.visits).
		WithHistory(historyBytes)

	saved := retry.Do(ctx, e.opts.checkpointRetry, func(context.Context) error {
		err := store.Save(cp)
		if errors.Is(err, checkpoint.ErrStoreClosed) || errors.Is(err, checkpoint.ErrInvalid) {
			return retry.Permanent(err)
		}
		return err
	})
	if saved.Err != nil {
		return fail("save", saved.Err)
	}
	if saved.Attempts > 1 {
		base.logger.Debug("checkpoint saved after retry", "node_id", nodeID, "attempts", saved.Attempts)
	}

	size := len(stateBytes) + len(historyBytes)
	observability.LogCheckpoint(base.logger, nodeID, size)
	e.opts.metrics.RecordCheckpoint(ctx, nodeID, int64(size))
	return nil
}

// publishEvent sends a lifecycle event if a bus is configured.
// Publish failures are logged and never affect the run.
func (e *Engine) publishEvent(ctx context.Context, eventType string, t *traversal, payload event.RunPayload) {
	if e.opts.bus == nil {
		return
	}
	payload.RunID = t.run.id
	payload.GraphID = t.def.id
	if payload.Scheduled != nil {
		payload.Scheduled = slices.Clone(payload.Scheduled)
	}
	if err := e.opts.bus.Publish(ctx, event.NewRunEvent(eventType, payload)); err != nil && !errors.Is(err, event.ErrBusClosed) {
		e.opts.logger.Debug("event publish failed", "type", eventType, "run_id", t.run.id, "error", err)
	}
}
