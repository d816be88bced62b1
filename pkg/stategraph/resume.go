package stategraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
)

// ResumeOption configures a resume.
type ResumeOption func(*resumeConfig)

type resumeConfig struct {
	patch    map[string]any
	validate func(*State) error
	prior    []HistoryEntry
}

// WithStatePatch overwrites state keys from the checkpoint before the run
// continues, e.g. to supply the input a failed node was missing.
func WithStatePatch(patch map[string]any) ResumeOption {
	return func(c *resumeConfig) {
		c.patch = patch
	}
}

// WithStateValidation rejects the restored state before anything runs.
func WithStateValidation(fn func(*State) error) ResumeOption {
	return func(c *resumeConfig) {
		c.validate = fn
	}
}

// WithPriorHistory supplies the history of the attempt being resumed,
// usually Snapshot.History of the failed run. Failure entries recorded
// after the latest checkpoint are kept ahead of the new attempt, so the
// run's history still shows why it stopped. Tracker.Resume supplies it
// from the tracked record.
func WithPriorHistory(entries []HistoryEntry) ResumeOption {
	return func(c *resumeConfig) {
		c.prior = entries
	}
}

// Resume continues a run from its latest checkpoint in store and returns
// the final snapshot. The run keeps its id; execution picks up the worklist,
// visit counts and history as they were after the last completed node, so a
// node that failed is attempted again.
//
// Example:
//
//	// Run "run-123" failed at node "publish" because "token" was missing.
//	snap, err := engine.Resume(ctx, def, store, "run-123",
//	    stategraph.WithStatePatch(map[string]any{"token": "abc"}))
func (e *Engine) Resume(ctx context.Context, def *Definition, store checkpoint.Store, runID string, opts ...ResumeOption) (Snapshot, error) {
	run, err := restoreRun(def, store, runID, opts...)
	if err != nil {
		return Snapshot{}, err
	}
	err = e.withStore(store).Execute(ctx, run)
	return run.Snapshot(), err
}

// withStore returns e, or a copy of e that writes checkpoints to store when
// e has no store of its own, so a resumed run keeps extending its trail.
func (e *Engine) withStore(store checkpoint.Store) *Engine {
	if e.opts.checkpointStore != nil {
		return e
	}
	engine := *e
	engine.opts.checkpointStore = store
	return &engine
}

// Resume queues a run restored from its latest checkpoint in store.
// A tracked run with the same id is replaced unless it is still active;
// of several concurrent resumes of one id, only one is accepted.
func (t *Tracker) Resume(ctx context.Context, def *Definition, store checkpoint.Store, runID string, opts ...ResumeOption) (Submission, error) {
	prev, ok := t.runs.Get(runID)
	if ok {
		if !prev.Status().IsTerminal() {
			return Submission{}, fmt.Errorf("%w: %s", ErrRunActive, runID)
		}
		opts = append([]ResumeOption{WithPriorHistory(prev.Snapshot().History)}, opts...)
	}
	run, err := restoreRun(def, store, runID, opts...)
	if err != nil {
		return Submission{}, err
	}
	run.engine = t.engine.withStore(store)
	return t.enqueueResume(ctx, run, prev)
}

// restoreRun builds a QUEUED run from the latest checkpoint of runID.
func restoreRun(def *Definition, store checkpoint.Store, runID string, opts ...ResumeOption) (*Run, error) {
	if def == nil {
		return nil, ErrNilDefinition
	}
	if store == nil {
		return nil, fmt.Errorf("%w: no checkpoint store", ErrNoCheckpoints)
	}

	cfg := resumeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	cp, err := store.Latest(runID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoCheckpoints, runID)
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp.GraphID != def.id {
		return nil, fmt.Errorf("%w: checkpoint for graph %s, got %s", ErrGraphMismatch, cp.GraphID, def.id)
	}

	st := NewState()
	if err := json.Unmarshal(cp.State, st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}
	var history []HistoryEntry
	if len(cp.History) > 0 {
		if err := json.Unmarshal(cp.History, &history); err != nil {
			return nil, fmt.Errorf("%w: history: %v", ErrDeserializeState, err)
		}
	}
	history = keepFailures(history, cfg.prior)
	for _, id := range cp.Pending {
		if !def.HasNode(id) {
			return nil, fmt.Errorf("%w: pending node %s", ErrNodeNotFound, id)
		}
	}

	for k, v := range cfg.patch {
		val, err := FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("state patch %q: %w", k, err)
		}
		st.Set(k, val)
	}
	if cfg.validate != nil {
		if err := cfg.validate(st); err != nil {
			return nil, fmt.Errorf("state validation failed: %w", err)
		}
	}

	run := NewRun(runID, def, st)
	run.resume = &resumePoint{
		worklist: cp.Pending,
		visits:   cp.Visits,
		history:  history,
		sequence: cp.Sequence,
	}
	return run, nil
}

// keepFailures appends the failure entries prior recorded after the
// checkpointed history. Completed entries past the checkpoint are dropped
// since those nodes run again.
func keepFailures(history, prior []HistoryEntry) []HistoryEntry {
	if len(prior) <= len(history) {
		return history
	}
	for _, e := range prior[len(history):] {
		if e.Outcome == OutcomeFailed || e.Outcome == OutcomeLoopBudgetExceeded {
			history = append(history, e)
		}
	}
	return history
}
