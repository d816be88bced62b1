package stategraph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/event"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
	"github.com/randalmurphal/stategraph/pkg/stategraph/registry"
)

// Submission acknowledges a queued run.
type Submission struct {
	RunID  string `json:"run_id"`
	Status Status `json:"status"`
}

// RunInfo summarizes a tracked run for listings.
type RunInfo struct {
	RunID      string     `json:"run_id"`
	GraphID    string     `json:"graph_id"`
	GraphName  string     `json:"graph_name,omitempty"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Tracker runs graphs in the background and lets callers poll them.
//
// Submit never blocks: runs wait in an unbounded in-memory queue until one
// of a fixed number of workers picks them up. Every accepted run reaches
// COMPLETED or FAILED; there is no way to cancel one. Terminal runs stay
// pollable until deleted or, with WithRetention, until they age out.
type Tracker struct {
	engine *Engine
	opts   options
	runs   *registry.Registry[string, *Run]

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*Run
	closed bool

	ready     chan *Run
	workers   sync.WaitGroup
	stopSweep chan struct{}
	sweepDone chan struct{}
	closeOnce sync.Once
}

// NewTracker creates a tracker and starts its workers.
// Call Close to stop them.
func NewTracker(opts ...Option) *Tracker {
	o := buildOptions(opts)
	t := &Tracker{
		engine:    &Engine{opts: o},
		opts:      o,
		runs:      registry.New[string, *Run](),
		ready:     make(chan *Run),
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	t.cond = sync.NewCond(&t.mu)

	go t.dispatch()
	for i := range o.workers {
		t.workers.Add(1)
		go t.worker(i)
	}
	if o.retention > 0 {
		go t.sweep()
	} else {
		close(t.sweepDone)
	}
	return t
}

// Engine returns the engine the tracker's workers use.
func (t *Tracker) Engine() *Engine {
	return t.engine
}

// Submit queues a run of def against a copy of initial and returns at once.
func (t *Tracker) Submit(ctx context.Context, def *Definition, initial *State) (Submission, error) {
	if def == nil {
		return Submission{}, ErrNilDefinition
	}
	return t.enqueue(ctx, NewRun("", def, initial))
}

func (t *Tracker) enqueue(ctx context.Context, run *Run) (Submission, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enqueueLocked(ctx, run)
}

// enqueueResume queues run in place of prev, the terminal record it was
// restored over (nil if none). It fails if the id has since been taken by
// another record.
func (t *Tracker) enqueueResume(ctx context.Context, run, prev *Run) (Submission, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.runs.Get(run.id); ok && (cur != prev || !cur.Status().IsTerminal()) {
		return Submission{}, fmt.Errorf("%w: %s", ErrRunActive, run.id)
	}
	return t.enqueueLocked(ctx, run)
}

// enqueueLocked registers and queues run. t.mu must be held.
func (t *Tracker) enqueueLocked(ctx context.Context, run *Run) (Submission, error) {
	if t.closed {
		return Submission{}, ErrTrackerClosed
	}
	t.runs.Register(run.id, run)

	// Announce the run before a worker can start it so subscribers see
	// run.queued ahead of run.started.
	t.opts.metrics.RecordQueued(ctx, 1)
	observability.LogRunSubmitted(t.opts.logger, run.id, run.def.id)
	if t.opts.bus != nil {
		payload := event.RunPayload{RunID: run.id, GraphID: run.def.id, Status: string(StatusQueued)}
		if err := t.opts.bus.Publish(ctx, event.NewRunEvent(event.TypeRunQueued, payload)); err != nil && !errors.Is(err, event.ErrBusClosed) {
			t.opts.logger.Debug("event publish failed", "type", event.TypeRunQueued, "run_id", run.id, "error", err)
		}
	}

	t.queue = append(t.queue, run)
	t.cond.Signal()
	return Submission{RunID: run.id, Status: StatusQueued}, nil
}

// dispatch moves queued runs to the workers in submission order.
// It drains the queue after Close before releasing the workers.
func (t *Tracker) dispatch() {
	defer close(t.ready)
	for {
		t.mu.Lock()
		for len(t.queue) == 0 && !t.closed {
			t.cond.Wait()
		}
		if len(t.queue) == 0 {
			t.mu.Unlock()
			return
		}
		run := t.queue[0]
		t.queue[0] = nil
		t.queue = t.queue[1:]
		t.mu.Unlock()

		t.ready <- run
	}
}

// worker is the processing loop for a single concurrent worker.
func (t *Tracker) worker(workerID int) {
	defer t.workers.Done()
	logger := t.opts.logger.With("worker_id", workerID)
	logger.Debug("worker started")

	for run := range t.ready {
		ctx := context.Background()
		t.opts.metrics.RecordQueued(ctx, -1)
		engine := t.engine
		if run.engine != nil {
			engine = run.engine
		}
		// Run failures are recorded on the run itself.
		_ = engine.Execute(ctx, run)
	}
	logger.Debug("worker finished")
}

// Poll returns a point-in-time copy of a run.
func (t *Tracker) Poll(runID string) (Snapshot, error) {
	run, ok := t.runs.Get(runID)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	return run.Snapshot(), nil
}

// Wait blocks until the run is terminal or ctx is done. Giving up on the
// wait does not affect the run.
func (t *Tracker) Wait(ctx context.Context, runID string) (Snapshot, error) {
	run, ok := t.runs.Get(runID)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	select {
	case <-run.Done():
		return run.Snapshot(), nil
	case <-ctx.Done():
		return run.Snapshot(), ctx.Err()
	}
}

// Execute submits a run and waits for it. The error is the run's error
// (nil when it COMPLETED), or ctx's error if the wait was abandoned.
func (t *Tracker) Execute(ctx context.Context, def *Definition, initial *State) (Snapshot, error) {
	sub, err := t.Submit(ctx, def, initial)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := t.Wait(ctx, sub.RunID)
	if err != nil {
		return snap, err
	}
	return snap, snap.Err
}

// Delete forgets a terminal run. Queued and running runs cannot be deleted.
func (t *Tracker) Delete(runID string) error {
	found, deleted := t.runs.DeleteFunc(runID, func(r *Run) bool {
		return r.Status().IsTerminal()
	})
	switch {
	case !found:
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	case !deleted:
		return fmt.Errorf("%w: %s", ErrRunActive, runID)
	}
	return nil
}

// List summarizes all tracked runs, oldest first.
func (t *Tracker) List() []RunInfo {
	runs := t.runs.Values()
	infos := make([]RunInfo, 0, len(runs))
	for _, r := range runs {
		r.mu.RLock()
		info := RunInfo{
			RunID:     r.id,
			GraphID:   r.def.id,
			GraphName: r.def.name,
			Status:    r.status,
			CreatedAt: r.createdAt,
		}
		if !r.finishedAt.IsZero() {
			f := r.finishedAt
			info.FinishedAt = &f
		}
		r.mu.RUnlock()
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].RunID < infos[j].RunID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Len returns the number of tracked runs.
func (t *Tracker) Len() int {
	return t.runs.Len()
}

// sweep evicts terminal runs older than the retention period.
func (t *Tracker) sweep() {
	defer close(t.sweepDone)
	ticker := time.NewTicker(t.opts.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopSweep:
			return
		case now := <-ticker.C:
			t.evict(now)
		}
	}
}

// evict removes every terminal run that finished before now minus the
// retention period.
func (t *Tracker) evict(now time.Time) int {
	cutoff := now.Add(-t.opts.retention)
	evicted := 0
	for _, id := range t.runs.Keys() {
		var age time.Duration
		_, deleted := t.runs.DeleteFunc(id, func(r *Run) bool {
			if !r.finishedBefore(cutoff) {
				return false
			}
			r.mu.RLock()
			age = now.Sub(r.finishedAt)
			r.mu.RUnlock()
			return true
		})
		if deleted {
			evicted++
			observability.LogRunEvicted(t.opts.logger, id, age)
		}
	}
	return evicted
}

// Close stops accepting submissions, lets every queued and running run
// finish, and stops the workers. Safe to call more than once.
func (t *Tracker) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.cond.Broadcast()
		t.mu.Unlock()

		t.workers.Wait()
		close(t.stopSweep)
		<-t.sweepDone
	})
	return nil
}
