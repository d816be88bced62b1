package stategraph

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a run.
type Status string

// Run statuses. A run moves QUEUED -> RUNNING -> COMPLETED or FAILED.
const (
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// IsTerminal reports whether s is COMPLETED or FAILED.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Run is the synchronized record of one execution of a Definition.
//
// Only the engine executing the run writes to it. Readers always receive
// copies through Snapshot, never a reference into the live state.
type Run struct {
	id  string
	def *Definition

	// engine executes the run instead of the tracker's engine when set.
	engine *Engine

	mu         sync.RWMutex
	initial    *State
	resume     *resumePoint
	status     Status
	state      *State
	history    []HistoryEntry
	current    *HistoryEntry // in-flight invocation, shown as the RUNNING tail
	visits     map[string]int
	err        error
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
	done       chan struct{}
}

// NewRun creates a QUEUED run of def starting from a copy of initial.
// An empty id is replaced by a UUID; a nil initial state starts empty.
func NewRun(id string, def *Definition, initial *State) *Run {
	if id == "" {
		id = uuid.NewString()
	}
	if initial == nil {
		initial = NewState()
	}
	return &Run{
		id:        id,
		def:       def,
		initial:   initial.Clone(),
		status:    StatusQueued,
		state:     initial.Clone(),
		visits:    make(map[string]int),
		createdAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}
}

// ID returns the run identifier.
func (r *Run) ID() string {
	return r.id
}

// Definition returns the graph this run executes.
func (r *Run) Definition() *Definition {
	return r.def
}

// Status returns the current status.
func (r *Run) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Err returns the error that failed the run, or nil.
func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Done is closed once the run reaches a terminal status.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// finishedBefore reports whether the run is terminal and finished before t.
func (r *Run) finishedBefore(t time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status.IsTerminal() && r.finishedAt.Before(t)
}

// start moves the run to RUNNING and hands the initial state to the engine.
// Returns false if the run was already started.
func (r *Run) start(t time.Time) (*State, *resumePoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusQueued {
		return nil, nil, false
	}
	r.status = StatusRunning
	r.startedAt = t
	st, resume := r.initial, r.resume
	r.initial, r.resume = nil, nil
	return st, resume, true
}

// begin publishes the in-flight invocation.
func (r *Run) begin(entry HistoryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = &entry
}

// publish replaces the visible progress. The caller hands over ownership
// of every argument.
func (r *Run) publish(st *State, history []HistoryEntry, visits map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = st
	r.history = history
	r.visits = visits
	r.current = nil
}

// finish records the terminal status and wakes waiters.
func (r *Run) finish(status Status, err error, t time.Time) {
	r.mu.Lock()
	r.status = status
	r.err = err
	r.finishedAt = t
	r.current = nil
	r.mu.Unlock()
	close(r.done)
}

// Snapshot returns a point-in-time copy of the run.
func (r *Run) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		RunID:       r.id,
		GraphID:     r.def.ID(),
		GraphName:   r.def.Name(),
		Status:      r.status,
		State:       r.state.Clone(),
		History:     slices.Clone(r.history),
		VisitCounts: maps.Clone(r.visits),
		Err:         r.err,
		CreatedAt:   r.createdAt,
	}
	if snap.History == nil {
		snap.History = []HistoryEntry{}
	}
	if r.current != nil {
		snap.History = append(snap.History, *r.current)
	}
	if r.err != nil {
		snap.Error = r.err.Error()
	}
	if !r.startedAt.IsZero() {
		t := r.startedAt
		snap.StartedAt = &t
	}
	if !r.finishedAt.IsZero() {
		t := r.finishedAt
		snap.FinishedAt = &t
	}
	snap.Nodes = nodeStatuses(r.def, snap.History, snap.VisitCounts)
	return snap
}

// NodeStatus summarizes one node within a run.
type NodeStatus struct {
	Status Outcome `json:"status"`
	Visits int     `json:"visits"`
	Error  string  `json:"error,omitempty"`
}

// Snapshot is a point-in-time copy of a run. It shares nothing with the
// live run and may be kept or modified freely.
type Snapshot struct {
	RunID       string                `json:"run_id"`
	GraphID     string                `json:"graph_id"`
	GraphName   string                `json:"graph_name,omitempty"`
	Status      Status                `json:"status"`
	State       *State                `json:"state"`
	History     []HistoryEntry        `json:"execution_history"`
	VisitCounts map[string]int        `json:"visit_counts"`
	Nodes       map[string]NodeStatus `json:"nodes,omitempty"`
	Error       string                `json:"error,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	FinishedAt  *time.Time            `json:"finished_at,omitempty"`

	// Err is the error that failed the run, for errors.Is/As.
	Err error `json:"-"`
}

// IsTerminal reports whether the run had finished when the snapshot was taken.
func (s Snapshot) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// Path returns the node IDs from the execution history, in order.
func (s Snapshot) Path() []string {
	return historyPath(s.History)
}

// Get returns a state value from the snapshot.
func (s Snapshot) Get(key string) (Value, bool) {
	if s.State == nil {
		return Value{}, false
	}
	return s.State.Get(key)
}

// nodeStatuses derives per-node status from the latest history entry of
// each node. Nodes never invoked are PENDING.
func nodeStatuses(def *Definition, history []HistoryEntry, visits map[string]int) map[string]NodeStatus {
	out := make(map[string]NodeStatus, def.NodeCount())
	for _, id := range def.order {
		out[id] = NodeStatus{Status: OutcomePending, Visits: visits[id]}
	}
	for _, e := range history {
		ns := out[e.NodeID]
		ns.Status = e.Outcome
		ns.Error = e.Error
		if e.Visit > ns.Visits {
			ns.Visits = e.Visit
		}
		out[e.NodeID] = ns
	}
	return out
}
