package event

// Source is the source of every event the engine and tracker publish.
const Source = "stategraph"

// Run lifecycle event types.
const (
	TypeRunQueued          = "run.queued"
	TypeRunStarted         = "run.started"
	TypeNodeCompleted      = "node.completed"
	TypeNodeFailed         = "node.failed"
	TypeLoopBudgetExceeded = "run.loop_budget_exceeded"
	TypeRunCompleted       = "run.completed"
	TypeRunFailed          = "run.failed"
)

// RunTypes lists every run lifecycle event type.
var RunTypes = []string{
	TypeRunQueued,
	TypeRunStarted,
	TypeNodeCompleted,
	TypeNodeFailed,
	TypeLoopBudgetExceeded,
	TypeRunCompleted,
	TypeRunFailed,
}

// RunPayload describes one step in a run's lifecycle.
type RunPayload struct {
	RunID     string   `json:"run_id"`
	GraphID   string   `json:"graph_id"`
	Status    string   `json:"status"`
	NodeID    string   `json:"node_id,omitempty"`
	Visit     int      `json:"visit,omitempty"`
	Scheduled []string `json:"scheduled,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// NewRunEvent creates a lifecycle event correlated by run ID.
func NewRunEvent(eventType string, payload RunPayload, opts ...EventOption) *BaseEvent[RunPayload] {
	all := append([]EventOption{WithCorrelationID(payload.RunID)}, opts...)
	return New(eventType, Source, payload, all...)
}

// IsTerminal reports whether eventType ends a run.
func IsTerminal(eventType string) bool {
	return eventType == TypeRunCompleted || eventType == TypeRunFailed
}
