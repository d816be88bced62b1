package stategraph

import (
	"slices"
	"time"
)

// Outcome is the result recorded for one node invocation.
type Outcome string

// Node invocation outcomes. OutcomePending only appears in per-node
// status summaries, never in history.
const (
	OutcomePending            Outcome = "PENDING"
	OutcomeRunning            Outcome = "RUNNING"
	OutcomeCompleted          Outcome = "COMPLETED"
	OutcomeFailed             Outcome = "FAILED"
	OutcomeLoopBudgetExceeded Outcome = "LOOP_BUDGET_EXCEEDED"
)

// HistoryEntry records one node invocation.
type HistoryEntry struct {
	NodeID    string        `json:"node_id"`
	NodeName  string        `json:"node_name"`
	Outcome   Outcome       `json:"outcome"`
	Visit     int           `json:"visit"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// History is the append-only trace of a run's node invocations.
// Not safe for concurrent use; the engine owns it and publishes copies.
type History struct {
	entries []HistoryEntry
}

// newHistory seeds a history, e.g. from a checkpoint.
func newHistory(entries []HistoryEntry) *History {
	return &History{entries: slices.Clone(entries)}
}

// Append adds an entry at the end.
func (h *History) Append(e HistoryEntry) {
	h.entries = append(h.entries, e)
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Entries returns a copy of all entries in order.
func (h *History) Entries() []HistoryEntry {
	return slices.Clone(h.entries)
}

// Last returns the most recent entry.
func (h *History) Last() (HistoryEntry, bool) {
	if len(h.entries) == 0 {
		return HistoryEntry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// NodeIDs returns the node IDs in invocation order.
func (h *History) NodeIDs() []string {
	return historyPath(h.entries)
}

func historyPath(entries []HistoryEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.NodeID
	}
	return ids
}
