package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
const Version = 1

// Checkpoint is the snapshot taken after a node completes.
// It carries everything needed to continue the traversal: the state, the
// pending worklist, the visit counts and the history so far.
type Checkpoint struct {
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	GraphID   string    `json:"graph_id"`
	NodeID    string    `json:"node_id"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	State   json.RawMessage `json:"state"`
	History json.RawMessage `json:"history,omitempty"`
	Pending []string        `json:"pending"`
	Visits  map[string]int  `json:"visits"`
}

// New creates a checkpoint. State must already be JSON-serialized.
func New(runID, graphID, nodeID string, sequence int, state []byte) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		RunID:     runID,
		GraphID:   graphID,
		NodeID:    nodeID,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		State:     state,
		Visits:    map[string]int{},
	}
}

// WithPending records the worklist left after the node's successors were scheduled.
func (c *Checkpoint) WithPending(pending []string) *Checkpoint {
	c.Pending = append([]string(nil), pending...)
	return c
}

// WithVisits records a copy of the per-node visit counts.
func (c *Checkpoint) WithVisits(visits map[string]int) *Checkpoint {
	c.Visits = make(map[string]int, len(visits))
	for k, v := range visits {
		c.Visits[k] = v
	}
	return c
}

// WithHistory records the serialized execution history.
func (c *Checkpoint) WithHistory(history []byte) *Checkpoint {
	c.History = history
	return c
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint and checks its version.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Version != Version {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, c.Version, Version)
	}
	if c.Visits == nil {
		c.Visits = map[string]int{}
	}
	return &c, nil
}
