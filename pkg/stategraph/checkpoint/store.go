// Package checkpoint records a per-step trail of run snapshots so a failed
// run can be inspected or resumed from its last completed node.
package checkpoint

import (
	"errors"
	"time"
)

// Store persists checkpoints keyed by (run ID, sequence).
// A node visited more than once in a loop produces one checkpoint per visit.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a checkpoint, replacing any existing one with the same
	// run ID and sequence.
	Save(cp *Checkpoint) error

	// Load retrieves the checkpoint at sequence.
	// Returns ErrNotFound if it doesn't exist.
	Load(runID string, sequence int) (*Checkpoint, error)

	// Latest retrieves the checkpoint with the highest sequence.
	// Returns ErrNotFound if the run has none.
	Latest(runID string) (*Checkpoint, error)

	// List returns metadata for a run's checkpoints, ordered by sequence.
	// Returns an empty slice (not error) if run has no checkpoints.
	List(runID string) ([]Info, error)

	// DeleteRun removes all checkpoints for a run.
	// Returns nil if run has no checkpoints.
	DeleteRun(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading full state.
type Info struct {
	RunID     string
	NodeID    string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")

	// ErrVersionMismatch indicates a checkpoint written by an incompatible format.
	ErrVersionMismatch = errors.New("checkpoint version mismatch")

	// ErrInvalid indicates a checkpoint missing its run ID or sequence.
	ErrInvalid = errors.New("invalid checkpoint")
)

func validate(cp *Checkpoint) error {
	if cp == nil || cp.RunID == "" || cp.Sequence < 1 {
		return ErrInvalid
	}
	return nil
}
