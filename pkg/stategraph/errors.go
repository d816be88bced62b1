package stategraph

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for graph validation.
var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("invalid graph")

	// ErrNoStartNode indicates SetStart() was not called before Compile().
	ErrNoStartNode = errors.New("start node not set")

	// ErrStartNotFound indicates the start node references a non-existent node.
	ErrStartNotFound = errors.New("start node not found")

	// ErrNodeNotFound indicates an edge or end marker references a non-existent node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode indicates two nodes share an ID.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrEmptyNodeID indicates a node was declared without an ID.
	ErrEmptyNodeID = errors.New("node ID cannot be empty")

	// ErrUnknownFunction indicates a node names an unregistered function type.
	ErrUnknownFunction = errors.New("unknown function type")

	// ErrUnknownCondition indicates an edge names an unregistered condition type.
	ErrUnknownCondition = errors.New("unknown condition type")

	// ErrMissingParam indicates a function or condition lacks a required param.
	ErrMissingParam = errors.New("missing required param")

	// ErrInvalidParam indicates a param is present but unusable.
	ErrInvalidParam = errors.New("invalid param")
)

// Sentinel errors for execution.
var (
	// ErrMissingKey indicates a node function needed a key the state lacks.
	ErrMissingKey = errors.New("missing state key")

	// ErrTypeMismatch indicates a state value has the wrong kind for an operation.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrLoopBudgetExceeded indicates a node was visited more often than allowed.
	ErrLoopBudgetExceeded = errors.New("loop budget exceeded")

	// ErrNilContext indicates Run() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrNilDefinition indicates a run was requested without a graph.
	ErrNilDefinition = errors.New("graph definition cannot be nil")
)

// Sentinel errors for the run tracker and catalogs.
var (
	// ErrUnknownGraph indicates a graph ID is not in the catalog.
	ErrUnknownGraph = errors.New("unknown graph")

	// ErrUnknownRun indicates a run ID is not tracked.
	ErrUnknownRun = errors.New("unknown run")

	// ErrRunActive indicates a run cannot be deleted while queued or running.
	ErrRunActive = errors.New("run is still active")

	// ErrTrackerClosed indicates a submission after Close().
	ErrTrackerClosed = errors.New("tracker closed")
)

// Sentinel errors for checkpointing and resume.
var (
	// ErrNoCheckpoints indicates no checkpoints exist for the run.
	ErrNoCheckpoints = errors.New("no checkpoints found for run")

	// ErrDeserializeState indicates checkpointed state could not be decoded.
	ErrDeserializeState = errors.New("failed to deserialize state")

	// ErrGraphMismatch indicates a checkpoint belongs to a different graph.
	ErrGraphMismatch = errors.New("checkpoint belongs to a different graph")
)

// ValidationError collects every problem found while compiling a graph.
// errors.Is matches ErrValidation and each collected sentinel.
type ValidationError struct {
	// Graph is the name of the graph being compiled.
	Graph string
	// Errs holds the individual problems in discovery order.
	Errs []error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	name := e.Graph
	if name == "" {
		name = "graph"
	}
	return fmt.Sprintf("%s: %v: %s", name, ErrValidation, strings.Join(msgs, "; "))
}

// Unwrap returns the collected errors for errors.Is/As support.
func (e *ValidationError) Unwrap() []error {
	return e.Errs
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// MissingKeyError reports a state key a node function required.
type MissingKeyError struct {
	// Key is the missing state key.
	Key string
}

// Error implements the error interface.
func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingKey, e.Key)
}

// Unwrap returns ErrMissingKey for errors.Is support.
func (e *MissingKeyError) Unwrap() error {
	return ErrMissingKey
}

// TypeMismatchError reports a state value of the wrong kind.
type TypeMismatchError struct {
	// Key is the offending state key.
	Key string
	// Want names the kind the operation needed.
	Want string
	// Got names the kind found.
	Got string
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%v: %s: want %s, got %s", ErrTypeMismatch, e.Key, e.Want, e.Got)
}

// Unwrap returns ErrTypeMismatch for errors.Is support.
func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}

// LoopBudgetError reports a node visited more often than the loop budget
// allows. The over-budget visit is not executed.
type LoopBudgetError struct {
	// NodeID is the node that ran out of budget.
	NodeID string
	// Visits is the visit count that crossed the budget.
	Visits int
	// Max is the configured budget.
	Max int
}

// Error implements the error interface.
func (e *LoopBudgetError) Error() string {
	return fmt.Sprintf("%v: node %s visited %d times (max %d)", ErrLoopBudgetExceeded, e.NodeID, e.Visits, e.Max)
}

// Unwrap returns ErrLoopBudgetExceeded for errors.Is support.
func (e *LoopBudgetError) Unwrap() error {
	return ErrLoopBudgetExceeded
}

// NodeError wraps an error with node context.
// It provides information about which node failed and what operation was attempted.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed (e.g., "execute").
	Op string
	// Err is the underlying error from the node.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from node execution.
// It includes the stack trace for debugging.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CheckpointError wraps errors from checkpoint operations.
type CheckpointError struct {
	// NodeID is the node where checkpointing failed.
	NodeID string
	// Op is the operation that failed ("save", "load", "serialize").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s at node %s: %v", e.Op, e.NodeID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CheckpointError) Unwrap() error {
	return e.Err
}
