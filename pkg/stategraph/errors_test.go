package stategraph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Graph: "grader",
		Errs: []error{
			fmt.Errorf("%w: a", ErrDuplicateNode),
			fmt.Errorf("%w: edge a -> ghost", ErrNodeNotFound),
		},
	}

	assert.Equal(t, "grader: invalid graph: duplicate node: a; node not found: edge a -> ghost", err.Error())
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrDuplicateNode)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.NotErrorIs(t, err, ErrNoStartNode)

	anon := &ValidationError{Errs: []error{ErrNoStartNode}}
	assert.Equal(t, "graph: invalid graph: start node not set", anon.Error())
}

func TestNodeError(t *testing.T) {
	inner := &MissingKeyError{Key: "token"}
	err := &NodeError{NodeID: "publish", Op: "execute", Err: inner}

	assert.Equal(t, "node publish: execute: missing state key: token", err.Error())
	assert.ErrorIs(t, err, ErrMissingKey)

	var mk *MissingKeyError
	require.True(t, errors.As(err, &mk))
	assert.Equal(t, "token", mk.Key)
}

func TestTypeMismatchError(t *testing.T) {
	err := &TypeMismatchError{Key: "n", Want: "number", Got: "string"}

	assert.Equal(t, "type mismatch: n: want number, got string", err.Error())
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestLoopBudgetError(t *testing.T) {
	err := &LoopBudgetError{NodeID: "refine", Visits: 4, Max: 3}

	assert.Equal(t, "loop budget exceeded: node refine visited 4 times (max 3)", err.Error())
	assert.ErrorIs(t, err, ErrLoopBudgetExceeded)
}

func TestPanicError(t *testing.T) {
	err := &PanicError{NodeID: "x", Value: "kaboom", Stack: "goroutine 1"}

	assert.Equal(t, "node x panicked: kaboom", err.Error())
	assert.Nil(t, errors.Unwrap(err))
}

func TestCheckpointError(t *testing.T) {
	cause := errors.New("disk full")
	err := &CheckpointError{NodeID: "draft", Op: "save", Err: cause}

	assert.Equal(t, "checkpoint save at node draft: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
}

// TestRunErrors_Wrapped tests that run errors surface through snapshots.
func TestRunErrors_Wrapped(t *testing.T) {
	def := mustCompile(t, NewGraph("x").Node("x", "panic", map[string]any{"value": "kaboom"}).SetStart("x"))

	snap, err := newTestEngine().Run(testCtx(), def, nil)

	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	require.True(t, errors.As(snap.Err, &pe))
	assert.Equal(t, "kaboom", pe.Value)
	assert.Contains(t, pe.Stack, "goroutine")
	assert.Equal(t, err.Error(), snap.Error)
}
