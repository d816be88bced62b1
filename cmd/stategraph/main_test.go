package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliResult struct {
	out  string
	logs string
	err  error
}

func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	var out, logs bytes.Buffer
	err := run(context.Background(), &out, &logs, args)
	return cliResult{out: out.String(), logs: logs.String(), err: err}
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// snapshotOf decodes the snapshot printed by run and resume.
func snapshotOf(t *testing.T, out string) map[string]any {
	t.Helper()
	var snap map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &snap), out)
	return snap
}

func TestRun_Usage(t *testing.T) {
	res := runCLI(t)
	assert.Equal(t, 2, exitCode(t, res.err))
	assert.Contains(t, res.out, "Usage:")

	res = runCLI(t, "help")
	assert.NoError(t, res.err)
	assert.Contains(t, res.out, "stategraph validate")

	res = runCLI(t, "explode")
	assert.Equal(t, 2, exitCode(t, res.err))
	assert.Contains(t, res.err.Error(), `unknown command "explode"`)

	res = runCLI(t, "run", "-h")
	assert.NoError(t, res.err, "help is not an error")
	assert.Contains(t, res.logs, "-input-file")

	res = runCLI(t, "run", "--not-a-flag")
	assert.Equal(t, 2, exitCode(t, res.err))
}

func TestValidate(t *testing.T) {
	res := runCLI(t, "validate", "testdata/graphs/grader.yaml", "testdata/graphs/doubler.hcl")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "ok   testdata/graphs/grader.yaml: grader (5 nodes, 4 edges)")
	assert.Contains(t, res.out, "ok   testdata/graphs/doubler.hcl: doubler (3 nodes, 2 edges)")

	res = runCLI(t, "validate", "testdata/graphs")
	assert.Equal(t, 1, exitCode(t, res.err))
	assert.Contains(t, res.out, "FAIL testdata/graphs/invalid.json")
	assert.Contains(t, res.out, "unknown function type")
	assert.Contains(t, res.err.Error(), "1 of 3 graphs invalid")

	res = runCLI(t, "validate")
	assert.Equal(t, 2, exitCode(t, res.err))
}

func TestRunGraph(t *testing.T) {
	tests := []struct {
		input string
		grade string
	}{
		{`{"score": 95}`, "A - Excellent"},
		{`{"score": 65}`, "C - Passed"},
		{`{"score": 30}`, "F - Failed"},
	}

	for _, tt := range tests {
		t.Run(tt.grade, func(t *testing.T) {
			res := runCLI(t, "run", "-input", tt.input, "testdata/graphs/grader.yaml")
			require.NoError(t, res.err)

			snap := snapshotOf(t, res.out)
			assert.Equal(t, "COMPLETED", snap["status"])
			assert.Equal(t, "grader", snap["graph_id"], "graph ID defaults to the name")
			state := snap["state"].(map[string]any)
			assert.Equal(t, tt.grade, state["grade"])
		})
	}
}

func TestRunGraph_InputFile(t *testing.T) {
	input := filepath.Join(t.TempDir(), "input.yaml")
	require.NoError(t, os.WriteFile(input, []byte("score: 72\n"), 0o600))

	res := runCLI(t, "run", "-input-file", input, "-config", "testdata/settings.yaml", "testdata/graphs/grader.yaml")
	require.NoError(t, res.err)

	state := snapshotOf(t, res.out)["state"].(map[string]any)
	assert.Equal(t, "C - Passed", state["grade"])
}

func TestRunGraph_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no graph", []string{"run"}, 2},
		{"two graphs", []string{"run", "testdata/graphs/grader.yaml", "testdata/graphs/doubler.hcl"}, 2},
		{"bad input json", []string{"run", "-input", "{", "testdata/graphs/grader.yaml"}, 2},
		{"both inputs", []string{"run", "-input", "{}", "-input-file", "x.yaml", "testdata/graphs/grader.yaml"}, 2},
		{"bad log level", []string{"run", "-log-level", "loud", "testdata/graphs/grader.yaml"}, 2},
		{"invalid graph", []string{"run", "testdata/graphs/invalid.json"}, 1},
		{"missing graph", []string{"run", "testdata/graphs/nope.yaml"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, tt.args...)
			assert.Equal(t, tt.code, exitCode(t, res.err), "%v", res.err)
		})
	}
}

// TestRunAndResume tests a failed run resumed from its SQLite checkpoints.
func TestRunAndResume(t *testing.T) {
	db := filepath.Join(t.TempDir(), "checkpoints.db")

	res := runCLI(t, "run", "-checkpoints", db, "testdata/graphs/doubler.hcl")
	require.Equal(t, 1, exitCode(t, res.err))
	failed := snapshotOf(t, res.out)
	assert.Equal(t, "FAILED", failed["status"])
	assert.Contains(t, failed["error"], "missing state key")
	runID := failed["run_id"].(string)

	res = runCLI(t, "resume", "-checkpoints", db, "-run-id", runID, "-patch", `{"n": 21}`, "testdata/graphs/doubler.hcl")
	require.NoError(t, res.err, res.logs)

	snap := snapshotOf(t, res.out)
	assert.Equal(t, runID, snap["run_id"])
	assert.Equal(t, "COMPLETED", snap["status"])
	state := snap["state"].(map[string]any)
	assert.Equal(t, 42.0, state["n"])
	assert.Equal(t, "done", state["status"])
}

func TestResume_Errors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "checkpoints.db")

	res := runCLI(t, "resume", "-run-id", "x", "testdata/graphs/doubler.hcl")
	assert.Equal(t, 2, exitCode(t, res.err), "a store is required")

	res = runCLI(t, "resume", "-checkpoints", db, "testdata/graphs/doubler.hcl")
	assert.Equal(t, 2, exitCode(t, res.err), "run id is required")

	res = runCLI(t, "resume", "-checkpoints", db, "-run-id", "unknown", "testdata/graphs/doubler.hcl")
	assert.Equal(t, 1, exitCode(t, res.err))
	assert.Contains(t, res.err.Error(), "no checkpoints found")
	assert.Empty(t, res.out)
}
