package loader

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	yamlGrader = "testdata/graphs/grader.yaml"
	jsonGrader = "testdata/graphs/grader.json"
	hclGrader  = "testdata/graphs/nested/grader.hcl"
)

// TestLoad_FormatsAgree tests that the three formats decode to the same spec.
func TestLoad_FormatsAgree(t *testing.T) {
	fromYAML, err := Load(yamlGrader)
	require.NoError(t, err)
	fromJSON, err := Load(jsonGrader)
	require.NoError(t, err)
	fromHCL, err := Load(hclGrader)
	require.NoError(t, err)

	assert.Equal(t, fromJSON, fromYAML)
	assert.Equal(t, fromJSON, fromHCL)

	assert.Equal(t, "grader", fromHCL.Name)
	assert.Equal(t, "start", fromHCL.StartNode)
	require.Len(t, fromHCL.Nodes, 5)
	require.Len(t, fromHCL.Edges, 4)
	assert.Equal(t, "Start", fromHCL.Nodes[0].Name)
	assert.Nil(t, fromHCL.Nodes[2].Params)
	assert.Equal(t, 79.0, fromHCL.Edges[0].Condition.Params["threshold"])
}

// TestLoad_Runs tests that a loaded graph compiles and runs.
func TestLoad_Runs(t *testing.T) {
	tests := []struct {
		score int
		grade string
	}{
		{95, "A - Excellent"},
		{65, "C - Passed"},
		{30, "F - Failed"},
	}

	for _, path := range []string{yamlGrader, jsonGrader, hclGrader} {
		spec, err := Load(path)
		require.NoError(t, err)
		def, err := stategraph.FromSpec(spec).Compile()
		require.NoError(t, err, path)

		engine := stategraph.NewEngine(stategraph.WithObservabilityLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		for _, tt := range tests {
			snap, err := engine.Run(context.Background(), def, stategraph.MustState(map[string]any{"score": tt.score}))
			require.NoError(t, err)
			grade, _ := snap.Get("grade")
			assert.Equal(t, tt.grade, grade.Text(), "%s score %d", path, tt.score)
		}
	}
}

func TestLoadAll(t *testing.T) {
	specs, err := LoadAll("testdata/graphs")
	require.NoError(t, err)
	assert.Len(t, specs, 3, "README.txt is skipped")

	specs, err = LoadAll(hclGrader, "testdata/graphs/nested")
	require.NoError(t, err)
	assert.Len(t, specs, 1, "duplicates are loaded once")

	_, err = LoadAll("testdata/missing")
	assert.Error(t, err)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"missing file", filepath.Join(dir, "absent.yaml"), "read graph file"},
		{"unknown extension", write("graph.toml", "name = 'x'"), "unsupported graph file format"},
		{"bad yaml", write("bad.yaml", "nodes: [unclosed"), "parse yaml"},
		{"bad json", write("bad.json", "{"), "parse json"},
		{"json edges wrong shape", write("shape.json", `{"edges": "nope"}`), "parse json"},
		{"bad hcl syntax", write("bad.hcl", "node \"a\" {"), "parse hcl"},
		{"hcl missing start", write("nostart.hcl", "name = \"x\"\n"), "decode hcl"},
		{"hcl missing function", write("nofunc.hcl", "name = \"x\"\nstart_node = \"a\"\nnode \"a\" {}\n"), "decode hcl"},
		{"hcl variable in params", write("var.hcl", "name = \"x\"\nstart_node = \"a\"\nnode \"a\" {\n  function_type = \"custom\"\n  function_params = { message = var.text }\n}\n"), "node a: params"},
		{"hcl params not an object", write("list.hcl", "name = \"x\"\nstart_node = \"a\"\nnode \"a\" {\n  function_type = \"custom\"\n  function_params = [1, 2]\n}\n"), "params must be an object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(dir, "graph.toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFromHCL_Values(t *testing.T) {
	src := `
name       = "values"
start_node = "a"

node "a" {
  function_type = "aggregate"
  function_params = {
    input_keys = ["x", "y"]
    output_key = "total"
    operation  = "sum"
    nested     = { deep = true, none = null }
  }
}

edge "a" "a" {
  condition_type = "key_exists"
  condition_params = { key = "again" }
}

edge "a" "b" {}
`
	spec, err := FromHCL([]byte(src), "values.hcl")
	require.NoError(t, err)

	params := spec.Nodes[0].Params
	assert.Equal(t, []any{"x", "y"}, params["input_keys"])
	assert.Equal(t, map[string]any{"deep": true, "none": nil}, params["nested"])

	require.Len(t, spec.Edges, 2)
	assert.Equal(t, "key_exists", spec.Edges[0].Condition.Type)
	assert.Nil(t, spec.Edges[1].Condition, "edges without condition_type are unconditional")
}

func TestFromYAML_NumbersWidened(t *testing.T) {
	spec, err := FromYAML([]byte(`
name: n
start_node: a
nodes:
  - node_id: a
    function_type: transform
    function_params: {input_key: n, operation: double, limits: [1, 2.5]}
`))
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.5}, spec.Nodes[0].Params["limits"])
}
