package loader

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

// hclGraph is the top-level schema of an HCL graph file.
type hclGraph struct {
	Name      string     `hcl:"name"`
	StartNode string     `hcl:"start_node"`
	EndNodes  []string   `hcl:"end_nodes,optional"`
	Nodes     []*hclNode `hcl:"node,block"`
	Edges     []*hclEdge `hcl:"edge,block"`
}

type hclNode struct {
	ID       string         `hcl:"id,label"`
	Name     string         `hcl:"name,optional"`
	Function string         `hcl:"function_type"`
	Params   hcl.Expression `hcl:"function_params,optional"`
}

type hclEdge struct {
	From      string         `hcl:"from,label"`
	To        string         `hcl:"to,label"`
	Condition string         `hcl:"condition_type,optional"`
	Params    hcl.Expression `hcl:"condition_params,optional"`
}

// FromHCL decodes a graph written in HCL. filename is used in diagnostics.
// Params must be literal values; variables and function calls are rejected.
func FromHCL(data []byte, filename string) (stategraph.GraphSpec, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return stategraph.GraphSpec{}, fmt.Errorf("parse hcl: %w", diags)
	}

	var root hclGraph
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return stategraph.GraphSpec{}, fmt.Errorf("decode hcl: %w", diags)
	}

	spec := stategraph.GraphSpec{
		Name:      root.Name,
		StartNode: root.StartNode,
		EndNodes:  root.EndNodes,
		Nodes:     make([]stategraph.NodeSpec, 0, len(root.Nodes)),
		Edges:     make([]stategraph.EdgeSpec, 0, len(root.Edges)),
	}
	for _, n := range root.Nodes {
		params, err := decodeParams(n.Params, "node "+n.ID)
		if err != nil {
			return stategraph.GraphSpec{}, err
		}
		spec.Nodes = append(spec.Nodes, stategraph.NodeSpec{
			ID:       n.ID,
			Name:     n.Name,
			Function: n.Function,
			Params:   params,
		})
	}
	for _, e := range root.Edges {
		edge := stategraph.EdgeSpec{From: e.From, To: e.To}
		params, err := decodeParams(e.Params, fmt.Sprintf("edge %s -> %s", e.From, e.To))
		if err != nil {
			return stategraph.GraphSpec{}, err
		}
		if e.Condition != "" {
			edge.Condition = &stategraph.ConditionSpec{Type: e.Condition, Params: params}
		}
		spec.Edges = append(spec.Edges, edge)
	}
	return spec, nil
}

// decodeParams evaluates a params attribute into a plain map. An omitted
// attribute yields nil.
func decodeParams(expr hcl.Expression, owner string) (map[string]any, error) {
	if !isExprDefined(expr) {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s: params: %w", owner, diags)
	}
	native, err := ctyToNative(val)
	if err != nil {
		return nil, fmt.Errorf("%s: params: %w", owner, err)
	}
	if native == nil {
		return nil, nil
	}
	params, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: params must be an object, got %s", owner, val.Type().FriendlyName())
	}
	return params, nil
}

// isExprDefined reports whether an optional attribute was present in the
// source. gohcl fills omitted optional expressions with a zero-width
// placeholder.
func isExprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}
