package stategraph

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
)

// NodeSpec declares one node: its ID, display name, function type tag and
// the params handed to that function.
type NodeSpec struct {
	ID       string         `json:"node_id"`
	Name     string         `json:"name,omitempty"`
	Function string         `json:"function_type"`
	Params   map[string]any `json:"function_params,omitempty"`
}

// ConditionSpec guards an edge with a registered condition type.
type ConditionSpec struct {
	Type   string         `json:"condition_type"`
	Params map[string]any `json:"condition_params,omitempty"`
}

// EdgeSpec connects two nodes. A nil Condition is always satisfied.
//
// On the wire the condition is flattened into condition_type and
// condition_params next to from_node and to_node.
type EdgeSpec struct {
	From      string
	To        string
	Condition *ConditionSpec
}

type edgeWire struct {
	From            string         `json:"from_node"`
	To              string         `json:"to_node"`
	ConditionType   string         `json:"condition_type,omitempty"`
	ConditionParams map[string]any `json:"condition_params,omitempty"`
}

// MarshalJSON encodes the edge in its flat wire form.
func (e EdgeSpec) MarshalJSON() ([]byte, error) {
	w := edgeWire{From: e.From, To: e.To}
	if e.Condition != nil {
		w.ConditionType = e.Condition.Type
		w.ConditionParams = e.Condition.Params
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the flat wire form. condition_params without a
// condition_type is ignored.
func (e *EdgeSpec) UnmarshalJSON(data []byte) error {
	var w edgeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = EdgeSpec{From: w.From, To: w.To}
	if w.ConditionType != "" {
		e.Condition = &ConditionSpec{Type: w.ConditionType, Params: w.ConditionParams}
	}
	return nil
}

// GraphSpec is the declarative form of a graph, as accepted by
// Service.CreateGraph and the file loaders.
type GraphSpec struct {
	Name      string     `json:"name"`
	Nodes     []NodeSpec `json:"nodes"`
	Edges     []EdgeSpec `json:"edges"`
	StartNode string     `json:"start_node"`
	EndNodes  []string   `json:"end_nodes,omitempty"`
}

// Graph is a mutable builder for graph definitions.
// Use NewGraph to create a new graph, then chain AddNode, AddEdge,
// SetStart and AddEnd calls to define the topology.
//
// Nothing is validated while building; Compile reports every problem at
// once and returns an immutable Definition that can be shared freely.
//
// Example:
//
//	def, err := stategraph.NewGraph("grader").
//	    Node("start", stategraph.FuncSetValue, map[string]any{"key": "stage", "value": "start"}).
//	    Node("grade_a", stategraph.FuncSetValue, map[string]any{"key": "grade", "value": "A"}).
//	    EdgeIf("start", "grade_a", stategraph.CondKeyGreaterThan,
//	        map[string]any{"key": "score", "threshold": 89}).
//	    SetStart("start").
//	    Compile()
type Graph struct {
	mu    sync.RWMutex
	name  string
	nodes []NodeSpec
	edges []EdgeSpec
	start string
	ends  []string
}

// NewGraph creates an empty graph builder.
func NewGraph(name string) *Graph {
	return &Graph{name: name}
}

// FromSpec creates a builder pre-populated from a declarative spec.
// The spec is copied; later changes to it do not affect the builder.
func FromSpec(spec GraphSpec) *Graph {
	g := NewGraph(spec.Name)
	for _, n := range spec.Nodes {
		g.AddNode(n)
	}
	for _, e := range spec.Edges {
		g.AddEdge(e)
	}
	g.SetStart(spec.StartNode)
	g.AddEnd(spec.EndNodes...)
	return g
}

// AddNode appends a node declaration.
// Returns the graph for method chaining.
func (g *Graph) AddNode(spec NodeSpec) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = append(g.nodes, copyNode(spec))
	return g
}

// Node is shorthand for AddNode with the name defaulting to id.
func (g *Graph) Node(id, function string, params map[string]any) *Graph {
	return g.AddNode(NodeSpec{ID: id, Function: function, Params: params})
}

// AddEdge appends an edge declaration. Edges from the same node are
// evaluated in the order they were added.
// Returns the graph for method chaining.
func (g *Graph) AddEdge(spec EdgeSpec) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges = append(g.edges, copyEdge(spec))
	return g
}

// Edge adds an unconditional edge.
func (g *Graph) Edge(from, to string) *Graph {
	return g.AddEdge(EdgeSpec{From: from, To: to})
}

// EdgeIf adds an edge guarded by the condition registered under condType.
func (g *Graph) EdgeIf(from, to, condType string, params map[string]any) *Graph {
	return g.AddEdge(EdgeSpec{From: from, To: to, Condition: &ConditionSpec{Type: condType, Params: params}})
}

// SetStart designates the start node.
// Returns the graph for method chaining.
func (g *Graph) SetStart(id string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.start = id
	return g
}

// AddEnd marks nodes as end nodes. End nodes are descriptive: a run stops
// when no successor is scheduled, declared or not.
func (g *Graph) AddEnd(ids ...string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range ids {
		if !slices.Contains(g.ends, id) {
			g.ends = append(g.ends, id)
		}
	}
	return g
}

// Spec returns the declarative form of what has been built so far.
func (g *Graph) Spec() GraphSpec {
	g.mu.RLock()
	defer g.mu.RUnlock()

	spec := GraphSpec{
		Name:      g.name,
		Nodes:     make([]NodeSpec, len(g.nodes)),
		Edges:     make([]EdgeSpec, len(g.edges)),
		StartNode: g.start,
		EndNodes:  append([]string(nil), g.ends...),
	}
	for i, n := range g.nodes {
		spec.Nodes[i] = copyNode(n)
	}
	for i, e := range g.edges {
		spec.Edges[i] = copyEdge(e)
	}
	return spec
}

func copyNode(n NodeSpec) NodeSpec {
	if n.Params != nil {
		n.Params = config.New(n.Params).Clone().Raw()
	}
	return n
}

func copyEdge(e EdgeSpec) EdgeSpec {
	if e.Condition != nil {
		c := *e.Condition
		if c.Params != nil {
			c.Params = config.New(c.Params).Clone().Raw()
		}
		e.Condition = &c
	}
	return e
}
