package stategraph

import (
	"slices"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
)

// Definition is an immutable, validated graph.
// It is created by calling Compile() on a Graph builder.
//
// Definition is safe for concurrent use by any number of runs. Node
// functions and condition predicates are resolved at compile time, so
// registering new entries afterwards does not change a compiled graph.
type Definition struct {
	id        string
	name      string
	nodes     map[string]*compiledNode
	order     []string
	edges     []compiledEdge
	outgoing  map[string][]int // node ID -> indexes into edges, declaration order
	start     string
	ends      map[string]bool
	endOrder  []string
	createdAt time.Time
}

type compiledNode struct {
	spec   NodeSpec
	fn     NodeFunc
	params config.Config
}

type compiledEdge struct {
	spec   EdgeSpec
	pred   Predicate // nil = always satisfied
	params config.Config
}

// ID returns the graph identifier.
func (d *Definition) ID() string {
	return d.id
}

// Name returns the graph's display name.
func (d *Definition) Name() string {
	return d.name
}

// Start returns the start node ID.
func (d *Definition) Start() string {
	return d.start
}

// CreatedAt returns when the definition was compiled.
func (d *Definition) CreatedAt() time.Time {
	return d.createdAt
}

// EndNodes returns the declared end node IDs in declaration order.
func (d *Definition) EndNodes() []string {
	return slices.Clone(d.endOrder)
}

// IsEnd reports whether id was declared as an end node.
func (d *Definition) IsEnd(id string) bool {
	return d.ends[id]
}

// Node returns a copy of the node declaration for id.
func (d *Definition) Node(id string) (NodeSpec, bool) {
	n, ok := d.nodes[id]
	if !ok {
		return NodeSpec{}, false
	}
	return copyNode(n.spec), true
}

// HasNode checks if a node exists in the graph.
func (d *Definition) HasNode(id string) bool {
	_, ok := d.nodes[id]
	return ok
}

// NodeIDs returns all node IDs in declaration order.
func (d *Definition) NodeIDs() []string {
	return slices.Clone(d.order)
}

// NodeCount returns the number of nodes.
func (d *Definition) NodeCount() int {
	return len(d.order)
}

// EdgeCount returns the number of edges.
func (d *Definition) EdgeCount() int {
	return len(d.edges)
}

// Edges returns copies of all edges in declaration order.
func (d *Definition) Edges() []EdgeSpec {
	out := make([]EdgeSpec, len(d.edges))
	for i, e := range d.edges {
		out[i] = copyEdge(e.spec)
	}
	return out
}

// Outgoing returns copies of the edges leaving id in declaration order.
// Returns nil for unknown nodes and nodes without outgoing edges.
func (d *Definition) Outgoing(id string) []EdgeSpec {
	idx := d.outgoing[id]
	if len(idx) == 0 {
		return nil
	}
	out := make([]EdgeSpec, len(idx))
	for i, j := range idx {
		out[i] = copyEdge(d.edges[j].spec)
	}
	return out
}

// Successors returns the distinct targets of id's outgoing edges,
// regardless of their conditions.
func (d *Definition) Successors(id string) []string {
	var out []string
	for _, j := range d.outgoing[id] {
		if to := d.edges[j].spec.To; !slices.Contains(out, to) {
			out = append(out, to)
		}
	}
	return out
}

// Spec returns the declarative form of the definition.
func (d *Definition) Spec() GraphSpec {
	spec := GraphSpec{
		Name:      d.name,
		Nodes:     make([]NodeSpec, 0, len(d.order)),
		Edges:     d.Edges(),
		StartNode: d.start,
		EndNodes:  d.EndNodes(),
	}
	for _, id := range d.order {
		spec.Nodes = append(spec.Nodes, copyNode(d.nodes[id].spec))
	}
	return spec
}
