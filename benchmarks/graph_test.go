package benchmarks

import (
	"fmt"
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

// BenchmarkNewGraph measures graph creation overhead.
func BenchmarkNewGraph(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = stategraph.NewGraph("bench")
	}
}

// BenchmarkNode measures adding a single node.
func BenchmarkNode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		g := stategraph.NewGraph("bench")
		g.Node("node", stategraph.FuncCustom, nil)
	}
}

// BenchmarkNode_100 measures adding 100 nodes.
func BenchmarkNode_100(b *testing.B) {
	for i := 0; i < b.N; i++ {
		g := stategraph.NewGraph("bench")
		for j := 0; j < 100; j++ {
			g.Node(nodeID(j), stategraph.FuncCustom, nil)
		}
	}
}

// BenchmarkCompile_Linear measures compiling linear graphs.
func BenchmarkCompile_Linear(b *testing.B) {
	for _, n := range []int{5, 10, 50, 100} {
		b.Run(fmt.Sprintf("nodes=%d", n), func(b *testing.B) {
			graph := buildLinearGraph(n)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = graph.Compile()
			}
		})
	}
}

// BenchmarkCompile_Branching measures compiling a graph with guarded edges.
func BenchmarkCompile_Branching(b *testing.B) {
	graph := buildBranchingGraph()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = graph.Compile()
	}
}

// BenchmarkCompile_FromSpec measures compiling from the wire form, the way
// a service registers graphs.
func BenchmarkCompile_FromSpec(b *testing.B) {
	spec := buildBranchingGraph().Spec()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = stategraph.FromSpec(spec).Compile()
	}
}

func nodeID(n int) string {
	return fmt.Sprintf("node_%d", n)
}

// buildLinearGraph chains n counting nodes.
func buildLinearGraph(n int) *stategraph.Graph {
	graph := stategraph.NewGraph("linear")
	for i := 0; i < n; i++ {
		graph.Node(nodeID(i), stategraph.FuncTransform,
			map[string]any{"input_key": "counter", "operation": "increment"})
	}
	for i := 0; i < n-1; i++ {
		graph.Edge(nodeID(i), nodeID(i+1))
	}
	return graph.SetStart(nodeID(0)).AddEnd(nodeID(n - 1))
}

// buildBranchingGraph routes on value into one of three bands.
func buildBranchingGraph() *stategraph.Graph {
	return stategraph.NewGraph("branching").
		Node("start", stategraph.FuncCustom, nil).
		Node("high", stategraph.FuncSetValue, map[string]any{"key": "band", "value": "high"}).
		Node("medium", stategraph.FuncSetValue, map[string]any{"key": "band", "value": "medium"}).
		Node("low", stategraph.FuncSetValue, map[string]any{"key": "band", "value": "low"}).
		EdgeIf("start", "high", stategraph.CondKeyGreaterThan, map[string]any{"key": "value", "threshold": 66}).
		EdgeIf("start", "medium", stategraph.CondExpression, map[string]any{"expr": "value > 33 and value <= 66"}).
		EdgeIf("start", "low", stategraph.CondExpression, map[string]any{"expr": "value <= 33"}).
		SetStart("start").
		AddEnd("high", "medium", "low")
}
