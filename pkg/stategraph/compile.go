package stategraph

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
)

// compileConfig holds the tables and metadata used by Compile.
type compileConfig struct {
	functions  *Functions
	conditions *Conditions
	logger     *slog.Logger
	id         string
	now        func() time.Time
}

// CompileOption configures Compile.
type CompileOption func(*compileConfig)

// WithFunctions resolves function types against f instead of the built-ins.
func WithFunctions(f *Functions) CompileOption {
	return func(c *compileConfig) {
		if f != nil {
			c.functions = f
		}
	}
}

// WithConditions resolves condition types against cond instead of the
// built-ins.
func WithConditions(cond *Conditions) CompileOption {
	return func(c *compileConfig) {
		if cond != nil {
			c.conditions = cond
		}
	}
}

// WithGraphID fixes the definition ID. By default a UUID is generated.
// A stable ID lets a later process resume checkpoints of the same graph.
func WithGraphID(id string) CompileOption {
	return func(c *compileConfig) {
		c.id = id
	}
}

// WithCompileLogger sets the logger that receives reachability warnings.
func WithCompileLogger(logger *slog.Logger) CompileOption {
	return func(c *compileConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Compile validates the graph and creates an immutable Definition.
// Every problem found is reported in one *ValidationError.
//
// Validation checks:
//  1. Start node must be set and must exist
//  2. Node IDs must be non-empty and unique
//  3. Every function type must be registered, with its required params
//  4. Every edge endpoint must exist
//  5. Every condition type must be registered, with its required params
//  6. Every end node must exist
//
// Unreachable nodes (not reachable from the start node) are logged as
// warnings but do not cause compilation to fail.
func (g *Graph) Compile(opts ...CompileOption) (*Definition, error) {
	cfg := compileConfig{
		functions:  builtinFunctions,
		conditions: builtinConditions,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	spec := g.Spec()
	var errs []error

	def := &Definition{
		id:        cfg.id,
		name:      spec.Name,
		nodes:     make(map[string]*compiledNode, len(spec.Nodes)),
		outgoing:  make(map[string][]int),
		start:     spec.StartNode,
		ends:      make(map[string]bool, len(spec.EndNodes)),
		endOrder:  spec.EndNodes,
		createdAt: cfg.now().UTC(),
	}
	if def.id == "" {
		def.id = uuid.NewString()
	}

	// Nodes
	for _, n := range spec.Nodes {
		if n.ID == "" {
			errs = append(errs, ErrEmptyNodeID)
			continue
		}
		if _, dup := def.nodes[n.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID))
			continue
		}
		if n.Name == "" {
			n.Name = n.ID
		}
		params := config.New(n.Params)
		fn, ok := cfg.functions.Lookup(n.Function)
		if !ok {
			errs = append(errs, fmt.Errorf("node %s: %w: %q", n.ID, ErrUnknownFunction, n.Function))
		} else {
			for _, err := range fn.check(params) {
				errs = append(errs, fmt.Errorf("node %s (%s): %w", n.ID, n.Function, err))
			}
		}
		def.nodes[n.ID] = &compiledNode{spec: n, fn: fn.Fn, params: params}
		def.order = append(def.order, n.ID)
	}

	// Start node
	if spec.StartNode == "" {
		errs = append(errs, ErrNoStartNode)
	} else if _, ok := def.nodes[spec.StartNode]; !ok {
		errs = append(errs, fmt.Errorf("%w: %s", ErrStartNotFound, spec.StartNode))
	}

	// Edges
	for i, e := range spec.Edges {
		if _, ok := def.nodes[e.From]; !ok {
			errs = append(errs, fmt.Errorf("%w: edge source '%s' does not exist", ErrNodeNotFound, e.From))
		}
		if _, ok := def.nodes[e.To]; !ok {
			errs = append(errs, fmt.Errorf("%w: edge target '%s' does not exist", ErrNodeNotFound, e.To))
		}
		ce := compiledEdge{spec: e}
		if e.Condition != nil {
			ce.params = config.New(e.Condition.Params)
			cond, ok := cfg.conditions.Lookup(e.Condition.Type)
			if !ok {
				errs = append(errs, fmt.Errorf("edge %s -> %s: %w: %q", e.From, e.To, ErrUnknownCondition, e.Condition.Type))
			} else {
				ce.pred = cond.Eval
				for _, err := range cond.check(ce.params) {
					errs = append(errs, fmt.Errorf("edge %s -> %s (%s): %w", e.From, e.To, e.Condition.Type, err))
				}
			}
		}
		def.edges = append(def.edges, ce)
		def.outgoing[e.From] = append(def.outgoing[e.From], i)
	}

	// End nodes
	for _, id := range spec.EndNodes {
		if _, ok := def.nodes[id]; !ok {
			errs = append(errs, fmt.Errorf("%w: end node '%s' does not exist", ErrNodeNotFound, id))
		}
		def.ends[id] = true
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Graph: spec.Name, Errs: errs}
	}

	def.warnUnreachable(cfg.logger)
	return def, nil
}

// warnUnreachable logs nodes that no path from the start node reaches.
// Conditions are ignored: any edge could be satisfied at run time.
func (d *Definition) warnUnreachable(logger *slog.Logger) {
	reachable := map[string]bool{d.start: true}
	queue := []string{d.start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, i := range d.outgoing[current] {
			to := d.edges[i].spec.To
			if !reachable[to] {
				reachable[to] = true
				queue = append(queue, to)
			}
		}
	}

	for _, id := range d.order {
		if reachable[id] {
			continue
		}
		if d.ends[id] {
			logger.Warn("end node unreachable from start", "graph", d.name, "node_id", id)
		} else {
			logger.Warn("node unreachable from start", "graph", d.name, "node_id", id)
		}
	}
}
