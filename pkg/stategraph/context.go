package stategraph

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Context provides execution context to node functions.
// It extends context.Context with run metadata and a logger.
//
// The engine creates a derived context for each node invocation with the
// node ID, visit number and an enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run and node context.
	// Never returns nil - defaults to slog.Default() if not configured.
	Logger() *slog.Logger

	// RunID returns the identifier of the run being executed.
	RunID() string

	// GraphID returns the identifier of the graph being executed.
	GraphID() string

	// NodeID returns the current node being executed.
	// Empty string outside a node invocation.
	NodeID() string

	// Visit returns how many times the current node has been entered in
	// this run, counting the current invocation.
	Visit() int

	// Annotate attaches a message to the current node's history entry.
	// Several calls are joined with "; ".
	Annotate(msg string)
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger  *slog.Logger
	runID   string
	graphID string
	nodeID  string
	visit   int
	notes   *[]string
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// RunID returns the run identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// GraphID returns the graph identifier.
func (c *executionContext) GraphID() string {
	return c.graphID
}

// NodeID returns the current node identifier.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// Visit returns the visit number of the current node.
func (c *executionContext) Visit() int {
	return c.visit
}

// Annotate records a message for the current history entry.
func (c *executionContext) Annotate(msg string) {
	if c.notes == nil || msg == "" {
		return
	}
	*c.notes = append(*c.notes, msg)
}

// message returns the collected annotations.
func (c *executionContext) message() string {
	if c.notes == nil {
		return ""
	}
	return strings.Join(*c.notes, "; ")
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithContextLogger sets the logger for the context.
// The logger will be enriched with run_id, graph_id and node_id during execution.
func WithContextLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextRunID sets the run identifier for the context.
// If not set, a UUID will be auto-generated.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// WithContextGraphID sets the graph identifier for the context.
func WithContextGraphID(id string) ContextOption {
	return func(c *executionContext) {
		c.graphID = id
	}
}

// NewContext creates an execution context from a standard context.
// Useful for calling a NodeFunc directly, outside the engine.
//
// Example:
//
//	ctx := stategraph.NewContext(context.Background(),
//	    stategraph.WithContextLogger(myLogger),
//	    stategraph.WithContextRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.NewString(),
		notes:   new([]string),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// forNode returns a context for one node invocation with a fresh
// annotation buffer and an enriched logger.
func (c *executionContext) forNode(nodeID string, visit int) *executionContext {
	return &executionContext{
		Context: c.Context,
		logger:  c.logger.With("node_id", nodeID, "visit", visit),
		runID:   c.runID,
		graphID: c.graphID,
		nodeID:  nodeID,
		visit:   visit,
		notes:   new([]string),
	}
}
