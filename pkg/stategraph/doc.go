/*
Package stategraph executes directed graphs of steps over a shared state map.

# Overview

A graph is a set of named nodes, each bound to a function type from a
registry, connected by edges that may carry a condition over the state.
Running a graph walks it from a start node, letting every node transform
the run's State in place, until no node is left to run.

  - Nodes are declared with a function type tag ("set_value", "transform",
    "aggregate", "custom", or anything registered on a Functions table)
    and an opaque params map.
  - Edges are declared with an optional condition type tag ("key_equals",
    "key_exists", "key_greater_than", "expression", or anything registered
    on a Conditions table).
  - State maps string keys to Values: null, string, number, bool, list or
    map.

# Basic Usage

Build a graph, compile it, then run it:

	def, err := stategraph.NewGraph("grader").
	    Node("start", stategraph.FuncCustom, map[string]any{"message": "grading"}).
	    Node("pass", stategraph.FuncSetValue, map[string]any{"key": "grade", "value": "P"}).
	    Node("fail", stategraph.FuncSetValue, map[string]any{"key": "grade", "value": "F"}).
	    EdgeIf("start", "pass", stategraph.CondKeyGreaterThan, map[string]any{"key": "score", "threshold": 49}).
	    EdgeIf("start", "fail", stategraph.CondExpression, map[string]any{"expr": "score <= 49"}).
	    SetStart("start").
	    AddEnd("pass", "fail").
	    Compile()
	if err != nil {
	    log.Fatal(err)
	}

	engine := stategraph.NewEngine()
	snap, err := engine.Run(ctx, def, stategraph.MustState(map[string]any{"score": 30}))
	grade, _ := snap.Get("grade")
	fmt.Println(grade.Text()) // F
	fmt.Println(snap.Path())  // [start fail]

Compile reports every problem it finds at once in a *ValidationError:
unknown function or condition types, missing required params, edges to
unknown nodes, a missing or unknown start node, and duplicate node IDs.

# Traversal

The engine keeps a FIFO worklist seeded with the start node. Each step
pops one node, invokes its function, then evaluates every outgoing edge in
declaration order against the updated state. Every satisfied edge enqueues
its target unless that target is already waiting in the worklist, so a
node with several satisfied edges fans out to all of them. The run
COMPLETES when the worklist is empty. End nodes are informational only.

Nodes may be entered again (loops). Each node may be entered at most
WithMaxVisits times per run (default 25); the next attempt fails the run
with a *LoopBudgetError instead of executing.

A node that returns an error or panics fails the run. State changes made
before the failure are kept and reported.

# Background Runs

A Tracker runs graphs on a fixed pool of workers:

	tracker := stategraph.NewTracker(stategraph.WithWorkers(8))
	defer tracker.Close()

	sub, _ := tracker.Submit(ctx, def, initial) // returns immediately
	snap, _ := tracker.Poll(sub.RunID)          // point-in-time copy
	snap, _ = tracker.Wait(ctx, sub.RunID)      // blocks until terminal

Submitted runs cannot be cancelled and always reach COMPLETED or FAILED.
A Service adds a graph catalog on top of a Tracker.

# Checkpointing

With WithCheckpointing the engine saves the state, the worklist, the visit
counts and the history after every completed node:

	store, _ := checkpoint.NewSQLiteStore("./checkpoints.db")
	defer store.Close()

	engine := stategraph.NewEngine(stategraph.WithCheckpointing(store))
	snap, err := engine.Run(ctx, def, initial)

	// After fixing whatever failed the run:
	snap, err = engine.Resume(ctx, def, store, snap.RunID)

Resuming requires the same graph ID; fix it with WithGraphID when the graph
is rebuilt in another process.

# Observability

	result, err := stategraph.NewEngine(
	    stategraph.WithObservabilityLogger(logger),
	    stategraph.WithMetrics(true),
	    stategraph.WithTracing(true),
	    stategraph.WithEventBus(bus),
	).Run(ctx, def, initial)

Logs carry run_id, graph_id and node_id. OpenTelemetry metrics:
stategraph.node.executions, stategraph.node.latency_ms, stategraph.runs and
more. OpenTelemetry tracing: stategraph.run > stategraph.node.{id} spans.
Lifecycle events (run.started, node.completed, ...) go to the event bus.

# Error Handling

	snap, err := engine.Run(ctx, def, initial)
	var nodeErr *stategraph.NodeError
	if errors.As(err, &nodeErr) {
	    log.Printf("node %s failed: %v", nodeErr.NodeID, nodeErr.Err)
	}
	if errors.Is(err, stategraph.ErrMissingKey) {
	    // a transform found nothing to read
	}

# Thread Safety

  - Graph is safe for concurrent use but is normally built by one goroutine
  - Definition IS safe for concurrent use (immutable)
  - Functions and Conditions tables ARE safe for concurrent use
  - Engine, Tracker, Service and Catalog ARE safe for concurrent use
  - Snapshots share nothing with the live run

# Subpackages

  - checkpoint: Checkpoint storage (memory, SQLite)
  - config: Typed access to params and settings files
  - event: In-process pub/sub for lifecycle events
  - expr: Expression language for the "expression" condition
  - loader: Graph files in YAML, JSON and HCL
  - observability: Logging, metrics, and tracing helpers
  - registry: Generic concurrent registry
*/
package stategraph
