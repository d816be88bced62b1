package stategraph

import (
	"context"
	"fmt"
)

// Service is the complete graph-execution surface: a catalog of compiled
// graphs plus a tracker that runs them in the background.
//
// Example:
//
//	svc := stategraph.NewService(stategraph.WithWorkers(8))
//	defer svc.Close()
//
//	id, err := svc.CreateGraph(spec)
//	sub, err := svc.Submit(ctx, id, map[string]any{"score": 30})
//	snap, err := svc.Wait(ctx, sub.RunID)
type Service struct {
	opts    options
	catalog *Catalog
	tracker *Tracker
}

// NewService creates a service and starts its tracker workers.
func NewService(opts ...Option) *Service {
	o := buildOptions(opts)
	if o.functions == nil {
		o.functions = DefaultFunctions()
	}
	if o.conditions == nil {
		o.conditions = DefaultConditions()
	}
	return &Service{
		opts:    o,
		catalog: NewCatalog(),
		tracker: NewTracker(opts...),
	}
}

// Functions returns the table new graphs are compiled against. Functions
// registered on it are visible to graphs created afterwards.
func (s *Service) Functions() *Functions {
	return s.opts.functions
}

// Conditions returns the table new graphs are compiled against.
func (s *Service) Conditions() *Conditions {
	return s.opts.conditions
}

// Tracker returns the service's run tracker.
func (s *Service) Tracker() *Tracker {
	return s.tracker
}

// CreateGraph validates spec, catalogs the compiled graph and returns its
// ID. Invalid specs fail with a *ValidationError.
func (s *Service) CreateGraph(spec GraphSpec) (string, error) {
	def, err := FromSpec(spec).Compile(
		WithFunctions(s.opts.functions),
		WithConditions(s.opts.conditions),
		WithCompileLogger(s.opts.logger),
	)
	if err != nil {
		return "", err
	}
	if err := s.catalog.Add(def); err != nil {
		return "", err
	}
	s.opts.logger.Info("graph created",
		"graph_id", def.id,
		"name", def.name,
		"nodes", def.NodeCount(),
		"edges", def.EdgeCount())
	return def.id, nil
}

// AddGraph catalogs an already compiled graph.
func (s *Service) AddGraph(def *Definition) error {
	return s.catalog.Add(def)
}

// GetGraph returns a cataloged graph.
func (s *Service) GetGraph(id string) (*Definition, error) {
	return s.catalog.Get(id)
}

// ListGraphs summarizes every cataloged graph, oldest first.
func (s *Service) ListGraphs() []GraphInfo {
	return s.catalog.List()
}

// DeleteGraph removes a graph from the catalog. Runs already submitted
// against it are unaffected.
func (s *Service) DeleteGraph(id string) error {
	return s.catalog.Delete(id)
}

// Execute runs a cataloged graph and waits for it to finish.
// The error is the run's error, nil when it COMPLETED.
func (s *Service) Execute(ctx context.Context, graphID string, initial map[string]any) (Snapshot, error) {
	def, st, err := s.prepare(graphID, initial)
	if err != nil {
		return Snapshot{}, err
	}
	return s.tracker.Execute(ctx, def, st)
}

// Submit queues a run of a cataloged graph and returns immediately.
func (s *Service) Submit(ctx context.Context, graphID string, initial map[string]any) (Submission, error) {
	def, st, err := s.prepare(graphID, initial)
	if err != nil {
		return Submission{}, err
	}
	return s.tracker.Submit(ctx, def, st)
}

func (s *Service) prepare(graphID string, initial map[string]any) (*Definition, *State, error) {
	def, err := s.catalog.Get(graphID)
	if err != nil {
		return nil, nil, err
	}
	st, err := StateFrom(initial)
	if err != nil {
		return nil, nil, fmt.Errorf("initial state: %w", err)
	}
	return def, st, nil
}

// Poll returns a point-in-time copy of a run.
func (s *Service) Poll(runID string) (Snapshot, error) {
	return s.tracker.Poll(runID)
}

// Wait blocks until a run is terminal or ctx is done.
func (s *Service) Wait(ctx context.Context, runID string) (Snapshot, error) {
	return s.tracker.Wait(ctx, runID)
}

// DeleteRun forgets a terminal run.
func (s *Service) DeleteRun(runID string) error {
	return s.tracker.Delete(runID)
}

// ListRuns summarizes every tracked run, oldest first.
func (s *Service) ListRuns() []RunInfo {
	return s.tracker.List()
}

// Close stops accepting runs and waits for queued and running ones.
func (s *Service) Close() error {
	return s.tracker.Close()
}
