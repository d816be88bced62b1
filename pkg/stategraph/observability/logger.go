// Package observability provides logging, metrics and tracing for stategraph
// runs: structured logging via slog, metrics and spans via OpenTelemetry.
//
// All features are opt-in and have no-op implementations when disabled.
// Every logging helper accepts a nil logger and does nothing with it.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds run context to a logger. An empty nodeID is omitted.
// Returns a new logger with run_id, graph_id and node_id fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", "grader", "evaluate")
//	enriched.Info("doing work") // includes run_id, graph_id, node_id
func EnrichLogger(logger *slog.Logger, runID, graphID, nodeID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	attrs := []any{
		slog.String("run_id", runID),
		slog.String("graph_id", graphID),
	}
	if nodeID != "" {
		attrs = append(attrs, slog.String("node_id", nodeID))
	}
	return logger.With(attrs...)
}

// LogRunSubmitted logs a run accepted by the tracker.
func LogRunSubmitted(logger *slog.Logger, runID, graphID string) {
	if logger == nil {
		return
	}
	logger.Debug("run queued",
		slog.String("run_id", runID),
		slog.String("graph_id", graphID),
	)
}

// LogRunStart logs the start of a run.
func LogRunStart(logger *slog.Logger, runID, graphID string) {
	if logger == nil {
		return
	}
	logger.Info("run starting",
		slog.String("run_id", runID),
		slog.String("graph_id", graphID),
	)
}

// LogRunComplete logs successful run completion.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_executed", nodeCount),
	)
}

// LogRunError logs run failure.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_node", lastNode),
	)
}

// LogRunEvicted logs a terminal run removed by retention.
func LogRunEvicted(logger *slog.Logger, runID string, age time.Duration) {
	if logger == nil {
		return
	}
	logger.Debug("run evicted",
		slog.String("run_id", runID),
		slog.Duration("age", age),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID string, visit int) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
		slog.Int("visit", visit),
	)
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs node execution error.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogSuccessors logs the nodes scheduled after nodeID.
func LogSuccessors(logger *slog.Logger, nodeID string, scheduled []string) {
	if logger == nil || len(scheduled) == 0 {
		return
	}
	logger.Debug("successors scheduled",
		slog.String("node_id", nodeID),
		slog.Any("scheduled", scheduled),
	)
}

// LogLoopBudget logs a node that exhausted its visit budget.
func LogLoopBudget(logger *slog.Logger, nodeID string, visits, max int) {
	if logger == nil {
		return
	}
	logger.Warn("loop budget exceeded",
		slog.String("node_id", nodeID),
		slog.Int("visits", visits),
		slog.Int("max_visits", max),
	)
}

// LogCheckpoint logs checkpoint creation.
func LogCheckpoint(logger *slog.Logger, nodeID string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.String("node_id", nodeID),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogCheckpointError logs checkpoint failure (non-fatal).
func LogCheckpointError(logger *slog.Logger, nodeID string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.String("node_id", nodeID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
