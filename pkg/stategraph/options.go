package stategraph

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
	"github.com/randalmurphal/stategraph/pkg/stategraph/event"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
	"github.com/randalmurphal/stategraph/pkg/stategraph/retry"
)

// options holds configuration shared by Engine, Tracker and Service.
// Options that do not apply to a component are ignored by it.
type options struct {
	maxVisits int
	logger    *slog.Logger

	metricsEnabled bool
	metrics        observability.MetricsRecorder
	tracingEnabled bool
	spans          observability.SpanManager

	checkpointStore        checkpoint.Store
	checkpointFailureFatal bool
	checkpointRetry        retry.Policy

	bus event.Bus

	workers       int
	retention     time.Duration
	sweepInterval time.Duration

	functions  *Functions
	conditions *Conditions
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		maxVisits:       config.DefaultMaxVisits,
		logger:          slog.Default(),
		metrics:         observability.NoopMetrics{},
		spans:           observability.NoopSpanManager{},
		checkpointRetry: retry.NoRetry,
		workers:         config.DefaultWorkers,
		sweepInterval:   config.DefaultSweepInterval,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures an Engine, Tracker or Service.
type Option func(*options)

// WithMaxVisits sets the loop budget: how many times any single node may be
// entered in one run.
// Default: 25
//
// A run that tries to enter a node once more fails with a
// *LoopBudgetError instead of executing it.
//
// Example:
//
//	engine := stategraph.NewEngine(stategraph.WithMaxVisits(5))
func WithMaxVisits(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxVisits = n
		}
	}
}

// WithObservabilityLogger sets the logger for run and node events.
// Node functions receive it enriched with run_id, graph_id and node_id.
func WithObservabilityLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables or disables OpenTelemetry metrics.
// Metrics are recorded against the global meter provider.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
		if enabled {
			o.metrics = observability.NewMetricsRecorder()
		} else {
			o.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables or disables OpenTelemetry spans for runs and nodes.
// Spans are created against the global tracer provider.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
		if enabled {
			o.spans = observability.NewSpanManager()
		} else {
			o.spans = observability.NoopSpanManager{}
		}
	}
}

// WithCheckpointing saves a checkpoint after every completed node.
// Checkpoints let Resume continue a failed run. Save failures are logged
// and execution continues unless WithCheckpointFailureFatal is set.
func WithCheckpointing(store checkpoint.Store) Option {
	return func(o *options) {
		o.checkpointStore = store
	}
}

// WithCheckpointFailureFatal makes a failed checkpoint save fail the run.
func WithCheckpointFailureFatal(fatal bool) Option {
	return func(o *options) {
		o.checkpointFailureFatal = fatal
	}
}

// WithCheckpointRetry retries failed checkpoint saves under p before the
// failure is logged or, with WithCheckpointFailureFatal, fails the run.
// A closed store is never retried. Default: retry.NoRetry.
func WithCheckpointRetry(p retry.Policy) Option {
	return func(o *options) {
		o.checkpointRetry = p
	}
}

// WithEventBus publishes run lifecycle events (see package event) to bus.
// Publishing never fails a run; configure the bus NonBlocking so a slow
// subscriber cannot stall one either.
func WithEventBus(bus event.Bus) Option {
	return func(o *options) {
		o.bus = bus
	}
}

// WithWorkers sets how many runs a Tracker executes at once.
// Default: 4
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithRetention evicts terminal runs from a Tracker once they have been
// finished for longer than d. Zero (the default) keeps runs until deleted.
func WithRetention(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.retention = d
		}
	}
}

// WithSweepInterval sets how often a Tracker looks for runs to evict.
// Default: 1m
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sweepInterval = d
		}
	}
}

// WithFunctionTable sets the function table a Service compiles graphs
// against. Default: the built-ins.
func WithFunctionTable(f *Functions) Option {
	return func(o *options) {
		o.functions = f
	}
}

// WithConditionTable sets the condition table a Service compiles graphs
// against. Default: the built-ins.
func WithConditionTable(c *Conditions) Option {
	return func(o *options) {
		o.conditions = c
	}
}

// WithSettings applies service settings loaded with config.LoadSettings.
// CheckpointPath, LogLevel and LogFormat are left to the caller, which owns
// the store and the logger.
func WithSettings(s config.Settings) Option {
	return func(o *options) {
		WithMaxVisits(s.MaxVisits)(o)
		WithWorkers(s.Workers)(o)
		WithRetention(s.Retention)(o)
		WithSweepInterval(s.SweepInterval)(o)
		if s.SaveAttempts > 1 {
			WithCheckpointRetry(retry.NewPolicy(retry.WithMaxAttempts(s.SaveAttempts)))(o)
		}
	}
}
