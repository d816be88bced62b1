package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
	"github.com/randalmurphal/stategraph/pkg/stategraph/loader"
)

// runValidate compiles every graph file under the given paths and reports
// each one. Any invalid graph makes the command fail.
func runValidate(outW, errW io.Writer, args []string) error {
	var common commonFlags
	fs := newFlagSet("validate", "[options] PATH...", errW)
	common.register(fs)
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return usageError("validate: expected at least one path")
	}
	settings, err := common.settings()
	if err != nil {
		return usageError("%v", err)
	}
	logger := newLogger(settings.LogLevel, settings.LogFormat, errW)

	files, err := loader.Find(fs.Args()...)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return &ExitError{Code: 1, Message: "no graph files found"}
	}

	failed := 0
	for _, file := range files {
		def, err := compileFile(file, common.graphID, logger)
		if err != nil {
			failed++
			fmt.Fprintf(outW, "FAIL %s: %v\n", file, err)
			continue
		}
		fmt.Fprintf(outW, "ok   %s: %s (%d nodes, %d edges)\n", file, def.Name(), def.NodeCount(), def.EdgeCount())
	}
	if failed > 0 {
		return &ExitError{Code: 1, Message: fmt.Sprintf("%d of %d graphs invalid", failed, len(files))}
	}
	return nil
}

// runGraph executes one graph file and prints the final snapshot.
func runGraph(ctx context.Context, outW, errW io.Writer, args []string) error {
	var common commonFlags
	fs := newFlagSet("run", "[options] [-input JSON | -input-file FILE] GRAPH_FILE", errW)
	common.register(fs)
	input := fs.String("input", "", "Initial state as a JSON object.")
	inputFile := fs.String("input-file", "", "Initial state file (YAML or JSON).")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return usageError("run: expected one graph file, got %d", fs.NArg())
	}
	if *input != "" && *inputFile != "" {
		return usageError("run: -input and -input-file are mutually exclusive")
	}

	settings, err := common.settings()
	if err != nil {
		return usageError("%v", err)
	}
	logger := newLogger(settings.LogLevel, settings.LogFormat, errW)

	def, err := compileFile(fs.Arg(0), common.graphID, logger)
	if err != nil {
		return err
	}

	initial, err := parseObject("input", *input)
	if err != nil {
		return err
	}
	if *inputFile != "" {
		c, err := config.FromFile(*inputFile)
		if err != nil {
			return fmt.Errorf("input file: %w", err)
		}
		initial = c.Raw()
	}
	st, err := stategraph.StateFrom(initial)
	if err != nil {
		return fmt.Errorf("initial state: %w", err)
	}

	opts, _, closeStore, err := engineOptions(settings, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	snap, runErr := stategraph.NewEngine(opts...).Run(ctx, def, st)
	return report(outW, snap, runErr)
}

// runResume continues a failed run from its checkpoint trail.
func runResume(ctx context.Context, outW, errW io.Writer, args []string) error {
	var common commonFlags
	fs := newFlagSet("resume", "[options] -run-id ID [-patch JSON] GRAPH_FILE", errW)
	common.register(fs)
	runID := fs.String("run-id", "", "ID of the run to resume (required).")
	patch := fs.String("patch", "", "State keys to overwrite before resuming, as a JSON object.")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return usageError("resume: expected one graph file, got %d", fs.NArg())
	}
	if *runID == "" {
		return usageError("resume: -run-id is required")
	}

	settings, err := common.settings()
	if err != nil {
		return usageError("%v", err)
	}
	if settings.CheckpointPath == "" {
		return usageError("resume: a checkpoint store is required (-checkpoints or checkpoint_path)")
	}
	logger := newLogger(settings.LogLevel, settings.LogFormat, errW)

	def, err := compileFile(fs.Arg(0), common.graphID, logger)
	if err != nil {
		return err
	}
	values, err := parseObject("patch", *patch)
	if err != nil {
		return err
	}

	opts, store, closeStore, err := engineOptions(settings, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	snap, runErr := stategraph.NewEngine(opts...).Resume(ctx, def, store, *runID, stategraph.WithStatePatch(values))
	if snap.RunID == "" {
		// Nothing was restored.
		return runErr
	}
	return report(outW, snap, runErr)
}

// compileFile loads and compiles a graph against the built-in tables. The
// graph ID defaults to the graph name so a later process can resume its
// checkpoints.
func compileFile(path, graphID string, logger *slog.Logger) (*stategraph.Definition, error) {
	spec, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	if graphID == "" {
		graphID = spec.Name
	}
	return stategraph.FromSpec(spec).Compile(
		stategraph.WithGraphID(graphID),
		stategraph.WithCompileLogger(logger),
	)
}

// engineOptions maps settings to engine options. When settings name a
// checkpoint file the opened store is returned along with a func that
// closes it.
func engineOptions(settings config.Settings, logger *slog.Logger) ([]stategraph.Option, checkpoint.Store, func(), error) {
	opts := []stategraph.Option{
		stategraph.WithObservabilityLogger(logger),
		stategraph.WithSettings(settings),
	}
	if settings.CheckpointPath == "" {
		return opts, nil, func() {}, nil
	}
	store, err := checkpoint.NewSQLiteStore(settings.CheckpointPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	opts = append(opts, stategraph.WithCheckpointing(store))
	return opts, store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing checkpoint store", "error", err)
		}
	}, nil
}

// report prints the snapshot and turns a failed run into exit code 1.
func report(outW io.Writer, snap stategraph.Snapshot, runErr error) error {
	enc := json.NewEncoder(outW)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if runErr != nil {
		return &ExitError{Code: 1, Message: fmt.Sprintf("run %s failed: %v", snap.RunID, runErr)}
	}
	return nil
}
