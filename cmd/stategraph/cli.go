package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
)

// ExitError carries a specific process exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return e.Message
}

// commonFlags are shared by every subcommand.
type commonFlags struct {
	settingsPath string
	logLevel     string
	logFormat    string
	checkpoints  string
	graphID      string
	maxVisits    int
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.settingsPath, "config", "", "Settings file (YAML or JSON).")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn or error. Overrides the settings file.")
	fs.StringVar(&c.logFormat, "log-format", "", "Log format: text or json. Overrides the settings file.")
	fs.StringVar(&c.checkpoints, "checkpoints", "", "SQLite file for the checkpoint trail. Overrides the settings file.")
	fs.StringVar(&c.graphID, "graph-id", "", "Graph ID to compile with. Defaults to the graph name so checkpoints can be resumed later.")
	fs.IntVar(&c.maxVisits, "max-visits", 0, "Per-node visit budget. Overrides the settings file.")
}

// settings merges the settings file, if any, with flag overrides.
func (c *commonFlags) settings() (config.Settings, error) {
	s := config.DefaultSettings()
	if c.settingsPath != "" {
		loaded, err := config.LoadSettings(c.settingsPath)
		if err != nil {
			return config.Settings{}, err
		}
		s = loaded
	}
	if c.logLevel != "" {
		s.LogLevel = strings.ToLower(c.logLevel)
	}
	if c.logFormat != "" {
		s.LogFormat = strings.ToLower(c.logFormat)
	}
	if c.checkpoints != "" {
		s.CheckpointPath = c.checkpoints
	}
	if c.maxVisits != 0 {
		s.MaxVisits = c.maxVisits
	}
	if err := s.Validate(); err != nil {
		return config.Settings{}, err
	}
	return s, nil
}

// newFlagSet creates a subcommand flag set that reports errors instead of exiting.
func newFlagSet(name, usage string, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(output, "\nUsage:\n  stategraph %s %s\n\nOptions:\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

// parseFlags parses args, mapping -h to a clean exit and other failures to
// exit code 2.
func parseFlags(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return true, nil
		}
		return false, &ExitError{Code: 2, Message: err.Error()}
	}
	return false, nil
}

// usageError reports a missing or malformed argument.
func usageError(format string, args ...any) error {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// parseObject decodes a JSON object flag value. An empty value yields nil.
func parseObject(name, raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, usageError("invalid -%s: %v", name, err)
	}
	return m, nil
}

// newLogger builds a logger from the level and format settings.
func newLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
