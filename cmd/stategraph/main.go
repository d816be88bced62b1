// Command stategraph validates and runs graph definition files.
//
// Usage:
//
//	stategraph validate [options] PATH...
//	stategraph run      [options] [-input JSON | -input-file FILE] GRAPH_FILE
//	stategraph resume   [options] -run-id ID [-patch JSON] GRAPH_FILE
//
// Graph files may be YAML, JSON or HCL. run prints the final snapshot as
// JSON on stdout; logs go to stderr.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

func main() {
	// Minimal logger until settings are loaded.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	if err := run(context.Background(), os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, exitErr.Message)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run dispatches to a subcommand. It never exits the process so tests can
// call it directly.
func run(ctx context.Context, outW, errW io.Writer, args []string) error {
	if len(args) == 0 {
		printUsage(outW)
		return &ExitError{Code: 2}
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "validate":
		return runValidate(outW, errW, rest)
	case "run":
		return runGraph(ctx, outW, errW, rest)
	case "resume":
		return runResume(ctx, outW, errW, rest)
	case "help", "-h", "-help", "--help":
		printUsage(outW)
		return nil
	default:
		printUsage(errW)
		return &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q", cmd)}
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `
stategraph - run state graphs from definition files.

Usage:
  stategraph validate [options] PATH...
  stategraph run      [options] [-input JSON | -input-file FILE] GRAPH_FILE
  stategraph resume   [options] -run-id ID [-patch JSON] GRAPH_FILE

PATH may be a graph file (.yaml, .yml, .json, .hcl) or a directory of them.
Run "stategraph COMMAND -h" for the options of a command.
`)
}
