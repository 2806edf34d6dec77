// Package main provides the FlowGraph CLI application
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Version information set during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// ExitError carries a process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
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

const usage = `FlowGraph - graph-based workflow execution

Usage:
  flowgraph <command> [options]

Commands:
  version     Print build information
  validate    Check a workflow definition
  run         Execute a workflow definition
  runs        Inspect recorded runs
  functions   List built-in node and branch functions

Run 'flowgraph <command> -h' for command options.
`

// run dispatches a subcommand. It never calls os.Exit.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return &ExitError{Code: 2}
	}

	switch args[0] {
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "FlowGraph %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
		return nil
	case "validate":
		return validateCmd(ctx, args[1:], stdout, stderr)
	case "run":
		return runCmd(ctx, args[1:], stdout, stderr)
	case "runs":
		return runsCmd(ctx, args[1:], stdout, stderr)
	case "functions":
		return functionsCmd(stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q", args[0])}
	}
}
