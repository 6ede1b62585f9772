package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"himawari-desktop/internal/apperr"
)

func main() {
	ctx := context.Background()

	// Pass in the command line arguments, environment and standard streams so
	// run can be tested without touching the real process state.
	if err := run(ctx, os.Args, os.Getenv, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}

// run is like main, except that it takes operating system fundamentals as
// arguments and returns an error instead of exiting.
func run(ctx context.Context, args []string, getenv func(key string) string, stdout, stderr *os.File) error {
	// Cancel on Ctrl+C or SIGTERM so an in-flight run can stop and watch mode
	// can shut the scheduler down cleanly.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCommand(getenv, stdout, stderr)
	cmd.SetArgs(args[1:])
	return cmd.ExecuteContext(ctx)
}

// exitCode maps configuration mistakes to 2 and every other failure to 1
func exitCode(err error) int {
	if apperr.IsKind(err, apperr.KindConfig) {
		return 2
	}
	return 1
}
