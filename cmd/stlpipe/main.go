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

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line under ctx and returns the process exit code.
// Cancelling ctx stops in-flight jobs; process still prints its batch table.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errJobsFailed):
		// The batch table already reported per-archive failures.
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "stlpipe: interrupted")
	default:
		fmt.Fprintln(stderr, "stlpipe:", err)
	}
	return 1
}
