package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/purib/ipopilot/cmd"
	"github.com/purib/ipopilot/internal/observability"
)

// main is the entry point for the ipopilot CLI.
func main() {
	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM)
	// for graceful shutdown mid-run.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer observability.Sync()

	cmd.Execute(ctx)
}
