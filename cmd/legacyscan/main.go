// Package main provides the CLI entry point for legacyscan.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/legacyscan/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
