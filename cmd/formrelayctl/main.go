package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(slog.Default()).RunContext(ctx, os.Args); err != nil {
		slog.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func newApp(logger *slog.Logger) *cli.App {
	return &cli.App{
		Name:  "formrelayctl",
		Usage: "Operate a formrelay dispatch ledger from the command line",
		Description: `Reads the same FORMRELAY_ environment variables as the server.

Examples:
  # Dispatch the workflow by hand for a date range
  formrelayctl dispatch --start 2026-10-01 --end 2026-10-07

  # Show the last 20 relay attempts
  formrelayctl history --limit 20

  # Confirm the configured workflow exists and is active
  formrelayctl verify`,
		Commands: []*cli.Command{
			dispatchCommand(logger),
			historyCommand(logger),
			verifyCommand(logger),
		},
	}
}
