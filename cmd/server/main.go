// Command server runs rev-ai as a long-lived review service: branch reviews
// are submitted over HTTP, queued on the dispatcher and persisted to the run
// store for later retrieval.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/montarelab/rev-ai/internal/config"
	"github.com/montarelab/rev-ai/internal/wire"
)

func main() {
	if err := run(); err != nil {
		slog.Error("rev-ai server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, cleanup, err := wire.InitializeApp(ctx, cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize review service: %w", err)
	}
	defer cleanup()

	serveErr := make(chan error, 1)
	go func() { serveErr <- app.Start() }()

	select {
	case <-ctx.Done():
		app.Logger.Info("shutdown requested, draining queued reviews")
	case err := <-serveErr:
		if err != nil {
			app.Logger.Error("review API stopped unexpectedly", "error", err)
		}
	}

	// server.shutdown_timeout bounds the API drain.
	if err := app.Stop(context.Background()); err != nil {
		return fmt.Errorf("failed to stop review service: %w", err)
	}
	return nil
}
