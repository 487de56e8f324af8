package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/montarelab/rev-ai/internal/app"
)

const shutdownTimeout = 30 * time.Second

// waitForShutdown blocks until a signal arrives or the server exits, then
// stops the application.
func waitForShutdown(ctx context.Context, a *app.App, errCh <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var serveErr error
	select {
	case <-quit:
		a.Logger.Info("received shutdown signal")
	case serveErr = <-errCh:
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Stop(stopCtx); err != nil {
		return err
	}
	return serveErr
}
