// Package server exposes the review API: clients submit branch reviews,
// poll their per-file progress and fetch finished reports.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/montarelab/rev-ai/internal/config"
)

// Server is the review API listener.
type Server struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// NewServer binds router to the configured port. Write timeouts are sized for
// returning a finished report, which can hold findings for hundreds of files.
func NewServer(cfg *config.Config, router http.Handler, logger *slog.Logger) *Server {
	sc := cfg.Server
	return &Server{
		server: &http.Server{
			Addr:              ":" + sc.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       orDefault(sc.ReadTimeout, 15*time.Second),
			WriteTimeout:      orDefault(sc.WriteTimeout, 2*time.Minute),
			IdleTimeout:       2 * time.Minute,
		},
		shutdownTimeout: orDefault(sc.ShutdownTimeout, 20*time.Second),
		logger:          logger.With("component", "review_api"),
	}
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start serves the review API until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("review API listening", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve review API on %s: %w", s.server.Addr, err)
	}
	return nil
}

// Stop stops accepting submissions and waits for in-flight API calls.
// Queued reviews are drained separately by the dispatcher.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("review API shutting down", "timeout", s.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down review API: %w", err)
	}
	return nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
