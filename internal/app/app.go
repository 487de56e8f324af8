// Package app holds the assembled rev-ai components and their lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/montarelab/rev-ai/internal/config"
	"github.com/montarelab/rev-ai/internal/core"
	"github.com/montarelab/rev-ai/internal/github"
	"github.com/montarelab/rev-ai/internal/jobs"
	"github.com/montarelab/rev-ai/internal/knowledge"
	"github.com/montarelab/rev-ai/internal/metrics"
	"github.com/montarelab/rev-ai/internal/server"
	"github.com/montarelab/rev-ai/internal/state"
	"github.com/montarelab/rev-ai/internal/storage"
)

// ProgressSink receives progress events in addition to the task state.
// The terminal UI passes one in; other callers pass nil.
type ProgressSink interface {
	core.Observer
}

// App holds the main application components.
type App struct {
	Cfg     *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	State   *state.Manager
	Runs    storage.Store
	Job     *jobs.ReviewJob
	Loader  *knowledge.Loader

	dispatcher core.JobDispatcher
	server     *server.Server
}

// NewApp bundles the wired components.
func NewApp(
	cfg *config.Config,
	logger *slog.Logger,
	m *metrics.Metrics,
	st *state.Manager,
	runs storage.Store,
	job *jobs.ReviewJob,
	loader *knowledge.Loader,
	dispatcher core.JobDispatcher,
	srv *server.Server,
) *App {
	return &App{
		Cfg:        cfg,
		Logger:     logger,
		Metrics:    m,
		State:      st,
		Runs:       runs,
		Job:        job,
		Loader:     loader,
		dispatcher: dispatcher,
		server:     srv,
	}
}

// Publisher returns a pull request publisher authenticated with the configured token.
func (a *App) Publisher(ctx context.Context) (*github.Publisher, error) {
	if a.Cfg.GitHub.Token == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN is not set")
	}
	client, err := github.NewPATClient(ctx, a.Cfg.GitHub.Token, a.Cfg.GitHub.APIURL, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}
	return github.NewPublisher(client, a.Logger), nil
}

// Start runs the HTTP server and blocks until it stops.
func (a *App) Start() error {
	a.Logger.Info("starting rev-ai",
		"server_port", a.Cfg.Server.Port,
		"max_jobs", a.Cfg.Review.MaxJobs,
		"provider", a.Cfg.AI.LLMProvider,
		"model", a.Cfg.AI.GeneratorModel,
		"database", a.Cfg.Database.Driver,
		"knowledge", a.Cfg.Knowledge.Enabled)

	if err := a.server.Start(); err != nil {
		a.Logger.Error("failed to start HTTP server", "error", err)
		return err
	}
	return nil
}

// Stop shuts down the server first and then drains the job queue.
func (a *App) Stop(ctx context.Context) error {
	a.Logger.Info("shutting down rev-ai services")

	serverErr := a.server.Stop(ctx)
	if serverErr != nil {
		a.Logger.Error("error during HTTP server shutdown", "error", serverErr)
	}

	a.dispatcher.Stop()

	if serverErr != nil {
		return serverErr
	}
	a.Logger.Info("rev-ai stopped successfully")
	return nil
}

// StopDispatcher stops the worker pool. It is safe to call more than once.
func (a *App) StopDispatcher() {
	a.dispatcher.Stop()
}
