package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/montarelab/rev-ai/internal/config"
	"github.com/montarelab/rev-ai/internal/core"
	"github.com/montarelab/rev-ai/internal/gitutil"
	"github.com/montarelab/rev-ai/internal/state"
)

// Reviewer runs one fully prepared review request.
type Reviewer interface {
	Review(ctx context.Context, req core.ReviewRequest) (*core.Report, error)
}

// ReviewJob prepares a request from the local repository and hands it to
// the orchestrator. It implements core.Job for the dispatcher and is also
// called synchronously by the CLI.
type ReviewJob struct {
	reviewer Reviewer
	state    *state.Manager
	fetch    bool
	logger   *slog.Logger
}

// NewReviewJob creates a ReviewJob. st may be nil.
func NewReviewJob(reviewer Reviewer, st *state.Manager, fetch bool, logger *slog.Logger) *ReviewJob {
	if reviewer == nil {
		panic("reviewer cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &ReviewJob{reviewer: reviewer, state: st, fetch: fetch, logger: logger}
}

// Run implements core.Job. The outcome is recorded in the task state.
func (j *ReviewJob) Run(ctx context.Context, req *core.ReviewRequest) error {
	_, err := j.Execute(ctx, req)
	return err
}

// Execute validates req, collects the changed files, and runs the review.
// Every returned error is a *core.StageError.
func (j *ReviewJob) Execute(ctx context.Context, req *core.ReviewRequest) (*core.Report, error) {
	if req != nil && req.Task.ID == "" {
		req.Task = core.NewTask()
	}

	report, err := j.execute(ctx, req)
	if err != nil {
		if req != nil && j.state != nil {
			j.state.SetStatus(req.Task.ID, state.StatusFailed, err.Error())
		}
		return nil, err
	}
	if j.state != nil {
		j.state.SetResult(report)
		j.state.SetStatus(report.Task.ID, state.StatusCompleted, "")
	}
	return report, nil
}

func (j *ReviewJob) execute(ctx context.Context, req *core.ReviewRequest) (*core.Report, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, core.NewStageError(core.StageValidation, err)
	}
	if j.state != nil {
		j.state.SetStatus(req.Task.ID, state.StatusRunning, "")
	}
	if err := j.Prepare(ctx, req); err != nil {
		return nil, core.NewStageError(core.StageGit, err)
	}
	return j.reviewer.Review(ctx, *req)
}

// Prepare fills req.Files and req.Instructions from the repository at
// req.ProjectPath. Files already present on the request are kept as is.
func (j *ReviewJob) Prepare(ctx context.Context, req *core.ReviewRequest) error {
	logger := j.logger.With("task_id", req.Task.ID)

	repo, err := gitutil.Open(req.ProjectPath, logger)
	if err != nil {
		return err
	}
	if j.fetch {
		if err := repo.Fetch(ctx); err != nil {
			logger.Warn("fetch failed, reviewing local refs", "error", err)
		}
	}
	for _, branch := range []string{req.SourceBranch, req.TargetBranch} {
		if err := repo.ValidateBranch(ctx, branch); err != nil {
			return err
		}
	}

	repoCfg, err := config.LoadRepoConfig(req.ProjectPath)
	switch {
	case errors.Is(err, config.ErrConfigNotFound):
		logger.Debug("no repository config, using defaults", "file", config.RepoConfigFile)
	case err != nil:
		return fmt.Errorf("failed to load repository config: %w", err)
	}
	if req.Instructions == "" {
		req.Instructions = strings.Join(repoCfg.CustomInstructions, "\n")
	}

	if len(req.Files) > 0 {
		return nil
	}
	files, err := repo.ChangedFiles(ctx, req.SourceBranch, req.TargetBranch, repoCfg)
	if err != nil {
		return fmt.Errorf("failed to collect changed files: %w", err)
	}
	req.Files = files
	return nil
}
