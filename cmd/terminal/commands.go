package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/montarelab/rev-ai/internal/app"
	"github.com/montarelab/rev-ai/internal/config"
	"github.com/montarelab/rev-ai/internal/core"
	"github.com/montarelab/rev-ai/internal/gitutil"
	"github.com/montarelab/rev-ai/internal/jobs"
	"github.com/montarelab/rev-ai/internal/report"
	"github.com/montarelab/rev-ai/internal/wire"
)

const recentRuns = 15

func initializeAppCmd(cfg *config.Config, sink *programSink) tea.Cmd {
	return func() tea.Msg {
		a, cleanup, err := wire.InitializeApp(context.Background(), cfg, sink)
		if err != nil {
			return appInitializedMsg{err: err}
		}
		return appInitializedMsg{app: a, cleanup: cleanup}
	}
}

// prepareReviewCmd validates the request and resolves the changed files so
// the progress bar knows its total before the reviewers start.
func prepareReviewCmd(ctx context.Context, a *app.App, req *core.ReviewRequest, output string) tea.Cmd {
	return func() tea.Msg {
		if err := jobs.ValidateRequest(req); err != nil {
			return reviewPreparedMsg{err: core.NewStageError(core.StageValidation, err)}
		}
		if output != "" {
			resolved, err := gitutil.ValidateOutputPath(output)
			if err != nil {
				return reviewPreparedMsg{err: core.NewStageError(core.StageValidation, err)}
			}
			output = resolved
		}
		if err := a.Job.Prepare(ctx, req); err != nil {
			return reviewPreparedMsg{err: core.NewStageError(core.StageGit, err)}
		}
		return reviewPreparedMsg{req: req, output: output}
	}
}

func runReviewCmd(ctx context.Context, a *app.App, req *core.ReviewRequest, output string) tea.Cmd {
	return func() tea.Msg {
		rep, err := a.Job.Execute(ctx, req)
		if err != nil {
			return reviewCompleteMsg{err: err}
		}
		if output != "" {
			meta := report.Meta{
				Model:     a.Cfg.AI.GeneratorModel,
				Provider:  a.Cfg.AI.LLMProvider,
				Generated: time.Now(),
			}
			if err := report.WriteMarkdown(output, rep, meta); err != nil {
				return reviewCompleteMsg{report: rep, err: fmt.Errorf("failed to write report: %w", err)}
			}
		}
		return reviewCompleteMsg{report: rep, output: output}
	}
}

func loadRunsCmd(a *app.App) tea.Cmd {
	return func() tea.Msg {
		runs, err := a.Runs.ListRuns(context.Background(), recentRuns)
		return runsLoadedMsg{runs: runs, err: err}
	}
}

func loadRunCmd(a *app.App, taskID string) tea.Cmd {
	return func() tea.Msg {
		if rep, ok := a.State.Result(taskID); ok {
			return runLoadedMsg{report: rep}
		}
		rep, err := a.Runs.GetRun(context.Background(), taskID)
		return runLoadedMsg{report: rep, err: err}
	}
}
