package main

import (
	"github.com/montarelab/rev-ai/internal/app"
	"github.com/montarelab/rev-ai/internal/core"
	"github.com/montarelab/rev-ai/internal/storage"
)

// Indicates that the core application services have been initialized.
type appInitializedMsg struct {
	app     *app.App
	cleanup func()
	err     error
}

// Indicates that the changed files of a review request are known.
type reviewPreparedMsg struct {
	req    *core.ReviewRequest
	output string
	err    error
}

// A progress event forwarded from the running review.
type progressMsg core.ProgressEvent

// Indicates that a review run has finished, successfully or not.
type reviewCompleteMsg struct {
	report *core.Report
	output string
	err    error
}

type runsLoadedMsg struct {
	runs []storage.RunSummary
	err  error
}

type runLoadedMsg struct {
	report *core.Report
	err    error
}

// A generic error message for reporting failures from commands.
type errorMsg struct{ err error }

func (e errorMsg) Error() string {
	return e.err.Error()
}
