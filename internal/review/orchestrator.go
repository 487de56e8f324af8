package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/montarelab/rev-ai/internal/core"
	"github.com/montarelab/rev-ai/internal/metrics"
)

// ReviewerFactory builds the reviewer for one file of a task.
type ReviewerFactory func(task core.Task, file core.ChangedFile) (core.Reviewer, error)

// ReportSink retains finished reports, for example the run store or the
// in-memory task state.
type ReportSink interface {
	SaveRun(ctx context.Context, report *core.Report) error
}

// Orchestrator runs one review end to end: reviewers, runner, aggregator.
type Orchestrator struct {
	factory    ReviewerFactory
	runner     *Runner
	aggregator *Aggregator
	sinks      []ReportSink
	observer   core.Observer
	metrics    *metrics.Metrics
	keepRaw    bool
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSinks adds report sinks.
func WithSinks(sinks ...ReportSink) Option {
	return func(o *Orchestrator) { o.sinks = append(o.sinks, sinks...) }
}

// WithObserver receives the run-level events (aggregating, done).
func WithObserver(obs core.Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithMetrics records run counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithoutRaw drops transcripts from the returned report.
func WithoutRaw() Option {
	return func(o *Orchestrator) { o.keepRaw = false }
}

func NewOrchestrator(factory ReviewerFactory, runner *Runner, aggregator *Aggregator, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		panic("logger cannot be nil")
	}
	o := &Orchestrator{
		factory:    factory,
		runner:     runner,
		aggregator: aggregator,
		keepRaw:    true,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Review runs req. Individual file failures are reported in the outcomes and
// mark the summary partial; only an infrastructure failure returns an error,
// and that error is a *core.StageError.
func (o *Orchestrator) Review(ctx context.Context, req core.ReviewRequest) (*core.Report, error) {
	if req.Task.ID == "" {
		req.Task = core.NewTask()
	}
	task := req.Task
	logger := o.logger.With("task_id", task.ID)

	o.metrics.ReviewStarted()
	defer o.metrics.ReviewFinished()

	started := time.Now()
	logger.Info("review started",
		"project", req.ProjectPath,
		"source", req.SourceBranch,
		"target", req.TargetBranch,
		"files", len(req.Files))

	jobs, err := o.buildJobs(req, logger)
	if err != nil {
		o.metrics.RecordReview("failed")
		return nil, core.NewStageError(core.StageReview, err)
	}

	result := o.runner.Run(ctx, jobs)

	failed := make([]string, 0)
	for _, f := range result.Failed() {
		failed = append(failed, f.FilePath)
	}
	skipped := skippedFiles(result)
	if len(skipped) > 0 {
		logger.Warn("files were skipped as already reviewed without a result in this run", "files", skipped)
	}

	o.emit(core.ProgressEvent{TaskID: task.ID, Kind: core.EventAggregating})
	notReviewed := append(slices.Clone(failed), skipped...)
	summary, err := o.aggregator.SummarizeWithFailures(ctx, result.Structured, notReviewed)
	if err != nil {
		o.metrics.RecordReview("failed")
		o.emit(core.ProgressEvent{TaskID: task.ID, Kind: core.EventDone, Err: err})
		return nil, core.NewStageError(core.StageAggregation, err)
	}
	summary.FilesFailed = failed
	summary.FilesSkipped = skipped
	summary.Partial = len(notReviewed) > 0

	report := &core.Report{
		Task:         task,
		ProjectPath:  req.ProjectPath,
		SourceBranch: req.SourceBranch,
		TargetBranch: req.TargetBranch,
		Summary:      summary,
		Structured:   result.Structured,
		Outcomes:     result.Outcomes,
		StartedAt:    started,
		FinishedAt:   time.Now(),
	}
	if o.keepRaw {
		report.Raw = result.Raw
	}

	for _, sink := range o.sinks {
		if err := sink.SaveRun(ctx, report); err != nil {
			logger.Warn("failed to retain review report", "error", err)
		}
	}

	status := "completed"
	if summary.Partial {
		status = "partial"
	}
	o.metrics.RecordReview(status)
	o.emit(core.ProgressEvent{TaskID: task.ID, Kind: core.EventDone, Duration: time.Since(started)})

	logger.Info("review finished",
		"status", status,
		"verdict", summary.Verdict,
		"completed", len(result.Structured),
		"failed", len(failed),
		"duration", time.Since(started))
	return report, nil
}

func (o *Orchestrator) buildJobs(req core.ReviewRequest, logger *slog.Logger) ([]FileJob, error) {
	if o.factory == nil {
		return nil, errors.New("no reviewer factory configured")
	}
	seen := make(map[string]struct{}, len(req.Files))
	jobs := make([]FileJob, 0, len(req.Files))
	for _, file := range req.Files {
		if _, dup := seen[file.FilePath]; dup {
			logger.Warn("duplicate changed file in request, ignoring", "file", file.FilePath)
			continue
		}
		seen[file.FilePath] = struct{}{}

		reviewer, err := o.factory(req.Task, file)
		if err != nil {
			return nil, fmt.Errorf("failed to build reviewer for %s: %w", file.FilePath, err)
		}
		jobs = append(jobs, FileJob{
			Input: core.ReviewInput{
				Task:         req.Task,
				File:         file,
				ProjectRoot:  req.ProjectPath,
				SourceBranch: req.SourceBranch,
				Instructions: req.Instructions,
			},
			Reviewer: reviewer,
		})
	}
	return jobs, nil
}

// skippedFiles lists the files the dedup ledger turned away that have no
// structured result in this run.
func skippedFiles(result *RunResult) []string {
	reviewed := make(map[string]struct{}, len(result.Structured))
	for _, r := range result.Structured {
		reviewed[r.FilePath] = struct{}{}
	}
	var skipped []string
	for _, o := range result.Outcomes {
		if o.Status != core.FileSkipped {
			continue
		}
		if _, ok := reviewed[o.FilePath]; !ok {
			skipped = append(skipped, o.FilePath)
		}
	}
	slices.Sort(skipped)
	return skipped
}

func (o *Orchestrator) emit(ev core.ProgressEvent) {
	if o.observer == nil {
		return
	}
	ev.At = time.Now()
	o.observer.OnEvent(ev)
}
