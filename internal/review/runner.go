// Package review runs the per-file reviewers of a task concurrently,
// aggregates their findings and orchestrates a full review run.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/errgroup"

	"github.com/montarelab/rev-ai/internal/core"
	"github.com/montarelab/rev-ai/internal/metrics"
)

// DefaultFileTimeout bounds a single reviewer invocation.
const DefaultFileTimeout = 5 * time.Minute

// FileJob pairs a reviewer with the input it reviews.
type FileJob struct {
	Input    core.ReviewInput
	Reviewer core.Reviewer
}

// RunResult is what a task group run produced. Raw and Structured hold one
// entry per completed file, in completion order and index-aligned.
type RunResult struct {
	Raw        []core.RawMessage
	Structured []core.StructuredResult
	Outcomes   []core.FileOutcome
}

// Failed returns the outcomes with status failed.
func (r *RunResult) Failed() []core.FileOutcome {
	var out []core.FileOutcome
	for _, o := range r.Outcomes {
		if o.Status == core.FileFailed {
			out = append(out, o)
		}
	}
	return out
}

// RunnerConfig tunes a Runner.
type RunnerConfig struct {
	FileTimeout    time.Duration
	MaxConcurrency int
}

// Runner launches one goroutine per file and waits for all of them.
type Runner struct {
	cfg      RunnerConfig
	observer core.Observer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewRunner creates a Runner. observer and m may be nil.
func NewRunner(cfg RunnerConfig, observer core.Observer, m *metrics.Metrics, logger *slog.Logger) *Runner {
	if logger == nil {
		panic("logger cannot be nil")
	}
	if cfg.FileTimeout <= 0 {
		cfg.FileTimeout = DefaultFileTimeout
	}
	return &Runner{cfg: cfg, observer: observer, metrics: m, logger: logger}
}

type completed struct {
	raw        core.RawMessage
	structured core.StructuredResult
}

// Run reviews every job concurrently and returns once all of them have
// terminated. A failing, panicking or timed-out reviewer only affects its own
// file; siblings keep running.
func (r *Runner) Run(ctx context.Context, jobs []FileJob) *RunResult {
	results := make(chan completed, len(jobs))
	outcomes := make(chan core.FileOutcome, len(jobs))

	var g errgroup.Group
	if r.cfg.MaxConcurrency > 0 {
		g.SetLimit(r.cfg.MaxConcurrency)
	}
	for _, job := range jobs {
		g.Go(func() error {
			outcome, res := r.runOne(ctx, job)
			if res != nil {
				results <- *res
			}
			outcomes <- outcome
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	close(outcomes)

	rr := &RunResult{
		Raw:        make([]core.RawMessage, 0, len(jobs)),
		Structured: make([]core.StructuredResult, 0, len(jobs)),
		Outcomes:   make([]core.FileOutcome, 0, len(jobs)),
	}
	for res := range results {
		rr.Raw = append(rr.Raw, res.raw)
		rr.Structured = append(rr.Structured, res.structured)
	}
	for o := range outcomes {
		rr.Outcomes = append(rr.Outcomes, o)
	}
	return rr
}

func (r *Runner) runOne(ctx context.Context, job FileJob) (core.FileOutcome, *completed) {
	path := job.Input.File.FilePath
	taskID := job.Input.Task.ID
	logger := r.logger.With("task_id", taskID, "file", path)

	r.emit(core.ProgressEvent{TaskID: taskID, FilePath: path, Kind: core.EventFileStarted})
	start := time.Now()

	fileCtx, cancel := context.WithTimeout(ctx, r.cfg.FileTimeout)
	defer cancel()

	raw, structured, err := r.invoke(fileCtx, job)
	if err != nil && errors.Is(fileCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w after %s: %w", core.ErrReviewTimeout, r.cfg.FileTimeout, err)
	}
	if err == nil && (raw == nil || structured == nil) {
		err = errors.New("reviewer returned no result")
	}

	outcome := core.FileOutcome{FilePath: path, Duration: time.Since(start)}
	ev := core.ProgressEvent{TaskID: taskID, FilePath: path, Duration: outcome.Duration}

	switch {
	case errors.Is(err, core.ErrAlreadyReviewed):
		outcome.Status = core.FileSkipped
		ev.Kind = core.EventFileSkipped
		r.metrics.RecordDedupSkip()
		logger.Info("file already reviewed, skipping")
	case err != nil:
		outcome.Status = core.FileFailed
		outcome.Err = err
		outcome.Error = err.Error()
		ev.Kind, ev.Err = core.EventFileFailed, err
		logger.Error("file review failed", "duration", outcome.Duration, "error", err)
	default:
		outcome.Status = core.FileCompleted
		ev.Kind = core.EventFileCompleted
		logger.Info("file review completed", "duration", outcome.Duration, "issues", len(structured.Issues))
	}
	r.metrics.RecordFileReview(string(outcome.Status), outcome.Duration)
	r.emit(ev)

	if outcome.Status != core.FileCompleted {
		return outcome, nil
	}
	if structured.FilePath == "" {
		structured.FilePath = path
	}
	if raw.FilePath == "" {
		raw.FilePath = path
	}
	return outcome, &completed{raw: *raw, structured: *structured}
}

// invoke runs the reviewer in its own goroutine so a reviewer that ignores
// ctx cannot hold the barrier past its deadline. A panic becomes an error.
func (r *Runner) invoke(ctx context.Context, job FileJob) (*core.RawMessage, *core.StructuredResult, error) {
	type result struct {
		raw        *core.RawMessage
		structured *core.StructuredResult
		err        error
	}
	resultCh := make(chan result, 1)

	go func() {
		var res result
		var pc panics.Catcher
		pc.Try(func() {
			res.raw, res.structured, res.err = job.Reviewer.Review(ctx, job.Input)
		})
		if rec := pc.Recovered(); rec != nil {
			res = result{err: fmt.Errorf("reviewer panicked: %w", rec.AsError())}
		}
		resultCh <- res
	}()

	select {
	case res := <-resultCh:
		return res.raw, res.structured, res.err
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (r *Runner) emit(ev core.ProgressEvent) {
	if r.observer == nil {
		return
	}
	ev.At = time.Now()
	r.observer.OnEvent(ev)
}
