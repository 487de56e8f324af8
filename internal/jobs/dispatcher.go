// Package jobs runs review requests in the background.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/montarelab/rev-ai/internal/core"
)

// ErrQueueFull is returned by Dispatch when no queue slot is free.
var ErrQueueFull = errors.New("job queue is full, cannot accept new review job")

// ErrStopped is returned by Dispatch after Stop.
var ErrStopped = errors.New("dispatcher is stopped")

const defaultQueueSize = 100

// dispatcher implements core.JobDispatcher with a fixed pool of workers
// draining a bounded queue of review requests.
type dispatcher struct {
	job        core.Job
	jobQueue   chan *core.ReviewRequest
	maxWorkers int
	wg         sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewDispatcher starts maxWorkers workers. If maxWorkers is 0 or negative,
// it defaults to 1.
func NewDispatcher(job core.Job, maxWorkers int, logger *slog.Logger) core.JobDispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &dispatcher{
		job:        job,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan *core.ReviewRequest, defaultQueueSize),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}
	d.startWorkers()
	return d
}

func (d *dispatcher) startWorkers() {
	for i := range d.maxWorkers {
		d.wg.Add(1)
		go d.startWorker(i)
	}
}

func (d *dispatcher) startWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Info("starting review worker", "id", workerID)

	for req := range d.jobQueue {
		d.process(workerID, req)
	}

	d.logger.Info("shutting down review worker", "id", workerID)
}

func (d *dispatcher) process(workerID int, req *core.ReviewRequest) {
	d.logger.Info("worker processing job",
		"worker_id", workerID,
		"task_id", req.Task.ID,
		"project", req.ProjectPath,
	)

	if err := d.job.Run(d.ctx, req); err != nil {
		d.logger.Error("review job failed",
			"task_id", req.Task.ID,
			"project", req.ProjectPath,
			"error", err,
		)
	}
}

// Dispatch queues req without blocking.
func (d *dispatcher) Dispatch(_ context.Context, req *core.ReviewRequest) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	d.logger.Info("queuing review job", "task_id", req.Task.ID, "project", req.ProjectPath)
	select {
	case d.jobQueue <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop stops accepting jobs and waits for queued and running jobs to finish.
func (d *dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobQueue)
	d.mu.Unlock()

	d.logger.Info("stopping dispatcher and waiting for jobs to finish")
	d.wg.Wait()
	d.cancel()
	d.logger.Info("all review jobs have finished")
}
