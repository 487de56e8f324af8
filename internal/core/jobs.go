// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import (
	"context"
)

// Reviewer analyses a single changed file and returns its transcript and findings.
//
//go:generate mockgen -destination=../../mocks/mock_reviewer.go -package=mocks . Reviewer
type Reviewer interface {
	Review(ctx context.Context, in ReviewInput) (*RawMessage, *StructuredResult, error)
}

// ReviewerFunc adapts a function to the Reviewer interface.
type ReviewerFunc func(ctx context.Context, in ReviewInput) (*RawMessage, *StructuredResult, error)

// Review calls f.
func (f ReviewerFunc) Review(ctx context.Context, in ReviewInput) (*RawMessage, *StructuredResult, error) {
	return f(ctx, in)
}

// JobDispatcher defines the contract for a system that can accept and queue
// background review jobs. This interface decouples the request source (the
// HTTP API) from the job execution mechanism.
type JobDispatcher interface {
	// Dispatch queues a review request for processing.
	// It returns an error if the job cannot be queued, for example, if the
	// queue is full, providing a mechanism for backpressure.
	Dispatch(ctx context.Context, req *ReviewRequest) error
	// Stop drains the queue and waits for in-flight jobs.
	Stop()
}

// Job represents a single, executable unit of work processed by the dispatcher.
type Job interface {
	// Run executes the job's logic for one review request.
	Run(ctx context.Context, req *ReviewRequest) error
}
