package core

import (
	"errors"
	"fmt"
)

var (
	// ErrReviewTimeout marks a reviewer invocation that exceeded its deadline.
	ErrReviewTimeout = errors.New("review timed out")
	// ErrAlreadyReviewed is returned by a reviewer that skipped a file recorded in the dedup ledger.
	ErrAlreadyReviewed = errors.New("file already reviewed for task")
)

// Stage names the part of the pipeline an orchestration-level error came from.
type Stage string

const (
	StageValidation  Stage = "validation"
	StageGit         Stage = "git"
	StageReview      Stage = "review"
	StageAggregation Stage = "aggregation"
)

// StageError is an orchestration-level failure tagged with its stage.
type StageError struct {
	Stage Stage
	Err   error
}

// NewStageError wraps err with the stage it happened in.
func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage carried by err, or "" when err is not a StageError.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
