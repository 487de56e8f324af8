// Package dedup records which files have already been reviewed within a task.
//
// The ledger is a set of file paths per task id. Marking is an atomic upsert:
// concurrent reviewers marking different files of the same task never lose
// each other's entries, and marking the same file twice is a no-op.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrUnavailable reports a store outage, as opposed to a bad request.
var ErrUnavailable = errors.New("dedup store unavailable")

// Store is the per-task reviewed-file ledger.
//
//go:generate mockgen -destination=../../mocks/mock_dedup_store.go -package=mocks . Store
type Store interface {
	// MarkReviewed idempotently records filePath as reviewed under taskID.
	MarkReviewed(ctx context.Context, taskID, filePath string) error
	// GetReviewed returns the set of files recorded for taskID, possibly empty.
	GetReviewed(ctx context.Context, taskID string) (map[string]struct{}, error)
}

func validate(taskID, filePath string) error {
	if taskID == "" {
		return errors.New("task id cannot be empty")
	}
	if filePath == "" {
		return errors.New("file path cannot be empty")
	}
	return nil
}

// ReviewedOrEmpty reads the ledger for taskID. When the store is unavailable
// it logs a warning and reports an empty set so the caller can proceed.
func ReviewedOrEmpty(ctx context.Context, store Store, taskID string, logger *slog.Logger) (map[string]struct{}, error) {
	reviewed, err := store.GetReviewed(ctx, taskID)
	if err == nil {
		return reviewed, nil
	}
	if errors.Is(err, ErrUnavailable) {
		logger.Warn("dedup store unavailable, treating no files as reviewed", "task_id", taskID, "error", err)
		return map[string]struct{}{}, nil
	}
	return nil, fmt.Errorf("failed to read reviewed files: %w", err)
}

// MarkOrWarn records filePath. An unavailable store only logs a warning.
func MarkOrWarn(ctx context.Context, store Store, taskID, filePath string, logger *slog.Logger) error {
	err := store.MarkReviewed(ctx, taskID, filePath)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		logger.Warn("dedup store unavailable, file not recorded", "task_id", taskID, "file", filePath, "error", err)
		return nil
	}
	return fmt.Errorf("failed to mark %s reviewed: %w", filePath, err)
}
