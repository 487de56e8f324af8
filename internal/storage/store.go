// Package storage persists finished review runs.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/montarelab/rev-ai/internal/core"
)

// ErrRunNotFound is returned when no run exists for a task id.
var ErrRunNotFound = errors.New("review run not found")

// Store defines the interface for all run history operations.
type Store interface {
	SaveRun(ctx context.Context, report *core.Report) error
	GetRun(ctx context.Context, taskID string) (*core.Report, error)
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
}

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	TaskID       string       `json:"task_id"`
	ProjectPath  string       `json:"project_path"`
	SourceBranch string       `json:"source_branch"`
	TargetBranch string       `json:"target_branch"`
	Verdict      core.Verdict `json:"verdict"`
	Partial      bool         `json:"partial"`
	FinishedAt   time.Time    `json:"finished_at"`
}

type runRow struct {
	TaskID         string `db:"task_id"`
	ThreadID       string `db:"thread_id"`
	ProjectPath    string `db:"project_path"`
	SourceBranch   string `db:"source_branch"`
	TargetBranch   string `db:"target_branch"`
	Verdict        string `db:"verdict"`
	Partial        bool   `db:"partial"`
	SummaryJSON    string `db:"summary_json"`
	StructuredJSON string `db:"structured_json"`
	RawJSON        string `db:"raw_json"`
	OutcomesJSON   string `db:"outcomes_json"`
	StartedAtMS    int64  `db:"started_at_ms"`
	FinishedAtMS   int64  `db:"finished_at_ms"`
}

type sqlStore struct {
	db *sqlx.DB
}

// NewStore creates a new Store over an open database.
func NewStore(db *sqlx.DB) Store {
	return &sqlStore{db: db}
}

// SaveRun inserts or replaces the record of a finished run.
func (s *sqlStore) SaveRun(ctx context.Context, report *core.Report) error {
	if report == nil {
		return errors.New("report cannot be nil")
	}
	row, err := toRow(report)
	if err != nil {
		return err
	}

	query := s.db.Rebind(`
		INSERT INTO review_runs (
			task_id, thread_id, project_path, source_branch, target_branch, verdict, partial,
			summary_json, structured_json, raw_json, outcomes_json, started_at_ms, finished_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (task_id) DO UPDATE SET
			verdict = excluded.verdict,
			partial = excluded.partial,
			summary_json = excluded.summary_json,
			structured_json = excluded.structured_json,
			raw_json = excluded.raw_json,
			outcomes_json = excluded.outcomes_json,
			finished_at_ms = excluded.finished_at_ms`)

	_, err = s.db.ExecContext(ctx, query,
		row.TaskID, row.ThreadID, row.ProjectPath, row.SourceBranch, row.TargetBranch, row.Verdict, row.Partial,
		row.SummaryJSON, row.StructuredJSON, row.RawJSON, row.OutcomesJSON, row.StartedAtMS, row.FinishedAtMS)
	if err != nil {
		return fmt.Errorf("failed to save review run %s: %w", report.Task.ID, err)
	}
	return nil
}

// GetRun loads a stored run by task id.
func (s *sqlStore) GetRun(ctx context.Context, taskID string) (*core.Report, error) {
	query := s.db.Rebind(`SELECT * FROM review_runs WHERE task_id = ?`)

	var row runRow
	if err := s.db.GetContext(ctx, &row, query, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, taskID)
		}
		return nil, fmt.Errorf("failed to load review run %s: %w", taskID, err)
	}
	return fromRow(&row)
}

// ListRuns returns the most recently finished runs.
func (s *sqlStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	query := s.db.Rebind(`
		SELECT task_id, project_path, source_branch, target_branch, verdict, partial, finished_at_ms
		FROM review_runs
		ORDER BY finished_at_ms DESC
		LIMIT ?`)

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list review runs: %w", err)
	}

	runs := make([]RunSummary, 0, len(rows))
	for _, r := range rows {
		runs = append(runs, RunSummary{
			TaskID:       r.TaskID,
			ProjectPath:  r.ProjectPath,
			SourceBranch: r.SourceBranch,
			TargetBranch: r.TargetBranch,
			Verdict:      core.Verdict(r.Verdict),
			Partial:      r.Partial,
			FinishedAt:   time.UnixMilli(r.FinishedAtMS),
		})
	}
	return runs, nil
}

func toRow(report *core.Report) (*runRow, error) {
	summary := report.Summary
	if summary == nil {
		summary = &core.Summary{}
	}

	encode := func(name string, v any) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode %s: %w", name, err)
		}
		return string(b), nil
	}

	summaryJSON, err := encode("summary", summary)
	if err != nil {
		return nil, err
	}
	structuredJSON, err := encode("structured results", nonNil(report.Structured))
	if err != nil {
		return nil, err
	}
	rawJSON, err := encode("raw messages", nonNil(report.Raw))
	if err != nil {
		return nil, err
	}
	outcomesJSON, err := encode("outcomes", nonNil(report.Outcomes))
	if err != nil {
		return nil, err
	}

	return &runRow{
		TaskID:         report.Task.ID,
		ThreadID:       report.Task.ThreadID,
		ProjectPath:    report.ProjectPath,
		SourceBranch:   report.SourceBranch,
		TargetBranch:   report.TargetBranch,
		Verdict:        string(summary.Verdict),
		Partial:        summary.Partial,
		SummaryJSON:    summaryJSON,
		StructuredJSON: structuredJSON,
		RawJSON:        rawJSON,
		OutcomesJSON:   outcomesJSON,
		StartedAtMS:    report.StartedAt.UnixMilli(),
		FinishedAtMS:   report.FinishedAt.UnixMilli(),
	}, nil
}

func fromRow(row *runRow) (*core.Report, error) {
	report := &core.Report{
		Task:         core.Task{ID: row.TaskID, ThreadID: row.ThreadID, CreatedAt: time.UnixMilli(row.StartedAtMS)},
		ProjectPath:  row.ProjectPath,
		SourceBranch: row.SourceBranch,
		TargetBranch: row.TargetBranch,
		Summary:      &core.Summary{},
		StartedAt:    time.UnixMilli(row.StartedAtMS),
		FinishedAt:   time.UnixMilli(row.FinishedAtMS),
	}

	fields := []struct {
		name string
		data string
		dst  any
	}{
		{"summary", row.SummaryJSON, report.Summary},
		{"structured results", row.StructuredJSON, &report.Structured},
		{"raw messages", row.RawJSON, &report.Raw},
		{"outcomes", row.OutcomesJSON, &report.Outcomes},
	}
	for _, f := range fields {
		if err := json.Unmarshal([]byte(f.data), f.dst); err != nil {
			return nil, fmt.Errorf("failed to decode %s of run %s: %w", f.name, row.TaskID, err)
		}
	}
	return report, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
