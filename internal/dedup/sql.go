package dedup

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLStore keeps the ledger in the reviewed_files table, so concurrent
// processes sharing a database also share deduplication.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore creates a ledger over an open database with the rev-ai schema.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) MarkReviewed(ctx context.Context, taskID, filePath string) error {
	if err := validate(taskID, filePath); err != nil {
		return err
	}

	query := s.db.Rebind(`
		INSERT INTO reviewed_files (task_id, file_path, reviewed_at_ms)
		VALUES (?, ?, ?)
		ON CONFLICT (task_id, file_path) DO NOTHING`)

	if _, err := s.db.ExecContext(ctx, query, taskID, filePath, time.Now().UnixMilli()); err != nil {
		return classify(fmt.Errorf("failed to mark %s reviewed: %w", filePath, err))
	}
	return nil
}

func (s *SQLStore) GetReviewed(ctx context.Context, taskID string) (map[string]struct{}, error) {
	query := s.db.Rebind(`SELECT file_path FROM reviewed_files WHERE task_id = ?`)

	var paths []string
	if err := s.db.SelectContext(ctx, &paths, query, taskID); err != nil {
		return nil, classify(fmt.Errorf("failed to read reviewed files: %w", err))
	}

	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set, nil
}

// classify tags connectivity failures with ErrUnavailable.
func classify(err error) error {
	if isUnavailable(err) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "connection refused")
}
