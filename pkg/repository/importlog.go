package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/clipmark/clipmark/pkg/domain"
)

// ImportLogRepository handles the append-only import audit trail
type ImportLogRepository struct {
	db *sqlx.DB
}

// importLogSQL represents an import log row for SQL operations
type importLogSQL struct {
	ID            int64      `db:"id"`
	SourceID      int64      `db:"source_id"`
	Status        string     `db:"status"`
	ItemsImported int        `db:"items_imported"`
	ItemsSkipped  int        `db:"items_skipped"`
	ErrorMessage  string     `db:"error_message"`
	StartedAt     time.Time  `db:"started_at"`
	CompletedAt   *time.Time `db:"completed_at"`
}

// NewImportLogRepository creates a new import log repository
func NewImportLogRepository(database *sqlx.DB) *ImportLogRepository {
	return &ImportLogRepository{db: database}
}

// StartImport creates a "running" log row and persists it immediately, so a
// crash mid-import leaves a visible trace. Returns the row ID for the later
// finalize call.
func (r *ImportLogRepository) StartImport(ctx context.Context, sourceID int64) (int64, error) {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	var id int64
	err := retrier.Do(ctx, func() error {
		query := `
			INSERT INTO import_logs (source_id, status, started_at)
			VALUES (?, ?, ?)
		`
		result, err := r.db.ExecContext(ctx, query, sourceID, domain.ImportStatusRunning, time.Now().UTC())
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("start import log: %w", err)}
		}

		id, err = result.LastInsertId()
		if err != nil {
			return &criticalError{err: fmt.Errorf("get insert id: %w", err)}
		}
		return nil
	})
	return id, err
}

// FinalizeImport transitions a running log row to its terminal status. The
// row is never touched again once completed_at is set.
func (r *ImportLogRepository) FinalizeImport(ctx context.Context, logID int64, status domain.ImportStatus, imported, skipped int, errMsg string) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			UPDATE import_logs
			SET status = ?, items_imported = ?, items_skipped = ?, error_message = ?, completed_at = ?
			WHERE id = ? AND completed_at IS NULL
		`
		_, err := r.db.ExecContext(ctx, query, status, imported, skipped, errMsg, time.Now().UTC(), logID)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("finalize import log: %w", err)}
		}
		return nil
	})
}

// GetImportLogs retrieves a source's audit records, most recent first
func (r *ImportLogRepository) GetImportLogs(ctx context.Context, sourceID int64, limit int) ([]domain.ImportLog, error) {
	query := `
		SELECT * FROM import_logs
		WHERE source_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`
	var sqlLogs []importLogSQL
	err := r.db.SelectContext(ctx, &sqlLogs, query, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("get import logs: %w", err)
	}

	logs := make([]domain.ImportLog, len(sqlLogs))
	for i, l := range sqlLogs {
		logs[i] = domain.ImportLog{
			ID:            l.ID,
			SourceID:      l.SourceID,
			Status:        domain.ImportStatus(l.Status),
			ItemsImported: l.ItemsImported,
			ItemsSkipped:  l.ItemsSkipped,
			ErrorMessage:  l.ErrorMessage,
			StartedAt:     l.StartedAt,
			CompletedAt:   l.CompletedAt,
		}
	}
	return logs, nil
}
