package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/clipmark/clipmark/pkg/domain"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// SourceRepository handles content source database operations
type SourceRepository struct {
	db *sqlx.DB
}

// sourceSQL represents a content source for SQL operations
type sourceSQL struct {
	ID          int64      `db:"id"`
	UserID      int64      `db:"user_id"`
	Name        string     `db:"name"`
	URL         string     `db:"url"`
	SourceType  string     `db:"source_type"`
	Active      bool       `db:"active"`
	LastFetched *time.Time `db:"last_fetched"`
	ErrorCount  int        `db:"error_count"`
	LastError   string     `db:"last_error"`
	CreatedAt   time.Time  `db:"created_at"`
}

// NewSourceRepository creates a new source repository
func NewSourceRepository(database *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: database}
}

// CreateSource inserts a new content source
func (r *SourceRepository) CreateSource(ctx context.Context, src *domain.ContentSource) error {
	sqlSrc := &sourceSQL{
		UserID:     src.UserID,
		Name:       src.Name,
		URL:        src.URL,
		SourceType: string(src.SourceType),
		Active:     src.Active,
	}

	query := `
		INSERT INTO content_sources (user_id, name, url, source_type, active)
		VALUES (:user_id, :name, :url, :source_type, :active)
	`
	result, err := r.db.NamedExecContext(ctx, query, sqlSrc)
	if err != nil {
		return fmt.Errorf("create source: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}

	src.ID = id
	return nil
}

// GetSource retrieves a source by ID
func (r *SourceRepository) GetSource(ctx context.Context, id int64) (*domain.ContentSource, error) {
	var sqlSrc sourceSQL
	err := r.db.GetContext(ctx, &sqlSrc, "SELECT * FROM content_sources WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	return r.toDomainSource(&sqlSrc), nil
}

// GetSources retrieves all sources owned by a user
func (r *SourceRepository) GetSources(ctx context.Context, userID int64) ([]domain.ContentSource, error) {
	var sqlSources []sourceSQL
	err := r.db.SelectContext(ctx, &sqlSources,
		"SELECT * FROM content_sources WHERE user_id = ? ORDER BY name", userID)
	if err != nil {
		return nil, fmt.Errorf("get sources: %w", err)
	}

	sources := make([]domain.ContentSource, len(sqlSources))
	for i, s := range sqlSources {
		sources[i] = *r.toDomainSource(&s)
	}
	return sources, nil
}

// GetDueSources retrieves sources eligible for a scheduled run: active,
// below the error threshold and not fetched since the cutoff. Ordered
// oldest-fetched first with never-fetched sources at the head, so the run
// order is reproducible.
func (r *SourceRepository) GetDueSources(ctx context.Context, cutoff time.Time, maxErrors int) ([]domain.ContentSource, error) {
	query := `
		SELECT * FROM content_sources
		WHERE active = 1
		AND error_count < ?
		AND (last_fetched IS NULL OR last_fetched < ?)
		ORDER BY last_fetched IS NOT NULL, last_fetched ASC, id ASC
	`
	var sqlSources []sourceSQL
	err := r.db.SelectContext(ctx, &sqlSources, query, maxErrors, cutoff)
	if err != nil {
		return nil, fmt.Errorf("get due sources: %w", err)
	}

	sources := make([]domain.ContentSource, len(sqlSources))
	for i, s := range sqlSources {
		sources[i] = *r.toDomainSource(&s)
	}
	return sources, nil
}

// UpdateSourceFetched records the outcome of an import attempt: last_fetched
// is always advanced, error_count resets on success and increments on
// failure with the failure message kept in last_error.
func (r *SourceRepository) UpdateSourceFetched(ctx context.Context, sourceID int64, success bool, errMsg string) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		var query string
		var args []interface{}
		if success {
			query = `
				UPDATE content_sources
				SET last_fetched = ?, error_count = 0, last_error = ''
				WHERE id = ?
			`
			args = []interface{}{time.Now().UTC(), sourceID}
		} else {
			query = `
				UPDATE content_sources
				SET last_fetched = ?, error_count = error_count + 1, last_error = ?
				WHERE id = ?
			`
			args = []interface{}{time.Now().UTC(), errMsg, sourceID}
		}

		_, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("update source fetched: %w", err)}
		}
		return nil
	})
}

// UpdateSourceActive enables or disables a source. Disabling via the API is
// also the manual recovery path for sources parked by the error threshold,
// so reactivation clears the error counters.
func (r *SourceRepository) UpdateSourceActive(ctx context.Context, sourceID int64, active bool) error {
	query := "UPDATE content_sources SET active = ? WHERE id = ?"
	if active {
		query = "UPDATE content_sources SET active = ?, error_count = 0, last_error = '' WHERE id = ?"
	}
	res, err := r.db.ExecContext(ctx, query, active, sourceID)
	if err != nil {
		return fmt.Errorf("update source active: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSource removes a source; its import logs go with it, ingested
// content stays behind with source_id cleared
func (r *SourceRepository) DeleteSource(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM content_sources WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// toDomainSource converts sourceSQL to domain.ContentSource
func (r *SourceRepository) toDomainSource(s *sourceSQL) *domain.ContentSource {
	return &domain.ContentSource{
		ID:          s.ID,
		UserID:      s.UserID,
		Name:        s.Name,
		URL:         s.URL,
		SourceType:  domain.SourceType(s.SourceType),
		Active:      s.Active,
		LastFetched: s.LastFetched,
		ErrorCount:  s.ErrorCount,
		LastError:   s.LastError,
		CreatedAt:   s.CreatedAt,
	}
}
