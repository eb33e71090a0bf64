package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/clipmark/clipmark/pkg/domain"
)

// ContentRepository handles content item database operations
type ContentRepository struct {
	db *sqlx.DB
}

// contentSQL represents a content item for SQL operations
type contentSQL struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	SourceID    *int64    `db:"source_id"`
	Title       string    `db:"title"`
	URL         string    `db:"url"`
	ContentText string    `db:"content_text"`
	ContentType string    `db:"content_type"`
	CreatedAt   time.Time `db:"created_at"`
}

// NewContentRepository creates a new content repository
func NewContentRepository(database *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: database}
}

// CreateContent inserts a new content item
func (r *ContentRepository) CreateContent(ctx context.Context, c *domain.Content) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	sqlContent := &contentSQL{
		UserID:      c.UserID,
		SourceID:    c.SourceID,
		Title:       c.Title,
		URL:         c.URL,
		ContentText: c.ContentText,
		ContentType: c.ContentType,
	}

	return retrier.Do(ctx, func() error {
		query := `
			INSERT INTO contents (user_id, source_id, title, url, content_text, content_type)
			VALUES (:user_id, :source_id, :title, :url, :content_text, :content_type)
		`
		result, err := r.db.NamedExecContext(ctx, query, sqlContent)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("create content: %w", err)}
		}

		id, err := result.LastInsertId()
		if err != nil {
			return &criticalError{err: fmt.Errorf("get insert id: %w", err)}
		}
		c.ID = id
		return nil
	})
}

// ContentExists reports whether a content item with the given URL already
// exists for the user. This pre-check is the only dedup guarantee, there is
// no uniqueness constraint backing it.
func (r *ContentRepository) ContentExists(ctx context.Context, url string, userID int64) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM contents WHERE url = ? AND user_id = ?", url, userID)
	if err != nil {
		return false, fmt.Errorf("check content exists: %w", err)
	}
	return count > 0, nil
}

// GetContents retrieves a user's content items, newest first
func (r *ContentRepository) GetContents(ctx context.Context, userID int64, limit, offset int) ([]domain.Content, error) {
	query := `
		SELECT * FROM contents
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	var sqlContents []contentSQL
	err := r.db.SelectContext(ctx, &sqlContents, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get contents: %w", err)
	}

	contents := make([]domain.Content, len(sqlContents))
	for i, c := range sqlContents {
		contents[i] = domain.Content{
			ID:          c.ID,
			UserID:      c.UserID,
			SourceID:    c.SourceID,
			Title:       c.Title,
			URL:         c.URL,
			ContentText: c.ContentText,
			ContentType: c.ContentType,
			CreatedAt:   c.CreatedAt,
		}
	}
	return contents, nil
}
