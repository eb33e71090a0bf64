package domain

import "time"

// SourceType identifies how a content source is fetched and parsed
type SourceType string

// supported source types
const (
	SourceTypeRSS     SourceType = "rss"
	SourceTypeWebpage SourceType = "webpage"
)

// ContentSource represents a per-user subscription to pull content from.
// Health fields (LastFetched, ErrorCount, LastError) are owned by the
// importer; everything else is set by the user via the API.
type ContentSource struct {
	ID          int64
	UserID      int64
	Name        string
	URL         string
	SourceType  SourceType
	Active      bool
	LastFetched *time.Time
	ErrorCount  int
	LastError   string
	CreatedAt   time.Time
}
