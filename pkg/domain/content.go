package domain

import "time"

// content types assigned on ingest
const (
	ContentTypeArticle = "article" // items derived from feed entries
	ContentTypeLink    = "link"    // items derived from a webpage source
)

// Content is one ingested or user-authored item. The engine never mutates
// a Content row after creation.
type Content struct {
	ID          int64
	UserID      int64
	SourceID    *int64 // nil for manually created items
	Title       string
	URL         string
	ContentText string
	ContentType string
	CreatedAt   time.Time
}

// CandidateItem is a parsed-but-not-yet-persisted unit extracted from a
// fetched source, pending dedup.
type CandidateItem struct {
	Title       string
	Link        string
	Description string
}
