package importer

import (
	"context"
	"errors"

	"github.com/go-pkgz/lgr"

	"github.com/clipmark/clipmark/pkg/domain"
	"github.com/clipmark/clipmark/pkg/repository"
)

// titleLimit caps content titles on ingest
const titleLimit = 200

// result messages surfaced to callers and recorded in import logs
const (
	msgNotFoundOrInactive = "Source not found or inactive"
	msgInvalidFeed        = "Invalid RSS feed"
	msgUnknownSourceType  = "Unknown source type"
)

// Result is the structured outcome of one import attempt, returned both to
// the scheduler and to on-demand API callers
type Result struct {
	Status        domain.ImportStatus `json:"status"`
	Message       string              `json:"message,omitempty"`
	ItemsImported int                 `json:"items_imported"`
	ItemsSkipped  int                 `json:"items_skipped"`
}

// SourceStore provides source lookup and health updates
type SourceStore interface {
	GetSource(ctx context.Context, id int64) (*domain.ContentSource, error)
	UpdateSourceFetched(ctx context.Context, sourceID int64, success bool, errMsg string) error
}

// ContentStore provides content persistence and the dedup pre-check
type ContentStore interface {
	CreateContent(ctx context.Context, c *domain.Content) error
	ContentExists(ctx context.Context, url string, userID int64) (bool, error)
}

// ImportLogStore provides the append-only audit trail
type ImportLogStore interface {
	StartImport(ctx context.Context, sourceID int64) (int64, error)
	FinalizeImport(ctx context.Context, logID int64, status domain.ImportStatus, imported, skipped int, errMsg string) error
}

// Fetcher performs a single bounded-time retrieval of a source URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// sourceHandler imports one already-validated source of a specific type
type sourceHandler interface {
	run(ctx context.Context, src *domain.ContentSource) Result
}

// Importer orchestrates one source end to end: fetch, parse, dedup, persist,
// source health update and audit record. It is driven by the scheduler and
// by the on-demand API path alike.
type Importer struct {
	sources  SourceStore
	logs     ImportLogStore
	handlers map[domain.SourceType]sourceHandler
}

// Params holds importer dependencies
type Params struct {
	Sources    SourceStore
	Contents   ContentStore
	Logs       ImportLogStore
	Fetcher    Fetcher
	FeedParser FeedParser
	PageParser PageParser
}

// FeedParser turns raw feed bytes into candidate items
type FeedParser interface {
	Parse(data []byte) ([]domain.CandidateItem, error)
}

// PageParser turns raw HTML bytes into a single candidate item
type PageParser interface {
	Parse(data []byte) (domain.CandidateItem, error)
}

// New creates an importer. The handler for each source type is selected
// here, once, so no type dispatch leaks into the import flow.
func New(p Params) *Importer {
	return &Importer{
		sources: p.Sources,
		logs:    p.Logs,
		handlers: map[domain.SourceType]sourceHandler{
			domain.SourceTypeRSS:     &rssHandler{fetcher: p.Fetcher, parser: p.FeedParser, contents: p.Contents},
			domain.SourceTypeWebpage: &webpageHandler{fetcher: p.Fetcher, parser: p.PageParser, contents: p.Contents},
		},
	}
}

// ImportFromSource runs one import attempt for the given source. All failure
// kinds except a missing or inactive source are recorded in the audit trail
// and in the source's health fields; nothing propagates to the caller as an
// error, the outcome is always a structured Result.
func (imp *Importer) ImportFromSource(ctx context.Context, sourceID int64) Result {
	src, err := imp.sources.GetSource(ctx, sourceID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			lgr.Printf("[ERROR] failed to look up source %d: %v", sourceID, err)
		}
		// terminal, no import log is written for a source we can't resolve
		return Result{Status: domain.ImportStatusError, Message: msgNotFoundOrInactive}
	}
	if !src.Active {
		return Result{Status: domain.ImportStatusError, Message: msgNotFoundOrInactive}
	}

	// persist the running log before any network call, so a crash mid-import
	// leaves a visible trace
	logID, err := imp.logs.StartImport(ctx, src.ID)
	if err != nil {
		lgr.Printf("[ERROR] failed to start import log for source %d: %v", src.ID, err)
		return Result{Status: domain.ImportStatusError, Message: err.Error()}
	}

	res := imp.runHandler(ctx, src)

	// last_fetched advances on every attempt; error health only accumulates
	// on error outcomes
	success := res.Status != domain.ImportStatusError
	if err := imp.sources.UpdateSourceFetched(ctx, src.ID, success, res.Message); err != nil {
		lgr.Printf("[ERROR] failed to update health for source %d: %v", src.ID, err)
	}

	errMsg := ""
	if res.Status == domain.ImportStatusError {
		errMsg = res.Message
	}
	if err := imp.logs.FinalizeImport(ctx, logID, res.Status, res.ItemsImported, res.ItemsSkipped, errMsg); err != nil {
		lgr.Printf("[ERROR] failed to finalize import log %d: %v", logID, err)
	}

	return res
}

// runHandler dispatches to the handler registered for the source type
func (imp *Importer) runHandler(ctx context.Context, src *domain.ContentSource) Result {
	handler, ok := imp.handlers[src.SourceType]
	if !ok {
		return Result{Status: domain.ImportStatusError, Message: msgUnknownSourceType}
	}
	return handler.run(ctx, src)
}
