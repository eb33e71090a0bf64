package importer

import (
	"context"
	"errors"

	"github.com/go-pkgz/lgr"

	"github.com/clipmark/clipmark/pkg/domain"
	"github.com/clipmark/clipmark/pkg/parse"
)

// rssHandler imports feed sources: fetch the feed, parse up to the
// configured number of entries and persist the ones the user doesn't
// have yet
type rssHandler struct {
	fetcher  Fetcher
	parser   FeedParser
	contents ContentStore
}

func (h *rssHandler) run(ctx context.Context, src *domain.ContentSource) Result {
	data, err := h.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return Result{Status: domain.ImportStatusError, Message: err.Error()}
	}

	items, err := h.parser.Parse(data)
	if err != nil {
		if errors.Is(err, parse.ErrInvalidFeed) {
			return Result{Status: domain.ImportStatusError, Message: msgInvalidFeed}
		}
		return Result{Status: domain.ImportStatusError, Message: err.Error()}
	}

	imported, skipped, failed := 0, 0, 0
	for _, item := range items {
		// candidates are independent: a dedup or persist failure on one
		// entry never aborts the rest of the batch
		exists, err := h.contents.ContentExists(ctx, item.Link, src.UserID)
		if err != nil {
			lgr.Printf("[WARN] dedup check failed for %s: %v", item.Link, err)
			failed++
			continue
		}
		if exists {
			skipped++
			continue
		}

		content := &domain.Content{
			UserID:      src.UserID,
			SourceID:    &src.ID,
			Title:       parse.Truncate(item.Title, titleLimit),
			URL:         item.Link,
			ContentText: item.Description,
			ContentType: domain.ContentTypeArticle,
		}
		if err := h.contents.CreateContent(ctx, content); err != nil {
			lgr.Printf("[WARN] failed to persist item %s: %v", item.Link, err)
			failed++
			continue
		}
		imported++
	}

	status := domain.ImportStatusSuccess
	if failed > 0 {
		status = domain.ImportStatusPartial
	}
	return Result{Status: status, ItemsImported: imported, ItemsSkipped: skipped}
}
