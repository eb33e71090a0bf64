package importer

import (
	"context"

	"github.com/clipmark/clipmark/pkg/domain"
	"github.com/clipmark/clipmark/pkg/parse"
)

// webpageHandler imports single-page sources. The page itself is the one
// candidate, keyed by the source URL, so the dedup check runs before the
// fetch: a known page costs no network call.
type webpageHandler struct {
	fetcher  Fetcher
	parser   PageParser
	contents ContentStore
}

func (h *webpageHandler) run(ctx context.Context, src *domain.ContentSource) Result {
	exists, err := h.contents.ContentExists(ctx, src.URL, src.UserID)
	if err != nil {
		return Result{Status: domain.ImportStatusError, Message: err.Error()}
	}
	if exists {
		return Result{Status: domain.ImportStatusSuccess, ItemsImported: 0, ItemsSkipped: 1}
	}

	data, err := h.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return Result{Status: domain.ImportStatusError, Message: err.Error()}
	}

	item, err := h.parser.Parse(data)
	if err != nil {
		return Result{Status: domain.ImportStatusError, Message: err.Error()}
	}

	title := parse.Truncate(item.Title, titleLimit)
	if title == "" {
		// pages without a <title> fall back to the user's name for the source
		title = src.Name
	}

	content := &domain.Content{
		UserID:      src.UserID,
		SourceID:    &src.ID,
		Title:       title,
		URL:         src.URL,
		ContentText: item.Description,
		ContentType: domain.ContentTypeLink,
	}
	if err := h.contents.CreateContent(ctx, content); err != nil {
		return Result{Status: domain.ImportStatusError, Message: err.Error()}
	}

	return Result{Status: domain.ImportStatusSuccess, ItemsImported: 1, ItemsSkipped: 0}
}
