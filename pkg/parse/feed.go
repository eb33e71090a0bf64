package parse

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mmcdole/gofeed"

	"github.com/clipmark/clipmark/pkg/domain"
)

// ErrInvalidFeed indicates the fetched bytes are not a parseable RSS/Atom
// feed. The importer maps it to the "Invalid RSS feed" outcome.
var ErrInvalidFeed = errors.New("invalid feed")

// descriptionLimit caps candidate descriptions derived from feed summaries
const descriptionLimit = 500

// FeedParser turns raw feed bytes into candidate items
type FeedParser struct {
	maxItems int
}

// NewFeedParser creates a feed parser that emits at most maxItems candidates
// per feed, newest-first as given by the feed
func NewFeedParser(maxItems int) *FeedParser {
	if maxItems == 0 {
		maxItems = 20
	}
	return &FeedParser{maxItems: maxItems}
}

// Parse parses RSS/Atom bytes into candidate items. Malformed or non-feed
// content yields ErrInvalidFeed.
func (p *FeedParser) Parse(data []byte) ([]domain.CandidateItem, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFeed, err)
	}

	entries := feed.Items
	if len(entries) > p.maxItems {
		entries = entries[:p.maxItems]
	}

	items := make([]domain.CandidateItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, domain.CandidateItem{
			Title:       entry.Title,
			Link:        entry.Link,
			Description: Truncate(entryDescription(entry), descriptionLimit),
		})
	}

	return items, nil
}

// entryDescription picks the entry description, falling back to the content
// body when the feed carries only full content (gofeed already folds Atom
// summaries into Description)
func entryDescription(entry *gofeed.Item) string {
	if entry.Description != "" {
		return entry.Description
	}
	return entry.Content
}
