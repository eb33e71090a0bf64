package parse

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/clipmark/clipmark/pkg/domain"
)

// PageParser extracts a single candidate item describing a web page: its
// title and meta description. It never yields zero items on success, a page
// with no usable metadata still produces an (empty-titled) candidate and the
// importer falls back to the source's display name.
type PageParser struct{}

// NewPageParser creates a page parser
func NewPageParser() *PageParser {
	return &PageParser{}
}

// Parse extracts the first <title> and the first meta description from HTML
// bytes. The candidate's Link is left empty, webpage content is keyed by the
// source URL which the caller knows.
func (p *PageParser) Parse(data []byte) (domain.CandidateItem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return domain.CandidateItem{}, fmt.Errorf("parse html: %w", err)
	}

	item := domain.CandidateItem{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		item.Description = Truncate(strings.TrimSpace(desc), descriptionLimit)
	}

	return item, nil
}

// Truncate cuts s to at most limit runes. Cutting on runes keeps multi-byte
// titles and descriptions valid UTF-8.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
