package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipmark/clipmark/pkg/domain"
)

func TestContentRepository_CreateContent(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	src := &domain.ContentSource{
		UserID: 1, Name: "feed", URL: "https://example.com/feed.xml",
		SourceType: domain.SourceTypeRSS, Active: true,
	}
	require.NoError(t, repos.Source.CreateSource(ctx, src))

	c := &domain.Content{
		UserID:      1,
		SourceID:    &src.ID,
		Title:       "An Article",
		URL:         "https://example.com/article1",
		ContentText: "summary text",
		ContentType: domain.ContentTypeArticle,
	}
	require.NoError(t, repos.Content.CreateContent(ctx, c))
	require.NotZero(t, c.ID)

	contents, err := repos.Content.GetContents(ctx, 1, 10, 0)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, "An Article", contents[0].Title)
	assert.Equal(t, domain.ContentTypeArticle, contents[0].ContentType)
	require.NotNil(t, contents[0].SourceID)
	assert.Equal(t, src.ID, *contents[0].SourceID)
}

func TestContentRepository_CreateContent_ManualItem(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	// manually created items have no source
	c := &domain.Content{
		UserID:      1,
		Title:       "My Note",
		ContentType: domain.ContentTypeLink,
	}
	require.NoError(t, repos.Content.CreateContent(ctx, c))

	contents, err := repos.Content.GetContents(ctx, 1, 10, 0)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Nil(t, contents[0].SourceID)
}

func TestContentRepository_ContentExists(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	c := &domain.Content{
		UserID:      1,
		Title:       "Shared URL",
		URL:         "https://example.com/page",
		ContentType: domain.ContentTypeLink,
	}
	require.NoError(t, repos.Content.CreateContent(ctx, c))

	exists, err := repos.Content.ContentExists(ctx, "https://example.com/page", 1)
	require.NoError(t, err)
	assert.True(t, exists)

	// scoped per user: another user doesn't have it
	exists, err = repos.Content.ContentExists(ctx, "https://example.com/page", 2)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repos.Content.ContentExists(ctx, "https://example.com/other", 1)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestContentRepository_NoUniqueConstraint(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	// dedup is a pre-check, not a constraint: the same user/url pair can be
	// inserted twice when callers race
	for i := 0; i < 2; i++ {
		c := &domain.Content{
			UserID:      1,
			Title:       "dup",
			URL:         "https://example.com/dup",
			ContentType: domain.ContentTypeLink,
		}
		require.NoError(t, repos.Content.CreateContent(ctx, c))
	}

	contents, err := repos.Content.GetContents(ctx, 1, 10, 0)
	require.NoError(t, err)
	assert.Len(t, contents, 2)
}

func TestContentRepository_GetContents_Paging(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c := &domain.Content{
			UserID:      1,
			Title:       "item",
			URL:         "https://example.com/" + string(rune('a'+i)),
			ContentType: domain.ContentTypeArticle,
		}
		require.NoError(t, repos.Content.CreateContent(ctx, c))
	}

	page1, err := repos.Content.GetContents(ctx, 1, 3, 0)
	require.NoError(t, err)
	assert.Len(t, page1, 3)

	page2, err := repos.Content.GetContents(ctx, 1, 3, 3)
	require.NoError(t, err)
	assert.Len(t, page2, 2)

	// newest first: last inserted leads the first page
	assert.Equal(t, "https://example.com/e", page1[0].URL)
}
