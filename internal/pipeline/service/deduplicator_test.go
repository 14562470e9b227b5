package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"hr-signals/internal/pipeline/dto"
	"hr-signals/internal/pipeline/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips utm parameters",
			in:   "https://Example.com/post?utm_source=x&utm_medium=rss",
			want: "https://example.com/post",
		},
		{
			name: "strips tracking ids and sorts the rest",
			in:   "https://example.com/post?b=2&fbclid=abc&a=1",
			want: "https://example.com/post?a=1&b=2",
		},
		{
			name: "drops fragment and trailing slash",
			in:   "https://example.com/post/#section",
			want: "https://example.com/post",
		},
		{
			name: "lowercases scheme, host and path",
			in:   "HTTPS://EXAMPLE.com/Post",
			want: "https://example.com/post",
		},
		{
			name: "strips default ports",
			in:   "https://example.com:443/post",
			want: "https://example.com/post",
		},
		{
			name: "keeps explicit non-default ports",
			in:   "https://example.com:8443/post",
			want: "https://example.com:8443/post",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestAdmitCollapsesTrackingVariants(t *testing.T) {
	db := setupTestDB(t)
	articleRepo := repository.NewArticleRepository(db)
	dedup := NewDeduplicator(testConfig(), testLogger(), articleRepo)

	now := time.Now().UTC()
	docs := []dto.IngestedDocument{
		{URL: "https://example.com/a", Title: "Story A", Text: strings.Repeat("alpha beta gamma delta ", 20), PublishedAt: now},
		{URL: "https://example.com/b", Title: "Story B", Text: strings.Repeat("one two three four five ", 20), PublishedAt: now},
		{URL: "https://example.com/a?utm_source=feed", Title: "Story A", Text: strings.Repeat("alpha beta gamma delta ", 20), PublishedAt: now},
	}

	admitted, stats, err := dedup.Admit(context.Background(), docs)
	require.NoError(t, err)
	assert.Len(t, admitted, 2)
	assert.Equal(t, 2, stats.ArticlesCreated)
	assert.Equal(t, 1, stats.Duplicates)

	count, err := articleRepo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestAdmitIsIdempotentAcrossRuns(t *testing.T) {
	db := setupTestDB(t)
	articleRepo := repository.NewArticleRepository(db)
	cfg := testConfig()

	now := time.Now().UTC()
	docs := []dto.IngestedDocument{
		{URL: "https://example.com/a", Title: "Story A", Text: strings.Repeat("alpha beta gamma delta ", 20), PublishedAt: now},
		{URL: "https://example.com/b", Title: "Story B", Text: strings.Repeat("one two three four five ", 20), PublishedAt: now},
	}

	_, _, err := NewDeduplicator(cfg, testLogger(), articleRepo).Admit(context.Background(), docs)
	require.NoError(t, err)

	// A fresh deduplicator, as in a later process run, must not
	// create second rows for the same URLs.
	admitted, stats, err := NewDeduplicator(cfg, testLogger(), articleRepo).Admit(context.Background(), docs)
	require.NoError(t, err)
	assert.Empty(t, admitted)
	assert.Equal(t, 0, stats.ArticlesCreated)

	count, err := articleRepo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestAdmitRejectsNearIdenticalContent(t *testing.T) {
	db := setupTestDB(t)
	articleRepo := repository.NewArticleRepository(db)
	dedup := NewDeduplicator(testConfig(), testLogger(), articleRepo)

	now := time.Now().UTC()
	body := strings.Repeat("the quick brown fox jumps over the lazy dog ", 20)
	docs := []dto.IngestedDocument{
		{URL: "https://site-one.com/story", Title: "Syndicated Story", Text: body, PublishedAt: now},
		{URL: "https://site-two.com/story", Title: "Syndicated Story", Text: body, PublishedAt: now},
	}

	admitted, stats, err := dedup.Admit(context.Background(), docs)
	require.NoError(t, err)
	assert.Len(t, admitted, 1)
	assert.Equal(t, 1, stats.Duplicates)
}

func TestAdmitFingerprintIncludesTitle(t *testing.T) {
	db := setupTestDB(t)
	articleRepo := repository.NewArticleRepository(db)
	dedup := NewDeduplicator(testConfig(), testLogger(), articleRepo)

	// Same boilerplate opening, genuinely different stories. The
	// titles keep them apart.
	now := time.Now().UTC()
	body := "welcome to the weekly briefing from the editorial desk where we cover what matters "
	docs := []dto.IngestedDocument{
		{URL: "https://example.com/layoffs", Title: "Retail chains announce seasonal layoffs amid automation push", Text: body, PublishedAt: now},
		{URL: "https://example.com/hiring", Title: "Hospitals expand graduate hiring as residency programs grow", Text: body, PublishedAt: now},
	}

	admitted, stats, err := dedup.Admit(context.Background(), docs)
	require.NoError(t, err)
	assert.Len(t, admitted, 2)
	assert.Equal(t, 0, stats.Duplicates)
}

func TestAdmitRejectsInvalidDocuments(t *testing.T) {
	db := setupTestDB(t)
	articleRepo := repository.NewArticleRepository(db)
	dedup := NewDeduplicator(testConfig(), testLogger(), articleRepo)

	docs := []dto.IngestedDocument{
		{URL: "", Title: "No URL", Text: "some text", PublishedAt: time.Now().UTC()},
		{URL: "https://example.com/empty", Title: "Empty", Text: "", PublishedAt: time.Now().UTC()},
	}

	admitted, stats, err := dedup.Admit(context.Background(), docs)
	require.NoError(t, err)
	assert.Empty(t, admitted)

	// Malformed documents are rejections, not duplicates.
	assert.Equal(t, 2, stats.Rejected)
	assert.Equal(t, 0, stats.Duplicates)
}
