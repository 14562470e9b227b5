package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hr-signals/internal/entity"
	"hr-signals/internal/pipeline/config"
	"hr-signals/internal/pipeline/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleBody = `Organizations across several industries are rethinking how work gets
done, how teams are structured, and how skills are developed. Leaders report that
reskilling programs, flexible staffing models, and new performance frameworks are
moving from pilots to standard practice. Analysts expect the shift to continue
through the next planning cycle, with budgets following the programs that show
measurable retention and productivity gains over the prior year.`

func fetcherTestConfig() *config.Config {
	cfg := testConfig()
	cfg.Fetcher.MaxConcurrent = 2
	cfg.Fetcher.RequestTimeout = 5 * time.Second
	cfg.Fetcher.RequestsPerMinute = 6000
	cfg.Fetcher.MaxItemsPerSource = 50
	cfg.Fetcher.MaxDocumentAgeDays = 30
	cfg.Fetcher.MinContentLength = 50
	cfg.Fetcher.UserAgent = "hr-signals-test/1.0"
	return cfg
}

func rssItem(title, link, pubDate string) string {
	item := "<item><title>" + title + "</title>"
	if link != "" {
		item += "<link>" + link + "</link>"
	}
	if pubDate != "" {
		item += "<pubDate>" + pubDate + "</pubDate>"
	}
	return item + "</item>"
}

func rssFeed(items ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<rss version="2.0"><channel><title>Test Feed</title>` +
		strings.Join(items, "") +
		`</channel></rss>`
}

func articlePage(body string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>Article</title></head><body><div id=\"content\">")
	for _, para := range strings.Split(body, "\n\n") {
		b.WriteString("<p>" + para + "</p>")
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

func TestFetchAllFiltersFeedItems(t *testing.T) {
	db := setupTestDB(t)
	sourceRepo := repository.NewSourceRepository(db)

	fresh := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC1123Z)
	stale := time.Now().UTC().AddDate(0, 0, -60).Format(time.RFC1123Z)

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/article/ok", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage(articleBody+"\n\n"+articleBody))
	})
	mux.HandleFunc("/article/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed(
			rssItem("Kept story", server.URL+"/article/ok", fresh),
			rssItem("No date", server.URL+"/article/ok", ""),
			rssItem("Too old", server.URL+"/article/ok", stale),
			rssItem("Dead page", server.URL+"/article/missing", fresh),
		))
	})

	require.NoError(t, sourceRepo.Seed(context.Background(), []entity.Source{
		{Name: "Test Feed", URL: server.URL + "/feed", Category: "media", IsActive: true},
	}))
	sources, err := sourceRepo.FindActive(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)

	f := NewFetcher(fetcherTestConfig(), testLogger(), sourceRepo)
	docs, stats := f.FetchAll(context.Background(), sources)

	require.Len(t, docs, 1)
	assert.Equal(t, "Kept story", docs[0].Title)
	assert.Equal(t, server.URL+"/article/ok", docs[0].URL)
	assert.Equal(t, sources[0].ID, docs[0].SourceID)
	assert.Contains(t, docs[0].Text, "reskilling programs")

	assert.Equal(t, 1, stats.SourcesFetched)
	assert.Equal(t, 0, stats.SourcesFailed)
	assert.Equal(t, 1, stats.DocumentsFetched)
	assert.Equal(t, 3, stats.DocumentsDropped)

	sources, err = sourceRepo.FindActive(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sources[0].LastScrapedAt)
	assert.True(t, sources[0].IsHealthy)
}

func TestFetchAllSurvivesFailingSource(t *testing.T) {
	db := setupTestDB(t)
	sourceRepo := repository.NewSourceRepository(db)

	fresh := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC1123Z)

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/article/ok", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage(articleBody))
	})
	mux.HandleFunc("/good-feed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed(rssItem("Kept story", server.URL+"/article/ok", fresh)))
	})
	mux.HandleFunc("/bad-feed", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})

	require.NoError(t, sourceRepo.Seed(context.Background(), []entity.Source{
		{Name: "Good", URL: server.URL + "/good-feed", Category: "media", IsActive: true},
		{Name: "Bad", URL: server.URL + "/bad-feed", Category: "media", IsActive: true},
	}))
	sources, err := sourceRepo.FindActive(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 2)

	f := NewFetcher(fetcherTestConfig(), testLogger(), sourceRepo)
	docs, stats := f.FetchAll(context.Background(), sources)

	// The broken feed is skipped without taking the pass down.
	require.Len(t, docs, 1)
	assert.Equal(t, 1, stats.SourcesFetched)
	assert.Equal(t, 1, stats.SourcesFailed)

	var bad entity.Source
	require.NoError(t, db.Where("name = ?", "Bad").First(&bad).Error)
	assert.False(t, bad.IsHealthy)
}

func TestFetchAllKeepsSourceHealthyOnNetworkError(t *testing.T) {
	db := setupTestDB(t)
	sourceRepo := repository.NewSourceRepository(db)

	// A server that is already gone: connection refused, not a dead
	// feed. The source stays healthy and is retried next pass.
	server := httptest.NewServer(http.NotFoundHandler())
	deadURL := server.URL + "/feed"
	server.Close()

	require.NoError(t, sourceRepo.Seed(context.Background(), []entity.Source{
		{Name: "Flaky", URL: deadURL, Category: "media", IsActive: true},
	}))
	sources, err := sourceRepo.FindActive(context.Background())
	require.NoError(t, err)

	f := NewFetcher(fetcherTestConfig(), testLogger(), sourceRepo)
	docs, stats := f.FetchAll(context.Background(), sources)

	assert.Empty(t, docs)
	assert.Equal(t, 1, stats.SourcesFailed)

	var src entity.Source
	require.NoError(t, db.Where("name = ?", "Flaky").First(&src).Error)
	assert.True(t, src.IsHealthy)
}
