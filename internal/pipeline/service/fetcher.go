package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"hr-signals/internal/entity"
	"hr-signals/internal/pipeline/config"
	"hr-signals/internal/pipeline/dto"
	"hr-signals/internal/pipeline/repository"
	"hr-signals/pkg/logger"
	"hr-signals/pkg/utils"

	"github.com/PuerkitoBio/goquery"
	"github.com/mauidude/go-readability"
	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"
)

// FetchStats reports what one fetch pass did, per stage counts for
// the run summary.
type FetchStats struct {
	SourcesFetched   int
	SourcesFailed    int
	DocumentsFetched int
	DocumentsDropped int
}

// Fetcher turns configured sources into ingested documents. A failing
// source is logged and skipped; it never aborts the pass.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []entity.Source) ([]dto.IngestedDocument, FetchStats)
}

// NewFetcher creates the feed-based fetcher.
func NewFetcher(cfg *config.Config, log *logger.Logger, sourceRepo repository.SourceRepository) Fetcher {
	return &fetcher{
		cfg:        cfg,
		logger:     log,
		sourceRepo: sourceRepo,
		client: &http.Client{
			Timeout: cfg.Fetcher.RequestTimeout,
		},
		limiters: make(map[uint]*rate.Limiter),
	}
}

type fetcher struct {
	cfg        *config.Config
	logger     *logger.Logger
	sourceRepo repository.SourceRepository
	client     *http.Client

	mu       sync.Mutex
	limiters map[uint]*rate.Limiter
}

// FetchAll fetches every source concurrently behind a bounded
// semaphore and merges the results.
func (f *fetcher) FetchAll(ctx context.Context, sources []entity.Source) ([]dto.IngestedDocument, FetchStats) {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		documents []dto.IngestedDocument
		stats     FetchStats
	)

	semaphore := make(chan struct{}, f.cfg.Fetcher.MaxConcurrent)

	for _, source := range sources {
		if !utils.ShouldContinue(ctx, f.logger) {
			break
		}
		src := source
		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			docs, dropped, err := f.fetchSource(ctx, src)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.SourcesFailed++
				f.logger.Error("Failed to fetch source",
					logger.ErrorField(err),
					logger.StringField("source", src.Name),
					logger.StringField("url", src.URL),
				)
				// A network blip is not a broken source; only a
				// permanent failure flips the health flag.
				if errors.Is(err, dto.ErrFetchPermanent) {
					if e := f.sourceRepo.SetHealth(ctx, src.ID, false); e != nil {
						f.logger.Error("Failed to mark source unhealthy", logger.ErrorField(e), logger.Field("source_id", src.ID))
					}
				}
				return
			}
			stats.SourcesFetched++
			stats.DocumentsFetched += len(docs)
			stats.DocumentsDropped += dropped
			documents = append(documents, docs...)
			if e := f.sourceRepo.MarkScraped(ctx, src.ID, time.Now().UTC()); e != nil {
				f.logger.Error("Failed to mark source scraped", logger.ErrorField(e), logger.Field("source_id", src.ID))
			}
		})
	}

	wg.Wait()
	return documents, stats
}

// fetchSource parses one feed and extracts readable text for each
// item. Returns the accepted documents and the count dropped by the
// boundary checks.
func (f *fetcher) fetchSource(ctx context.Context, source entity.Source) ([]dto.IngestedDocument, int, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = f.cfg.Fetcher.UserAgent

	feed, err := fp.ParseURLWithContext(source.URL, ctx)
	if err != nil {
		return nil, 0, classifyFeedError(ctx, err)
	}

	limiter := f.limiterFor(source.ID)
	cutoff := time.Now().UTC().AddDate(0, 0, -f.cfg.Fetcher.MaxDocumentAgeDays)

	var (
		docs    []dto.IngestedDocument
		dropped int
	)
	for i, item := range feed.Items {
		if i >= f.cfg.Fetcher.MaxItemsPerSource {
			break
		}
		if !utils.ShouldContinue(ctx, f.logger) {
			break
		}

		if item.Link == "" || item.PublishedParsed == nil {
			dropped++
			continue
		}
		publishedAt := item.PublishedParsed.UTC()
		if publishedAt.Before(cutoff) {
			dropped++
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			break
		}

		text, err := f.extractText(ctx, item.Link)
		if err != nil {
			f.logger.Warn("Failed to extract article text",
				logger.ErrorField(err),
				logger.StringField("url", item.Link),
			)
			dropped++
			continue
		}
		if len(text) < f.cfg.Fetcher.MinContentLength {
			dropped++
			continue
		}

		author := ""
		if item.Author != nil {
			author = item.Author.Name
		}

		docs = append(docs, dto.IngestedDocument{
			URL:         item.Link,
			Title:       utils.CleanToValidUTF8(utils.NormalizeWhitespace(item.Title)),
			Text:        text,
			Author:      author,
			PublishedAt: publishedAt,
			SourceID:    source.ID,
		})
	}

	return docs, dropped, nil
}

// extractText downloads the page and reduces it to normalized plain
// text via readability.
func (f *fetcher) extractText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.Fetcher.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", dto.ErrFetchTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status code %d", dto.ErrFetchTransient, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	doc, err := readability.NewDocument(string(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse article content: %w", err)
	}

	docHTML, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(doc.Content())))
	if err != nil {
		return "", fmt.Errorf("failed to parse extracted content: %w", err)
	}

	text := utils.NormalizeWhitespace(strings.TrimSpace(docHTML.Text()))
	return utils.CleanToValidUTF8(text), nil
}

// classifyFeedError splits feed failures into transient (canceled,
// connection-level, rate limited, server-side) and permanent (gone or
// unparseable feed).
func classifyFeedError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", dto.ErrFetchTransient, err)
	}
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500 {
			return fmt.Errorf("%w: %v", dto.ErrFetchTransient, err)
		}
		return fmt.Errorf("%w: %v", dto.ErrFetchPermanent, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %v", dto.ErrFetchTransient, err)
	}
	return fmt.Errorf("%w: %v", dto.ErrFetchPermanent, err)
}

func (f *fetcher) limiterFor(sourceID uint) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.limiters[sourceID]; ok {
		return l
	}
	interval := time.Minute / time.Duration(f.cfg.Fetcher.RequestsPerMinute)
	l := rate.NewLimiter(rate.Every(interval), 1)
	f.limiters[sourceID] = l
	return l
}
