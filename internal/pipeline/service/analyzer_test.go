package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"hr-signals/internal/entity"
	"hr-signals/internal/pipeline/dto"
	"hr-signals/internal/pipeline/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPendingArticle(t *testing.T, articleRepo repository.ArticleRepository, url string) *entity.Article {
	t.Helper()
	article := &entity.Article{
		URL:            url,
		Title:          "Pending article",
		RawContent:     "Body text for analysis.",
		PublishedAt:    time.Now().UTC(),
		AnalysisStatus: entity.AnalysisStatusPending,
	}
	created, err := articleRepo.CreateIgnoreConflict(context.Background(), article)
	require.NoError(t, err)
	require.True(t, created)
	return article
}

func TestAnalyzeRecoversAfterTransientFailures(t *testing.T) {
	db := setupTestDB(t)
	articleRepo := repository.NewArticleRepository(db)
	seedPendingArticle(t, articleRepo, "https://example.com/a")

	var calls atomic.Int32
	ai := &fakeAIRepository{
		analyzeFn: func(ctx context.Context, title string, publishedAt time.Time, text string) (*dto.AnalysisResult, error) {
			if calls.Add(1) < 3 {
				return nil, fmt.Errorf("%w: rate limited", dto.ErrAnalysisTransient)
			}
			return validAnalysisResult("AI Governance"), nil
		},
	}

	analyzer := NewAnalyzer(testConfig(), testLogger(), ai, articleRepo)
	analyzed, stats, err := analyzer.AnalyzePending(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1, stats.Analyzed)
	require.Len(t, analyzed, 1)
	assert.Equal(t, entity.AnalysisStatusAnalyzed, analyzed[0].Article.AnalysisStatus)

	// The article row gained analysis fields without duplicating.
	count, err := articleRepo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	stored, err := articleRepo.FindByURL(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotNil(t, stored.Summary)
	require.NotNil(t, stored.SignalStrength)
	assert.InDelta(t, 0.7, *stored.SignalStrength, 0.001)
	assert.Equal(t, entity.AnalysisStatusAnalyzed, stored.AnalysisStatus)
}

func TestAnalyzeRetriesMalformedResponseWithinPass(t *testing.T) {
	db := setupTestDB(t)
	articleRepo := repository.NewArticleRepository(db)
	seedPendingArticle(t, articleRepo, "https://example.com/a")

	// A single malformed reply should not park the article until the
	// next scheduled run; the retry loop gives the model another shot.
	var calls atomic.Int32
	ai := &fakeAIRepository{
		analyzeFn: func(ctx context.Context, title string, publishedAt time.Time, text string) (*dto.AnalysisResult, error) {
			if calls.Add(1) == 1 {
				return nil, fmt.Errorf("%w: response is not valid JSON", dto.ErrAnalysisValidation)
			}
			return validAnalysisResult("AI Governance"), nil
		},
	}

	analyzer := NewAnalyzer(testConfig(), testLogger(), ai, articleRepo)
	analyzed, stats, err := analyzer.AnalyzePending(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, stats.Analyzed)
	assert.Equal(t, 0, stats.Retries)
	require.Len(t, analyzed, 1)

	stored, err := articleRepo.FindByURL(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, entity.AnalysisStatusAnalyzed, stored.AnalysisStatus)
	assert.Equal(t, 0, stored.AnalysisAttempts)
}

func TestAnalyzeTransientExhaustionParksForRetry(t *testing.T) {
	db := setupTestDB(t)
	articleRepo := repository.NewArticleRepository(db)
	seedPendingArticle(t, articleRepo, "https://example.com/a")

	ai := &fakeAIRepository{
		analyzeFn: func(ctx context.Context, title string, publishedAt time.Time, text string) (*dto.AnalysisResult, error) {
			return nil, fmt.Errorf("%w: timeout", dto.ErrAnalysisTransient)
		},
	}

	analyzer := NewAnalyzer(testConfig(), testLogger(), ai, articleRepo)
	_, stats, err := analyzer.AnalyzePending(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Retries)

	stored, err := articleRepo.FindByURL(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, entity.AnalysisStatusRetry, stored.AnalysisStatus)
	assert.Equal(t, 1, stored.AnalysisAttempts)
	assert.Nil(t, stored.Summary)

	// Spending the rest of the budget records a transient failure.
	cfg := testConfig()
	for i := 1; i < cfg.Analyzer.MaxAttempts; i++ {
		_, _, err = analyzer.AnalyzePending(context.Background(), 0)
		require.NoError(t, err)
	}
	stored, err = articleRepo.FindByURL(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, entity.AnalysisStatusFailed, stored.AnalysisStatus)
	require.NotNil(t, stored.AnalysisFailure)
	assert.Equal(t, entity.FailureTransient, *stored.AnalysisFailure)
}

func TestAnalyzeValidationExhaustionMarksFailed(t *testing.T) {
	db := setupTestDB(t)
	articleRepo := repository.NewArticleRepository(db)
	cfg := testConfig()
	seedPendingArticle(t, articleRepo, "https://example.com/a")

	ai := &fakeAIRepository{
		analyzeFn: func(ctx context.Context, title string, publishedAt time.Time, text string) (*dto.AnalysisResult, error) {
			return nil, fmt.Errorf("%w: missing summary", dto.ErrAnalysisValidation)
		},
	}
	analyzer := NewAnalyzer(cfg, testLogger(), ai, articleRepo)

	// Each pass burns one lifetime attempt until the budget is gone.
	for i := 0; i < cfg.Analyzer.MaxAttempts; i++ {
		_, _, err := analyzer.AnalyzePending(context.Background(), 0)
		require.NoError(t, err)
	}

	stored, err := articleRepo.FindByURL(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, entity.AnalysisStatusFailed, stored.AnalysisStatus)
	assert.Equal(t, cfg.Analyzer.MaxAttempts, stored.AnalysisAttempts)
	require.NotNil(t, stored.AnalysisFailure)
	assert.Equal(t, entity.FailureValidation, *stored.AnalysisFailure)

	// A failed article is no longer picked up.
	analyzed, stats, err := analyzer.AnalyzePending(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, analyzed)
	assert.Equal(t, AnalyzeStats{}, stats)
}

func TestAnalyzeOneFailureDoesNotBlockTheBatch(t *testing.T) {
	db := setupTestDB(t)
	articleRepo := repository.NewArticleRepository(db)
	seedPendingArticle(t, articleRepo, "https://example.com/bad")
	seedPendingArticle(t, articleRepo, "https://example.com/good")

	ai := &fakeAIRepository{
		analyzeFn: func(ctx context.Context, title string, publishedAt time.Time, text string) (*dto.AnalysisResult, error) {
			if text == "" {
				return nil, fmt.Errorf("%w: empty", dto.ErrAnalysisValidation)
			}
			return validAnalysisResult("HR Technology"), nil
		},
	}

	// Blank out one article's content so only it fails.
	bad, err := articleRepo.FindByURL(context.Background(), "https://example.com/bad")
	require.NoError(t, err)
	bad.RawContent = ""
	require.NoError(t, articleRepo.Update(context.Background(), bad))

	analyzer := NewAnalyzer(testConfig(), testLogger(), ai, articleRepo)
	analyzed, stats, err := analyzer.AnalyzePending(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Analyzed)
	assert.Equal(t, 1, stats.Retries)
	require.Len(t, analyzed, 1)
	assert.Equal(t, "https://example.com/good", analyzed[0].Article.URL)
}
