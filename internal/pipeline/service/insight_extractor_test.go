package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"hr-signals/internal/entity"
	"hr-signals/internal/pipeline/dto"
	"hr-signals/internal/pipeline/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insightBatch(t *testing.T, articleRepo repository.ArticleRepository, theme string, signals []float64) []AnalyzedArticle {
	t.Helper()
	batch := make([]AnalyzedArticle, 0, len(signals))
	for i, signal := range signals {
		s := signal
		summary := "Summary text"
		name := theme
		article := &entity.Article{
			URL:            fmt.Sprintf("https://example.com/%s-%d", theme, i),
			Title:          fmt.Sprintf("%s article %d", theme, i),
			RawContent:     "Body",
			PublishedAt:    time.Now().UTC(),
			AnalysisStatus: entity.AnalysisStatusAnalyzed,
			Summary:        &summary,
			PrimaryTheme:   &name,
			SignalStrength: &s,
		}
		created, err := articleRepo.CreateIgnoreConflict(context.Background(), article)
		require.NoError(t, err)
		require.True(t, created)
		batch = append(batch, AnalyzedArticle{Article: article, Result: validAnalysisResult(theme)})
	}
	return batch
}

func validInsightResult(title string) dto.InsightResult {
	return dto.InsightResult{
		Title:          title,
		Description:    "What it means for workforce planning.",
		ImpactLevel:    "high",
		TimeHorizon:    "short_term",
		RelevanceScore: 0.8,
	}
}

func TestExtractInsightsForLargeGroup(t *testing.T) {
	db := setupTestDB(t)
	articleRepo := repository.NewArticleRepository(db)
	insightRepo := repository.NewInsightRepository(db)
	batch := insightBatch(t, articleRepo, "AI Governance", []float64{0.9, 0.6, 0.7})

	ai := &fakeAIRepository{
		insightsFn: func(ctx context.Context, theme string, articles []dto.InsightArticle) ([]dto.InsightResult, error) {
			assert.Equal(t, "AI Governance", theme)
			assert.Len(t, articles, 3)
			// Strongest signal first.
			assert.InDelta(t, 0.9, articles[0].SignalStrength, 0.001)
			return []dto.InsightResult{validInsightResult("Boards move on AI oversight")}, nil
		},
	}

	extractor := NewInsightExtractor(testConfig(), testLogger(), ai, insightRepo)
	stats, err := extractor.ExtractFromBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.InsightsCreated)

	since := time.Now().UTC().Add(-time.Hour)
	insights, err := insightRepo.FindByThemeSince(context.Background(), "AI Governance", since)
	require.NoError(t, err)
	require.Len(t, insights, 1)

	// The primary article is the strongest; the rest are referenced.
	assert.Equal(t, batch[0].Article.ID, insights[0].ArticleID)
	assert.Len(t, []uint(insights[0].RelatedArticleIDs), 2)
}

func TestExtractSkipsSmallGroup(t *testing.T) {
	db := setupTestDB(t)
	articleRepo := repository.NewArticleRepository(db)
	insightRepo := repository.NewInsightRepository(db)
	batch := insightBatch(t, articleRepo, "HR Technology", []float64{0.5, 0.6})

	called := false
	ai := &fakeAIRepository{
		insightsFn: func(ctx context.Context, theme string, articles []dto.InsightArticle) ([]dto.InsightResult, error) {
			called = true
			return nil, nil
		},
	}

	extractor := NewInsightExtractor(testConfig(), testLogger(), ai, insightRepo)
	stats, err := extractor.ExtractFromBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, 0, stats.InsightsCreated)
}

func TestExtractAllowsStrongSoloArticle(t *testing.T) {
	db := setupTestDB(t)
	articleRepo := repository.NewArticleRepository(db)
	insightRepo := repository.NewInsightRepository(db)
	batch := insightBatch(t, articleRepo, "Future of Work", []float64{0.95})

	ai := &fakeAIRepository{
		insightsFn: func(ctx context.Context, theme string, articles []dto.InsightArticle) ([]dto.InsightResult, error) {
			return []dto.InsightResult{validInsightResult("Four day week pilots scale up")}, nil
		},
	}

	extractor := NewInsightExtractor(testConfig(), testLogger(), ai, insightRepo)
	stats, err := extractor.ExtractFromBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.InsightsCreated)
}

func TestExtractDeduplicatesRepeatedTitles(t *testing.T) {
	db := setupTestDB(t)
	articleRepo := repository.NewArticleRepository(db)
	insightRepo := repository.NewInsightRepository(db)

	ai := &fakeAIRepository{
		insightsFn: func(ctx context.Context, theme string, articles []dto.InsightArticle) ([]dto.InsightResult, error) {
			return []dto.InsightResult{validInsightResult("Boards move quickly on AI oversight rules")}, nil
		},
	}
	extractor := NewInsightExtractor(testConfig(), testLogger(), ai, insightRepo)

	batch := insightBatch(t, articleRepo, "AI Governance", []float64{0.9, 0.6, 0.7})
	stats, err := extractor.ExtractFromBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.InsightsCreated)

	// The same strategic point must not be repeated on the next run.
	stats, err = extractor.ExtractFromBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.InsightsCreated)

	since := time.Now().UTC().Add(-time.Hour)
	insights, err := insightRepo.FindByThemeSince(context.Background(), "AI Governance", since)
	require.NoError(t, err)
	assert.Len(t, insights, 1)
}
