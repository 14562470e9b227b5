package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"hr-signals/internal/entity"
	"hr-signals/internal/pipeline/repository"
	"hr-signals/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trendFixture struct {
	trendEngine  TrendEngine
	theme        *entity.Theme
	articleRepo  repository.ArticleRepository
	taxonomyRepo repository.TaxonomyRepository
	trendRepo    repository.TrendRepository
}

func setupTrendFixture(t *testing.T) *trendFixture {
	t.Helper()
	db := setupTestDB(t)
	articleRepo := repository.NewArticleRepository(db)
	taxonomyRepo := repository.NewTaxonomyRepository(db)
	trendRepo := repository.NewTrendRepository(db)

	require.NoError(t, taxonomyRepo.SeedThemes(context.Background(), []entity.Theme{
		{Name: "AI Governance", Keywords: []string{"ai governance", "regulation"}},
	}))
	theme, err := taxonomyRepo.FindThemeByName(context.Background(), "AI Governance")
	require.NoError(t, err)
	require.NotNil(t, theme)

	return &trendFixture{
		trendEngine:  NewTrendEngine(testConfig(), testLogger(), trendRepo, taxonomyRepo, articleRepo),
		theme:        theme,
		articleRepo:  articleRepo,
		taxonomyRepo: taxonomyRepo,
		trendRepo:    trendRepo,
	}
}

// linkArticles creates n analyzed articles published on the given day
// and links them to the fixture theme.
func (f *trendFixture) linkArticles(t *testing.T, day time.Time, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		sentiment := 0.2
		signal := 0.7
		article := &entity.Article{
			URL:            fmt.Sprintf("https://example.com/%s-%d", day.Format("20060102"), i),
			Title:          "Linked article",
			RawContent:     "Body",
			PublishedAt:    day,
			AnalysisStatus: entity.AnalysisStatusAnalyzed,
			SentimentScore: &sentiment,
			SignalStrength: &signal,
		}
		created, err := f.articleRepo.CreateIgnoreConflict(context.Background(), article)
		require.NoError(t, err)
		require.True(t, created)
		require.NoError(t, f.taxonomyRepo.LinkTheme(context.Background(), &entity.ArticleTheme{
			ArticleID: article.ID,
			ThemeID:   f.theme.ID,
		}))
	}
}

func TestTrendGrowthScenario(t *testing.T) {
	f := setupTrendFixture(t)
	base := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	dailyCounts := []int{1, 1, 2, 4, 7}

	var momentums []float64
	var statuses []entity.TrendStatus
	for i, n := range dailyCounts {
		f.linkArticles(t, base.AddDate(0, 0, i), n)
		require.NoError(t, f.trendEngine.UpdateTheme(context.Background(), f.theme))

		trend, err := f.trendRepo.FindByThemeID(context.Background(), f.theme.ID)
		require.NoError(t, err)
		require.NotNil(t, trend)
		momentums = append(momentums, trend.Momentum)
		statuses = append(statuses, trend.Status)
	}

	assert.Equal(t, entity.TrendEmerging, statuses[0])
	assert.Equal(t, entity.TrendGrowing, statuses[len(statuses)-1])

	for i := 1; i < len(momentums); i++ {
		assert.GreaterOrEqual(t, momentums[i], momentums[i-1],
			"momentum must not decrease across growth runs")
	}
	assert.Greater(t, momentums[len(momentums)-1], 0.0)

	trend, err := f.trendRepo.FindByThemeID(context.Background(), f.theme.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, trend.ArticleCount)
}

func TestTrendReplayIsIdempotent(t *testing.T) {
	f := setupTrendFixture(t)
	day := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	f.linkArticles(t, day, 3)
	f.linkArticles(t, day.AddDate(0, 0, 1), 5)

	require.NoError(t, f.trendEngine.UpdateTheme(context.Background(), f.theme))
	first, err := f.trendRepo.FindByThemeID(context.Background(), f.theme.ID)
	require.NoError(t, err)

	// Replaying with no new articles must not change counts, buckets
	// or momentum.
	require.NoError(t, f.trendEngine.UpdateTheme(context.Background(), f.theme))
	second, err := f.trendRepo.FindByThemeID(context.Background(), f.theme.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ArticleCount, second.ArticleCount)
	assert.InDelta(t, first.Momentum, second.Momentum, 0.0001)

	points, err := f.trendRepo.FindDataPoints(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 3, points[0].ArticleCount)
	assert.Equal(t, 5, points[1].ArticleCount)

	distinct, err := f.taxonomyRepo.CountDistinctArticles(context.Background(), f.theme.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(first.ArticleCount), distinct)
}

func TestTrendDataPointAverages(t *testing.T) {
	f := setupTrendFixture(t)
	day := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	f.linkArticles(t, day, 4)

	require.NoError(t, f.trendEngine.UpdateTheme(context.Background(), f.theme))
	trend, err := f.trendRepo.FindByThemeID(context.Background(), f.theme.ID)
	require.NoError(t, err)

	points, err := f.trendRepo.FindDataPoints(context.Background(), trend.ID)
	require.NoError(t, err)
	require.Len(t, points, 1)
	require.NotNil(t, points[0].SentimentAvg)
	require.NotNil(t, points[0].SignalStrengthAvg)
	assert.InDelta(t, 0.2, *points[0].SentimentAvg, 0.001)
	assert.InDelta(t, 0.7, *points[0].SignalStrengthAvg, 0.001)
}

func TestTrendDecliningReentersGrowing(t *testing.T) {
	f := setupTrendFixture(t)
	day := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	f.linkArticles(t, day, 2)
	require.NoError(t, f.trendEngine.UpdateTheme(context.Background(), f.theme))

	trend, err := f.trendRepo.FindByThemeID(context.Background(), f.theme.ID)
	require.NoError(t, err)
	trend.Status = entity.TrendDeclining
	require.NoError(t, f.trendRepo.Update(context.Background(), trend))

	// A burst of fresh articles brings the momentum back above the
	// growth threshold.
	f.linkArticles(t, day.AddDate(0, 0, 1), 8)
	require.NoError(t, f.trendEngine.UpdateTheme(context.Background(), f.theme))

	trend, err = f.trendRepo.FindByThemeID(context.Background(), f.theme.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TrendGrowing, trend.Status)
}

func TestTrendStatusEdges(t *testing.T) {
	legal := map[entity.TrendStatus][]entity.TrendStatus{
		entity.TrendEmerging:  {entity.TrendGrowing},
		entity.TrendGrowing:   {entity.TrendPeak},
		entity.TrendPeak:      {entity.TrendDeclining},
		entity.TrendDeclining: {entity.TrendGrowing},
	}
	all := []entity.TrendStatus{entity.TrendEmerging, entity.TrendGrowing, entity.TrendPeak, entity.TrendDeclining}

	for from, nexts := range legal {
		allowed := map[entity.TrendStatus]bool{}
		for _, n := range nexts {
			allowed[n] = true
		}
		for _, to := range all {
			assert.Equal(t, allowed[to], from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestPruneDataPointsDropsOldBuckets(t *testing.T) {
	f := setupTrendFixture(t)
	today := utils.DayBucket(time.Now().UTC())
	f.linkArticles(t, today, 3)
	require.NoError(t, f.trendEngine.UpdateTheme(context.Background(), f.theme))

	trend, err := f.trendRepo.FindByThemeID(context.Background(), f.theme.ID)
	require.NoError(t, err)
	require.NotNil(t, trend)

	// A bucket well past the retention window.
	require.NoError(t, f.trendRepo.UpsertDataPoint(context.Background(), &entity.TrendDataPoint{
		TrendID:      trend.ID,
		Date:         today.AddDate(0, 0, -120),
		ArticleCount: 2,
	}))

	pruned, err := f.trendEngine.PruneDataPoints(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	points, err := f.trendRepo.FindDataPoints(context.Background(), trend.ID)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, today, points[0].Date.UTC())
}
