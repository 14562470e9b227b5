package service

import (
	"context"
	"testing"
	"time"

	"hr-signals/internal/entity"
	"hr-signals/internal/pipeline/config"
	"hr-signals/internal/pipeline/dto"
	"hr-signals/pkg/logger"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&entity.Source{},
		&entity.Theme{},
		&entity.Sector{},
		&entity.Article{},
		&entity.ArticleTheme{},
		&entity.ArticleSector{},
		&entity.Insight{},
		&entity.Trend{},
		&entity.TrendDataPoint{},
		&entity.Digest{},
		&entity.PipelineRun{},
	))
	return db
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Dedup.SimilarityThreshold = 0.85
	cfg.Dedup.FingerprintPrefixLen = 300
	cfg.Dedup.RecentWindowDays = 14
	cfg.Analyzer.MaxConcurrent = 2
	cfg.Analyzer.MaxAttempts = 3
	cfg.Analyzer.BackoffBase = time.Millisecond
	cfg.Analyzer.BackoffMax = 5 * time.Millisecond
	cfg.Analyzer.CallTimeout = time.Second
	cfg.Analyzer.MaxSummaryLen = 500
	cfg.Analyzer.MaxInputRunes = 5000
	cfg.Classifier.MinKeywordOverlap = 1
	cfg.Classifier.FeaturedSignalThreshold = 0.8
	cfg.Classifier.FeaturedConfidenceMin = 0.6
	cfg.Trend.WindowDays = 7
	cfg.Trend.EmergingMomentum = 0.5
	cfg.Trend.EmergingMaxArticles = 10
	cfg.Trend.GrowingMomentum = 0.25
	cfg.Trend.PeakBand = 0.1
	cfg.Trend.DecliningMomentum = -0.25
	cfg.Trend.DataPointRetentionDays = 90
	cfg.Insight.MinGroupSize = 3
	cfg.Insight.SoloSignalThreshold = 0.85
	cfg.Insight.MaxArticlesPerGroup = 10
	cfg.Insight.DedupWindowDays = 14
	cfg.Insight.TitleSimilarityThreshold = 0.8
	cfg.Digest.TopStories = 10
	cfg.Digest.MaxTrends = 5
	cfg.Digest.MaxInsights = 5
	return cfg
}

func testLogger() *logger.Logger {
	return logger.NewNop()
}

// fakeAIRepository lets tests script the external analysis capability
// per call.
type fakeAIRepository struct {
	analyzeFn   func(ctx context.Context, title string, publishedAt time.Time, text string) (*dto.AnalysisResult, error)
	insightsFn  func(ctx context.Context, theme string, articles []dto.InsightArticle) ([]dto.InsightResult, error)
	summarizeFn func(ctx context.Context, period string, stories []dto.DigestStory, trends []dto.DigestTrend, insights []dto.DigestInsight) (*dto.DigestSummaryResult, error)
}

func (f *fakeAIRepository) AnalyzeArticle(ctx context.Context, title string, publishedAt time.Time, text string) (*dto.AnalysisResult, error) {
	return f.analyzeFn(ctx, title, publishedAt, text)
}

func (f *fakeAIRepository) ExtractInsights(ctx context.Context, theme string, articles []dto.InsightArticle) ([]dto.InsightResult, error) {
	return f.insightsFn(ctx, theme, articles)
}

func (f *fakeAIRepository) SummarizeDigest(ctx context.Context, period string, stories []dto.DigestStory, trends []dto.DigestTrend, insights []dto.DigestInsight) (*dto.DigestSummaryResult, error) {
	return f.summarizeFn(ctx, period, stories, trends, insights)
}

func validAnalysisResult(theme string) *dto.AnalysisResult {
	return &dto.AnalysisResult{
		Summary:           "A short summary of the article.",
		KeyTakeaways:      []string{"first point", "second point", "third point"},
		PrimaryThemeGuess: theme,
		Region:            "Global",
		SentimentLabel:    "neutral",
		SentimentScore:    0.1,
		SignalStrength:    0.7,
		ConfidenceScore:   0.9,
	}
}
