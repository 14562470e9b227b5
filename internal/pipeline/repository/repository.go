package repository

import (
	"context"
	"time"

	"hr-signals/internal/pipeline/dto"
)

// AIRepository is the narrow interface over the external analysis
// capability. Implementations must return an error (never a silent
// empty result) on failure; retry policy lives in the analyzer
// service, not here.
type AIRepository interface {
	AnalyzeArticle(ctx context.Context, title string, publishedAt time.Time, text string) (*dto.AnalysisResult, error)
	ExtractInsights(ctx context.Context, theme string, articles []dto.InsightArticle) ([]dto.InsightResult, error)
	SummarizeDigest(ctx context.Context, period string, stories []dto.DigestStory, trends []dto.DigestTrend, insights []dto.DigestInsight) (*dto.DigestSummaryResult, error)
}
