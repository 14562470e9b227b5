package service

import (
	"context"
	"sort"
	"time"

	"hr-signals/internal/entity"
	"hr-signals/internal/pipeline/config"
	"hr-signals/internal/pipeline/dto"
	"hr-signals/internal/pipeline/repository"
	"hr-signals/pkg/logger"
	"hr-signals/pkg/utils"
)

// InsightStats reports the outcome of one extraction pass.
type InsightStats struct {
	InsightsCreated int
}

// InsightExtractor derives cross-article strategic takeaways from a
// batch of freshly analyzed articles.
type InsightExtractor interface {
	ExtractFromBatch(ctx context.Context, batch []AnalyzedArticle) (InsightStats, error)
}

// NewInsightExtractor creates the extractor.
func NewInsightExtractor(cfg *config.Config, log *logger.Logger, aiRepo repository.AIRepository, insightRepo repository.InsightRepository) InsightExtractor {
	return &insightExtractor{
		cfg:         cfg,
		logger:      log,
		aiRepo:      aiRepo,
		insightRepo: insightRepo,
	}
}

type insightExtractor struct {
	cfg         *config.Config
	logger      *logger.Logger
	aiRepo      repository.AIRepository
	insightRepo repository.InsightRepository
}

// ExtractFromBatch groups articles by primary theme and asks the
// model for insights per group above the size floor. A lone article
// still qualifies when its signal is strong enough. One theme failing
// never aborts the others.
func (e *insightExtractor) ExtractFromBatch(ctx context.Context, batch []AnalyzedArticle) (InsightStats, error) {
	var stats InsightStats

	groups := e.groupByTheme(batch)

	for theme, group := range groups {
		if !utils.ShouldContinue(ctx, e.logger) {
			break
		}
		created, err := e.extractForTheme(ctx, theme, group)
		if err != nil {
			e.logger.Error("Failed to extract insights",
				logger.ErrorField(err),
				logger.StringField("theme", theme),
			)
			continue
		}
		stats.InsightsCreated += created
	}

	return stats, nil
}

// groupByTheme buckets the batch by primary theme, strongest signal
// first, capped per group. Unclassified articles are skipped.
func (e *insightExtractor) groupByTheme(batch []AnalyzedArticle) map[string][]AnalyzedArticle {
	groups := make(map[string][]AnalyzedArticle)
	for _, item := range batch {
		if item.Article.PrimaryTheme == nil || item.Article.SignalStrength == nil {
			continue
		}
		theme := *item.Article.PrimaryTheme
		groups[theme] = append(groups[theme], item)
	}

	for theme, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			return *group[i].Article.SignalStrength > *group[j].Article.SignalStrength
		})
		if len(group) > e.cfg.Insight.MaxArticlesPerGroup {
			group = group[:e.cfg.Insight.MaxArticlesPerGroup]
		}
		groups[theme] = group
	}
	return groups
}

func (e *insightExtractor) extractForTheme(ctx context.Context, theme string, group []AnalyzedArticle) (int, error) {
	if !e.eligible(group) {
		return 0, nil
	}

	articles := make([]dto.InsightArticle, 0, len(group))
	for _, item := range group {
		summary := ""
		if item.Article.Summary != nil {
			summary = *item.Article.Summary
		}
		articles = append(articles, dto.InsightArticle{
			ID:             item.Article.ID,
			Title:          item.Article.Title,
			Summary:        summary,
			PrimaryTheme:   theme,
			SignalStrength: *item.Article.SignalStrength,
		})
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Analyzer.CallTimeout)
	results, err := e.aiRepo.ExtractInsights(callCtx, theme, articles)
	cancel()
	if err != nil {
		return 0, err
	}

	since := time.Now().UTC().AddDate(0, 0, -e.cfg.Insight.DedupWindowDays)
	existing, err := e.insightRepo.FindByThemeSince(ctx, theme, since)
	if err != nil {
		return 0, err
	}

	primaryID := group[0].Article.ID
	related := make([]uint, 0, len(group)-1)
	for _, item := range group[1:] {
		related = append(related, item.Article.ID)
	}

	created := 0
	for _, result := range results {
		if e.isRepeat(result.Title, existing) {
			continue
		}
		insight := entity.Insight{
			ArticleID:         primaryID,
			RelatedArticleIDs: related,
			Theme:             theme,
			Title:             result.Title,
			Description:       result.Description,
			ImpactLevel:       entity.ImpactLevel(result.ImpactLevel),
			TimeHorizon:       entity.TimeHorizon(result.TimeHorizon),
			RelevanceScore:    result.RelevanceScore,
		}
		if err := e.insightRepo.Create(ctx, &insight); err != nil {
			return created, err
		}
		existing = append(existing, insight)
		created++
	}
	return created, nil
}

// eligible applies the group size floor, with a solo exception for a
// single article whose signal clears the solo threshold.
func (e *insightExtractor) eligible(group []AnalyzedArticle) bool {
	if len(group) >= e.cfg.Insight.MinGroupSize {
		return true
	}
	if len(group) == 1 && *group[0].Article.SignalStrength >= e.cfg.Insight.SoloSignalThreshold {
		return true
	}
	return false
}

// isRepeat reports whether a candidate title is near-identical to an
// unexpired insight for the same theme.
func (e *insightExtractor) isRepeat(title string, existing []entity.Insight) bool {
	for _, ins := range existing {
		if jaccardSimilarity(title, ins.Title) >= e.cfg.Insight.TitleSimilarityThreshold {
			return true
		}
	}
	return false
}
