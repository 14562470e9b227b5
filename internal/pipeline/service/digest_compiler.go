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
	"hr-signals/pkg/telegram"
	"hr-signals/pkg/utils"
)

// DigestCompiler aggregates a period window into one digest row and
// posts it to the operator channel.
type DigestCompiler interface {
	Compile(ctx context.Context, digestType entity.DigestType, at time.Time) (*entity.Digest, error)
}

// NewDigestCompiler creates the compiler.
func NewDigestCompiler(
	cfg *config.Config,
	log *logger.Logger,
	aiRepo repository.AIRepository,
	articleRepo repository.ArticleRepository,
	trendRepo repository.TrendRepository,
	insightRepo repository.InsightRepository,
	digestRepo repository.DigestRepository,
	notifier telegram.Notifier,
) DigestCompiler {
	return &digestCompiler{
		cfg:         cfg,
		logger:      log,
		aiRepo:      aiRepo,
		articleRepo: articleRepo,
		trendRepo:   trendRepo,
		insightRepo: insightRepo,
		digestRepo:  digestRepo,
		notifier:    notifier,
	}
}

type digestCompiler struct {
	cfg         *config.Config
	logger      *logger.Logger
	aiRepo      repository.AIRepository
	articleRepo repository.ArticleRepository
	trendRepo   repository.TrendRepository
	insightRepo repository.InsightRepository
	digestRepo  repository.DigestRepository
	notifier    telegram.Notifier
}

// Compile selects the period's top stories, transitioned trends and
// ranked insights, summarizes them, and upserts the single digest row
// for the period. Recompiling an already compiled period overwrites
// the same row.
func (c *digestCompiler) Compile(ctx context.Context, digestType entity.DigestType, at time.Time) (*entity.Digest, error) {
	periodStart, periodEnd := PeriodWindow(digestType, at)

	stories, err := c.articleRepo.FindTopBySignal(ctx, periodStart, periodEnd, c.cfg.Digest.TopStories)
	if err != nil {
		return nil, err
	}

	trends, err := c.trendRepo.FindTransitionedBetween(ctx, periodStart, periodEnd,
		[]entity.TrendStatus{entity.TrendEmerging, entity.TrendGrowing}, c.cfg.Digest.MaxTrends)
	if err != nil {
		return nil, err
	}

	insights, err := c.insightRepo.FindCreatedBetween(ctx, periodStart, periodEnd, c.cfg.Digest.MaxInsights)
	if err != nil {
		return nil, err
	}

	analyzed, err := c.articleRepo.FindAnalyzedBetween(ctx, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	summary, err := c.summarize(ctx, digestType, stories, trends, insights)
	if err != nil {
		c.logger.Error("Failed to generate digest summary, compiling without it",
			logger.ErrorField(err),
			logger.StringField("digest_type", string(digestType)),
		)
		summary = &dto.DigestSummaryResult{
			Title:   fallbackTitle(digestType, periodStart),
			Summary: "Summary generation unavailable for this period.",
		}
	}

	digest := c.buildDigest(digestType, periodStart, periodEnd, summary, stories, trends, insights, analyzed)

	if err := c.digestRepo.Upsert(ctx, digest); err != nil {
		return nil, err
	}

	c.notify(digest, stories, trends)
	return digest, nil
}

func (c *digestCompiler) summarize(ctx context.Context, digestType entity.DigestType, stories []entity.Article, trends []entity.Trend, insights []entity.Insight) (*dto.DigestSummaryResult, error) {
	storyDTOs := make([]dto.DigestStory, 0, len(stories))
	for _, a := range stories {
		s := dto.DigestStory{Title: a.Title}
		if a.Summary != nil {
			s.Summary = *a.Summary
		}
		if a.PrimaryTheme != nil {
			s.PrimaryTheme = *a.PrimaryTheme
		}
		if a.SignalStrength != nil {
			s.SignalStrength = *a.SignalStrength
		}
		storyDTOs = append(storyDTOs, s)
	}

	trendDTOs := make([]dto.DigestTrend, 0, len(trends))
	for _, t := range trends {
		trendDTOs = append(trendDTOs, dto.DigestTrend{
			Name:        t.Name,
			Description: t.Description,
			Status:      string(t.Status),
			Momentum:    t.Momentum,
		})
	}

	insightDTOs := make([]dto.DigestInsight, 0, len(insights))
	for _, ins := range insights {
		insightDTOs = append(insightDTOs, dto.DigestInsight{
			Title:       ins.Title,
			Description: ins.Description,
			ImpactLevel: string(ins.ImpactLevel),
		})
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Analyzer.CallTimeout)
	defer cancel()
	return c.aiRepo.SummarizeDigest(callCtx, string(digestType), storyDTOs, trendDTOs, insightDTOs)
}

func (c *digestCompiler) buildDigest(
	digestType entity.DigestType,
	periodStart, periodEnd time.Time,
	summary *dto.DigestSummaryResult,
	stories []entity.Article,
	trends []entity.Trend,
	insights []entity.Insight,
	analyzed []entity.Article,
) *entity.Digest {
	storyIDs := make([]uint, 0, len(stories))
	for _, a := range stories {
		storyIDs = append(storyIDs, a.ID)
	}

	trendNames := make([]string, 0, len(trends))
	for _, t := range trends {
		trendNames = append(trendNames, t.Name)
	}

	insightTitles := make([]string, 0, len(insights))
	for _, ins := range insights {
		insightTitles = append(insightTitles, ins.Title)
	}

	themes := make(map[string]struct{})
	regions := make(map[string]struct{})
	for _, a := range analyzed {
		if a.PrimaryTheme != nil {
			themes[*a.PrimaryTheme] = struct{}{}
		}
		if a.Region != "" {
			regions[a.Region] = struct{}{}
		}
	}

	return &entity.Digest{
		DigestType:     digestType,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Title:          summary.Title,
		Summary:        summary.Summary,
		TopStories:     storyIDs,
		EmergingTrends: trendNames,
		KeyInsights:    insightTitles,
		TotalArticles:  len(analyzed),
		ThemesCovered:  sortedKeys(themes),
		RegionsCovered: sortedKeys(regions),
	}
}

func (c *digestCompiler) notify(digest *entity.Digest, stories []entity.Article, trends []entity.Trend) {
	titles := make([]string, 0, len(stories))
	for _, a := range stories {
		titles = append(titles, a.Title)
	}
	trendNames := make([]string, 0, len(trends))
	for _, t := range trends {
		trendNames = append(trendNames, t.Name)
	}

	msg := telegram.FormatDigest(telegram.DigestMessage{
		Title:          digest.Title,
		Summary:        digest.Summary,
		PeriodStart:    digest.PeriodStart.Format("2006-01-02"),
		PeriodEnd:      digest.PeriodEnd.Format("2006-01-02"),
		TotalArticles:  digest.TotalArticles,
		TopStories:     titles,
		EmergingTrends: trendNames,
	})
	if err := c.notifier.SendMessage(msg); err != nil {
		c.logger.Error("Failed to send digest notification", logger.ErrorField(err))
	}
}

// PeriodWindow returns the non-overlapping [start, end) window the
// timestamp falls into: the UTC day for daily digests, the ISO week
// for weekly ones.
func PeriodWindow(digestType entity.DigestType, at time.Time) (time.Time, time.Time) {
	if digestType == entity.DigestWeekly {
		start := utils.WeekBucket(at)
		return start, start.AddDate(0, 0, 7)
	}
	start := utils.DayBucket(at)
	return start, start.AddDate(0, 0, 1)
}

func fallbackTitle(digestType entity.DigestType, periodStart time.Time) string {
	if digestType == entity.DigestWeekly {
		return "Weekly Digest " + periodStart.Format("2006-01-02")
	}
	return "Daily Digest " + periodStart.Format("2006-01-02")
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
