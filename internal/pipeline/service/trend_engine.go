package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"hr-signals/internal/entity"
	"hr-signals/internal/pipeline/config"
	"hr-signals/internal/pipeline/repository"
	"hr-signals/pkg/logger"
	"hr-signals/pkg/utils"
)

// TrendStats reports the outcome of one trend pass.
type TrendStats struct {
	TrendsUpdated int
}

// TrendEngine maintains one trend per theme: it recomputes the day
// bucketed time series from linked articles, derives momentum and
// walks the status state machine.
type TrendEngine interface {
	UpdateForArticles(ctx context.Context, batch []AnalyzedArticle) (TrendStats, error)
	UpdateTheme(ctx context.Context, theme *entity.Theme) error
	PruneDataPoints(ctx context.Context) (int64, error)
}

// NewTrendEngine creates the trend engine.
func NewTrendEngine(cfg *config.Config, log *logger.Logger, trendRepo repository.TrendRepository, taxonomyRepo repository.TaxonomyRepository, articleRepo repository.ArticleRepository) TrendEngine {
	return &trendEngine{
		cfg:          cfg,
		logger:       log,
		trendRepo:    trendRepo,
		taxonomyRepo: taxonomyRepo,
		articleRepo:  articleRepo,
		locks:        make(map[uint]*sync.Mutex),
	}
}

type trendEngine struct {
	cfg          *config.Config
	logger       *logger.Logger
	trendRepo    repository.TrendRepository
	taxonomyRepo repository.TaxonomyRepository
	articleRepo  repository.ArticleRepository

	// locks serializes updates per theme. Different themes may
	// recompute concurrently; the same theme must not.
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// UpdateForArticles recomputes the trend of every theme touched by
// the batch. Each theme is visited once no matter how many articles
// reference it.
func (t *trendEngine) UpdateForArticles(ctx context.Context, batch []AnalyzedArticle) (TrendStats, error) {
	var stats TrendStats

	touched := make(map[string]struct{})
	for _, item := range batch {
		if item.Article.PrimaryTheme == nil {
			continue
		}
		touched[*item.Article.PrimaryTheme] = struct{}{}
	}

	for name := range touched {
		if !utils.ShouldContinue(ctx, t.logger) {
			break
		}
		theme, err := t.taxonomyRepo.FindThemeByName(ctx, name)
		if err != nil {
			return stats, err
		}
		if theme == nil {
			continue
		}
		if err := t.UpdateTheme(ctx, theme); err != nil {
			t.logger.Error("Failed to update trend",
				logger.ErrorField(err),
				logger.StringField("theme", name),
			)
			continue
		}
		stats.TrendsUpdated++
	}

	return stats, nil
}

// UpdateTheme rebuilds the theme's trend from first principles: the
// full set of linked articles determines the buckets, counts and
// averages. Replaying the same articles produces the same state.
func (t *trendEngine) UpdateTheme(ctx context.Context, theme *entity.Theme) error {
	lock := t.lockFor(theme.ID)
	lock.Lock()
	defer lock.Unlock()

	articles, err := t.articleRepo.FindLinkedToTheme(ctx, theme.ID)
	if err != nil {
		return err
	}
	if len(articles) == 0 {
		return nil
	}

	trend, err := t.findOrCreateTrend(ctx, theme, articles)
	if err != nil {
		return err
	}

	buckets := bucketArticles(articles)
	for _, b := range buckets {
		point := entity.TrendDataPoint{
			TrendID:      trend.ID,
			Date:         b.date,
			ArticleCount: b.count,
		}
		if b.sentimentN > 0 {
			avg := b.sentimentSum / float64(b.sentimentN)
			point.SentimentAvg = &avg
		}
		if b.signalN > 0 {
			avg := b.signalSum / float64(b.signalN)
			point.SignalStrengthAvg = &avg
		}
		if err := t.trendRepo.UpsertDataPoint(ctx, &point); err != nil {
			return err
		}
	}

	momentum := t.computeMomentum(buckets)

	trend.ArticleCount = len(articles)
	trend.Momentum = momentum
	trend.LastUpdated = time.Now().UTC()
	t.applyTransition(trend, momentum)

	if err := t.trendRepo.Update(ctx, trend); err != nil {
		return err
	}

	return t.markEmergingArticles(ctx, trend, articles)
}

// PruneDataPoints drops day buckets older than the retention window
// across all trends. Current trend state is unaffected; momentum only
// reads the recent window.
func (t *trendEngine) PruneDataPoints(ctx context.Context) (int64, error) {
	trends, err := t.trendRepo.FindAll(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := utils.DayBucket(time.Now().UTC().AddDate(0, 0, -t.cfg.Trend.DataPointRetentionDays))

	var pruned int64
	for _, trend := range trends {
		if !utils.ShouldContinue(ctx, t.logger) {
			break
		}
		lock := t.lockFor(trend.ThemeID)
		lock.Lock()
		n, err := t.trendRepo.DeleteDataPointsBefore(ctx, trend.ID, cutoff)
		lock.Unlock()
		if err != nil {
			t.logger.Error("Failed to prune trend data points",
				logger.ErrorField(err),
				logger.Field("trend_id", trend.ID),
			)
			continue
		}
		pruned += n
	}
	return pruned, nil
}

func (t *trendEngine) findOrCreateTrend(ctx context.Context, theme *entity.Theme, articles []entity.Article) (*entity.Trend, error) {
	trend, err := t.trendRepo.FindByThemeID(ctx, theme.ID)
	if err != nil {
		return nil, err
	}
	if trend != nil {
		return trend, nil
	}

	start := articles[0].PublishedAt
	for _, a := range articles[1:] {
		if a.PublishedAt.Before(start) {
			start = a.PublishedAt
		}
	}

	now := time.Now().UTC()
	trend = &entity.Trend{
		ThemeID:         theme.ID,
		Name:            theme.Name,
		Description:     theme.Description,
		Keywords:        theme.Keywords,
		StartDate:       utils.DayBucket(start),
		Status:          entity.TrendEmerging,
		StatusChangedAt: now,
		LastUpdated:     now,
	}
	if err := t.trendRepo.Create(ctx, trend); err != nil {
		return nil, err
	}
	if trend.ID == 0 {
		// Lost a create race; the existing row wins.
		return t.trendRepo.FindByName(ctx, theme.Name)
	}
	return trend, nil
}

type dayBucket struct {
	date         time.Time
	count        int
	sentimentSum float64
	sentimentN   int
	signalSum    float64
	signalN      int
}

// bucketArticles folds articles into day buckets ordered by date.
func bucketArticles(articles []entity.Article) []dayBucket {
	byDay := make(map[time.Time]*dayBucket)
	for i := range articles {
		a := &articles[i]
		day := utils.DayBucket(a.PublishedAt)
		b, ok := byDay[day]
		if !ok {
			b = &dayBucket{date: day}
			byDay[day] = b
		}
		b.count++
		if a.SentimentScore != nil {
			b.sentimentSum += *a.SentimentScore
			b.sentimentN++
		}
		if a.SignalStrength != nil {
			b.signalSum += *a.SignalStrength
			b.signalN++
		}
	}

	ordered := make([]dayBucket, 0, len(byDay))
	for _, b := range byDay {
		ordered = append(ordered, *b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].date.Before(ordered[j].date)
	})
	return ordered
}

// computeMomentum compares the latest bucket against the mean of the
// preceding window: (latest - mean) / max(mean, 1). A single bucket
// has no history and reads as its own count over 1.
func (t *trendEngine) computeMomentum(buckets []dayBucket) float64 {
	if len(buckets) == 0 {
		return 0
	}
	latest := buckets[len(buckets)-1]

	window := t.cfg.Trend.WindowDays
	start := len(buckets) - 1 - window
	if start < 0 {
		start = 0
	}
	prior := buckets[start : len(buckets)-1]
	if len(prior) == 0 {
		return float64(latest.count) - 1
	}

	sum := 0
	for _, b := range prior {
		sum += b.count
	}
	mean := float64(sum) / float64(len(prior))

	denom := mean
	if denom < 1 {
		denom = 1
	}
	return (float64(latest.count) - mean) / denom
}

// applyTransition walks at most one legal status edge per pass.
func (t *trendEngine) applyTransition(trend *entity.Trend, momentum float64) {
	next := trend.Status

	switch trend.Status {
	case entity.TrendEmerging:
		if momentum >= t.cfg.Trend.EmergingMomentum && trend.ArticleCount > t.cfg.Trend.EmergingMaxArticles {
			next = entity.TrendGrowing
		}
	case entity.TrendGrowing:
		if momentum <= t.cfg.Trend.PeakBand && momentum >= -t.cfg.Trend.PeakBand {
			next = entity.TrendPeak
		}
	case entity.TrendPeak:
		if momentum <= t.cfg.Trend.DecliningMomentum {
			next = entity.TrendDeclining
		}
	case entity.TrendDeclining:
		if momentum >= t.cfg.Trend.GrowingMomentum {
			next = entity.TrendGrowing
		}
	}

	if next == trend.Status || !trend.Status.CanTransition(next) {
		return
	}

	now := time.Now().UTC()
	trend.Status = next
	trend.StatusChangedAt = now
	if next == entity.TrendPeak {
		trend.PeakDate = &now
	}
}

// markEmergingArticles keeps the article is_emerging flag in line
// with the trend's current status.
func (t *trendEngine) markEmergingArticles(ctx context.Context, trend *entity.Trend, articles []entity.Article) error {
	emerging := trend.Status == entity.TrendEmerging
	for i := range articles {
		a := &articles[i]
		if a.IsEmerging == emerging {
			continue
		}
		a.IsEmerging = emerging
		if err := t.articleRepo.Update(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (t *trendEngine) lockFor(themeID uint) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.locks[themeID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[themeID] = lock
	}
	return lock
}
