package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"hr-signals/internal/entity"
	"hr-signals/internal/pipeline/config"
	"hr-signals/internal/pipeline/dto"
	"hr-signals/internal/pipeline/repository"
	"hr-signals/pkg/logger"
	"hr-signals/pkg/utils"
)

// AnalyzeStats reports the outcome of one analysis pass.
type AnalyzeStats struct {
	Analyzed int
	Retries  int
	Failures int
}

// AnalyzedArticle pairs a persisted article with the raw model
// output, for downstream classification.
type AnalyzedArticle struct {
	Article *entity.Article
	Result  *dto.AnalysisResult
}

// Analyzer runs AI analysis over articles awaiting it. One article
// failing never aborts the batch.
type Analyzer interface {
	AnalyzeBatch(ctx context.Context, articles []entity.Article) ([]AnalyzedArticle, AnalyzeStats)
	AnalyzePending(ctx context.Context, limit int) ([]AnalyzedArticle, AnalyzeStats, error)
}

// NewAnalyzer creates the analyzer backed by the given AI repository.
func NewAnalyzer(cfg *config.Config, log *logger.Logger, aiRepo repository.AIRepository, articleRepo repository.ArticleRepository) Analyzer {
	return &analyzer{
		cfg:         cfg,
		logger:      log,
		aiRepo:      aiRepo,
		articleRepo: articleRepo,
	}
}

type analyzer struct {
	cfg         *config.Config
	logger      *logger.Logger
	aiRepo      repository.AIRepository
	articleRepo repository.ArticleRepository
}

// AnalyzePending loads articles in pending or retry status and
// analyzes them.
func (a *analyzer) AnalyzePending(ctx context.Context, limit int) ([]AnalyzedArticle, AnalyzeStats, error) {
	articles, err := a.articleRepo.FindPendingAnalysis(ctx, limit)
	if err != nil {
		return nil, AnalyzeStats{}, err
	}
	analyzed, stats := a.AnalyzeBatch(ctx, articles)
	return analyzed, stats, nil
}

// AnalyzeBatch fans the articles out over a bounded worker pool and
// persists each outcome as it lands.
func (a *analyzer) AnalyzeBatch(ctx context.Context, articles []entity.Article) ([]AnalyzedArticle, AnalyzeStats) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		analyzed []AnalyzedArticle
		stats    AnalyzeStats
	)

	semaphore := make(chan struct{}, a.cfg.Analyzer.MaxConcurrent)

	for i := range articles {
		if !utils.ShouldContinue(ctx, a.logger) {
			break
		}
		article := articles[i]
		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			result := a.analyzeOne(ctx, &article)

			if err := a.articleRepo.Update(ctx, &article); err != nil {
				a.logger.Error("Failed to persist analysis outcome",
					logger.ErrorField(err),
					logger.Field("article_id", article.ID),
				)
				return
			}

			mu.Lock()
			defer mu.Unlock()
			switch article.AnalysisStatus {
			case entity.AnalysisStatusAnalyzed:
				stats.Analyzed++
				analyzed = append(analyzed, AnalyzedArticle{Article: &article, Result: result})
			case entity.AnalysisStatusRetry:
				stats.Retries++
			case entity.AnalysisStatusFailed:
				stats.Failures++
			}
		})
	}

	wg.Wait()
	return analyzed, stats
}

// analyzeOne attempts analysis with bounded exponential backoff and
// mutates the article in place. Malformed responses retry the same as
// rate limits and timeouts. A failed pass burns one lifetime attempt,
// and an article whose lifetime budget is spent moves to failed
// instead of retry.
func (a *analyzer) analyzeOne(ctx context.Context, article *entity.Article) *dto.AnalysisResult {
	var lastErr error

	for attempt := 1; attempt <= a.cfg.Analyzer.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.Analyzer.CallTimeout)
		result, err := a.aiRepo.AnalyzeArticle(callCtx, article.Title, article.PublishedAt, article.RawContent)
		cancel()

		if err == nil {
			a.applyResult(article, result)
			return result
		}
		lastErr = err

		a.logger.Warn("Article analysis attempt failed",
			logger.ErrorField(err),
			logger.Field("article_id", article.ID),
			logger.IntField("attempt", attempt),
		)

		if attempt < a.cfg.Analyzer.MaxAttempts {
			if !a.sleepBackoff(ctx, attempt) {
				break
			}
		}
	}

	article.AnalysisAttempts++
	if article.AnalysisAttempts >= a.cfg.Analyzer.MaxAttempts {
		kind := entity.FailureTransient
		if errors.Is(lastErr, dto.ErrAnalysisValidation) {
			kind = entity.FailureValidation
		}
		article.AnalysisFailure = &kind
		article.AnalysisStatus = entity.AnalysisStatusFailed
		a.logger.Error("Article analysis exhausted",
			logger.ErrorField(lastErr),
			logger.Field("article_id", article.ID),
			logger.IntField("attempts", article.AnalysisAttempts),
			logger.StringField("failure_kind", string(kind)),
		)
	} else {
		article.AnalysisStatus = entity.AnalysisStatusRetry
	}
	return nil
}

func (a *analyzer) applyResult(article *entity.Article, result *dto.AnalysisResult) {
	summary := utils.TruncateRunes(result.Summary, a.cfg.Analyzer.MaxSummaryLen)
	label := entity.SentimentLabel(result.SentimentLabel)

	article.Summary = &summary
	article.KeyTakeaways = result.KeyTakeaways
	article.Region = result.Region
	article.SentimentLabel = &label
	article.SentimentScore = &result.SentimentScore
	article.SignalStrength = &result.SignalStrength
	article.ConfidenceScore = &result.ConfidenceScore
	article.AnalysisStatus = entity.AnalysisStatusAnalyzed
	article.AnalysisFailure = nil
}

func (a *analyzer) sleepBackoff(ctx context.Context, attempt int) bool {
	delay := a.cfg.Analyzer.BackoffBase << (attempt - 1)
	if delay > a.cfg.Analyzer.BackoffMax {
		delay = a.cfg.Analyzer.BackoffMax
	}
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}
