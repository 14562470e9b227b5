package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hr-signals/internal/entity"
	"hr-signals/internal/pipeline/config"
	"hr-signals/internal/pipeline/repository"
	"hr-signals/pkg/logger"
	"hr-signals/pkg/redis"

	"gorm.io/datatypes"
)

const (
	StagePipeline = "pipeline"
	StageDigest   = "digest"
	StageCleanup  = "cleanup"
)

// Orchestrator drives the stages in order with partial-failure
// isolation. A redis lock per stage keeps runs non-overlapping; a
// persisted run row per (stage, run key) makes crashes observable.
type Orchestrator interface {
	RunPipeline(ctx context.Context) (*entity.RunSummary, error)
	RunDigest(ctx context.Context, digestType entity.DigestType) (*entity.Digest, error)
	RunCleanup(ctx context.Context) error
}

// NewOrchestrator wires the stages together.
func NewOrchestrator(
	cfg *config.Config,
	log *logger.Logger,
	redisClient *redis.Client,
	runRepo repository.PipelineRunRepository,
	sourceRepo repository.SourceRepository,
	fetcher Fetcher,
	deduplicator Deduplicator,
	analyzer Analyzer,
	classifier Classifier,
	trendEngine TrendEngine,
	insightExtractor InsightExtractor,
	digestCompiler DigestCompiler,
) Orchestrator {
	return &orchestrator{
		cfg:              cfg,
		logger:           log,
		redis:            redisClient,
		runRepo:          runRepo,
		sourceRepo:       sourceRepo,
		fetcher:          fetcher,
		deduplicator:     deduplicator,
		analyzer:         analyzer,
		classifier:       classifier,
		trendEngine:      trendEngine,
		insightExtractor: insightExtractor,
		digestCompiler:   digestCompiler,
	}
}

type orchestrator struct {
	cfg              *config.Config
	logger           *logger.Logger
	redis            *redis.Client
	runRepo          repository.PipelineRunRepository
	sourceRepo       repository.SourceRepository
	fetcher          Fetcher
	deduplicator     Deduplicator
	analyzer         Analyzer
	classifier       Classifier
	trendEngine      TrendEngine
	insightExtractor InsightExtractor
	digestCompiler   DigestCompiler
}

// RunPipeline executes fetch, dedup, analyze, classify, trend and
// insight stages in order. Per-item failures are absorbed into the
// summary; only being unable to start is an error.
func (o *orchestrator) RunPipeline(ctx context.Context) (*entity.RunSummary, error) {
	release, err := o.acquireStageLock(ctx, StagePipeline)
	if err != nil {
		return nil, err
	}
	defer release()

	run, err := o.startRun(ctx, StagePipeline)
	if err != nil {
		return nil, err
	}

	summary, runErr := o.runStages(ctx)
	o.finishRun(ctx, run, summary, runErr)
	if runErr != nil {
		return summary, runErr
	}

	o.logger.Info("Pipeline run completed",
		logger.IntField("sources_fetched", summary.SourcesFetched),
		logger.IntField("articles_created", summary.ArticlesCreated),
		logger.IntField("analyzed", summary.Analyzed),
		logger.IntField("trends_updated", summary.TrendsUpdated),
		logger.IntField("insights_created", summary.InsightsCreated),
	)
	return summary, nil
}

func (o *orchestrator) runStages(ctx context.Context) (*entity.RunSummary, error) {
	summary := &entity.RunSummary{}

	sources, err := o.sourceRepo.FindActive(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load sources: %w", err)
	}

	docs, fetchStats := o.fetcher.FetchAll(ctx, sources)
	summary.SourcesFetched = fetchStats.SourcesFetched
	summary.SourcesFailed = fetchStats.SourcesFailed
	summary.DocumentsFetched = fetchStats.DocumentsFetched
	summary.DocumentsDropped = fetchStats.DocumentsDropped

	_, dedupStats, err := o.deduplicator.Admit(ctx, docs)
	if err != nil {
		return summary, fmt.Errorf("failed to admit documents: %w", err)
	}
	summary.Duplicates = dedupStats.Duplicates
	summary.DocumentsRejected = dedupStats.Rejected
	summary.ArticlesCreated = dedupStats.ArticlesCreated

	// Pick up everything awaiting analysis, not just this run's
	// admissions, so articles parked in retry get their turn.
	analyzed, analyzeStats, err := o.analyzer.AnalyzePending(ctx, 0)
	if err != nil {
		return summary, fmt.Errorf("failed to analyze articles: %w", err)
	}
	summary.Analyzed = analyzeStats.Analyzed
	summary.AnalysisRetries = analyzeStats.Retries
	summary.AnalysisFailures = analyzeStats.Failures

	classifyStats, err := o.classifier.ClassifyBatch(ctx, analyzed)
	if err != nil {
		return summary, fmt.Errorf("failed to classify articles: %w", err)
	}
	summary.ArticlesLinked = classifyStats.ArticlesLinked

	trendStats, err := o.trendEngine.UpdateForArticles(ctx, analyzed)
	if err != nil {
		return summary, fmt.Errorf("failed to update trends: %w", err)
	}
	summary.TrendsUpdated = trendStats.TrendsUpdated

	insightStats, err := o.insightExtractor.ExtractFromBatch(ctx, analyzed)
	if err != nil {
		return summary, fmt.Errorf("failed to extract insights: %w", err)
	}
	summary.InsightsCreated = insightStats.InsightsCreated

	return summary, nil
}

// RunDigest compiles the digest for the period the current time falls
// into, behind its own stage lock.
func (o *orchestrator) RunDigest(ctx context.Context, digestType entity.DigestType) (*entity.Digest, error) {
	release, err := o.acquireStageLock(ctx, StageDigest+":"+string(digestType))
	if err != nil {
		return nil, err
	}
	defer release()

	run, err := o.startRun(ctx, StageDigest+":"+string(digestType))
	if err != nil {
		return nil, err
	}

	digest, compileErr := o.digestCompiler.Compile(ctx, digestType, time.Now().UTC())
	o.finishRun(ctx, run, &entity.RunSummary{}, compileErr)
	if compileErr != nil {
		return nil, compileErr
	}

	o.logger.Info("Digest compiled",
		logger.StringField("digest_type", string(digestType)),
		logger.StringField("period_start", digest.PeriodStart.Format("2006-01-02")),
		logger.IntField("total_articles", digest.TotalArticles),
	)
	return digest, nil
}

// RunCleanup prunes trend data points past the retention window.
func (o *orchestrator) RunCleanup(ctx context.Context) error {
	release, err := o.acquireStageLock(ctx, StageCleanup)
	if err != nil {
		return err
	}
	defer release()

	pruned, err := o.trendEngine.PruneDataPoints(ctx)
	if err != nil {
		return fmt.Errorf("failed to prune trend data points: %w", err)
	}
	o.logger.Info("Cleanup completed", logger.Field("data_points_pruned", pruned))
	return nil
}

func (o *orchestrator) acquireStageLock(ctx context.Context, stage string) (func(), error) {
	key := "hr-signals:lock:" + stage
	ok, err := o.redis.AcquireLock(ctx, key, o.cfg.Scheduler.RunLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s lock: %w", stage, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s run already in progress", stage)
	}
	return func() {
		if err := o.redis.ReleaseLock(context.Background(), key); err != nil {
			o.logger.Error("Failed to release stage lock", logger.ErrorField(err), logger.StringField("stage", stage))
		}
	}, nil
}

func (o *orchestrator) startRun(ctx context.Context, stage string) (*entity.PipelineRun, error) {
	now := time.Now().UTC()
	run := &entity.PipelineRun{
		Stage:     stage,
		RunKey:    now.Format("20060102T150405.000000000"),
		Status:    entity.RunStatusRunning,
		StartedAt: now,
	}
	if err := o.runRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}
	return run, nil
}

func (o *orchestrator) finishRun(ctx context.Context, run *entity.PipelineRun, summary *entity.RunSummary, runErr error) {
	run.Summary = datatypes.NewJSONType(*summary)
	run.CompletedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	if runErr != nil {
		run.Status = entity.RunStatusFailed
		run.ErrorMessage = sql.NullString{String: runErr.Error(), Valid: true}
	} else {
		run.Status = entity.RunStatusCompleted
	}
	if err := o.runRepo.Update(ctx, run); err != nil {
		o.logger.Error("Failed to record run completion", logger.ErrorField(err), logger.Field("run_id", run.ID))
	}
}
