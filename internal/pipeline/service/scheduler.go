package service

import (
	"context"
	"fmt"

	"hr-signals/internal/entity"
	"hr-signals/internal/pipeline/config"
	"hr-signals/pkg/logger"
	"hr-signals/pkg/utils"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers pipeline and digest runs on their cron cadences.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop()
}

// NewScheduler creates the cron-backed scheduler.
func NewScheduler(cfg *config.Config, log *logger.Logger, orchestrator Orchestrator) Scheduler {
	return &scheduler{
		cfg:          cfg,
		logger:       log,
		orchestrator: orchestrator,
		cron:         cron.New(cron.WithLocation(cfg.Scheduler.Location())),
	}
}

type scheduler struct {
	cfg          *config.Config
	logger       *logger.Logger
	orchestrator Orchestrator
	cron         *cron.Cron
}

// Start registers the three cadences and starts the cron loop. Each
// job runs detached with the scheduler's base context.
func (s *scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{"pipeline", s.cfg.Scheduler.ScrapeCron, func(ctx context.Context) {
			if _, err := s.orchestrator.RunPipeline(ctx); err != nil {
				s.logger.Error("Scheduled pipeline run failed", logger.ErrorField(err))
			}
		}},
		{"daily-digest", s.cfg.Scheduler.DailyDigestCron, func(ctx context.Context) {
			if _, err := s.orchestrator.RunDigest(ctx, entity.DigestDaily); err != nil {
				s.logger.Error("Scheduled daily digest failed", logger.ErrorField(err))
			}
		}},
		{"weekly-digest", s.cfg.Scheduler.WeeklyDigestCron, func(ctx context.Context) {
			if _, err := s.orchestrator.RunDigest(ctx, entity.DigestWeekly); err != nil {
				s.logger.Error("Scheduled weekly digest failed", logger.ErrorField(err))
			}
		}},
		{"cleanup", s.cfg.Scheduler.CleanupCron, func(ctx context.Context) {
			if err := s.orchestrator.RunCleanup(ctx); err != nil {
				s.logger.Error("Scheduled cleanup failed", logger.ErrorField(err))
			}
		}},
	}

	for _, job := range jobs {
		j := job
		_, err := s.cron.AddFunc(j.spec, func() {
			utils.GoSafe(func() {
				s.logger.Info("Scheduled job starting", logger.StringField("job", j.name))
				j.run(ctx)
			})
		})
		if err != nil {
			return fmt.Errorf("failed to register %s schedule %q: %w", j.name, j.spec, err)
		}
	}

	s.cron.Start()
	s.logger.Info("Scheduler started",
		logger.StringField("scrape_cron", s.cfg.Scheduler.ScrapeCron),
		logger.StringField("daily_digest_cron", s.cfg.Scheduler.DailyDigestCron),
		logger.StringField("weekly_digest_cron", s.cfg.Scheduler.WeeklyDigestCron),
		logger.StringField("cleanup_cron", s.cfg.Scheduler.CleanupCron),
	)
	return nil
}

// Stop halts the cron loop and waits for running jobs to return.
func (s *scheduler) Stop() {
	<-s.cron.Stop().Done()
}
