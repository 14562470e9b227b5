package repository

import (
	"context"

	"hr-signals/internal/entity"

	"gorm.io/gorm"
)

// PipelineRunRepository tracks run state per (stage, run_key) so the
// orchestrator survives a crash mid-run.
type PipelineRunRepository interface {
	Create(ctx context.Context, run *entity.PipelineRun) error
	Update(ctx context.Context, run *entity.PipelineRun) error
	FindRecent(ctx context.Context, stage string, limit int) ([]entity.PipelineRun, error)
}

// NewPipelineRunRepository creates a gorm-backed PipelineRunRepository.
func NewPipelineRunRepository(db *gorm.DB) PipelineRunRepository {
	return &pipelineRunRepository{db: db}
}

type pipelineRunRepository struct {
	db *gorm.DB
}

func (r *pipelineRunRepository) Create(ctx context.Context, run *entity.PipelineRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *pipelineRunRepository) Update(ctx context.Context, run *entity.PipelineRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *pipelineRunRepository) FindRecent(ctx context.Context, stage string, limit int) ([]entity.PipelineRun, error) {
	var runs []entity.PipelineRun
	q := r.db.WithContext(ctx).Order("started_at DESC")
	if stage != "" {
		q = q.Where("stage = ?", stage)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&runs).Error
	return runs, err
}
