package repository

import (
	"context"
	"time"

	"hr-signals/internal/entity"

	"gorm.io/gorm"
)

// InsightRepository defines persistence for extracted insights.
type InsightRepository interface {
	Create(ctx context.Context, insight *entity.Insight) error
	FindByThemeSince(ctx context.Context, theme string, since time.Time) ([]entity.Insight, error)
	FindCreatedBetween(ctx context.Context, from, to time.Time, limit int) ([]entity.Insight, error)
}

// NewInsightRepository creates a gorm-backed InsightRepository.
func NewInsightRepository(db *gorm.DB) InsightRepository {
	return &insightRepository{db: db}
}

type insightRepository struct {
	db *gorm.DB
}

func (r *insightRepository) Create(ctx context.Context, insight *entity.Insight) error {
	return r.db.WithContext(ctx).Create(insight).Error
}

func (r *insightRepository) FindByThemeSince(ctx context.Context, theme string, since time.Time) ([]entity.Insight, error) {
	var insights []entity.Insight
	err := r.db.WithContext(ctx).
		Where("theme = ? AND created_at >= ?", theme, since).
		Find(&insights).Error
	return insights, err
}

// FindCreatedBetween returns insights ranked by impact level then
// relevance, the digest ordering.
func (r *insightRepository) FindCreatedBetween(ctx context.Context, from, to time.Time, limit int) ([]entity.Insight, error) {
	var insights []entity.Insight
	q := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("CASE impact_level WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END").
		Order("relevance_score DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&insights).Error
	return insights, err
}
