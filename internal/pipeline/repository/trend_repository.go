package repository

import (
	"context"
	"errors"
	"time"

	"hr-signals/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TrendRepository defines persistence for trends and their time
// series. Data points upsert by (trend_id, date) so replays update the
// same bucket instead of duplicating it.
type TrendRepository interface {
	FindByName(ctx context.Context, name string) (*entity.Trend, error)
	FindByThemeID(ctx context.Context, themeID uint) (*entity.Trend, error)
	FindAll(ctx context.Context) ([]entity.Trend, error)
	Create(ctx context.Context, trend *entity.Trend) error
	Update(ctx context.Context, trend *entity.Trend) error
	UpsertDataPoint(ctx context.Context, point *entity.TrendDataPoint) error
	DeleteDataPointsBefore(ctx context.Context, trendID uint, before time.Time) (int64, error)
	FindDataPoints(ctx context.Context, trendID uint) ([]entity.TrendDataPoint, error)
	FindTransitionedBetween(ctx context.Context, from, to time.Time, statuses []entity.TrendStatus, limit int) ([]entity.Trend, error)
}

// NewTrendRepository creates a gorm-backed TrendRepository.
func NewTrendRepository(db *gorm.DB) TrendRepository {
	return &trendRepository{db: db}
}

type trendRepository struct {
	db *gorm.DB
}

func (r *trendRepository) FindByName(ctx context.Context, name string) (*entity.Trend, error) {
	var trend entity.Trend
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&trend).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trend, nil
}

func (r *trendRepository) FindByThemeID(ctx context.Context, themeID uint) (*entity.Trend, error) {
	var trend entity.Trend
	err := r.db.WithContext(ctx).Where("theme_id = ?", themeID).First(&trend).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trend, nil
}

func (r *trendRepository) Create(ctx context.Context, trend *entity.Trend) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(trend).Error
}

func (r *trendRepository) Update(ctx context.Context, trend *entity.Trend) error {
	return r.db.WithContext(ctx).Save(trend).Error
}

func (r *trendRepository) UpsertDataPoint(ctx context.Context, point *entity.TrendDataPoint) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trend_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"article_count", "sentiment_avg", "signal_strength_avg"}),
	}).Create(point).Error
}

func (r *trendRepository) FindAll(ctx context.Context) ([]entity.Trend, error) {
	var trends []entity.Trend
	err := r.db.WithContext(ctx).Order("id ASC").Find(&trends).Error
	return trends, err
}

func (r *trendRepository) DeleteDataPointsBefore(ctx context.Context, trendID uint, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("trend_id = ? AND date < ?", trendID, before).
		Delete(&entity.TrendDataPoint{})
	return result.RowsAffected, result.Error
}

func (r *trendRepository) FindDataPoints(ctx context.Context, trendID uint) ([]entity.TrendDataPoint, error) {
	var points []entity.TrendDataPoint
	err := r.db.WithContext(ctx).
		Where("trend_id = ?", trendID).
		Order("date ASC").
		Find(&points).Error
	return points, err
}

func (r *trendRepository) FindTransitionedBetween(ctx context.Context, from, to time.Time, statuses []entity.TrendStatus, limit int) ([]entity.Trend, error) {
	var trends []entity.Trend
	q := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Where("status_changed_at >= ? AND status_changed_at < ?", from, to).
		Order("momentum DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&trends).Error
	return trends, err
}
