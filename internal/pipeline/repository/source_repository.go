package repository

import (
	"context"
	"time"

	"hr-signals/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SourceRepository defines persistence for the source registry.
type SourceRepository interface {
	Seed(ctx context.Context, sources []entity.Source) error
	FindActive(ctx context.Context) ([]entity.Source, error)
	MarkScraped(ctx context.Context, sourceID uint, at time.Time) error
	SetHealth(ctx context.Context, sourceID uint, healthy bool) error
}

// NewSourceRepository creates a gorm-backed SourceRepository.
func NewSourceRepository(db *gorm.DB) SourceRepository {
	return &sourceRepository{db: db}
}

type sourceRepository struct {
	db *gorm.DB
}

// Seed upserts the configured sources by URL.
func (r *sourceRepository) Seed(ctx context.Context, sources []entity.Source) error {
	if len(sources) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "category", "is_active"}),
	}).Create(&sources).Error
}

func (r *sourceRepository) FindActive(ctx context.Context) ([]entity.Source, error) {
	var sources []entity.Source
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&sources).Error
	return sources, err
}

func (r *sourceRepository) MarkScraped(ctx context.Context, sourceID uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&entity.Source{}).
		Where("id = ?", sourceID).
		Updates(map[string]interface{}{"last_scraped_at": at, "is_healthy": true}).Error
}

func (r *sourceRepository) SetHealth(ctx context.Context, sourceID uint, healthy bool) error {
	return r.db.WithContext(ctx).Model(&entity.Source{}).
		Where("id = ?", sourceID).
		Update("is_healthy", healthy).Error
}
