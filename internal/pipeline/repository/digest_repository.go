package repository

import (
	"context"
	"errors"
	"time"

	"hr-signals/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DigestRepository defines persistence for compiled digests. The
// (digest_type, period_start) unique index carries the one-digest-per-
// period invariant; recompiles overwrite.
type DigestRepository interface {
	Upsert(ctx context.Context, digest *entity.Digest) error
	FindByPeriod(ctx context.Context, digestType entity.DigestType, periodStart time.Time) (*entity.Digest, error)
	FindRecent(ctx context.Context, digestType entity.DigestType, limit int) ([]entity.Digest, error)
}

// NewDigestRepository creates a gorm-backed DigestRepository.
func NewDigestRepository(db *gorm.DB) DigestRepository {
	return &digestRepository{db: db}
}

type digestRepository struct {
	db *gorm.DB
}

func (r *digestRepository) Upsert(ctx context.Context, digest *entity.Digest) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "digest_type"}, {Name: "period_start"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"period_end", "title", "summary", "top_stories", "emerging_trends",
			"key_insights", "total_articles", "themes_covered", "regions_covered", "updated_at",
		}),
	}).Create(digest).Error
}

func (r *digestRepository) FindByPeriod(ctx context.Context, digestType entity.DigestType, periodStart time.Time) (*entity.Digest, error) {
	var digest entity.Digest
	err := r.db.WithContext(ctx).
		Where("digest_type = ? AND period_start = ?", digestType, periodStart).
		First(&digest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &digest, nil
}

func (r *digestRepository) FindRecent(ctx context.Context, digestType entity.DigestType, limit int) ([]entity.Digest, error) {
	var digests []entity.Digest
	q := r.db.WithContext(ctx).Order("period_start DESC")
	if digestType != "" {
		q = q.Where("digest_type = ?", digestType)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&digests).Error
	return digests, err
}
