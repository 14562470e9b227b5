package repository

import (
	"context"
	"errors"
	"time"

	"hr-signals/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArticleRepository defines persistence for articles. The URL unique
// index carries the idempotent-ingestion invariant: the same URL can
// never produce a second row.
type ArticleRepository interface {
	CreateIgnoreConflict(ctx context.Context, article *entity.Article) (bool, error)
	Update(ctx context.Context, article *entity.Article) error
	FindByID(ctx context.Context, id uint) (*entity.Article, error)
	FindByURL(ctx context.Context, url string) (*entity.Article, error)
	FindRecent(ctx context.Context, since time.Time) ([]entity.Article, error)
	FindPendingAnalysis(ctx context.Context, limit int) ([]entity.Article, error)
	FindAnalyzedBetween(ctx context.Context, from, to time.Time) ([]entity.Article, error)
	FindTopBySignal(ctx context.Context, from, to time.Time, limit int) ([]entity.Article, error)
	FindLinkedToTheme(ctx context.Context, themeID uint) ([]entity.Article, error)
	Count(ctx context.Context) (int64, error)
}

// NewArticleRepository creates a gorm-backed ArticleRepository.
func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{db: db}
}

type articleRepository struct {
	db *gorm.DB
}

// CreateIgnoreConflict inserts the article unless its URL already
// exists. Returns true when a new row was created.
func (r *articleRepository) CreateIgnoreConflict(ctx context.Context, article *entity.Article) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoNothing: true,
	}).Create(article)
	if tx.Error != nil {
		return false, tx.Error
	}
	if tx.RowsAffected == 0 {
		// Conflict path: load the existing row so callers see the
		// stable id.
		existing, err := r.FindByURL(ctx, article.URL)
		if err != nil {
			return false, err
		}
		if existing != nil {
			*article = *existing
		}
		return false, nil
	}
	return true, nil
}

func (r *articleRepository) Update(ctx context.Context, article *entity.Article) error {
	return r.db.WithContext(ctx).Save(article).Error
}

func (r *articleRepository) FindByID(ctx context.Context, id uint) (*entity.Article, error) {
	var article entity.Article
	err := r.db.WithContext(ctx).First(&article, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

func (r *articleRepository) FindByURL(ctx context.Context, url string) (*entity.Article, error) {
	var article entity.Article
	err := r.db.WithContext(ctx).Where("url = ?", url).First(&article).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

func (r *articleRepository) FindRecent(ctx context.Context, since time.Time) ([]entity.Article, error) {
	var articles []entity.Article
	err := r.db.WithContext(ctx).
		Where("scraped_at >= ?", since).
		Order("scraped_at DESC").
		Find(&articles).Error
	return articles, err
}

func (r *articleRepository) FindPendingAnalysis(ctx context.Context, limit int) ([]entity.Article, error) {
	var articles []entity.Article
	q := r.db.WithContext(ctx).
		Where("analysis_status IN ?", []entity.AnalysisStatus{entity.AnalysisStatusPending, entity.AnalysisStatusRetry}).
		Order("published_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&articles).Error
	return articles, err
}

func (r *articleRepository) FindAnalyzedBetween(ctx context.Context, from, to time.Time) ([]entity.Article, error) {
	var articles []entity.Article
	err := r.db.WithContext(ctx).
		Where("analysis_status = ?", entity.AnalysisStatusAnalyzed).
		Where("published_at >= ? AND published_at < ?", from, to).
		Order("published_at ASC").
		Find(&articles).Error
	return articles, err
}

func (r *articleRepository) FindTopBySignal(ctx context.Context, from, to time.Time, limit int) ([]entity.Article, error) {
	var articles []entity.Article
	err := r.db.WithContext(ctx).
		Where("analysis_status = ?", entity.AnalysisStatusAnalyzed).
		Where("published_at >= ? AND published_at < ?", from, to).
		Order("signal_strength DESC").
		Limit(limit).
		Find(&articles).Error
	return articles, err
}

// FindLinkedToTheme returns every article linked to the theme through
// the association table. The trend engine recomputes its buckets from
// this set.
func (r *articleRepository) FindLinkedToTheme(ctx context.Context, themeID uint) ([]entity.Article, error) {
	var articles []entity.Article
	err := r.db.WithContext(ctx).
		Joins("JOIN article_themes ON article_themes.article_id = articles.id").
		Where("article_themes.theme_id = ?", themeID).
		Order("articles.published_at ASC").
		Find(&articles).Error
	return articles, err
}

func (r *articleRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Article{}).Count(&count).Error
	return count, err
}
