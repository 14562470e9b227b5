package repository

import (
	"context"

	"hr-signals/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaxonomyRepository serves the canonical theme/sector vocabularies
// and the article association rows.
type TaxonomyRepository interface {
	SeedThemes(ctx context.Context, themes []entity.Theme) error
	SeedSectors(ctx context.Context, sectors []entity.Sector) error
	FindThemes(ctx context.Context) ([]entity.Theme, error)
	FindSectors(ctx context.Context) ([]entity.Sector, error)
	FindThemeByName(ctx context.Context, name string) (*entity.Theme, error)
	LinkTheme(ctx context.Context, link *entity.ArticleTheme) error
	LinkSector(ctx context.Context, link *entity.ArticleSector) error
	FindArticleThemes(ctx context.Context, articleID uint) ([]entity.ArticleTheme, error)
	CountDistinctArticles(ctx context.Context, themeID uint) (int64, error)
}

// NewTaxonomyRepository creates a gorm-backed TaxonomyRepository.
func NewTaxonomyRepository(db *gorm.DB) TaxonomyRepository {
	return &taxonomyRepository{db: db}
}

type taxonomyRepository struct {
	db *gorm.DB
}

// SeedThemes upserts the vocabulary by name so restarts are
// idempotent and config edits propagate.
func (r *taxonomyRepository) SeedThemes(ctx context.Context, themes []entity.Theme) error {
	if len(themes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "keywords", "color"}),
	}).Create(&themes).Error
}

func (r *taxonomyRepository) SeedSectors(ctx context.Context, sectors []entity.Sector) error {
	if len(sectors) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "keywords"}),
	}).Create(&sectors).Error
}

func (r *taxonomyRepository) FindThemes(ctx context.Context) ([]entity.Theme, error) {
	var themes []entity.Theme
	err := r.db.WithContext(ctx).Order("id ASC").Find(&themes).Error
	return themes, err
}

func (r *taxonomyRepository) FindSectors(ctx context.Context) ([]entity.Sector, error) {
	var sectors []entity.Sector
	err := r.db.WithContext(ctx).Order("id ASC").Find(&sectors).Error
	return sectors, err
}

func (r *taxonomyRepository) FindThemeByName(ctx context.Context, name string) (*entity.Theme, error) {
	var theme entity.Theme
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&theme).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &theme, nil
}

// LinkTheme attaches an article to a theme. Replaying the same link is
// a no-op thanks to the composite unique index.
func (r *taxonomyRepository) LinkTheme(ctx context.Context, link *entity.ArticleTheme) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "article_id"}, {Name: "theme_id"}},
		DoNothing: true,
	}).Create(link).Error
}

func (r *taxonomyRepository) LinkSector(ctx context.Context, link *entity.ArticleSector) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "article_id"}, {Name: "sector_id"}},
		DoNothing: true,
	}).Create(link).Error
}

func (r *taxonomyRepository) FindArticleThemes(ctx context.Context, articleID uint) ([]entity.ArticleTheme, error) {
	var links []entity.ArticleTheme
	err := r.db.WithContext(ctx).Where("article_id = ?", articleID).Find(&links).Error
	return links, err
}

func (r *taxonomyRepository) CountDistinctArticles(ctx context.Context, themeID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.ArticleTheme{}).
		Where("theme_id = ?", themeID).
		Distinct("article_id").
		Count(&count).Error
	return count, err
}
