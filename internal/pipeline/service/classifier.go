package service

import (
	"context"
	"strings"

	"hr-signals/internal/entity"
	"hr-signals/internal/pipeline/config"
	"hr-signals/internal/pipeline/repository"
	"hr-signals/pkg/logger"
	"hr-signals/pkg/utils"
)

// ClassifyStats reports the outcome of one classification pass.
type ClassifyStats struct {
	ArticlesLinked int
}

// Classifier maps free-text theme and sector guesses onto the
// canonical vocabularies and links articles to them.
type Classifier interface {
	ClassifyBatch(ctx context.Context, batch []AnalyzedArticle) (ClassifyStats, error)
}

// NewClassifier creates the keyword-overlap classifier.
func NewClassifier(cfg *config.Config, log *logger.Logger, taxonomyRepo repository.TaxonomyRepository, articleRepo repository.ArticleRepository) Classifier {
	return &classifier{
		cfg:          cfg,
		logger:       log,
		taxonomyRepo: taxonomyRepo,
		articleRepo:  articleRepo,
	}
}

type classifier struct {
	cfg          *config.Config
	logger       *logger.Logger
	taxonomyRepo repository.TaxonomyRepository
	articleRepo  repository.ArticleRepository
}

// ClassifyBatch resolves each article's guesses against the loaded
// vocabularies. An unresolvable guess leaves the article unlinked
// rather than inventing a new theme.
func (c *classifier) ClassifyBatch(ctx context.Context, batch []AnalyzedArticle) (ClassifyStats, error) {
	var stats ClassifyStats

	themes, err := c.taxonomyRepo.FindThemes(ctx)
	if err != nil {
		return stats, err
	}
	sectors, err := c.taxonomyRepo.FindSectors(ctx)
	if err != nil {
		return stats, err
	}

	for _, item := range batch {
		if !utils.ShouldContinue(ctx, c.logger) {
			break
		}
		if err := c.classifyOne(ctx, item, themes, sectors); err != nil {
			c.logger.Error("Failed to classify article",
				logger.ErrorField(err),
				logger.Field("article_id", item.Article.ID),
			)
			continue
		}
		stats.ArticlesLinked++
	}

	return stats, nil
}

func (c *classifier) classifyOne(ctx context.Context, item AnalyzedArticle, themes []entity.Theme, sectors []entity.Sector) error {
	article := item.Article
	result := item.Result

	primary := c.matchTheme(result.PrimaryThemeGuess, themes)
	if primary != nil {
		name := primary.Name
		article.PrimaryTheme = &name
		if err := c.taxonomyRepo.LinkTheme(ctx, &entity.ArticleTheme{
			ArticleID:  article.ID,
			ThemeID:    primary.ID,
			Confidence: result.ConfidenceScore,
		}); err != nil {
			return err
		}
	}

	for _, guess := range result.SecondaryThemeGuesses {
		theme := c.matchTheme(guess, themes)
		if theme == nil || (primary != nil && theme.ID == primary.ID) {
			continue
		}
		// Secondary links carry a discounted confidence so
		// primary_theme stays recomputable as the strongest link.
		if err := c.taxonomyRepo.LinkTheme(ctx, &entity.ArticleTheme{
			ArticleID:  article.ID,
			ThemeID:    theme.ID,
			Confidence: result.ConfidenceScore * 0.5,
		}); err != nil {
			return err
		}
	}

	for _, guess := range result.SectorGuesses {
		sector := c.matchSector(guess, sectors)
		if sector == nil {
			continue
		}
		if err := c.taxonomyRepo.LinkSector(ctx, &entity.ArticleSector{
			ArticleID: article.ID,
			SectorID:  sector.ID,
		}); err != nil {
			return err
		}
	}

	article.IsFeatured = result.SignalStrength >= c.cfg.Classifier.FeaturedSignalThreshold &&
		result.ConfidenceScore >= c.cfg.Classifier.FeaturedConfidenceMin

	return c.articleRepo.Update(ctx, article)
}

// matchTheme resolves a free-text guess: case-insensitive exact name
// match first, then keyword overlap. Ties break toward the larger
// overlap, then the lowest id. Below the overlap floor, no match.
func (c *classifier) matchTheme(guess string, themes []entity.Theme) *entity.Theme {
	guess = strings.TrimSpace(guess)
	if guess == "" {
		return nil
	}

	lowered := strings.ToLower(guess)
	for i := range themes {
		if strings.ToLower(themes[i].Name) == lowered {
			return &themes[i]
		}
	}

	guessTokens := tokenSet(guess)
	var (
		best        *entity.Theme
		bestOverlap int
	)
	for i := range themes {
		overlap := keywordOverlap(guessTokens, lowered, themes[i].Keywords)
		if overlap < c.cfg.Classifier.MinKeywordOverlap {
			continue
		}
		if best == nil || overlap > bestOverlap {
			best = &themes[i]
			bestOverlap = overlap
		}
	}
	return best
}

func (c *classifier) matchSector(guess string, sectors []entity.Sector) *entity.Sector {
	guess = strings.TrimSpace(guess)
	if guess == "" {
		return nil
	}

	lowered := strings.ToLower(guess)
	for i := range sectors {
		if strings.ToLower(sectors[i].Name) == lowered {
			return &sectors[i]
		}
	}

	guessTokens := tokenSet(guess)
	var (
		best        *entity.Sector
		bestOverlap int
	)
	for i := range sectors {
		overlap := keywordOverlap(guessTokens, lowered, sectors[i].Keywords)
		if overlap < c.cfg.Classifier.MinKeywordOverlap {
			continue
		}
		if best == nil || overlap > bestOverlap {
			best = &sectors[i]
			bestOverlap = overlap
		}
	}
	return best
}

// keywordOverlap counts vocabulary keywords present in the guess,
// either as whole tokens or as a substring of the full guess text.
func keywordOverlap(guessTokens map[string]struct{}, loweredGuess string, keywords []string) int {
	overlap := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := guessTokens[kw]; ok {
			overlap++
			continue
		}
		if strings.Contains(loweredGuess, kw) {
			overlap++
		}
	}
	return overlap
}
