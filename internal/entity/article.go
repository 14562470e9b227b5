package entity

import (
	"time"

	"gorm.io/datatypes"
)

// AnalysisStatus tracks where an article sits in the analysis
// lifecycle. Articles persist before analysis succeeds, so a row can
// stay in retry or failed without blocking the rest of the batch.
type AnalysisStatus string

const (
	AnalysisStatusPending  AnalysisStatus = "pending"
	AnalysisStatusAnalyzed AnalysisStatus = "analyzed"
	AnalysisStatusRetry    AnalysisStatus = "retry"
	AnalysisStatusFailed   AnalysisStatus = "failed"
)

// FailureKind records why analysis gave up on an article once the
// attempt budget is spent.
type FailureKind string

const (
	FailureTransient  FailureKind = "transient"
	FailureValidation FailureKind = "validation"
)

// SentimentLabel is the canonical sentiment enum.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// Article is an ingested news article. The URL is unique; re-fetching
// the same URL never creates a second row. Analysis fields stay nil
// until the analyzer has succeeded.
type Article struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	URL         string     `gorm:"uniqueIndex;not null" json:"url"`
	SourceID    uint       `gorm:"index" json:"source_id"`
	Title       string     `gorm:"not null" json:"title"`
	Author      string     `json:"author,omitempty"`
	PublishedAt time.Time  `gorm:"index;not null" json:"published_at"`
	ScrapedAt   time.Time  `gorm:"autoCreateTime" json:"scraped_at"`
	RawContent  string     `gorm:"type:text" json:"raw_content"`

	// Analysis fields, nil until the analyzer succeeds.
	Summary         *string                      `gorm:"type:text" json:"summary,omitempty"`
	KeyTakeaways    datatypes.JSONSlice[string]  `json:"key_takeaways"`
	PrimaryTheme    *string                      `json:"primary_theme,omitempty"`
	ConfidenceScore *float64                     `json:"confidence_score,omitempty"`
	SentimentScore  *float64                     `json:"sentiment_score,omitempty"`
	SentimentLabel  *SentimentLabel              `json:"sentiment_label,omitempty"`
	SignalStrength  *float64                     `json:"signal_strength,omitempty"`
	Region          string                       `gorm:"index" json:"region,omitempty"`

	AnalysisStatus   AnalysisStatus `gorm:"type:varchar(20);default:pending;index" json:"analysis_status"`
	AnalysisAttempts int            `json:"analysis_attempts"`
	AnalysisFailure  *FailureKind   `gorm:"type:varchar(20)" json:"analysis_failure,omitempty"`

	// Derived flags, recomputable from the underlying relations.
	IsFeatured bool `gorm:"default:false" json:"is_featured"`
	IsEmerging bool `gorm:"default:false" json:"is_emerging"`

	// Mutated only by the external read layer.
	ViewCount int `gorm:"default:0" json:"view_count"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Article) TableName() string {
	return "articles"
}

// Analyzed reports whether analysis fields are populated.
func (a *Article) Analyzed() bool {
	return a.AnalysisStatus == AnalysisStatusAnalyzed
}

// ArticleTheme links an article to a theme in the canonical
// vocabulary. Confidence carries the classifier's match strength so
// primary_theme stays recomputable.
type ArticleTheme struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ArticleID  uint      `gorm:"uniqueIndex:idx_article_theme;not null" json:"article_id"`
	ThemeID    uint      `gorm:"uniqueIndex:idx_article_theme;not null" json:"theme_id"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ArticleTheme) TableName() string {
	return "article_themes"
}

// ArticleSector links an article to an industry sector.
type ArticleSector struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ArticleID uint      `gorm:"uniqueIndex:idx_article_sector;not null" json:"article_id"`
	SectorID  uint      `gorm:"uniqueIndex:idx_article_sector;not null" json:"sector_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ArticleSector) TableName() string {
	return "article_sectors"
}
