package entity

import (
	"time"

	"gorm.io/datatypes"
)

// TrendStatus is the trend lifecycle enum. Transitions only move
// forward (emerging → growing → peak → declining), except that a
// declining trend regaining velocity re-enters growing. Emerging is a
// one-time first-detection state.
type TrendStatus string

const (
	TrendEmerging  TrendStatus = "emerging"
	TrendGrowing   TrendStatus = "growing"
	TrendPeak      TrendStatus = "peak"
	TrendDeclining TrendStatus = "declining"
)

// CanTransition reports whether moving from the current status to
// next is a legal edge.
func (s TrendStatus) CanTransition(next TrendStatus) bool {
	switch s {
	case TrendEmerging:
		return next == TrendGrowing
	case TrendGrowing:
		return next == TrendPeak
	case TrendPeak:
		return next == TrendDeclining
	case TrendDeclining:
		return next == TrendGrowing
	}
	return false
}

// Trend tracks how a topic evolves over time. One trend per theme;
// metrics are recomputed from linked articles, never hand-edited.
type Trend struct {
	ID              uint                        `gorm:"primaryKey" json:"id"`
	ThemeID         uint                        `gorm:"index" json:"theme_id"`
	Name            string                      `gorm:"uniqueIndex;not null" json:"name"`
	Description     string                      `gorm:"type:text" json:"description,omitempty"`
	Keywords        datatypes.JSONSlice[string] `json:"keywords"`
	StartDate       time.Time                   `gorm:"not null" json:"start_date"`
	LastUpdated     time.Time                   `json:"last_updated"`
	ArticleCount    int                         `gorm:"default:0" json:"article_count"`
	Momentum        float64                     `json:"momentum"`
	PeakDate        *time.Time                  `json:"peak_date,omitempty"`
	Status          TrendStatus                 `gorm:"type:varchar(20);index" json:"status"`
	StatusChangedAt time.Time                   `json:"status_changed_at"`
	Region          string                      `json:"region,omitempty"`
	CreatedAt       time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Trend) TableName() string {
	return "trends"
}

// TrendDataPoint is one day bucket of a trend's time series. The
// (trend_id, date) pair is unique; reruns upsert the same bucket.
type TrendDataPoint struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	TrendID           uint      `gorm:"uniqueIndex:idx_trend_bucket;not null" json:"trend_id"`
	Date              time.Time `gorm:"uniqueIndex:idx_trend_bucket;not null" json:"date"`
	ArticleCount      int       `gorm:"default:0" json:"article_count"`
	SentimentAvg      *float64  `json:"sentiment_avg,omitempty"`
	SignalStrengthAvg *float64  `json:"signal_strength_avg,omitempty"`
}

func (TrendDataPoint) TableName() string {
	return "trend_data_points"
}
