package entity

import (
	"time"

	"gorm.io/datatypes"
)

// DigestType is the digest cadence enum.
type DigestType string

const (
	DigestDaily  DigestType = "daily"
	DigestWeekly DigestType = "weekly"
)

// Digest is one compiled period summary. At most one row exists per
// (digest_type, period_start); recompiling a period overwrites it.
type Digest struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	DigestType  DigestType `gorm:"type:varchar(10);uniqueIndex:idx_digest_period;not null" json:"digest_type"`
	PeriodStart time.Time  `gorm:"uniqueIndex:idx_digest_period;not null" json:"period_start"`
	PeriodEnd   time.Time  `gorm:"not null" json:"period_end"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Title   string `json:"title,omitempty"`
	Summary string `gorm:"type:text" json:"summary,omitempty"`

	// Snapshots of the selections the summary was generated from.
	TopStories     datatypes.JSONSlice[uint]   `json:"top_stories"`
	EmergingTrends datatypes.JSONSlice[string] `json:"emerging_trends"`
	KeyInsights    datatypes.JSONSlice[string] `json:"key_insights"`

	TotalArticles  int                         `json:"total_articles"`
	ThemesCovered  datatypes.JSONSlice[string] `json:"themes_covered"`
	RegionsCovered datatypes.JSONSlice[string] `json:"regions_covered"`
}

func (Digest) TableName() string {
	return "digests"
}
