package entity

import (
	"time"

	"gorm.io/datatypes"
)

// ImpactLevel is the insight impact enum.
type ImpactLevel string

const (
	ImpactHigh   ImpactLevel = "high"
	ImpactMedium ImpactLevel = "medium"
	ImpactLow    ImpactLevel = "low"
)

// TimeHorizon is the insight time-horizon enum.
type TimeHorizon string

const (
	HorizonImmediate TimeHorizon = "immediate"
	HorizonShortTerm TimeHorizon = "short_term"
	HorizonLongTerm  TimeHorizon = "long_term"
)

// Insight is a cross-article strategic takeaway. ArticleID is the
// primary source article; RelatedArticleIDs reference the rest of the
// group it was derived from. Insights are never mutated, only
// superseded by newer ones.
type Insight struct {
	ID                uint                      `gorm:"primaryKey" json:"id"`
	ArticleID         uint                      `gorm:"index;not null" json:"article_id"`
	RelatedArticleIDs datatypes.JSONSlice[uint] `json:"related_article_ids"`
	Theme             string                    `gorm:"index" json:"theme"`
	Title             string                    `gorm:"not null" json:"title"`
	Description       string                    `gorm:"type:text;not null" json:"description"`
	ImpactLevel       ImpactLevel               `gorm:"type:varchar(20)" json:"impact_level"`
	TimeHorizon       TimeHorizon               `gorm:"type:varchar(20)" json:"time_horizon"`
	RelevanceScore    float64                   `json:"relevance_score"`
	CreatedAt         time.Time                 `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Insight) TableName() string {
	return "insights"
}
