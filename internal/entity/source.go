package entity

import "time"

// Source is one configured content source. Seeded from config at
// startup and rarely mutated afterwards.
type Source struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Name          string     `gorm:"not null" json:"name"`
	URL           string     `gorm:"uniqueIndex;not null" json:"url"`
	Category      string     `gorm:"index" json:"category"`
	IsActive      bool       `gorm:"default:true" json:"is_active"`
	IsHealthy     bool       `gorm:"default:true" json:"is_healthy"`
	LastScrapedAt *time.Time `json:"last_scraped_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Source) TableName() string {
	return "sources"
}
