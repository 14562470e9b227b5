package entity

import (
	"gorm.io/datatypes"
)

// Theme is part of the canonical classification vocabulary. Seeded
// from config; the classifier only reads it.
type Theme struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	Name        string                      `gorm:"uniqueIndex;not null" json:"name"`
	Description string                      `gorm:"type:text" json:"description,omitempty"`
	Keywords    datatypes.JSONSlice[string] `json:"keywords"`
	Color       string                      `json:"color,omitempty"`
}

func (Theme) TableName() string {
	return "themes"
}

// Sector is an industry sector in the canonical vocabulary.
type Sector struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	Name        string                      `gorm:"uniqueIndex;not null" json:"name"`
	Description string                      `gorm:"type:text" json:"description,omitempty"`
	Keywords    datatypes.JSONSlice[string] `json:"keywords"`
}

func (Sector) TableName() string {
	return "sectors"
}
