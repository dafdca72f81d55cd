package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChartType is the kind of chart the calculation backend produced.
type ChartType string

const (
	ChartNatal   ChartType = "natal"
	ChartTransit ChartType = "transit"
)

// Chart stores one calculated chart. Planets, houses and dashas are
// kept exactly as the calculation backend returned them.
type Chart struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	ChartType ChartType `gorm:"size:20;not null" json:"chart_type"`
	Name      string    `gorm:"size:100;not null" json:"name"`

	// IsOwn separates the user's own chart from charts they calculated
	// for other people. Transit alerts and /charts/natal only ever use
	// the own chart.
	IsOwn bool `gorm:"default:false;index" json:"is_own"`

	Birth BirthDetails `gorm:"embedded;embeddedPrefix:birth_" json:"birth"`

	Planets datatypes.JSON `json:"planets"`
	Houses  datatypes.JSON `json:"houses"`
	Dashas  datatypes.JSON `json:"dashas"`
}

func (c *Chart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
