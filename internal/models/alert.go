package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransitAlert notifies a user of a significant upcoming transit.
// Rows are produced by the transit batch job.
type TransitAlert struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Planet      string    `gorm:"size:30;not null" json:"planet"`
	TransitType string    `gorm:"size:50;not null" json:"transit_type"`
	Description string    `gorm:"type:text" json:"description"`
	Severity    string    `gorm:"size:20;default:'info'" json:"severity"`

	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`

	IsRead bool `gorm:"default:false" json:"is_read"`
}

func (a *TransitAlert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
