package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CompatibilityReport stores one Kuta match between the user and a
// partner. The per-kuta breakdown is kept as the matching backend
// returned it.
type CompatibilityReport struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	PartnerName string    `gorm:"size:100;not null" json:"partner_name"`

	PartnerBirth BirthDetails `gorm:"embedded;embeddedPrefix:partner_birth_" json:"partner_birth"`

	Kutas      datatypes.JSON `json:"kutas"`
	TotalScore float64        `json:"total_score"`
	MaxScore   float64        `json:"max_score"`
	Summary    string         `gorm:"type:text" json:"summary"`
}

func (r *CompatibilityReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
