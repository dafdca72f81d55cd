package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Plan names the subscription tier.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// Entitlement tracks a user's generation quota for the current period.
type Entitlement struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	UserID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Plan          Plan      `gorm:"size:20;not null;default:'free'" json:"plan"`
	RequestsUsed  int       `gorm:"default:0" json:"requests_used"`
	RequestsLimit int       `gorm:"not null" json:"requests_limit"`
	PeriodResetAt time.Time `gorm:"index" json:"period_reset_at"`
}

func (e *Entitlement) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Remaining is how many generations are left this period.
func (e *Entitlement) Remaining() int {
	left := e.RequestsLimit - e.RequestsUsed
	if left < 0 {
		return 0
	}
	return left
}

// Exhausted reports whether the quota is spent.
func (e *Entitlement) Exhausted() bool {
	return e.RequestsUsed >= e.RequestsLimit
}
