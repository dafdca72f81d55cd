package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReadingType is the cadence of a reading.
type ReadingType string

const (
	ReadingDaily   ReadingType = "daily"
	ReadingWeekly  ReadingType = "weekly"
	ReadingMonthly ReadingType = "monthly"
)

// Valid reports whether the type is one of the known cadences.
func (t ReadingType) Valid() bool {
	switch t {
	case ReadingDaily, ReadingWeekly, ReadingMonthly:
		return true
	}
	return false
}

// Feedback is the user's verdict on a reading.
type Feedback string

const (
	FeedbackHelpful    Feedback = "helpful"
	FeedbackNotHelpful Feedback = "not_helpful"
)

// Valid reports whether the feedback value is accepted.
func (f Feedback) Valid() bool {
	return f == FeedbackHelpful || f == FeedbackNotHelpful
}

// ReadingSections holds the narrative per life area.
type ReadingSections struct {
	Work    string `gorm:"type:text" json:"work"`
	Love    string `gorm:"type:text" json:"love"`
	Health  string `gorm:"type:text" json:"health"`
	Finance string `gorm:"type:text" json:"finance"`
}

// AuspiciousWindow marks a favorable time span inside the reading's period.
type AuspiciousWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Label string `json:"label"`
}

// Reading is one generated horoscope, owned by exactly one user.
// Duplicates per (user, date, type) are tolerated; readers take the
// newest row by created_at.
type Reading struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	UserID      uuid.UUID   `gorm:"type:uuid;not null;index:idx_reading_user_date,composite:0" json:"user_id"`
	ReadingDate string      `gorm:"size:10;not null;index:idx_reading_user_date,composite:1" json:"reading_date"`
	ReadingType ReadingType `gorm:"size:10;not null;index:idx_reading_user_date,composite:2" json:"reading_type"`

	Sections   ReadingSections                       `gorm:"embedded;embeddedPrefix:section_" json:"sections"`
	Highlights datatypes.JSONSlice[string]           `json:"highlights"`
	Windows    datatypes.JSONSlice[AuspiciousWindow] `json:"auspicious_windows"`

	IsSaved      bool       `gorm:"default:false;index" json:"is_saved"`
	SavedAt      *time.Time `json:"saved_at,omitempty"`
	IsRead       bool       `gorm:"default:false" json:"is_read"`
	ReadAt       *time.Time `json:"read_at,omitempty"`
	UserFeedback *Feedback  `gorm:"size:20" json:"user_feedback,omitempty"`
	FeedbackAt   *time.Time `json:"feedback_at,omitempty"`
}

func (r *Reading) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ReadingFilters narrows list queries.
type ReadingFilters struct {
	Limit     int
	Offset    int
	Type      ReadingType
	SavedOnly bool
	IsRead    *bool
	From      string
	To        string
}

// IsPlain reports whether the filters describe the unfiltered first
// page, the only shape the list cache stores.
func (f ReadingFilters) IsPlain() bool {
	return f.Offset == 0 && f.Type == "" && !f.SavedOnly && f.IsRead == nil && f.From == "" && f.To == ""
}

// ReadingPage is one page of a reading listing.
type ReadingPage struct {
	Readings []Reading `json:"readings"`
	Total    int64     `json:"total"`
	HasMore  bool      `json:"has_more"`
}

// ReadingStats aggregates a user's reading history.
type ReadingStats struct {
	Total      int64            `json:"total"`
	Saved      int64            `json:"saved"`
	Read       int64            `json:"read"`
	Helpful    int64            `json:"helpful"`
	NotHelpful int64            `json:"not_helpful"`
	ByType     map[string]int64 `json:"by_type"`
}
