package models

import (
	"time"

	"github.com/google/uuid"
)

// ReadingOption configures a Reading.
type ReadingOption func(*Reading)

// NewReading builds a Reading for a user and period. Content comes in
// via options so the generation and admin paths share one constructor.
func NewReading(userID uuid.UUID, date string, rtype ReadingType, opts ...ReadingOption) *Reading {
	r := &Reading{
		UserID:      userID,
		ReadingDate: date,
		ReadingType: rtype,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithSections sets the narrative sections.
func WithSections(s ReadingSections) ReadingOption {
	return func(r *Reading) { r.Sections = s }
}

// WithHighlights sets the highlight lines.
func WithHighlights(hl []string) ReadingOption {
	return func(r *Reading) { r.Highlights = hl }
}

// WithWindows sets the auspicious windows.
func WithWindows(ws []AuspiciousWindow) ReadingOption {
	return func(r *Reading) { r.Windows = ws }
}

// WithSaved marks the reading saved as of now.
func WithSaved() ReadingOption {
	return func(r *Reading) {
		now := time.Now().UTC()
		r.IsSaved = true
		r.SavedAt = &now
	}
}
