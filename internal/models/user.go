package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BirthDetails is the birth data astrology calculations run on.
type BirthDetails struct {
	BirthDate  string  `gorm:"size:10" json:"birth_date" validate:"omitempty,dateonly"`
	BirthTime  string  `gorm:"size:5" json:"birth_time" validate:"omitempty,clocktime"`
	BirthPlace string  `gorm:"size:200" json:"birth_place" validate:"omitempty,max=200"`
	Latitude   float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude  float64 `json:"longitude" validate:"omitempty,longitude"`
	Timezone   string  `gorm:"size:64" json:"timezone" validate:"omitempty,max=64"`
}

// Complete reports whether enough birth data exists to calculate a chart.
func (b BirthDetails) Complete() bool {
	return b.BirthDate != "" && b.BirthTime != "" && (b.Latitude != 0 || b.Longitude != 0)
}

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Email    string `gorm:"size:100;not null;uniqueIndex" json:"email"`
	Password string `gorm:"size:255;not null" json:"-"`
	Name     string `gorm:"size:100" json:"name"`

	Birth BirthDetails `gorm:"embedded;embeddedPrefix:birth_" json:"birth"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
