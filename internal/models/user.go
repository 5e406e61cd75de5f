package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an operator account (sales, engineering, admin staff).
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string         `gorm:"size:255" json:"name,omitempty"`
	Password  string         `gorm:"size:255;not null" json:"-"` // bcrypt hash
	Active    bool           `gorm:"not null" json:"active"`
	// ProfileID links the user to an authorization profile.
	// A nil value means the user has no profile assigned and can only reach public routes.
	ProfileID *uint    `gorm:"index" json:"profileId,omitempty"`
	Profile   *Profile `gorm:"foreignKey:ProfileID" json:"profile,omitempty"`
}
