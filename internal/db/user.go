package db

import (
	"time"
)

// User represents a mobile-app account that can sign in and appear as an
// authenticated identity in analytics. The bootstrap admin user (from
// env) will be created as a row in this table on startup.
type User struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Email        string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string `gorm:"size:255;not null"`

	FirstName string `gorm:"size:100"`
	LastName  string `gorm:"size:100"`
	City      string `gorm:"size:100"`

	// IsAdmin marks users that can read the analytics dashboard.
	IsAdmin bool `gorm:"default:false"`
}
