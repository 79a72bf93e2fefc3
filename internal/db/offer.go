package db

import (
	"time"
)

// Offer is a discount offer shown in the mobile app. Offer management
// lives outside the analytics core; the aggregator only reads the
// category and merchant columns when ranking events.
type Offer struct {
	ID string `gorm:"type:uuid;primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Title       string `gorm:"size:255;not null"`
	Description string

	Category     string `gorm:"size:100;index"`
	MerchantName string `gorm:"size:255;index;not null"`

	City         string `gorm:"size:100;index"`
	IsNationwide bool   `gorm:"default:false"`

	// Status: pending, approved, rejected. Only approved offers are served.
	Status    string `gorm:"size:32;index;default:approved"`
	IsPremium bool   `gorm:"default:false"`

	ImageURL string
	OfferURL string

	StartsAt  *time.Time
	ExpiresAt *time.Time `gorm:"index"`
}

// Category is a browseable offer category.
type Category struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Name     string `gorm:"uniqueIndex;size:100;not null"`
	Icon     string `gorm:"size:50"`
	IsActive bool   `gorm:"default:true"`
}
