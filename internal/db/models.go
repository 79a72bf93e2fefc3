package db

import (
	"time"

	"gorm.io/datatypes"
)

// Event represents a single tracked user action (view, click, conversion
// or any forward-compatible type) as stored in PostgreSQL. Events are
// append-only: once written they are never updated or deleted.
type Event struct {
	// ID is a UUID generated at write time.
	ID string `gorm:"type:uuid;primaryKey"`

	// CreatedAt is assigned by the server at append time and is the
	// authoritative timestamp for daily bucketing. Client-supplied
	// timestamps are never trusted.
	CreatedAt time.Time `gorm:"index"`

	EventType string `gorm:"size:50;index;not null"`

	// SessionID groups events from one client session and stands in for
	// the user identity on anonymous traffic.
	SessionID string `gorm:"size:255;index;not null"`

	// UserID is set only for authenticated callers.
	UserID *uint `gorm:"index"`

	// OfferID references an offer; category/merchant rankings are resolved
	// through it at aggregation time.
	OfferID *string `gorm:"type:uuid;index"`

	// Metadata holds arbitrary key/value pairs attached by the client.
	// The core does not interpret it beyond a serialized size ceiling.
	Metadata datatypes.JSONMap `gorm:"type:json"`

	ClientIP  string `gorm:"size:64"`
	UserAgent string `gorm:"size:512"`
}

// RankedEntry is one (name, count) pair of a top-categories or
// top-merchants list, rank-sorted descending by count.
type RankedEntry struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// DailyStat is the aggregate record for one UTC calendar date. For any
// date it is a deterministic function of the events created on that
// date; recomputing from the same event set always yields the same row.
// The aggregator is the only writer.
type DailyStat struct {
	ID uint `gorm:"primaryKey"`

	// Date is the UTC midnight of the day this row aggregates.
	Date time.Time `gorm:"uniqueIndex;not null"`

	TotalViews       int64 `gorm:"not null"`
	TotalClicks      int64 `gorm:"not null"`
	TotalConversions int64 `gorm:"not null"`

	// UniqueUsers is the cardinality of the distinct-identifier set for
	// the day (user id when authenticated, session id otherwise).
	UniqueUsers int64 `gorm:"not null"`

	TopCategories datatypes.JSONSlice[RankedEntry] `gorm:"type:json"`
	TopMerchants  datatypes.JSONSlice[RankedEntry] `gorm:"type:json"`

	UpdatedAt time.Time
}

// OfferDailyStat is the per-offer slice of one UTC date's aggregate,
// maintained by the aggregator alongside DailyStat from the same event
// fold. Only events carrying the offer id contribute.
type OfferDailyStat struct {
	ID uint `gorm:"primaryKey"`

	Date    time.Time `gorm:"uniqueIndex:idx_offer_daily_stats_date_offer;not null"`
	OfferID string    `gorm:"type:uuid;uniqueIndex:idx_offer_daily_stats_date_offer;index;not null"`

	Views       int64 `gorm:"not null"`
	Clicks      int64 `gorm:"not null"`
	Conversions int64 `gorm:"not null"`

	// UniqueUsers counts distinct identities that touched this offer on
	// this date, with the same identity rules as DailyStat.
	UniqueUsers int64 `gorm:"not null"`

	UpdatedAt time.Time
}
