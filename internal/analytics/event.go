package analytics

import "time"

// Recognized event types. Other well-formed types are accepted and
// stored for forward compatibility but do not increment the named
// counters of a daily stat.
const (
	EventView       = "view"
	EventClick      = "click"
	EventConversion = "conversion"
)

// RawEvent is an incoming, not-yet-trusted event as handed over by the
// HTTP layer. The caller identity (UserID, SessionID) has already been
// established by the auth middleware; everything else is client input.
type RawEvent struct {
	EventType string
	SessionID string
	UserID    *uint
	OfferID   string
	Metadata  map[string]any
	ClientIP  string
	UserAgent string
}

// ValidEvent is a normalized event that passed validation. It carries
// no timestamp: the store assigns created_at at append time.
type ValidEvent struct {
	EventType string
	SessionID string
	UserID    *uint
	OfferID   *string
	Metadata  map[string]any
	ClientIP  string
	UserAgent string
}

// DateOf truncates t to its UTC calendar date (midnight UTC).
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
