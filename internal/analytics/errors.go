package analytics

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by dashboard reads when the requested range
// has no stored data and does not include the current day.
var ErrNotFound = errors.New("no analytics data for requested range")

// ErrUnknownOffer is returned by an OfferResolver when the referenced
// offer does not exist. It is never fatal to event recording; the event
// just contributes nothing to the category/merchant rankings.
var ErrUnknownOffer = errors.New("unknown offer")

// ValidationError marks a malformed incoming event. It is a caller
// error and is not retryable as-is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s %s", e.Field, e.Reason)
}

// StorageError wraps a durability or transient infrastructure failure.
// Retrying is safe: no partially written event is ever observable.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// StaleEventError rejects an aggregation update addressed to a date
// that has already been finalized. Callers log and drop; the settled
// DailyStat stays untouched.
type StaleEventError struct {
	Date time.Time
}

func (e *StaleEventError) Error() string {
	return fmt.Sprintf("daily stat for %s is finalized", e.Date.Format("2006-01-02"))
}
