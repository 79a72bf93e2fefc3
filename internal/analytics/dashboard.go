package analytics

import (
	"context"
	"log"
	"time"

	dbpkg "offerpulse/internal/db"
)

// Recomputer rebuilds a DailyStat from raw events; satisfied by *Aggregator.
type Recomputer interface {
	Recompute(ctx context.Context, date time.Time) (dbpkg.DailyStat, error)
}

// Reader serves daily stats to the dashboard API. It holds no state and
// never writes: past days come from storage unchanged, the current day
// is recomputed on demand so readers see near-real-time totals.
type Reader struct {
	stats StatStore
	agg   Recomputer
	now   func() time.Time
}

func NewReader(stats StatStore, agg Recomputer) *Reader {
	return &Reader{stats: stats, agg: agg, now: time.Now}
}

// DashboardResult is an ordered (date ascending) sequence of daily
// stats. Partial is set when the current-day recompute failed and the
// response degraded to last known stored data.
type DashboardResult struct {
	Days    []dbpkg.DailyStat
	Partial bool
}

// GetDashboard returns stats for the inclusive date range [from, to].
// It fails with ErrNotFound only when the range has no stored data and
// does not include the current day.
func (r *Reader) GetDashboard(ctx context.Context, from, to time.Time) (*DashboardResult, error) {
	fromDay, toDay := DateOf(from), DateOf(to)
	if toDay.Before(fromDay) {
		return nil, &ValidationError{Field: "date range", Reason: "ends before it starts"}
	}

	days, err := r.stats.Range(ctx, fromDay, toDay)
	if err != nil {
		return nil, err
	}

	today := DateOf(r.now())
	includesToday := !fromDay.After(today) && !toDay.Before(today)

	result := &DashboardResult{Days: days}
	if includesToday {
		snapshot, err := r.agg.Recompute(ctx, today)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Degrade to the stored rows rather than failing the read.
			log.Printf("current-day recompute failed, serving stored stats: %v", err)
			result.Partial = true
		} else {
			result.Days = replaceDay(result.Days, snapshot)
		}
	}

	if len(result.Days) == 0 && !includesToday {
		return nil, ErrNotFound
	}
	return result, nil
}

// GetOfferStats returns one offer's per-day stats for the inclusive
// range [from, to], date ascending. Rows are written synchronously on
// every recorded event, so no read-time recompute is needed; an offer
// with no traffic in the range simply yields no rows.
func (r *Reader) GetOfferStats(ctx context.Context, offerID string, from, to time.Time) ([]dbpkg.OfferDailyStat, error) {
	fromDay, toDay := DateOf(from), DateOf(to)
	if toDay.Before(fromDay) {
		return nil, &ValidationError{Field: "date range", Reason: "ends before it starts"}
	}
	return r.stats.RangeOffer(ctx, offerID, fromDay, toDay)
}

// replaceDay swaps in (or appends) the freshly recomputed stat for its
// date, preserving ascending date order. Stats are stored per unique
// date, so at most one row matches.
func replaceDay(days []dbpkg.DailyStat, stat dbpkg.DailyStat) []dbpkg.DailyStat {
	for i := range days {
		if days[i].Date.Equal(stat.Date) {
			stat.ID = days[i].ID
			days[i] = stat
			return days
		}
	}
	return append(days, stat)
}
