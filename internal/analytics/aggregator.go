package analytics

import (
	"context"
	"errors"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"gorm.io/datatypes"

	dbpkg "offerpulse/internal/db"
)

// Aggregator folds raw events into per-day DailyStat rows, idempotently
// and incrementally. Updates to one date are serialized through that
// date's bucket; different dates update independently and in parallel.
type Aggregator struct {
	events EventSource
	stats  StatStore
	offers OfferResolver
	topN   int
	now    func() time.Time

	mu      sync.Mutex
	buckets map[int64]*dayBucket
}

func NewAggregator(events EventSource, stats StatStore, offers OfferResolver, topN int) *Aggregator {
	if topN <= 0 {
		topN = 10
	}
	return &Aggregator{
		events:  events,
		stats:   stats,
		offers:  offers,
		topN:    topN,
		now:     time.Now,
		buckets: make(map[int64]*dayBucket),
	}
}

// dayBucket is the in-memory accumulator for one not-yet-finalized UTC
// date. Its mutex serializes all updates to that date.
type dayBucket struct {
	mu     sync.Mutex
	date   time.Time
	seeded bool
	acc    accumulator
}

// accumulator carries the running state a DailyStat is derived from.
// seen holds the ids of already-applied events, which makes replay
// idempotent and closes the race between the first-touch seed scan and
// concurrent incremental updates.
type accumulator struct {
	date        time.Time
	views       int64
	clicks      int64
	conversions int64
	users       map[string]struct{}
	categories  map[string]int64
	merchants   map[string]int64
	offers      map[string]*offerCounts
	seen        map[string]struct{}
}

// offerCounts is the per-offer slice of a day's counters.
type offerCounts struct {
	views       int64
	clicks      int64
	conversions int64
	users       map[string]struct{}
}

func newAccumulator(date time.Time) accumulator {
	return accumulator{
		date:       date,
		users:      make(map[string]struct{}),
		categories: make(map[string]int64),
		merchants:  make(map[string]int64),
		offers:     make(map[string]*offerCounts),
		seen:       make(map[string]struct{}),
	}
}

// apply folds one event. Unrecognized event types increment none of the
// named counters but still count toward unique users. category/merchant
// are empty when the offer could not be resolved; that only skips the
// ranking contribution.
func (a *accumulator) apply(ev dbpkg.Event, category, merchant string) {
	if _, dup := a.seen[ev.ID]; dup {
		return
	}
	a.seen[ev.ID] = struct{}{}

	switch ev.EventType {
	case EventView:
		a.views++
	case EventClick:
		a.clicks++
	case EventConversion:
		a.conversions++
	}

	identity := identityOf(ev)
	a.users[identity] = struct{}{}

	if category != "" {
		a.categories[category]++
	}
	if merchant != "" {
		a.merchants[merchant]++
	}

	if ev.OfferID != nil {
		oc, ok := a.offers[*ev.OfferID]
		if !ok {
			oc = &offerCounts{users: make(map[string]struct{})}
			a.offers[*ev.OfferID] = oc
		}
		switch ev.EventType {
		case EventView:
			oc.views++
		case EventClick:
			oc.clicks++
		case EventConversion:
			oc.conversions++
		}
		oc.users[identity] = struct{}{}
	}
}

func (a *accumulator) stat(topN int, at time.Time) dbpkg.DailyStat {
	return dbpkg.DailyStat{
		Date:             a.date,
		TotalViews:       a.views,
		TotalClicks:      a.clicks,
		TotalConversions: a.conversions,
		UniqueUsers:      int64(len(a.users)),
		TopCategories:    datatypes.JSONSlice[dbpkg.RankedEntry](rank(a.categories, topN)),
		TopMerchants:     datatypes.JSONSlice[dbpkg.RankedEntry](rank(a.merchants, topN)),
		UpdatedAt:        at,
	}
}

func (a *accumulator) offerStat(offerID string, at time.Time) dbpkg.OfferDailyStat {
	stat := dbpkg.OfferDailyStat{Date: a.date, OfferID: offerID, UpdatedAt: at}
	if oc, ok := a.offers[offerID]; ok {
		stat.Views = oc.views
		stat.Clicks = oc.clicks
		stat.Conversions = oc.conversions
		stat.UniqueUsers = int64(len(oc.users))
	}
	return stat
}

// offerStats returns every touched offer's stat, offer id ascending so
// persistence order is deterministic.
func (a *accumulator) offerStats(at time.Time) []dbpkg.OfferDailyStat {
	ids := make([]string, 0, len(a.offers))
	for id := range a.offers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	stats := make([]dbpkg.OfferDailyStat, 0, len(ids))
	for _, id := range ids {
		stats = append(stats, a.offerStat(id, at))
	}
	return stats
}

// identityOf returns the distinct-user key for an event: the user id
// when authenticated, the session id otherwise. Prefixes keep the two
// namespaces from colliding.
func identityOf(ev dbpkg.Event) string {
	if ev.UserID != nil {
		return "u:" + strconv.FormatUint(uint64(*ev.UserID), 10)
	}
	return "s:" + ev.SessionID
}

// rank sorts running frequency counts into a top-N list: descending by
// count, ties broken by name ascending so the result is deterministic.
func rank(counts map[string]int64, topN int) []dbpkg.RankedEntry {
	entries := make([]dbpkg.RankedEntry, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, dbpkg.RankedEntry{Name: name, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > topN {
		entries = entries[:topN]
	}
	return entries
}

// RecordEvent updates the DailyStat bucket for the event's UTC date.
// Events addressed to an already-finalized (past) date are rejected
// with *StaleEventError and leave the stored stat unchanged; callers
// log and drop those rather than retry.
func (g *Aggregator) RecordEvent(ctx context.Context, ev dbpkg.Event) error {
	day := DateOf(ev.CreatedAt)
	if day.Before(DateOf(g.now())) {
		return &StaleEventError{Date: day}
	}

	b := g.bucket(day)
	b.mu.Lock()
	defer b.mu.Unlock()

	// The day may have rolled over while waiting for the bucket lock.
	if b.date.Before(DateOf(g.now())) {
		return &StaleEventError{Date: b.date}
	}

	if !b.seeded {
		if err := g.seed(ctx, b); err != nil {
			return err
		}
	}

	category, merchant := g.resolve(ctx, ev)
	b.acc.apply(ev, category, merchant)

	at := g.now().UTC()
	stat := b.acc.stat(g.topN, at)
	if err := g.stats.Upsert(ctx, &stat); err != nil {
		return err
	}
	if ev.OfferID != nil {
		offerStat := b.acc.offerStat(*ev.OfferID, at)
		return g.stats.UpsertOffer(ctx, &offerStat)
	}
	return nil
}

// Recompute rebuilds the DailyStat for date from scratch by scanning
// the event store. It is pure with respect to stored state and is the
// recovery path after a crash as well as how the dashboard serves the
// still-open current day. Abandoning it mid-scan (ctx cancellation) has
// no side effects.
func (g *Aggregator) Recompute(ctx context.Context, date time.Time) (dbpkg.DailyStat, error) {
	acc, err := g.fold(ctx, DateOf(date))
	if err != nil {
		return dbpkg.DailyStat{}, err
	}
	return acc.stat(g.topN, g.now().UTC()), nil
}

// fold scans one day's events from the store into a fresh accumulator.
func (g *Aggregator) fold(ctx context.Context, day time.Time) (accumulator, error) {
	acc := newAccumulator(day)
	err := g.events.QueryRange(ctx, day, day.Add(24*time.Hour), func(ev dbpkg.Event) error {
		category, merchant := g.resolve(ctx, ev)
		acc.apply(ev, category, merchant)
		return nil
	})
	if err != nil {
		return accumulator{}, err
	}
	return acc, nil
}

// FinalizeRolledOver recomputes and persists any cached bucket whose
// date is now in the past, then discards its accumulator. Run at
// startup and periodically so settled days end up bit-for-bit equal to
// a from-scratch recompute regardless of missed increments. A bucket
// that fails to persist stays cached and is retried on the next pass;
// RecordEvent cannot mutate it anymore since its date is already stale.
func (g *Aggregator) FinalizeRolledOver(ctx context.Context) error {
	today := DateOf(g.now())

	g.mu.Lock()
	var stale []*dayBucket
	for _, b := range g.buckets {
		if b.date.Before(today) {
			stale = append(stale, b)
		}
	}
	g.mu.Unlock()

	var errs []error
	for _, b := range stale {
		if err := g.finalize(ctx, b.date); err != nil {
			errs = append(errs, err)
			continue
		}
		g.mu.Lock()
		delete(g.buckets, b.date.Unix())
		g.mu.Unlock()
		log.Printf("finalized daily stat for %s", b.date.Format("2006-01-02"))
	}
	return errors.Join(errs...)
}

// finalize persists the from-scratch rollup of one settled date,
// including its per-offer rows.
func (g *Aggregator) finalize(ctx context.Context, date time.Time) error {
	acc, err := g.fold(ctx, date)
	if err != nil {
		return err
	}
	at := g.now().UTC()
	stat := acc.stat(g.topN, at)
	if err := g.stats.Upsert(ctx, &stat); err != nil {
		return err
	}
	for _, offerStat := range acc.offerStats(at) {
		offerStat := offerStat
		if err := g.stats.UpsertOffer(ctx, &offerStat); err != nil {
			return err
		}
	}
	return nil
}

func (g *Aggregator) bucket(day time.Time) *dayBucket {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := day.Unix()
	b, ok := g.buckets[key]
	if !ok {
		b = &dayBucket{date: day, acc: newAccumulator(day)}
		g.buckets[key] = b
	}
	return b
}

// seed folds the day's stored events into a fresh bucket. The event
// being recorded was appended before RecordEvent, so the scan already
// covers it; the accumulator's seen set prevents double counting.
func (g *Aggregator) seed(ctx context.Context, b *dayBucket) error {
	err := g.events.QueryRange(ctx, b.date, b.date.Add(24*time.Hour), func(ev dbpkg.Event) error {
		category, merchant := g.resolve(ctx, ev)
		b.acc.apply(ev, category, merchant)
		return nil
	})
	if err != nil {
		return err
	}
	b.seeded = true
	return nil
}

// resolve looks up the ranking contribution for an event's offer.
// Resolution failure must not fail the event write, so errors degrade
// to an empty contribution.
func (g *Aggregator) resolve(ctx context.Context, ev dbpkg.Event) (string, string) {
	if ev.OfferID == nil || g.offers == nil {
		return "", ""
	}
	category, merchant, err := g.offers.Resolve(ctx, *ev.OfferID)
	if err != nil {
		if err != ErrUnknownOffer {
			log.Printf("offer resolution failed for %s: %v", *ev.OfferID, err)
		}
		return "", ""
	}
	return category, merchant
}
