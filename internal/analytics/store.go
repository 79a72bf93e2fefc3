package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	dbpkg "offerpulse/internal/db"
)

// EventSource is the read side of the event store used by the
// aggregator and by current-day recomputation.
type EventSource interface {
	// QueryRange streams events with start <= created_at < end to fn in
	// created_at ascending order. The scan is finite and append-consistent:
	// concurrent appends never surface a partially written event.
	QueryRange(ctx context.Context, start, end time.Time, fn func(dbpkg.Event) error) error
}

// StatStore persists DailyStat and OfferDailyStat rows. The aggregator
// is its only writer.
type StatStore interface {
	// Get returns the stored stat for date, or (nil, nil) when absent.
	Get(ctx context.Context, date time.Time) (*dbpkg.DailyStat, error)
	Upsert(ctx context.Context, stat *dbpkg.DailyStat) error
	// Range returns stored stats with from <= date <= to, date ascending.
	Range(ctx context.Context, from, to time.Time) ([]dbpkg.DailyStat, error)

	UpsertOffer(ctx context.Context, stat *dbpkg.OfferDailyStat) error
	// RangeOffer returns one offer's stored stats with
	// from <= date <= to, date ascending.
	RangeOffer(ctx context.Context, offerID string, from, to time.Time) ([]dbpkg.OfferDailyStat, error)
}

// OfferResolver maps an offer id to its category and merchant names.
// Returning ErrUnknownOffer (or any error) is non-fatal to event
// recording; the event is just left out of the rankings.
type OfferResolver interface {
	Resolve(ctx context.Context, offerID string) (category, merchant string, err error)
}

const queryBatchSize = 500

// EventStore is the durable append-only record of raw events, backed by
// the events table.
type EventStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{db: db, now: time.Now}
}

// Append durably writes one event and returns its generated id. On
// error the event is not recorded and ingestion must report failure;
// there is no partial success.
func (s *EventStore) Append(ctx context.Context, ev ValidEvent) (dbpkg.Event, error) {
	rec := dbpkg.Event{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
		EventType: ev.EventType,
		SessionID: ev.SessionID,
		UserID:    ev.UserID,
		OfferID:   ev.OfferID,
		Metadata:  datatypes.JSONMap(ev.Metadata),
		ClientIP:  ev.ClientIP,
		UserAgent: ev.UserAgent,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return dbpkg.Event{}, &StorageError{Op: "append event", Err: err}
	}
	return rec, nil
}

// QueryRange implements EventSource with offset-batched reads so a full
// day scan never loads the whole day into memory at once.
func (s *EventStore) QueryRange(ctx context.Context, start, end time.Time, fn func(dbpkg.Event) error) error {
	offset := 0
	for {
		var batch []dbpkg.Event
		err := s.db.WithContext(ctx).
			Where("created_at >= ? AND created_at < ?", start, end).
			Order("created_at ASC, id ASC").
			Limit(queryBatchSize).
			Offset(offset).
			Find(&batch).Error
		if err != nil {
			return &StorageError{Op: "query events", Err: err}
		}
		for _, ev := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ev); err != nil {
				return err
			}
		}
		if len(batch) < queryBatchSize {
			return nil
		}
		offset += queryBatchSize
	}
}

// GormStatStore persists daily stats in the daily_stats table.
type GormStatStore struct {
	db *gorm.DB
}

func NewStatStore(db *gorm.DB) *GormStatStore {
	return &GormStatStore{db: db}
}

func (s *GormStatStore) Get(ctx context.Context, date time.Time) (*dbpkg.DailyStat, error) {
	var stat dbpkg.DailyStat
	err := s.db.WithContext(ctx).Where("date = ?", DateOf(date)).First(&stat).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "get daily stat", Err: err}
	}
	return &stat, nil
}

func (s *GormStatStore) Upsert(ctx context.Context, stat *dbpkg.DailyStat) error {
	var existing dbpkg.DailyStat
	err := s.db.WithContext(ctx).Where("date = ?", stat.Date).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		err = s.db.WithContext(ctx).Create(stat).Error
	} else if err == nil {
		stat.ID = existing.ID
		err = s.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"total_views":       stat.TotalViews,
			"total_clicks":      stat.TotalClicks,
			"total_conversions": stat.TotalConversions,
			"unique_users":      stat.UniqueUsers,
			"top_categories":    stat.TopCategories,
			"top_merchants":     stat.TopMerchants,
			"updated_at":        stat.UpdatedAt,
		}).Error
	}
	if err != nil {
		return &StorageError{Op: "upsert daily stat", Err: err}
	}
	return nil
}

func (s *GormStatStore) UpsertOffer(ctx context.Context, stat *dbpkg.OfferDailyStat) error {
	var existing dbpkg.OfferDailyStat
	err := s.db.WithContext(ctx).
		Where("date = ? AND offer_id = ?", stat.Date, stat.OfferID).
		First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		err = s.db.WithContext(ctx).Create(stat).Error
	} else if err == nil {
		stat.ID = existing.ID
		err = s.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"views":        stat.Views,
			"clicks":       stat.Clicks,
			"conversions":  stat.Conversions,
			"unique_users": stat.UniqueUsers,
			"updated_at":   stat.UpdatedAt,
		}).Error
	}
	if err != nil {
		return &StorageError{Op: "upsert offer daily stat", Err: err}
	}
	return nil
}

func (s *GormStatStore) RangeOffer(ctx context.Context, offerID string, from, to time.Time) ([]dbpkg.OfferDailyStat, error) {
	var stats []dbpkg.OfferDailyStat
	err := s.db.WithContext(ctx).
		Where("offer_id = ? AND date >= ? AND date <= ?", offerID, DateOf(from), DateOf(to)).
		Order("date ASC").
		Find(&stats).Error
	if err != nil {
		return nil, &StorageError{Op: "range offer daily stats", Err: err}
	}
	return stats, nil
}

func (s *GormStatStore) Range(ctx context.Context, from, to time.Time) ([]dbpkg.DailyStat, error) {
	var stats []dbpkg.DailyStat
	err := s.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", DateOf(from), DateOf(to)).
		Order("date ASC").
		Find(&stats).Error
	if err != nil {
		return nil, &StorageError{Op: "range daily stats", Err: err}
	}
	return stats, nil
}

// GormOfferResolver resolves category/merchant names from the offers table.
type GormOfferResolver struct {
	db *gorm.DB
}

func NewOfferResolver(db *gorm.DB) *GormOfferResolver {
	return &GormOfferResolver{db: db}
}

func (r *GormOfferResolver) Resolve(ctx context.Context, offerID string) (string, string, error) {
	var offer dbpkg.Offer
	err := r.db.WithContext(ctx).
		Select("category", "merchant_name").
		Where("id = ?", offerID).
		First(&offer).Error
	if err == gorm.ErrRecordNotFound {
		return "", "", ErrUnknownOffer
	}
	if err != nil {
		return "", "", &StorageError{Op: "resolve offer", Err: err}
	}
	return offer.Category, offer.MerchantName, nil
}
