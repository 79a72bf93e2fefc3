package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"offerpulse/internal/analytics"
	httpctx "offerpulse/internal/http/ctx"
)

var (
	eventsIngestedTotal *prometheus.CounterVec
	eventsRejectedTotal *prometheus.CounterVec
	staleEventsTotal    prometheus.Counter
	dashboardDuration   prometheus.Histogram
)

func InitPrometheusMetrics() {
	eventsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "offerpulse",
			Name:      "events_ingested_total",
			Help:      "Total number of analytics events durably recorded.",
		},
		[]string{"event_type"},
	)
	eventsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "offerpulse",
			Name:      "events_rejected_total",
			Help:      "Total number of analytics events rejected at validation.",
		},
		[]string{"field"},
	)
	staleEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "offerpulse",
			Name:      "stale_events_total",
			Help:      "Events dropped from aggregation because their date was already finalized.",
		},
	)
	dashboardDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "offerpulse",
			Name:      "dashboard_duration_seconds",
			Help:      "Histogram of dashboard read durations in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)
	prometheus.MustRegister(eventsIngestedTotal, eventsRejectedTotal, staleEventsTotal, dashboardDuration)
}

type trackEvent struct {
	EventType string         `json:"event_type"`
	OfferID   string         `json:"offer_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type trackRequest struct {
	Events []trackEvent `json:"events"`
}

// TrackEvents ingests one or more analytics events. The whole batch is
// validated before anything is written, so a validation failure leaves
// the event store untouched. Storage failures are reported as 503 and
// are safe to retry; stale-date aggregation rejections are logged and
// dropped without failing the request.
func TrackEvents(validator *analytics.Validator, store *analytics.EventStore, agg *analytics.Aggregator) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		events, ok := parseTrackBody(ctx)
		if !ok {
			return
		}

		sessionID, _ := httpctx.SessionIDFromCtx(ctx)
		var userID *uint
		if user, ok := httpctx.UserFromCtx(ctx); ok {
			id := user.ID
			userID = &id
		}
		clientIP := ctx.RemoteIP().String()
		userAgent := string(ctx.Request.Header.UserAgent())

		valid := make([]analytics.ValidEvent, 0, len(events))
		for _, ev := range events {
			sid := ev.SessionID
			if sid == "" {
				sid = sessionID
			}
			ve, err := validator.Validate(analytics.RawEvent{
				EventType: ev.EventType,
				SessionID: sid,
				UserID:    userID,
				OfferID:   ev.OfferID,
				Metadata:  ev.Metadata,
				ClientIP:  clientIP,
				UserAgent: userAgent,
			})
			if err != nil {
				var verr *analytics.ValidationError
				if errors.As(err, &verr) {
					eventsRejectedTotal.WithLabelValues(verr.Field).Inc()
				}
				failResponse(ctx, fasthttp.StatusBadRequest, err.Error())
				return
			}
			valid = append(valid, ve)
		}

		recorded := 0
		for _, ve := range valid {
			rec, err := store.Append(ctx, ve)
			if err != nil {
				failResponse(ctx, fasthttp.StatusServiceUnavailable, "failed to record event, retry later")
				return
			}
			eventsIngestedTotal.WithLabelValues(rec.EventType).Inc()
			recorded++

			if err := agg.RecordEvent(ctx, rec); err != nil {
				var stale *analytics.StaleEventError
				if errors.As(err, &stale) {
					staleEventsTotal.Inc()
					log.Printf("dropped stale event %s for finalized date %s", rec.ID, stale.Date.Format("2006-01-02"))
					continue
				}
				// The event is durably stored; the next recompute or
				// finalization pass repairs the rollup.
				log.Printf("aggregation update failed for event %s: %v", rec.ID, err)
			}
		}

		ctx.SetStatusCode(fasthttp.StatusAccepted)
		jsonResponse(ctx, map[string]any{"success": true, "count": recorded})
	}
}

// parseTrackBody accepts either {"events":[...]} or a single bare event
// object, mirroring what older app versions send.
func parseTrackBody(ctx *fasthttp.RequestCtx) ([]trackEvent, bool) {
	body := ctx.PostBody()

	var payload trackRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		failResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	if len(payload.Events) == 0 {
		var single trackEvent
		if err := json.Unmarshal(body, &single); err != nil || single.EventType == "" {
			failResponse(ctx, fasthttp.StatusBadRequest, "no events provided")
			return nil, false
		}
		payload.Events = []trackEvent{single}
	}
	if len(payload.Events) > 100 {
		failResponse(ctx, fasthttp.StatusBadRequest, "too many events in one batch (max 100), got "+strconv.Itoa(len(payload.Events)))
		return nil, false
	}
	return payload.Events, true
}
