package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"offerpulse/internal/analytics"
	dbpkg "offerpulse/internal/db"
)

const dateLayout = "2006-01-02"

// Dashboard serves per-day analytics for a date range, defaulting to
// the trailing 30 days. Past days come from stored finalized stats; the
// current day is a fresh recompute snapshot.
func Dashboard(reader *analytics.Reader) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		started := time.Now()

		from, to, ok := parseDashboardRange(ctx)
		if !ok {
			return
		}

		result, err := reader.GetDashboard(ctx, from, to)
		if err != nil {
			var verr *analytics.ValidationError
			switch {
			case errors.As(err, &verr):
				failResponse(ctx, fasthttp.StatusBadRequest, verr.Error())
			case errors.Is(err, analytics.ErrNotFound):
				failResponse(ctx, fasthttp.StatusNotFound, "no analytics data for requested range")
			default:
				failResponse(ctx, fasthttp.StatusInternalServerError, "failed to load dashboard data")
			}
			return
		}

		dashboardDuration.Observe(time.Since(started).Seconds())

		var totalViews, totalClicks, totalConversions int64
		rows := make([]map[string]any, 0, len(result.Days))
		for i := range result.Days {
			day := &result.Days[i]
			totalViews += day.TotalViews
			totalClicks += day.TotalClicks
			totalConversions += day.TotalConversions
			rows = append(rows, dailyStatDTO(day))
		}

		conversionRate := 0.0
		clickThroughRate := 0.0
		if totalViews > 0 {
			conversionRate = round2(float64(totalConversions) / float64(totalViews) * 100)
			clickThroughRate = round2(float64(totalClicks) / float64(totalViews) * 100)
		}

		successResponse(ctx, map[string]any{
			"summary": map[string]any{
				"totalViews":       totalViews,
				"totalClicks":      totalClicks,
				"totalConversions": totalConversions,
				"conversionRate":   conversionRate,
				"clickThroughRate": clickThroughRate,
			},
			"dailyStats": rows,
			"partial":    result.Partial,
			"dateRange": map[string]any{
				"startDate": analytics.DateOf(from).Format(dateLayout),
				"endDate":   analytics.DateOf(to).Format(dateLayout),
			},
		})
	}
}

// OfferDashboard serves one offer's per-day analytics over the same
// date-range parameters as the main dashboard.
func OfferDashboard(reader *analytics.Reader) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		offerID, _ := ctx.UserValue("id").(string)
		if _, err := uuid.Parse(offerID); err != nil {
			failResponse(ctx, fasthttp.StatusBadRequest, "invalid offer id")
			return
		}

		from, to, ok := parseDashboardRange(ctx)
		if !ok {
			return
		}

		stats, err := reader.GetOfferStats(ctx, offerID, from, to)
		if err != nil {
			var verr *analytics.ValidationError
			if errors.As(err, &verr) {
				failResponse(ctx, fasthttp.StatusBadRequest, verr.Error())
				return
			}
			failResponse(ctx, fasthttp.StatusInternalServerError, "failed to load offer analytics")
			return
		}

		var totalViews, totalClicks, totalConversions int64
		rows := make([]map[string]any, 0, len(stats))
		for i := range stats {
			day := &stats[i]
			totalViews += day.Views
			totalClicks += day.Clicks
			totalConversions += day.Conversions
			rows = append(rows, map[string]any{
				"date":        day.Date.Format(dateLayout),
				"views":       day.Views,
				"clicks":      day.Clicks,
				"conversions": day.Conversions,
				"uniqueUsers": day.UniqueUsers,
				"updatedAt":   day.UpdatedAt.UTC().Format(time.RFC3339),
			})
		}

		conversionRate := 0.0
		if totalViews > 0 {
			conversionRate = round2(float64(totalConversions) / float64(totalViews) * 100)
		}

		successResponse(ctx, map[string]any{
			"offerId": offerID,
			"summary": map[string]any{
				"totalViews":       totalViews,
				"totalClicks":      totalClicks,
				"totalConversions": totalConversions,
				"conversionRate":   conversionRate,
			},
			"dailyStats": rows,
			"dateRange": map[string]any{
				"startDate": analytics.DateOf(from).Format(dateLayout),
				"endDate":   analytics.DateOf(to).Format(dateLayout),
			},
		})
	}
}

// parseDashboardRange reads either explicit start/end dates or a
// trailing "days" window (default 30, capped at 365).
func parseDashboardRange(ctx *fasthttp.RequestCtx) (from, to time.Time, ok bool) {
	startArg := string(ctx.QueryArgs().Peek("start"))
	endArg := string(ctx.QueryArgs().Peek("end"))
	if startArg != "" || endArg != "" {
		var err error
		if from, err = time.Parse(dateLayout, startArg); err != nil {
			failResponse(ctx, fasthttp.StatusBadRequest, "invalid start date, want YYYY-MM-DD")
			return from, to, false
		}
		if to, err = time.Parse(dateLayout, endArg); err != nil {
			failResponse(ctx, fasthttp.StatusBadRequest, "invalid end date, want YYYY-MM-DD")
			return from, to, false
		}
		return from, to, true
	}

	days := 30
	if s := string(ctx.QueryArgs().Peek("days")); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			if n > 365 {
				n = 365
			}
			days = n
		}
	}
	to = time.Now().UTC()
	from = to.AddDate(0, 0, -(days - 1))
	return from, to, true
}

func dailyStatDTO(stat *dbpkg.DailyStat) map[string]any {
	return map[string]any{
		"date":             stat.Date.Format(dateLayout),
		"totalViews":       stat.TotalViews,
		"totalClicks":      stat.TotalClicks,
		"totalConversions": stat.TotalConversions,
		"uniqueUsers":      stat.UniqueUsers,
		"topCategories":    []dbpkg.RankedEntry(stat.TopCategories),
		"topMerchants":     []dbpkg.RankedEntry(stat.TopMerchants),
		"updatedAt":        stat.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
