package handlers

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "offerpulse/internal/db"
)

func Categories(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var categories []dbpkg.Category
		if err := db.Where("is_active = ?", true).Order("name").Find(&categories).Error; err != nil {
			failResponse(ctx, fasthttp.StatusInternalServerError, "failed to fetch categories")
			return
		}

		rows := make([]map[string]any, 0, len(categories))
		for _, c := range categories {
			rows = append(rows, map[string]any{
				"id":   c.ID,
				"name": c.Name,
				"icon": c.Icon,
			})
		}
		successResponse(ctx, map[string]any{"categories": rows})
	}
}

func ListOffers(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		page := 1
		if s := string(ctx.QueryArgs().Peek("page")); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				page = n
			}
		}
		limit := 20
		if s := string(ctx.QueryArgs().Peek("limit")); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				if n > 50 {
					n = 50
				}
				limit = n
			}
		}
		category := string(ctx.QueryArgs().Peek("category"))
		city := string(ctx.QueryArgs().Peek("city"))

		now := time.Now().UTC()
		q := db.Model(&dbpkg.Offer{}).
			Where("status = ?", "approved").
			Where("expires_at IS NULL OR expires_at > ?", now)
		if category != "" {
			q = q.Where("category = ?", category)
		}
		if city != "" {
			q = q.Where("city = ? OR is_nationwide = ?", city, true)
		}

		var total int64
		if err := q.Count(&total).Error; err != nil {
			failResponse(ctx, fasthttp.StatusInternalServerError, "failed to count offers")
			return
		}

		var offers []dbpkg.Offer
		if err := q.Order("is_premium DESC, created_at DESC").
			Limit(limit).
			Offset((page - 1) * limit).
			Find(&offers).Error; err != nil {
			failResponse(ctx, fasthttp.StatusInternalServerError, "failed to fetch offers")
			return
		}

		rows := make([]map[string]any, 0, len(offers))
		for i := range offers {
			rows = append(rows, offerDTO(&offers[i]))
		}

		totalPages := (total + int64(limit) - 1) / int64(limit)
		successResponse(ctx, map[string]any{
			"offers":     rows,
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": totalPages,
		})
	}
}

func GetOffer(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		idVal, _ := ctx.UserValue("id").(string)
		if _, err := uuid.Parse(idVal); err != nil {
			failResponse(ctx, fasthttp.StatusBadRequest, "invalid offer id")
			return
		}

		var offer dbpkg.Offer
		if err := db.Where("id = ?", idVal).First(&offer).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				failResponse(ctx, fasthttp.StatusNotFound, "offer not found")
				return
			}
			failResponse(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}

		successResponse(ctx, map[string]any{"offer": offerDTO(&offer)})
	}
}

func offerDTO(o *dbpkg.Offer) map[string]any {
	dto := map[string]any{
		"id":           o.ID,
		"title":        o.Title,
		"description":  o.Description,
		"category":     o.Category,
		"merchantName": o.MerchantName,
		"city":         o.City,
		"isNationwide": o.IsNationwide,
		"isPremium":    o.IsPremium,
		"imageUrl":     o.ImageURL,
		"offerUrl":     o.OfferURL,
		"createdAt":    o.CreatedAt.UTC().Format(time.RFC3339),
	}
	if o.StartsAt != nil {
		dto["startsAt"] = o.StartsAt.UTC().Format(time.RFC3339)
	}
	if o.ExpiresAt != nil {
		dto["expiresAt"] = o.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return dto
}
