package main

import (
	"log"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"

	"offerpulse/internal/analytics"
	"offerpulse/internal/config"
	"offerpulse/internal/db"
	"offerpulse/internal/http/handlers"
	appmw "offerpulse/internal/http/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	if err := db.EnsureBootstrapAdmin(sqlDB, cfg); err != nil {
		log.Fatalf("failed to ensure bootstrap admin: %v", err)
	}

	eventStore := analytics.NewEventStore(sqlDB)
	statStore := analytics.NewStatStore(sqlDB)
	offerResolver := analytics.NewOfferResolver(sqlDB)
	validator := analytics.NewValidator(cfg.MetadataMaxBytes)
	aggregator := analytics.NewAggregator(eventStore, statStore, offerResolver, cfg.TopEntries)
	reader := analytics.NewReader(statStore, aggregator)

	analytics.StartFinalizationWorker(aggregator)

	handlers.InitPrometheusMetrics()

	r := router.New()

	// Global middleware chain: request logger, then CORS, then rate limiting, then router.
	handler := handlers.RequestLogger(appmw.CORS(cfg)(appmw.RateLimit(cfg)(r.Handler)))

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})

	r.POST("/v1/auth/register", handlers.Register(sqlDB, cfg))
	r.POST("/v1/auth/login", handlers.Login(sqlDB, cfg))
	r.GET("/v1/auth/profile", appmw.RequireAuth(sqlDB, cfg)(handlers.Profile()))

	r.GET("/v1/categories", handlers.Categories(sqlDB))
	r.GET("/v1/offers", handlers.ListOffers(sqlDB))
	r.GET("/v1/offers/{id}", handlers.GetOffer(sqlDB))

	r.POST("/v1/analytics/events", appmw.OptionalAuth(sqlDB, cfg)(handlers.TrackEvents(validator, eventStore, aggregator)))
	r.GET("/v1/analytics/dashboard", appmw.AdminAuth(sqlDB, cfg)(handlers.Dashboard(reader)))
	r.GET("/v1/analytics/offers/{id}", appmw.AdminAuth(sqlDB, cfg)(handlers.OfferDashboard(reader)))

	r.GET("/metrics", handlers.MetricsHandler())

	log.Printf("offerpulse listening on %s", cfg.ListenAddr)
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
