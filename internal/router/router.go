package router

import (
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/handler"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/middleware"
)

// Handlers holds all handler instances needed by the router.
type Handlers struct {
	Health   *handler.HealthHandler
	Channel  *handler.ChannelHandler
	Video    *handler.VideoHandler
	Scrape   *handler.ScrapeHandler
	Webhook  *handler.WebhookHandler
	Job      *handler.JobHandler
	Analysis *handler.AnalysisHandler
	Stats    *handler.StatsHandler
}

// Setup configures the middleware stack and all API routes on the given Fiber app.
func Setup(app *fiber.App, h *Handlers, corsOrigins string) {
	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(middleware.NewRequestLogger())
	app.Use(handler.MetricsMiddleware())
	app.Use(middleware.NewCORS(corsOrigins))

	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	app.Get("/metrics", handler.MetricsHandler())

	collectLimit := middleware.NewCollectRateLimiter().Handler()
	analysisLimit := middleware.NewAnalysisRateLimiter().Handler()
	statsLimit := middleware.NewStatsRateLimiter().Handler()

	api := app.Group("/api")

	// Collection triggers
	api.Post("/channels/collect", collectLimit, h.Channel.Collect)
	api.Get("/channels/:channelId", h.Channel.Get)
	api.Post("/videos/collect", collectLimit, h.Video.Collect)
	api.Post("/scrapes", collectLimit, h.Scrape.Dispatch)

	// Provider deliveries are not rate limited
	api.Post("/webhooks/scrape", h.Webhook.Receive)

	api.Get("/jobs/:jobId", h.Job.Get)

	// Analysis
	api.Post("/analysis", analysisLimit, h.Analysis.Analyze)
	api.Get("/videos/:videoId/summary", h.Analysis.GetSummary)

	api.Get("/stats", statsLimit, h.Stats.GetStats)
}
