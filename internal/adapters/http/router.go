package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/openevac/evacmap/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 240 requests per minute per IP. Map interaction is
	// chatty (clicks, drafts), so the ceiling sits above a read-only API's.
	app.Use(limiter.New(limiter.Config{
		Max:        240,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// Health & readiness (no timeout — fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1 — 15s per-request timeout
	v1 := app.Group("/v1")
	v1.Post("/sessions", timeout.NewWithContext(CreateSessionHandler(deps), 15*time.Second))
	v1.Get("/sessions/:id", timeout.NewWithContext(GetSessionHandler(deps), 15*time.Second))
	v1.Delete("/sessions/:id", timeout.NewWithContext(DeleteSessionHandler(deps), 15*time.Second))
	v1.Post("/sessions/:id/mode", timeout.NewWithContext(SetModeHandler(deps), 15*time.Second))
	v1.Post("/sessions/:id/click", timeout.NewWithContext(ClickHandler(deps), 15*time.Second))
	v1.Post("/sessions/:id/viewport", timeout.NewWithContext(ViewportHandler(deps), 15*time.Second))
	v1.Put("/sessions/:id/draft", timeout.NewWithContext(UpdateDraftHandler(deps), 15*time.Second))
	v1.Post("/sessions/:id/dispatch", timeout.NewWithContext(DispatchHandler(deps), 15*time.Second))
	v1.Post("/sessions/:id/reset", timeout.NewWithContext(ResetHandler(deps), 15*time.Second))
	v1.Post("/sessions/:id/zones/save", timeout.NewWithContext(SaveZonesHandler(deps), 15*time.Second))
	v1.Post("/sessions/:id/zones/load", timeout.NewWithContext(LoadZonesHandler(deps), 15*time.Second))
	v1.Get("/sessions/:id/layers", timeout.NewWithContext(LayersHandler(deps), 15*time.Second))
	v1.Get("/sessions/:id/requests", timeout.NewWithContext(ListRequestsHandler(deps), 15*time.Second))

	// Geocoding + alerting
	v1.Post("/geocode", timeout.NewWithContext(GeocodeHandler(deps), 15*time.Second))
	v1.Post("/notify", timeout.NewWithContext(NotifyHandler(deps), 15*time.Second))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// WebSocket event stream
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
