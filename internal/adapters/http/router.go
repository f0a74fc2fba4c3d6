package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/signalmap/internal/pkg/metrics"
)

const (
	requestTimeout = 15 * time.Second
	renderTimeout  = 45 * time.Second
)

// SetupRoutes registers all REST, GraphQL, WebSocket and speed-test routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) error {
	if deps.Payload == nil {
		payload, err := NewPayload()
		if err != nil {
			return err
		}
		deps.Payload = payload
	}
	sunset := deps.LegacySunset
	if sunset.IsZero() {
		sunset = DefaultLegacySunset
	}

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Random payloads and images do not compress
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return strings.HasPrefix(p, "/backend/") || strings.HasSuffix(p, ".png")
		},
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware(nil))
	app.Use(AccessLogMiddleware(QuietPaths...))

	if deps.RequestLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        deps.RequestLimit,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return clientIP(c)
			},
			Next: func(c *fiber.Ctx) bool {
				// Speed-test traffic is bursty.
				return strings.HasPrefix(c.Path(), "/backend/")
			},
			LimitReached: func(c *fiber.Ctx) error {
				return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
			},
		}))
	}

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware("/v1/heatmap", "/v1/floorplan", "/heatmap-data"))
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	withTimeout := func(h fiber.Handler) fiber.Handler {
		return timeout.NewWithContext(h, requestTimeout)
	}
	withRenderTimeout := func(h fiber.Handler) fiber.Handler {
		return timeout.NewWithContext(h, renderTimeout)
	}

	v1 := app.Group("/v1")
	v1.Get("/sessions", withTimeout(ListSessionsHandler(deps)))
	v1.Get("/sessions/:id", withTimeout(GetSessionHandler(deps)))
	v1.Post("/sessions/:id/position", withTimeout(ReportPositionHandler(deps)))
	v1.Get("/sessions/:id/live", withTimeout(LiveLocationHandler(deps)))
	v1.Post("/sessions/:id/tests", withTimeout(IssueTestIDHandler(deps)))
	v1.Post("/sessions/:id/measurements", withTimeout(SubmitMeasurementHandler(deps)))
	v1.Post("/tests/:testId/location", withTimeout(SaveTestLocationHandler(deps)))

	v1.Get("/floorplan", FloorplanHandler(deps))
	v1.Get("/heatmap/points", withTimeout(HeatmapPointsHandler(deps)))
	v1.Get("/heatmap/field", withRenderTimeout(HeatmapFieldHandler(deps)))
	v1.Get("/heatmap/snapshot.png", withTimeout(HeatmapSnapshotHandler(deps)))
	v1.Get("/heatmap.png", withRenderTimeout(HeatmapRenderHandler(deps, "png")))
	v1.Get("/heatmap.html", withRenderTimeout(HeatmapRenderHandler(deps, "html")))

	// Speed-test backend
	app.Get("/backend/empty", EmptyHandler())
	app.Post("/backend/empty", EmptyHandler())
	app.Get("/backend/garbage", GarbageHandler(deps.Payload))
	app.Get("/backend/getIP", GetIPHandler())
	app.Post("/results/telemetry", TelemetryHandler())

	registerLegacy(app, legacyRoutes(deps), sunset)

	app.Post("/graphql", GraphQLHandler(deps))

	if err := SetupDocs(app); err != nil {
		return err
	}

	if deps.NATS != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
	}
	return nil
}
