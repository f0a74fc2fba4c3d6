package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// readyTimeout bounds the whole readiness check.
const readyTimeout = 3 * time.Second

// HealthHandler reports liveness and how many sessions are being tracked.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).Round(time.Second).String(),
			"version": "dev",
		}
		if deps.Sessions != nil {
			body["sessions"] = len(deps.Sessions.List(c.UserContext()))
		}
		return c.JSON(body)
	}
}

// readinessCheck is one dependency of /v1/ready. A failing required check
// fails readiness; optional ones are reported but tolerated.
type readinessCheck struct {
	name     string
	required bool
	check    func(ctx context.Context) string
}

func pingCheck(p Pinger) func(ctx context.Context) string {
	return func(ctx context.Context) string {
		if err := p.Ping(ctx); err != nil {
			return "error: " + err.Error()
		}
		return "ok"
	}
}

func (deps *Dependencies) readinessChecks() []readinessCheck {
	notConfigured := func(context.Context) string { return "not configured" }

	db := readinessCheck{name: "database", required: true, check: notConfigured}
	if deps.DB != nil {
		db.check = pingCheck(deps.DB)
	}

	cache := readinessCheck{name: "cache", check: notConfigured}
	if deps.Cache != nil {
		cache.check = pingCheck(deps.Cache)
	}

	bus := readinessCheck{name: "nats", check: notConfigured}
	if deps.NATS != nil {
		bus.check = func(context.Context) string {
			if deps.NATS.IsConnected() {
				return "ok"
			}
			return "disconnected"
		}
	}

	return []readinessCheck{db, cache, bus}
}

// ReadyHandler answers 503 while the measurement store is unreachable. The
// cache and the event bus only degrade features, so they never fail it.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), readyTimeout)
		defer cancel()

		checks := make(map[string]string)
		code, status := fiber.StatusOK, "ready"
		for _, p := range deps.readinessChecks() {
			result := p.check(ctx)
			checks[p.name] = result
			if p.required && result != "ok" {
				code, status = fiber.StatusServiceUnavailable, "not ready"
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
