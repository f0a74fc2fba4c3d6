package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const noStore = "no-store, no-cache, must-revalidate, max-age=0, s-maxage=0"

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Handlers that set their own header win.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		p := c.Path()
		var ttl string

		switch {
		case p == "/v1/health" || p == "/v1/ready":
			ttl = "public, max-age=10"

		case p == "/metrics", p == "/generate_unique_id", strings.HasPrefix(p, "/backend/"):
			ttl = noStore

		case p == "/v1/floorplan", p == "/docs", p == "/docs/openapi.yaml":
			ttl = "public, max-age=3600"

		case p == "/v1/heatmap/snapshot.png":
			ttl = "public, max-age=300"

		case strings.HasPrefix(p, "/v1/heatmap"), p == "/heatmap-data":
			// New measurements invalidate the field; keep this short.
			ttl = "public, max-age=15"

		case strings.HasPrefix(p, "/v1/sessions"), strings.HasPrefix(p, "/get"):
			ttl = "private, no-cache"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
