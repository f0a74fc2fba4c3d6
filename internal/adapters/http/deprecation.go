package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DefaultLegacySunset is announced on the legacy aliases unless configured.
var DefaultLegacySunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// LegacyRoute is an alias kept for clients of the previous service.
type LegacyRoute struct {
	Method    string
	Path      string // Fiber route pattern
	Successor string // Replacement endpoint, documentation only
	Handler   fiber.Handler
}

// Deprecated wraps h so responses carry Deprecation, Sunset and Link headers
// (RFC 9745, RFC 8594, RFC 8288).
func Deprecated(successor string, sunset time.Time, h fiber.Handler) fiber.Handler {
	sunsetHeader := sunset.UTC().Format(time.RFC1123)
	return func(c *fiber.Ctx) error {
		c.Set("Deprecation", "true")
		c.Set("Sunset", sunsetHeader)
		if successor != "" {
			c.Set(fiber.HeaderLink, fmt.Sprintf(`<%s>; rel="successor-version"`, successor))
		}
		days := time.Until(sunset).Hours() / 24
		c.Set("Warning", fmt.Sprintf(`299 - "Deprecated API, will sunset in %.0f days"`, days))
		return h(c)
	}
}

// registerLegacy mounts every alias on app.
func registerLegacy(app fiber.Router, routes []LegacyRoute, sunset time.Time) {
	for _, r := range routes {
		app.Add(r.Method, r.Path, Deprecated(r.Successor, sunset, r.Handler))
	}
}
