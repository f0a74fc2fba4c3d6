package http

import (
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/gofiber/fiber/v2"
)

// QuietPaths are polled or streamed often enough that successful requests
// are kept out of the access log.
var QuietPaths = []string{
	"/v1/sessions/*/position",
	"/v1/sessions/*/live",
	"/save_user_location",
	"/get-live-location/*",
	"/backend/garbage",
	"/backend/empty",
	"/metrics",
}

// AccessLogMiddleware logs HTTP requests with structured slog output.
// Successful requests whose path matches one of quiet (path.Match patterns)
// are skipped; failures are always logged.
func AccessLogMiddleware(quiet ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		p := c.Path()
		method := c.Method()

		err := c.Next()

		status := c.Response().StatusCode()
		if err == nil && status < 400 && matchesAny(quiet, p) {
			return nil
		}

		attrs := []slog.Attr{
			slog.String("method", method),
			slog.String("path", p),
			slog.Int("status", status),
			slog.String("latency", time.Since(start).String()),
			slog.Int("bytes_out", len(c.Response().Body())),
			slog.String("request_id", c.Get(fiber.HeaderXRequestID, RequestIDFromCtx(c.UserContext()))),
			slog.String("ip", clientIP(c)),
		}

		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}

		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
			level = slog.LevelError
		}

		slog.LogAttrs(c.UserContext(), level, fmt.Sprintf("%s %s", method, p), attrs...)
		return err
	}
}

func matchesAny(patterns []string, p string) bool {
	for _, pat := range patterns {
		if ok, _ := path.Match(pat, p); ok {
			return true
		}
	}
	return false
}
