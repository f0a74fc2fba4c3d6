package http

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/tidwall/gjson"
)

const (
	// PayloadSize is the size of one garbage chunk.
	PayloadSize = 1 << 20

	defaultChunks = 4
	maxChunks     = 1024
)

// NewPayload returns a random buffer served repeatedly by /backend/garbage.
func NewPayload() ([]byte, error) {
	buf := make([]byte, PayloadSize)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate payload: %w", err)
	}
	return buf, nil
}

func noCache(c *fiber.Ctx) {
	c.Set(fiber.HeaderCacheControl, noStore)
	c.Set(fiber.HeaderPragma, "no-cache")
}

func allowCORS(c *fiber.Ctx, headers bool) {
	if _, ok := c.Queries()["cors"]; !ok {
		return
	}
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	c.Set(fiber.HeaderAccessControlAllowMethods, "GET, POST")
	if headers {
		c.Set(fiber.HeaderAccessControlAllowHeaders, "Content-Encoding, Content-Type")
	}
}

// EmptyHandler answers ping and upload requests with an empty body.
func EmptyHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		allowCORS(c, true)
		noCache(c)
		c.Set(fiber.HeaderConnection, "keep-alive")
		c.Status(fiber.StatusOK)
		return nil
	}
}

// GarbageHandler streams ckSize copies of payload for download tests.
func GarbageHandler(payload []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		chunks := chunkCount(c.Query("ckSize"))

		readers := make([]io.Reader, chunks)
		for i := range readers {
			readers[i] = bytes.NewReader(payload)
		}
		size := chunks * len(payload)

		allowCORS(c, false)
		noCache(c)
		c.Set("Content-Description", "File Transfer")
		c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
		c.Set(fiber.HeaderContentDisposition, "attachment; filename=random.dat")
		c.Set("Content-Transfer-Encoding", "binary")
		return c.SendStream(io.MultiReader(readers...), size)
	}
}

// chunkCount parses ckSize, clamped to [1, 1024]; unparsable values use 4.
func chunkCount(raw string) int {
	if raw == "" {
		return defaultChunks
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultChunks
	}
	if n < 1 {
		return 1
	}
	if n > maxChunks {
		return maxChunks
	}
	return n
}

// clientIP prefers proxy headers over the socket address.
func clientIP(c *fiber.Ctx) string {
	ip := c.Get("Client-Ip")
	if ip == "" {
		ip = c.Get("X-Real-Ip")
	}
	if ip == "" {
		ip = strings.TrimSpace(strings.Split(c.Get(fiber.HeaderXForwardedFor), ",")[0])
	}
	if ip == "" {
		ip = c.IP()
	}
	if ip == "" {
		ip = "0.0.0.0"
	}
	return strings.ReplaceAll(ip, "::ffff:", "")
}

func isLocalIP(ip string) bool {
	return strings.HasPrefix(ip, "127.") || strings.HasPrefix(ip, "192.168.") || ip == "::1"
}

// IPResponse is the shape expected by the speed-test client.
type IPResponse struct {
	ProcessedString string  `json:"processedString"`
	YourIP          string  `json:"yourIp"`
	Query           string  `json:"query"`
	ISP             *string `json:"ISP"`
	RawISPInfo      string  `json:"rawIspInfo"`
}

// GetIPHandler reports the client address.
func GetIPHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := clientIP(c)
		resp := IPResponse{ProcessedString: ip, YourIP: ip, Query: ip}
		if _, ok := c.Queries()["isp"]; ok && isLocalIP(ip) {
			isp := "localhost IPv4 access"
			resp.ISP = &isp
			resp.ProcessedString += " - " + isp
		}

		allowCORS(c, false)
		noCache(c)
		return c.JSON(resp)
	}
}

// telemetryFields are the figures a speed-test summary must carry.
var telemetryFields = []string{"download", "upload", "ping", "jitter"}

// TelemetryHandler validates and logs a speed-test summary. Figures may be
// JSON numbers or numeric strings.
func TelemetryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := c.Body()
		if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
			return errBadRequest(c, "invalid or missing JSON payload")
		}

		results := gjson.GetManyBytes(body, telemetryFields...)
		vals := make([]any, 0, 2*len(telemetryFields))
		for i, name := range telemetryFields {
			v, ok := telemetryValue(results[i])
			if !ok {
				return errBadRequest(c, "invalid or missing numeric data fields (download, upload, ping, jitter)")
			}
			vals = append(vals, name, v)
		}

		LoggerFromCtx(c.UserContext()).Info("telemetry received", vals...)
		return c.JSON(fiber.Map{"status": "success"})
	}
}

func telemetryValue(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
