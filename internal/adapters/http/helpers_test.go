package http

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

func TestChunkCount(t *testing.T) {
	cases := map[string]int{
		"":      4,
		"abc":   4,
		"0":     1,
		"-5":    1,
		"20":    20,
		"1024":  1024,
		"99999": 1024,
	}
	for raw, want := range cases {
		assert.Equal(t, want, chunkCount(raw), "ckSize=%q", raw)
	}
}

func TestETagMatches(t *testing.T) {
	etag := `W/"abc123"`
	assert.False(t, etagMatches("", etag))
	assert.True(t, etagMatches("*", etag))
	assert.True(t, etagMatches(`W/"abc123"`, etag))
	assert.True(t, etagMatches(`"abc123"`, etag))
	assert.True(t, etagMatches(`"zzz", W/"abc123"`, etag))
	assert.False(t, etagMatches(`"zzz"`, etag))
}

func TestMatchesAny(t *testing.T) {
	assert.True(t, matchesAny(QuietPaths, "/v1/sessions/abc/position"))
	assert.True(t, matchesAny(QuietPaths, "/get-live-location/abc"))
	assert.True(t, matchesAny(QuietPaths, "/metrics"))
	assert.False(t, matchesAny(QuietPaths, "/v1/sessions/abc"))
	assert.False(t, matchesAny(QuietPaths, "/v1/heatmap.png"))
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page, pg := paginate(items, 1, 2)
	assert.Equal(t, []int{2, 3}, page)
	assert.Equal(t, Pagination{Offset: 1, Limit: 2, Total: 5}, pg)

	page, _ = paginate(items, 4, 10)
	assert.Equal(t, []int{5}, page)

	page, pg = paginate(items, 9, 10)
	assert.Empty(t, page)
	assert.Equal(t, 5, pg.Total)
}

func TestParseExtent(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		e, err := parseExtent(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString(err.Error())
		}
		return c.JSON(e)
	})

	cases := []struct {
		query string
		code  int
	}{
		{"", 200},
		{"?width=100&height=80", 200},
		{"?width=100", 200},
		{"?width=1.5", 400},
		{"?height=tall", 400},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", "/"+tc.query, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, tc.code, resp.StatusCode, "query %q", tc.query)
	}
}

func TestLegacyTestID(t *testing.T) {
	id, err := legacyTestID(float64(123456))
	require.NoError(t, err)
	assert.Equal(t, int64(123456), id)

	id, err = legacyTestID("654321")
	require.NoError(t, err)
	assert.Equal(t, int64(654321), id)

	for _, bad := range []any{1.5, "abc", "-3", true, nil} {
		_, err := legacyTestID(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidTestID, "input %v", bad)
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		code int
		name string
	}{
		{domain.ErrInvalidCoordinateFormat, 400, "bad_request"},
		{domain.ErrInvalidExtent, 400, "bad_request"},
		{domain.ErrSessionNotFound, 404, "session_not_found"},
		{domain.ErrNoActiveTestForSession, 409, "no_active_test"},
		{domain.ErrInsufficientData, 422, "insufficient_data"},
		{domain.ErrUnsupportedFormat, 406, "unsupported_format"},
		{errors.New("boom"), 500, "internal_error"},
	}
	for _, tc := range cases {
		code, name := statusForError(tc.err)
		assert.Equal(t, tc.code, code, tc.err.Error())
		assert.Equal(t, tc.name, name, tc.err.Error())
	}
}

func TestSessionFilter(t *testing.T) {
	f := &sessionFilter{ids: map[string]bool{}}
	assert.True(t, f.allows("anything"))

	f.add("a")
	assert.True(t, f.allows("a"))
	assert.False(t, f.allows("b"))

	assert.True(t, f.remove("a"))
	assert.False(t, f.remove("a"))
	assert.True(t, f.allows("b"))

	f.add("a")
	f.add("")
	assert.True(t, f.allows("b"))
}

func TestTelemetryValue(t *testing.T) {
	body := `{"download": 93.4, "upload": " 12.5 ", "ping": "fast", "jitter": null}`
	r := gjson.GetMany(body, "download", "upload", "ping", "jitter", "missing")

	v, ok := telemetryValue(r[0])
	assert.True(t, ok)
	assert.Equal(t, 93.4, v)

	v, ok = telemetryValue(r[1])
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)

	for _, bad := range r[2:] {
		_, ok := telemetryValue(bad)
		assert.False(t, ok)
	}
}
