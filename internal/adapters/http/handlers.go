package http

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

// positionRequest is the body of a position report. Coordinates may be JSON
// numbers or numeric strings.
type positionRequest struct {
	Latitude  any `json:"latitude"`
	Longitude any `json:"longitude"`
}

// measurementRequest accepts both the v1 field names and the speed-test
// client's dlStatus/ulStatus/pingStatus.
type measurementRequest struct {
	Download   any `json:"download"`
	Upload     any `json:"upload"`
	Ping       any `json:"ping"`
	DLStatus   any `json:"dlStatus"`
	ULStatus   any `json:"ulStatus"`
	PingStatus any `json:"pingStatus"`
}

func (m measurementRequest) values() (dl, ul, ping any) {
	return firstSet(m.Download, m.DLStatus), firstSet(m.Upload, m.ULStatus), firstSet(m.Ping, m.PingStatus)
}

func firstSet(vals ...any) any {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// SessionView is the JSON shape of a session.
type SessionView struct {
	SessionID string    `json:"session_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	LastSeen  time.Time `json:"last_seen"`
}

func sessionView(s domain.Session) SessionView {
	return SessionView{SessionID: s.ID, Latitude: s.Position.Lat, Longitude: s.Position.Lon, LastSeen: s.LastSeen}
}

// ReportPositionHandler records the latest position of a session.
func ReportPositionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req positionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		sess, err := deps.Sessions.ReportPosition(c.UserContext(), c.Params("id"), req.Latitude, req.Longitude)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(sessionView(sess))
	}
}

// ListSessionsHandler returns live sessions ordered by id.
func ListSessionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		all := deps.Sessions.List(c.UserContext())
		views := make([]SessionView, len(all))
		for i, s := range all {
			views[i] = sessionView(s)
		}

		offset, limit := parsePage(c)
		page, pg := paginate(views, offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// GetSessionHandler returns the raw position and last-seen time of a session.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := deps.Sessions.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(sessionView(sess))
	}
}

// LiveLocationHandler maps a session's latest position onto the floor plan.
// An unknown session is a 200 with found=false.
func LiveLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		extent, err := parseExtent(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		loc, err := deps.Sessions.LiveLocation(c.UserContext(), c.Params("id"), extent)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(loc)
	}
}

// IssueTestIDHandler starts a new test run for a session.
func IssueTestIDHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := deps.Measurements.IssueTestID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"test_id": id})
	}
}

// SaveTestLocationHandler stores where a test run took place.
func SaveTestLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		testID, err := parseTestID(c.Params("testId"))
		if err != nil {
			return errFromDomain(c, err)
		}
		var req positionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := deps.Measurements.SaveLocation(c.UserContext(), testID, req.Latitude, req.Longitude); err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"test_id": testID})
	}
}

// SubmitMeasurementHandler stores a speed result against the session's
// current test id.
func SubmitMeasurementHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req measurementRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		dl, ul, ping := req.values()
		testID, err := deps.Measurements.SubmitMeasurement(c.UserContext(), c.Params("id"), dl, ul, ping)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"test_id": testID})
	}
}

// parseExtent reads the optional width and height query parameters. Absent
// values are left at zero so the floor plan default applies.
func parseExtent(c *fiber.Ctx) (domain.RasterExtent, error) {
	var e domain.RasterExtent
	params := []struct {
		key string
		dst *int
	}{{"width", &e.Width}, {"height", &e.Height}}
	for _, p := range params {
		raw := c.Query(p.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return domain.RasterExtent{}, fmt.Errorf("%w: %s=%q", domain.ErrInvalidExtent, p.key, raw)
		}
		*p.dst = n
	}
	return e, nil
}

func parseTestID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidTestID, raw)
	}
	return id, nil
}
