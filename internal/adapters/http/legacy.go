package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

// legacyTimeLayout is how the previous service formatted timestamps.
const legacyTimeLayout = "2006-01-02 15:04:05 UTC"

type legacyPositionRequest struct {
	Latitude  any    `json:"latitude"`
	Longitude any    `json:"longitude"`
	SessionID string `json:"session_id"`
	ID        any    `json:"id"`
}

type legacySpeedRequest struct {
	SessionID  string `json:"session_id"`
	DLStatus   any    `json:"dlStatus"`
	ULStatus   any    `json:"ulStatus"`
	PingStatus any    `json:"pingStatus"`
}

// legacyRoutes keeps the request and response shapes of the previous
// service's endpoints on top of the v1 use cases.
func legacyRoutes(deps *Dependencies) []LegacyRoute {
	return []LegacyRoute{
		{fiber.MethodGet, "/generate_unique_id", "/v1/sessions/{id}/tests", legacyGenerateID(deps)},
		{fiber.MethodPost, "/save_location", "/v1/tests/{testId}/location", legacySaveLocation(deps)},
		{fiber.MethodPost, "/save_user_location", "/v1/sessions/{id}/position", legacySaveUserLocation(deps)},
		{fiber.MethodPost, "/submit-speed", "/v1/sessions/{id}/measurements", legacySubmitSpeed(deps)},
		{fiber.MethodGet, "/heatmap-data", "/v1/heatmap/points", legacyHeatmapData(deps)},
		{fiber.MethodGet, "/get-live-location/:id", "/v1/sessions/{id}/live", LiveLocationHandler(deps)},
		{fiber.MethodGet, "/get_all_sessions", "/v1/sessions", legacyAllSessions(deps)},
		{fiber.MethodGet, "/get_location/:id", "/v1/sessions/{id}", legacyGetLocation(deps)},
	}
}

func legacyGenerateID(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := deps.Measurements.IssueTestID(c.UserContext(), c.Query("session_id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"id": id})
	}
}

func legacySaveLocation(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req legacyPositionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid or missing JSON payload")
		}
		if req.ID == nil {
			return errBadRequest(c, "missing unique test id ('id')")
		}
		testID, err := legacyTestID(req.ID)
		if err != nil {
			return errFromDomain(c, err)
		}
		if err := deps.Measurements.SaveLocation(c.UserContext(), testID, req.Latitude, req.Longitude); err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"message": "Location saved successfully!", "id": testID})
	}
}

func legacySaveUserLocation(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req legacyPositionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid or empty JSON payload")
		}
		sess, err := deps.Sessions.ReportPosition(c.UserContext(), req.SessionID, req.Latitude, req.Longitude)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"status": "User location updated", "session_id": sess.ID})
	}
}

func legacySubmitSpeed(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req legacySpeedRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid or empty JSON payload")
		}
		testID, err := deps.Measurements.SubmitMeasurement(c.UserContext(), req.SessionID, req.DLStatus, req.ULStatus, req.PingStatus)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"message": "Speed test results saved!", "id": testID})
	}
}

func legacyHeatmapData(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp, err := heatmapPoints(c, deps, domain.RasterExtent{})
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"max": resp.Max, "data": resp.Data})
	}
}

func legacyAllSessions(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out := make(map[string]string)
		for _, s := range deps.Sessions.List(c.UserContext()) {
			out[s.ID] = s.LastSeen.UTC().Format(legacyTimeLayout)
		}
		return c.JSON(out)
	}
}

func legacyGetLocation(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := deps.Sessions.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{
			"latitude":  sess.Position.Lat,
			"longitude": sess.Position.Lon,
			"last_seen": sess.LastSeen.UTC().Format(legacyTimeLayout),
		})
	}
}

// legacyTestID accepts the id as a JSON number or a numeric string.
func legacyTestID(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		if t != float64(int64(t)) {
			return 0, domain.ErrInvalidTestID
		}
		return int64(t), nil
	case string:
		return parseTestID(t)
	default:
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidTestID, v)
	}
}
