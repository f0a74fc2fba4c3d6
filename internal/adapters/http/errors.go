package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// statusForError maps domain errors onto an HTTP status and error code.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidCoordinateFormat),
		errors.Is(err, domain.ErrInvalidExtent),
		errors.Is(err, domain.ErrMissingSessionID),
		errors.Is(err, domain.ErrInvalidTestID):
		return fiber.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return fiber.StatusNotAcceptable, "unsupported_format"
	case errors.Is(err, domain.ErrSessionNotFound):
		return fiber.StatusNotFound, "session_not_found"
	case errors.Is(err, domain.ErrSnapshotNotFound):
		return fiber.StatusNotFound, "snapshot_not_found"
	case errors.Is(err, domain.ErrNoActiveTestForSession):
		return fiber.StatusConflict, "no_active_test"
	case errors.Is(err, domain.ErrInsufficientData):
		return fiber.StatusUnprocessableEntity, "insufficient_data"
	default:
		return fiber.StatusInternalServerError, "internal_error"
	}
}

// errFromDomain writes err using statusForError. Internal errors are logged
// and their details are not echoed to the client.
func errFromDomain(c *fiber.Ctx, err error) error {
	status, code := statusForError(err)
	if status >= fiber.StatusInternalServerError {
		LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
		return newError(c, status, code, "internal server error")
	}
	return newError(c, status, code, err.Error())
}
