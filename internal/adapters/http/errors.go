package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/openevac/evacmap/internal/core/domain"
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
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, 409, "conflict", msg)
}

// errDomain maps the error taxonomy onto transient, human-readable status
// responses. Nothing here is retried server-side; every failure waits for a
// new user action.
func errDomain(c *fiber.Ctx, err error) error {
	var cfgErr *domain.ConfigurationError
	var svcErr *domain.ServiceError
	var netErr *domain.NetworkError

	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrNoStartPoint),
		errors.Is(err, domain.ErrNoSafeZones),
		errors.Is(err, domain.ErrAddressNotFound):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrRequestInFlight):
		return errConflict(c, err.Error())
	case errors.As(err, &cfgErr):
		return newError(c, 500, "configuration_missing", cfgErr.Error())
	case errors.As(err, &svcErr):
		return newError(c, 502, "upstream_error", svcErr.Error())
	case errors.As(err, &netErr):
		return newError(c, 502, "upstream_unreachable", netErr.Error())
	default:
		return errInternal(c, err.Error())
	}
}
