package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/middleware"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/normalizer"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/service"
)

// serviceError maps a service error onto the structured error document.
// Messages come from wrapped errors; outbound URLs are already redacted.
func serviceError(c fiber.Ctx, err error) error {
	status, code := classify(err)
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		middleware.Logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return middleware.ErrorResponse(c, status, code, msg)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, normalizer.ErrMalformedPayload):
		return fiber.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, service.ErrBadSignature):
		return fiber.StatusUnauthorized, "BAD_SIGNATURE"
	case errors.Is(err, service.ErrBadAuth):
		return fiber.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, service.ErrNotFound), errors.Is(err, pgx.ErrNoRows):
		return fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, normalizer.ErrNoValidRecords):
		return fiber.StatusUnprocessableEntity, "NO_VALID_RECORDS"
	case errors.Is(err, service.ErrUnavailable):
		return fiber.StatusServiceUnavailable, "UNAVAILABLE"
	case errors.Is(err, service.ErrJobTimeout):
		return fiber.StatusGatewayTimeout, "JOB_TIMEOUT"
	case errors.Is(err, service.ErrJobFailed):
		return fiber.StatusInternalServerError, "JOB_FAILED"
	default:
		return fiber.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
