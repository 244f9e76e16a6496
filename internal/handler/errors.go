package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/table-reservations/internal/availability"
	"github.com/iliyamo/table-reservations/internal/repository"
	"github.com/iliyamo/table-reservations/internal/service"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, availability.ErrInvalidDate),
		errors.Is(err, availability.ErrInvalidCapacity),
		errors.Is(err, availability.ErrUnknownSlot):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrSlotFull):
		return http.StatusConflict
	case errors.Is(err, availability.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, availability.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": ...}, adding "fields" for
// validation failures. Driver details are not exposed for 5xx responses.
func respondError(c echo.Context, log zerolog.Logger, err error) error {
	code := statusFor(err)
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(code, echo.Map{"error": "validation failed", "fields": ve.Fields})
	case code == http.StatusGatewayTimeout:
		return c.JSON(code, echo.Map{"error": "reservation store timed out"})
	case code == http.StatusServiceUnavailable:
		return c.JSON(code, echo.Map{"error": "reservation store unavailable"})
	case code == http.StatusInternalServerError:
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.JSON(code, echo.Map{"error": "internal error"})
	}
	return c.JSON(code, echo.Map{"error": err.Error()})
}
