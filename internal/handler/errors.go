package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-engine/internal/reservation"
)

// respondError writes the JSON error response for err.  Engine errors
// map onto status codes; anything unclassified is logged and reported
// as 500 without details.
func (h *Handler) respondError(c echo.Context, err error) error {
	var (
		httpErr  *echo.HTTPError
		verrs    validator.ValidationErrors
		input    *reservation.InputError
		missing  *reservation.MissingError
		conflict *reservation.ConflictError
	)
	switch {
	case errors.As(err, &httpErr):
		return c.JSON(httpErr.Code, echo.Map{"error": httpErr.Message})
	case errors.As(err, &verrs):
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": fields})
	case errors.As(err, &input):
		body := echo.Map{"error": input.Reason}
		if len(input.Duplicates) > 0 {
			body["duplicates"] = input.Duplicates
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &missing):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tickets not found", "missing": missing.Missing})
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "tickets already claimed", "already_claimed": conflict.AlreadyClaimed})
	case errors.Is(err, reservation.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, reservation.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, reservation.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, reservation.ErrTransient):
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable, retry"})
	}
	h.log.Error().Err(err).Str("route", c.Path()).Msg("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
