package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
)

// SearchShows handles GET /v1/shows/search.  Query parameters: movie,
// theatre, city (substring filters), when (upcoming, active or any),
// page and page_size.  Each row carries the number of tickets still
// available.
func (h *Handler) SearchShows(c echo.Context) error {
	q := model.ShowSearch{
		Movie:   c.QueryParam("movie"),
		Theatre: c.QueryParam("theatre"),
		City:    c.QueryParam("city"),
		When:    c.QueryParam("when"),
	}
	var err error
	if q.Page, err = intParam(c, "page"); err != nil {
		return h.respondError(c, err)
	}
	if q.PageSize, err = intParam(c, "page_size"); err != nil {
		return h.respondError(c, err)
	}
	q = q.Normalize()

	list, total, err := h.catalog.SearchShows(c.Request().Context(), q)
	if err != nil {
		return h.respondError(c, err)
	}
	body := items(list)
	body["total"] = total
	body["page"] = q.Page
	body["page_size"] = q.PageSize
	return c.JSON(http.StatusOK, body)
}

func intParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return n, nil
}
