package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
)

type theatreRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	City string `json:"city" validate:"required,max=255"`
}

type movieRequest struct {
	Name          string    `json:"name" validate:"required,max=255"`
	Description   *string   `json:"description"`
	LengthMinutes float64   `json:"length_minutes" validate:"gt=0"`
	Cast          []string  `json:"cast" validate:"max=50,dive,required,max=100"`
	Director      string    `json:"director" validate:"required,max=255"`
	Genre         string    `json:"genre" validate:"required,max=255"`
	Certificate   string    `json:"certificate" validate:"required,oneof=A UA U S"`
	ReleaseDate   time.Time `json:"release_date" validate:"required"`
}

type hallRequest struct {
	TheatreID uint64 `json:"theatre_id" validate:"required"`
	Name      string `json:"name" validate:"required,max=255"`
}

type seatTypeRequest struct {
	TheatreID       uint64          `json:"theatre_id" validate:"required"`
	Name            string          `json:"name" validate:"required,max=255"`
	PriceMultiplier decimal.Decimal `json:"price_multiplier" validate:"gt=0"`
}

type seatRequest struct {
	HallID     uint64 `json:"hall_id" validate:"required"`
	SeatTypeID uint64 `json:"seat_type_id" validate:"required"`
	Row        string `json:"row" validate:"required,max=16"`
	Column     string `json:"column" validate:"required,max=16"`
}

type showRequest struct {
	MovieID   uint64          `json:"movie_id" validate:"required"`
	HallID    uint64          `json:"hall_id" validate:"required"`
	StartsAt  time.Time       `json:"starts_at" validate:"required"`
	EndsAt    time.Time       `json:"ends_at" validate:"required,gtfield=StartsAt"`
	BasePrice decimal.Decimal `json:"base_price" validate:"gte=0"`
}

// CreateTheatre handles POST /v1/theatres.
func (h *Handler) CreateTheatre(c echo.Context) error {
	var req theatreRequest
	if err := bindValid(c, &req); err != nil {
		return h.respondError(c, err)
	}
	t := &model.Theatre{Name: req.Name, City: req.City}
	if err := h.catalog.CreateTheatre(c.Request().Context(), t); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// GetTheatre handles GET /v1/theatres/:id.
func (h *Handler) GetTheatre(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	t, err := h.catalog.GetTheatre(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// ListTheatres handles GET /v1/theatres.
func (h *Handler) ListTheatres(c echo.Context) error {
	list, err := h.catalog.ListTheatres(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, items(list))
}

// CreateMovie handles POST /v1/movies.
func (h *Handler) CreateMovie(c echo.Context) error {
	var req movieRequest
	if err := bindValid(c, &req); err != nil {
		return h.respondError(c, err)
	}
	m := &model.Movie{
		Name:          req.Name,
		Description:   req.Description,
		LengthMinutes: req.LengthMinutes,
		Cast:          req.Cast,
		Director:      req.Director,
		Genre:         req.Genre,
		Certificate:   req.Certificate,
		ReleaseDate:   req.ReleaseDate.UTC(),
	}
	if err := h.catalog.CreateMovie(c.Request().Context(), m); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// GetMovie handles GET /v1/movies/:id.
func (h *Handler) GetMovie(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	m, err := h.catalog.GetMovie(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// ListMovies handles GET /v1/movies.
func (h *Handler) ListMovies(c echo.Context) error {
	list, err := h.catalog.ListMovies(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, items(list))
}

// CreateHall handles POST /v1/halls.
func (h *Handler) CreateHall(c echo.Context) error {
	var req hallRequest
	if err := bindValid(c, &req); err != nil {
		return h.respondError(c, err)
	}
	hall := &model.Hall{TheatreID: req.TheatreID, Name: req.Name}
	if err := h.catalog.CreateHall(c.Request().Context(), hall); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, hall)
}

// GetHall handles GET /v1/halls/:id.
func (h *Handler) GetHall(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	hall, err := h.catalog.GetHall(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, hall)
}

// ListHalls handles GET /v1/halls?theatre_id=.
func (h *Handler) ListHalls(c echo.Context) error {
	theatreID, err := queryID(c, "theatre_id")
	if err != nil {
		return h.respondError(c, err)
	}
	list, err := h.catalog.ListHalls(c.Request().Context(), theatreID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, items(list))
}

// CreateSeatType handles POST /v1/seat-types.
func (h *Handler) CreateSeatType(c echo.Context) error {
	var req seatTypeRequest
	if err := bindValid(c, &req); err != nil {
		return h.respondError(c, err)
	}
	st := &model.SeatType{TheatreID: req.TheatreID, Name: req.Name, PriceMultiplier: req.PriceMultiplier}
	if err := h.catalog.CreateSeatType(c.Request().Context(), st); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, st)
}

// GetSeatType handles GET /v1/seat-types/:id.
func (h *Handler) GetSeatType(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	st, err := h.catalog.GetSeatType(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// ListSeatTypes handles GET /v1/seat-types?theatre_id=.
func (h *Handler) ListSeatTypes(c echo.Context) error {
	theatreID, err := queryID(c, "theatre_id")
	if err != nil {
		return h.respondError(c, err)
	}
	list, err := h.catalog.ListSeatTypes(c.Request().Context(), theatreID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, items(list))
}

// CreateSeat handles POST /v1/seats.  The seat type must belong to the
// hall's theatre.
func (h *Handler) CreateSeat(c echo.Context) error {
	var req seatRequest
	if err := bindValid(c, &req); err != nil {
		return h.respondError(c, err)
	}
	seat := &model.Seat{HallID: req.HallID, SeatTypeID: req.SeatTypeID, Row: req.Row, Column: req.Column}
	if err := h.catalog.CreateSeat(c.Request().Context(), seat); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, seat)
}

// GetSeat handles GET /v1/seats/:id.
func (h *Handler) GetSeat(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	seat, err := h.catalog.GetSeat(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, seat)
}

// ListSeats handles GET /v1/seats?hall_id=.
func (h *Handler) ListSeats(c echo.Context) error {
	hallID, err := queryID(c, "hall_id")
	if err != nil {
		return h.respondError(c, err)
	}
	list, err := h.catalog.ListSeats(c.Request().Context(), hallID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, items(list))
}

// CreateShow handles POST /v1/shows.  The show is stored and its ticket
// generation is queued; the response does not wait for the tickets.
// A failure to queue is logged and can be retried through
// POST /v1/shows/:id/inventory.
func (h *Handler) CreateShow(c echo.Context) error {
	var req showRequest
	if err := bindValid(c, &req); err != nil {
		return h.respondError(c, err)
	}
	show := &model.Show{
		MovieID:   req.MovieID,
		HallID:    req.HallID,
		StartsAt:  req.StartsAt.UTC(),
		EndsAt:    req.EndsAt.UTC(),
		BasePrice: req.BasePrice,
	}
	ctx := c.Request().Context()
	if err := h.catalog.CreateShow(ctx, show); err != nil {
		return h.respondError(c, err)
	}
	if err := h.scheduler.ScheduleInventory(ctx, show.ID); err != nil {
		h.log.Error().Err(err).Uint64("show_id", show.ID).Msg("schedule inventory generation")
	}
	return c.JSON(http.StatusCreated, show)
}

// GenerateInventory handles POST /v1/shows/:id/inventory.  It queues
// ticket generation again; generation is idempotent.
func (h *Handler) GenerateInventory(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	ctx := c.Request().Context()
	if _, err := h.catalog.GetShow(ctx, id); err != nil {
		return h.respondError(c, err)
	}
	if err := h.scheduler.ScheduleInventory(ctx, id); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"show_id": id, "status": "scheduled"})
}

// GetShow handles GET /v1/shows/:id.
func (h *Handler) GetShow(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	show, err := h.catalog.GetShow(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, show)
}

// ListShows handles GET /v1/shows?hall_id=.
func (h *Handler) ListShows(c echo.Context) error {
	hallID, err := queryID(c, "hall_id")
	if err != nil {
		return h.respondError(c, err)
	}
	list, err := h.catalog.ListShows(c.Request().Context(), hallID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, items(list))
}
