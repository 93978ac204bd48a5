package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
)

// TicketView is a ticket as listed to clients: the frozen price and
// whether it can still be reserved.  The owning booking is not exposed.
type TicketView struct {
	ID        uint64          `json:"id"`
	SeatID    uint64          `json:"seat_id"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
}

type reserveRequest struct {
	TicketIDs []uint64 `json:"ticket_ids"`
}

// ListShowTickets handles GET /v1/shows/:id/tickets.  An existing show
// whose inventory has not been generated yet lists no tickets.
func (h *Handler) ListShowTickets(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	ctx := c.Request().Context()
	if _, err := h.catalog.GetShow(ctx, id); err != nil {
		return h.respondError(c, err)
	}
	tickets, err := h.inventory.ListTickets(ctx, id)
	if err != nil {
		return h.respondError(c, err)
	}
	views := make([]TicketView, len(tickets))
	available := 0
	for i, t := range tickets {
		views[i] = TicketView{ID: t.ID, SeatID: t.SeatID, Price: t.Price, Available: t.Available()}
		if t.Available() {
			available++
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": views, "available": available})
}

// CreateBooking handles POST /v1/bookings.  Either every requested
// ticket is claimed into one new booking or nothing changes.
//
//	201 booking | 400 invalid set | 404 missing tickets |
//	409 already claimed tickets | 503 retry later
func (h *Handler) CreateBooking(c echo.Context) error {
	var req reserveRequest
	if err := c.Bind(&req); err != nil {
		return h.respondError(c, echo.NewHTTPError(http.StatusBadRequest, "invalid request body"))
	}
	booking, err := h.reserver.Reserve(c.Request().Context(), req.TicketIDs)
	if err != nil {
		return h.respondError(c, err)
	}
	c.Response().Header().Set(echo.HeaderLocation, bookingPath(booking))
	return c.JSON(http.StatusCreated, booking)
}

// GetBooking handles GET /v1/bookings/:id.
func (h *Handler) GetBooking(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	booking, err := h.inventory.GetBooking(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, booking)
}

// PayBooking handles POST /v1/bookings/:id/payment, the callback of the
// payment collaborator.  Repeated calls succeed without changing the
// booking again.  A booking that was already reclaimed answers 404.
func (h *Handler) PayBooking(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	booking, err := h.payments.MarkPaid(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, booking)
}

func bookingPath(b *model.Booking) string {
	return "/v1/bookings/" + strconv.FormatUint(b.ID, 10)
}
