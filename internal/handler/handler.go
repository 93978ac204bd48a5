// Package handler contains the HTTP handlers of the ticket API.  Handlers
// bind and validate requests, call the catalog or the reservation engine
// and translate engine errors into status codes.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
)

// CatalogStore persists the reference data tickets are generated from.
// Both the MySQL catalog and the in-memory store implement it.  List
// filters take 0 to mean "all".
type CatalogStore interface {
	CreateTheatre(ctx context.Context, t *model.Theatre) error
	GetTheatre(ctx context.Context, id uint64) (*model.Theatre, error)
	ListTheatres(ctx context.Context) ([]model.Theatre, error)

	CreateMovie(ctx context.Context, m *model.Movie) error
	GetMovie(ctx context.Context, id uint64) (*model.Movie, error)
	ListMovies(ctx context.Context) ([]model.Movie, error)

	CreateHall(ctx context.Context, h *model.Hall) error
	GetHall(ctx context.Context, id uint64) (*model.Hall, error)
	ListHalls(ctx context.Context, theatreID uint64) ([]model.Hall, error)

	CreateSeatType(ctx context.Context, st *model.SeatType) error
	GetSeatType(ctx context.Context, id uint64) (*model.SeatType, error)
	ListSeatTypes(ctx context.Context, theatreID uint64) ([]model.SeatType, error)

	CreateSeat(ctx context.Context, s *model.Seat) error
	GetSeat(ctx context.Context, id uint64) (*model.Seat, error)
	ListSeats(ctx context.Context, hallID uint64) ([]model.Seat, error)

	CreateShow(ctx context.Context, s *model.Show) error
	GetShow(ctx context.Context, id uint64) (*model.Show, error)
	ListShows(ctx context.Context, hallID uint64) ([]model.Show, error)
	SearchShows(ctx context.Context, q model.ShowSearch) ([]model.ShowListing, int64, error)
}

// InventoryReader reads tickets and bookings.
type InventoryReader interface {
	ListTickets(ctx context.Context, showID uint64) ([]model.Ticket, error)
	GetBooking(ctx context.Context, bookingID uint64) (*model.Booking, error)
}

// Reserver claims a set of tickets into a booking.
type Reserver interface {
	Reserve(ctx context.Context, ticketIDs []uint64) (*model.Booking, error)
}

// PaymentRecorder records the payment of a booking.
type PaymentRecorder interface {
	MarkPaid(ctx context.Context, bookingID uint64) (*model.Booking, error)
}

// InventoryScheduler queues ticket generation for a show.
type InventoryScheduler interface {
	ScheduleInventory(ctx context.Context, showID uint64) error
}

// Handler bundles the dependencies of every endpoint.
type Handler struct {
	catalog   CatalogStore
	inventory InventoryReader
	reserver  Reserver
	payments  PaymentRecorder
	scheduler InventoryScheduler
	log       zerolog.Logger
}

// New constructs a Handler and panics if any dependency is nil.
func New(catalog CatalogStore, inventory InventoryReader, reserver Reserver, payments PaymentRecorder, scheduler InventoryScheduler, log zerolog.Logger) *Handler {
	if catalog == nil || inventory == nil || reserver == nil || payments == nil || scheduler == nil {
		panic("nil dependency passed to handler.New")
	}
	return &Handler{
		catalog:   catalog,
		inventory: inventory,
		reserver:  reserver,
		payments:  payments,
		scheduler: scheduler,
		log:       log,
	}
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// queryID parses an optional numeric filter; absent means 0.
func queryID(c echo.Context, name string) (uint64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// bindValid binds the request body into dst and runs the validator.
func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.Validate(dst)
}

// items wraps list responses the same way for every collection.
func items[T any](list []T) echo.Map {
	if list == nil {
		list = []T{}
	}
	return echo.Map{"items": list}
}
