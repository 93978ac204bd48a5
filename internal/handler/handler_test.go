package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-engine/internal/memstore"
	"github.com/iliyamo/cinema-ticket-engine/internal/model"
	"github.com/iliyamo/cinema-ticket-engine/internal/reservation"
)

type stubReserver struct{ err error }

func (s stubReserver) Reserve(context.Context, []uint64) (*model.Booking, error) {
	return nil, s.err
}

type stubPayments struct{}

func (stubPayments) MarkPaid(context.Context, uint64) (*model.Booking, error) {
	return nil, reservation.ErrNotFound
}

type failingScheduler struct{ calls int }

func (s *failingScheduler) ScheduleInventory(context.Context, uint64) error {
	s.calls++
	return errors.New("queue unavailable")
}

func newTestHandler(reserveErr error, sched InventoryScheduler) (*Handler, *echo.Echo) {
	store := memstore.New()
	h := New(store, store, stubReserver{err: reserveErr}, stubPayments{}, sched, zerolog.Nop())
	e := echo.New()
	e.Validator = NewValidator()
	return h, e
}

func call(e *echo.Echo, h echo.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	h(e.NewContext(req, rec))
	return rec
}

func TestCreateBookingMapsEngineErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"transient", fmt.Errorf("claim: %w", reservation.ErrTransient), http.StatusServiceUnavailable, "retry"},
		{"conflict", &reservation.ConflictError{AlreadyClaimed: []uint64{4, 2}}, http.StatusConflict, `"already_claimed":[4,2]`},
		{"missing", &reservation.MissingError{Missing: []uint64{9}}, http.StatusNotFound, `"missing":[9]`},
		{"empty", &reservation.InputError{Reason: "ticket set is empty"}, http.StatusBadRequest, "ticket set is empty"},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, e := newTestHandler(tc.err, &failingScheduler{})
			rec := call(e, h.CreateBooking, http.MethodPost, "/v1/bookings", `{"ticket_ids":[1]}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.body)
			assert.NotContains(t, rec.Body.String(), "disk on fire")
		})
	}
}

func TestTransientErrorSetsRetryAfter(t *testing.T) {
	h, e := newTestHandler(reservation.ErrTransient, &failingScheduler{})
	rec := call(e, h.CreateBooking, http.MethodPost, "/v1/bookings", `{"ticket_ids":[1,2]}`)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestCreateBookingRejectsMalformedBody(t *testing.T) {
	h, e := newTestHandler(nil, &failingScheduler{})
	rec := call(e, h.CreateBooking, http.MethodPost, "/v1/bookings", `{"ticket_ids":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateShowSucceedsWhenSchedulingFails(t *testing.T) {
	sched := &failingScheduler{}
	h, e := newTestHandler(nil, sched)
	ctx := context.Background()
	theatre := &model.Theatre{Name: "Odeon", City: "York"}
	require.NoError(t, h.catalog.CreateTheatre(ctx, theatre))
	hall := &model.Hall{TheatreID: theatre.ID, Name: "1"}
	require.NoError(t, h.catalog.CreateHall(ctx, hall))
	movie := &model.Movie{Name: "Alien", Certificate: model.CertificateA}
	require.NoError(t, h.catalog.CreateMovie(ctx, movie))

	body := fmt.Sprintf(`{"movie_id":%d,"hall_id":%d,"base_price":"12.50","starts_at":"2026-06-01T20:00:00Z","ends_at":"2026-06-01T22:00:00Z"}`, movie.ID, hall.ID)
	rec := call(e, h.CreateShow, http.MethodPost, "/v1/shows", body)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, sched.calls)
	assert.Contains(t, rec.Body.String(), `"base_price":"12.5"`)
}

func TestPayBookingUnknownIsNotFound(t *testing.T) {
	h, e := newTestHandler(nil, &failingScheduler{})
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings/3/payment", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("3")
	require.NoError(t, h.PayBooking(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadyReportsFailingChecks(t *testing.T) {
	e := echo.New()
	ready := Ready(map[string]Check{
		"mysql": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rec := call(e, ready, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
	assert.NotContains(t, rec.Body.String(), "mysql")
}
