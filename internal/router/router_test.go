package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-engine/internal/config"
	"github.com/iliyamo/cinema-ticket-engine/internal/handler"
	"github.com/iliyamo/cinema-ticket-engine/internal/jobs"
	"github.com/iliyamo/cinema-ticket-engine/internal/memstore"
	"github.com/iliyamo/cinema-ticket-engine/internal/middleware"
	"github.com/iliyamo/cinema-ticket-engine/internal/reservation"
	"github.com/iliyamo/cinema-ticket-engine/internal/router"
	"github.com/iliyamo/cinema-ticket-engine/internal/utils"
)

const secret = "payment-secret"

type app struct {
	e     *echo.Echo
	store *memstore.Store
	queue *jobs.MemoryQueue
	pool  *jobs.Pool
}

func newApp(t *testing.T, configure ...func(*router.Options)) *app {
	t.Helper()
	log := zerolog.Nop()
	store := memstore.New(memstore.WithLockTimeout(5 * time.Second))
	q := jobs.NewMemoryQueue(time.Minute)
	sched := jobs.NewScheduler(q)
	opts := reservation.Options{TaxRate: decimal.RequireFromString("0.10")}

	gen := reservation.NewInventoryGenerator(store, nil, log)
	coord := reservation.NewCoordinator(store, sched, nil, opts, log)
	pay := reservation.NewPayments(store, nil, opts, log)
	rec := reservation.NewReclaimer(store, nil, opts, log)

	pool := jobs.NewPool(q, jobs.PoolConfig{}, log)
	pool.Register(jobs.KindGenerateInventory, jobs.InventoryHandler(gen))
	pool.Register(jobs.KindReclaimBooking, jobs.ReclaimHandler(rec))

	h := handler.New(store, store, coord, pay, sched, log)
	ropts := router.Options{PaymentSecret: secret}
	for _, f := range configure {
		f(&ropts)
	}
	e := router.New(h, ropts, log)
	return &app{e: e, store: store, queue: q, pool: pool}
}

func (a *app) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *app) create(t *testing.T, path string, body any) uint64 {
	t.Helper()
	rec := a.do(t, http.MethodPost, path, body, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		ID uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.ID
}

// drain processes every due task in the queue.
func (a *app) drain(t *testing.T) {
	t.Helper()
	for {
		task, err := a.queue.Dequeue(context.Background())
		if err == jobs.ErrNoTask {
			return
		}
		require.NoError(t, err)
		a.pool.Process(context.Background(), task)
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type ticketList struct {
	Items []struct {
		ID        uint64          `json:"id"`
		Price     decimal.Decimal `json:"price"`
		Available bool            `json:"available"`
	} `json:"items"`
	Available int `json:"available"`
}

// seedShow builds a hall with two regular seats and one recliner and
// schedules a show in it through the API.
func (a *app) seedShow(t *testing.T) uint64 {
	t.Helper()
	theatre := a.create(t, "/v1/theatres", map[string]any{"name": "Odeon", "city": "Leeds"})
	movie := a.create(t, "/v1/movies", map[string]any{
		"name": "Heat", "length_minutes": 170, "director": "Michael Mann",
		"genre": "crime", "certificate": "UA", "release_date": "1995-12-15T00:00:00Z",
	})
	hall := a.create(t, "/v1/halls", map[string]any{"theatre_id": theatre, "name": "Screen 1"})
	regular := a.create(t, "/v1/seat-types", map[string]any{"theatre_id": theatre, "name": "REGULAR", "price_multiplier": "1"})
	recliner := a.create(t, "/v1/seat-types", map[string]any{"theatre_id": theatre, "name": "RECLINER", "price_multiplier": "1.5"})
	a.create(t, "/v1/seats", map[string]any{"hall_id": hall, "seat_type_id": regular, "row": "A", "column": "1"})
	a.create(t, "/v1/seats", map[string]any{"hall_id": hall, "seat_type_id": regular, "row": "A", "column": "2"})
	a.create(t, "/v1/seats", map[string]any{"hall_id": hall, "seat_type_id": recliner, "row": "B", "column": "1"})
	return a.create(t, "/v1/shows", map[string]any{
		"movie_id": movie, "hall_id": hall, "base_price": "10.00",
		"starts_at": "2026-05-01T19:00:00Z", "ends_at": "2026-05-01T22:00:00Z",
	})
}

func TestHealthz(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/readyz", nil, nil).Code)
}

func TestShowCreationQueuesInventory(t *testing.T) {
	a := newApp(t)
	show := a.seedShow(t)

	ready, _ := a.queue.Len()
	assert.Equal(t, 1, ready)

	// before the job runs the show exists but has no tickets
	before := decode[ticketList](t, a.do(t, http.MethodGet, fmt.Sprintf("/v1/shows/%d/tickets", show), nil, nil))
	assert.Empty(t, before.Items)

	a.drain(t)

	after := decode[ticketList](t, a.do(t, http.MethodGet, fmt.Sprintf("/v1/shows/%d/tickets", show), nil, nil))
	require.Len(t, after.Items, 3)
	assert.Equal(t, 3, after.Available)
	assert.Equal(t, "10", after.Items[0].Price.String())
	assert.Equal(t, "15", after.Items[2].Price.String())

	// asking again does not duplicate inventory
	assert.Equal(t, http.StatusAccepted, a.do(t, http.MethodPost, fmt.Sprintf("/v1/shows/%d/inventory", show), nil, nil).Code)
	a.drain(t)
	again := decode[ticketList](t, a.do(t, http.MethodGet, fmt.Sprintf("/v1/shows/%d/tickets", show), nil, nil))
	assert.Len(t, again.Items, 3)
}

func TestBookingLifecycle(t *testing.T) {
	a := newApp(t)
	show := a.seedShow(t)
	a.drain(t)
	tickets := decode[ticketList](t, a.do(t, http.MethodGet, fmt.Sprintf("/v1/shows/%d/tickets", show), nil, nil))
	t1, t2, t3 := tickets.Items[0].ID, tickets.Items[1].ID, tickets.Items[2].ID

	rec := a.do(t, http.MethodPost, "/v1/bookings", map[string]any{"ticket_ids": []uint64{t3, t1}}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booking := decode[struct {
		ID        uint64          `json:"id"`
		Price     decimal.Decimal `json:"price"`
		Tax       decimal.Decimal `json:"tax"`
		Paid      bool            `json:"paid"`
		TicketIDs []uint64        `json:"ticket_ids"`
	}](t, rec)
	assert.Equal(t, "25", booking.Price.String())
	assert.Equal(t, "2.5", booking.Tax.String())
	assert.False(t, booking.Paid)
	assert.Equal(t, []uint64{t1, t3}, booking.TicketIDs)
	assert.Equal(t, fmt.Sprintf("/v1/bookings/%d", booking.ID), rec.Header().Get(echo.HeaderLocation))

	// overlapping request loses and names only the claimed ticket
	rec = a.do(t, http.MethodPost, "/v1/bookings", map[string]any{"ticket_ids": []uint64{t2, t3}}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	conflict := decode[struct {
		AlreadyClaimed []uint64 `json:"already_claimed"`
	}](t, rec)
	assert.Equal(t, []uint64{t3}, conflict.AlreadyClaimed)

	// the loser did not claim t2
	left := decode[ticketList](t, a.do(t, http.MethodGet, fmt.Sprintf("/v1/shows/%d/tickets", show), nil, nil))
	assert.Equal(t, 1, left.Available)
	assert.True(t, left.Items[1].Available)

	path := fmt.Sprintf("/v1/bookings/%d/payment", booking.ID)
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodPost, path, nil, nil).Code)

	tok, err := utils.NewPaymentToken(secret, "psp", time.Minute)
	require.NoError(t, err)
	auth := http.Header{echo.HeaderAuthorization: {"Bearer " + tok.Token}}
	rec = a.do(t, http.MethodPost, path, nil, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[struct {
		Paid bool `json:"paid"`
	}](t, rec).Paid)

	// payment is idempotent
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodPost, path, nil, auth).Code)

	got := a.do(t, http.MethodGet, fmt.Sprintf("/v1/bookings/%d", booking.ID), nil, nil)
	assert.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/v1/bookings/999", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodPost, "/v1/bookings/999/payment", nil, auth).Code)
}

func TestBookingInputErrors(t *testing.T) {
	a := newApp(t)
	show := a.seedShow(t)
	a.drain(t)
	tickets := decode[ticketList](t, a.do(t, http.MethodGet, fmt.Sprintf("/v1/shows/%d/tickets", show), nil, nil))
	t1 := tickets.Items[0].ID

	rec := a.do(t, http.MethodPost, "/v1/bookings", map[string]any{"ticket_ids": []uint64{}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/bookings", map[string]any{"ticket_ids": []uint64{t1, t1}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []uint64{t1}, decode[struct {
		Duplicates []uint64 `json:"duplicates"`
	}](t, rec).Duplicates)

	rec = a.do(t, http.MethodPost, "/v1/bookings", map[string]any{"ticket_ids": []uint64{t1, 500, 400}}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []uint64{500, 400}, decode[struct {
		Missing []uint64 `json:"missing"`
	}](t, rec).Missing)

	// nothing was claimed by the failed attempts
	after := decode[ticketList](t, a.do(t, http.MethodGet, fmt.Sprintf("/v1/shows/%d/tickets", show), nil, nil))
	assert.Equal(t, 3, after.Available)
}

func TestCatalogValidation(t *testing.T) {
	a := newApp(t)
	theatre := a.create(t, "/v1/theatres", map[string]any{"name": "Odeon", "city": "Leeds"})

	rec := a.do(t, http.MethodPost, "/v1/seat-types", map[string]any{"theatre_id": theatre, "name": "FREE", "price_multiplier": "0"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "price_multiplier")

	rec = a.do(t, http.MethodPost, "/v1/movies", map[string]any{"name": "X", "length_minutes": 90, "director": "Y", "genre": "Z", "certificate": "R18", "release_date": "2020-01-01T00:00:00Z"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "certificate")

	rec = a.do(t, http.MethodPost, "/v1/movies", map[string]any{"name": "X", "length_minutes": 90, "cast": []string{"Ann", ""}, "director": "Y", "genre": "Z", "certificate": "U", "release_date": "2020-01-01T00:00:00Z"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cast")

	movie := a.create(t, "/v1/movies", map[string]any{"name": "X", "length_minutes": 90, "cast": []string{"Ann", "Bo"}, "director": "Y", "genre": "Z", "certificate": "U", "release_date": "2020-01-01T00:00:00Z"})
	got := decode[struct {
		Cast []string `json:"cast"`
	}](t, a.do(t, http.MethodGet, fmt.Sprintf("/v1/movies/%d", movie), nil, nil))
	assert.Equal(t, []string{"Ann", "Bo"}, got.Cast)

	rec = a.do(t, http.MethodPost, "/v1/halls", map[string]any{"theatre_id": 42, "name": "Ghost"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/shows", map[string]any{
		"movie_id": 1, "hall_id": 1, "base_price": "10",
		"starts_at": "2026-05-01T22:00:00Z", "ends_at": "2026-05-01T19:00:00Z",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ends_at")

	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/v1/theatres/abc", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/v1/theatres/77", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/v1/shows/77/tickets", nil, nil).Code)

	list := decode[struct {
		Items []json.RawMessage `json:"items"`
	}](t, a.do(t, http.MethodGet, fmt.Sprintf("/v1/halls?theatre_id=%d", theatre), nil, nil))
	assert.Empty(t, list.Items)
}

func TestUnpaidBookingIsReclaimedByItsJob(t *testing.T) {
	a := newApp(t)
	show := a.seedShow(t)
	a.drain(t)
	tickets := decode[ticketList](t, a.do(t, http.MethodGet, fmt.Sprintf("/v1/shows/%d/tickets", show), nil, nil))

	rec := a.do(t, http.MethodPost, "/v1/bookings", map[string]any{"ticket_ids": []uint64{tickets.Items[0].ID}}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	// the reclaim task is delayed by the lease window
	ready, _ := a.queue.Len()
	assert.Equal(t, 1, ready)
	_, err := a.queue.Dequeue(context.Background())
	assert.ErrorIs(t, err, jobs.ErrNoTask)
}

func TestSearchShowsReportsAvailability(t *testing.T) {
	a := newApp(t)
	show := a.seedShow(t)
	a.drain(t)
	tickets := decode[ticketList](t, a.do(t, http.MethodGet, fmt.Sprintf("/v1/shows/%d/tickets", show), nil, nil))
	rec := a.do(t, http.MethodPost, "/v1/bookings", map[string]any{"ticket_ids": []uint64{tickets.Items[0].ID}}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	type page struct {
		Items []struct {
			ShowID    uint64 `json:"show_id"`
			Movie     string `json:"movie"`
			City      string `json:"city"`
			Available int    `json:"available"`
		} `json:"items"`
		Total    int64 `json:"total"`
		PageSize int   `json:"page_size"`
	}

	got := decode[page](t, a.do(t, http.MethodGet, "/v1/shows/search?when=any&movie=HEA&city=leeds", nil, nil))
	require.Len(t, got.Items, 1)
	assert.Equal(t, show, got.Items[0].ShowID)
	assert.Equal(t, "Heat", got.Items[0].Movie)
	assert.Equal(t, 2, got.Items[0].Available)
	assert.Equal(t, int64(1), got.Total)
	assert.Equal(t, 20, got.PageSize)

	none := decode[page](t, a.do(t, http.MethodGet, "/v1/shows/search?when=any&city=paris", nil, nil))
	assert.Empty(t, none.Items)
	assert.Zero(t, none.Total)

	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/v1/shows/search?page=x", nil, nil).Code)
}

func TestRedisCacheKeepsAvailabilityFresh(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	a := newApp(t, func(o *router.Options) {
		o.Cache = middleware.NewRedisCache(config.LoadCacheConfig(), rdb, zerolog.Nop())
	})
	show := a.seedShow(t)
	a.drain(t)

	type page struct {
		Items []struct {
			Available int `json:"available"`
		} `json:"items"`
	}
	search := "/v1/shows/search?when=any&movie=heat"
	tickets := fmt.Sprintf("/v1/shows/%d/tickets", show)

	before := decode[page](t, a.do(t, http.MethodGet, search, nil, nil))
	require.Len(t, before.Items, 1)
	assert.Equal(t, 3, before.Items[0].Available)
	listed := decode[ticketList](t, a.do(t, http.MethodGet, tickets, nil, nil))
	assert.Equal(t, 3, listed.Available)

	rec := a.do(t, http.MethodPost, "/v1/bookings", map[string]any{
		"ticket_ids": []uint64{listed.Items[0].ID, listed.Items[1].ID},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	afterRec := a.do(t, http.MethodGet, search, nil, nil)
	assert.NotEqual(t, "HIT", afterRec.Header().Get("X-Cache"))
	after := decode[page](t, afterRec)
	require.Len(t, after.Items, 1)
	assert.Equal(t, 1, after.Items[0].Available)
	assert.Equal(t, 1, decode[ticketList](t, a.do(t, http.MethodGet, tickets, nil, nil)).Available)

	// catalog reads are still cached
	a.do(t, http.MethodGet, fmt.Sprintf("/v1/shows/%d", show), nil, nil)
	assert.Equal(t, "HIT", a.do(t, http.MethodGet, fmt.Sprintf("/v1/shows/%d", show), nil, nil).Header().Get("X-Cache"))
}
