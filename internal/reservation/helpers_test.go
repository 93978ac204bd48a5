package reservation_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-engine/internal/memstore"
	"github.com/iliyamo/cinema-ticket-engine/internal/model"
	"github.com/iliyamo/cinema-ticket-engine/internal/queue"
	"github.com/iliyamo/cinema-ticket-engine/internal/reservation"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type scheduledReclaim struct {
	BookingID uint64
	At        time.Time
}

type recordingScheduler struct {
	mu       sync.Mutex
	shows    []uint64
	reclaims []scheduledReclaim
}

func (s *recordingScheduler) ScheduleInventory(_ context.Context, showID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shows = append(s.shows, showID)
	return nil
}

func (s *recordingScheduler) ScheduleReclaim(_ context.Context, bookingID uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reclaims = append(s.reclaims, scheduledReclaim{bookingID, at})
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// env is a show with generated inventory and the engine around it.
type env struct {
	store     *memstore.Store
	clock     *fakeClock
	scheduler *recordingScheduler
	events    *recordingPublisher
	opts      reservation.Options

	generator *reservation.InventoryGenerator
	coord     *reservation.Coordinator
	reclaimer *reservation.Reclaimer
	payments  *reservation.Payments

	show    *model.Show
	tickets []model.Ticket
}

// seedShow creates a hall whose seats carry the given multipliers and a
// show priced at basePrice.  It returns the store and the show.
func seedShow(t *testing.T, store *memstore.Store, basePrice string, multipliers ...string) *model.Show {
	t.Helper()
	ctx := context.Background()

	theatre := &model.Theatre{Name: "Regal", City: "Pune"}
	require.NoError(t, store.CreateTheatre(ctx, theatre))
	hall := &model.Hall{TheatreID: theatre.ID, Name: "Audi 1"}
	require.NoError(t, store.CreateHall(ctx, hall))
	movie := &model.Movie{Name: "Arrival", LengthMinutes: 116, Certificate: model.CertificateUA}
	require.NoError(t, store.CreateMovie(ctx, movie))

	types := map[string]uint64{}
	for i, m := range multipliers {
		id, ok := types[m]
		if !ok {
			st := &model.SeatType{TheatreID: theatre.ID, Name: "type " + m, PriceMultiplier: decimal.RequireFromString(m)}
			require.NoError(t, store.CreateSeatType(ctx, st))
			id = st.ID
			types[m] = id
		}
		seat := &model.Seat{HallID: hall.ID, SeatTypeID: id, Row: "A", Column: strconv.Itoa(i + 1)}
		require.NoError(t, store.CreateSeat(ctx, seat))
	}

	show := &model.Show{
		MovieID:   movie.ID,
		HallID:    hall.ID,
		StartsAt:  time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC),
		EndsAt:    time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC),
		BasePrice: decimal.RequireFromString(basePrice),
	}
	require.NoError(t, store.CreateShow(ctx, show))
	return show
}

func newEnv(t *testing.T, opts reservation.Options, basePrice string, multipliers ...string) *env {
	t.Helper()
	e := &env{
		store:     memstore.New(memstore.WithLockTimeout(5 * time.Second)),
		clock:     newFakeClock(),
		scheduler: &recordingScheduler{},
		events:    &recordingPublisher{},
	}
	opts.Now = e.clock.Now
	e.opts = opts
	log := zerolog.Nop()
	e.generator = reservation.NewInventoryGenerator(e.store, e.events, log)
	e.coord = reservation.NewCoordinator(e.store, e.scheduler, e.events, opts, log)
	e.reclaimer = reservation.NewReclaimer(e.store, e.events, opts, log)
	e.payments = reservation.NewPayments(e.store, e.events, opts, log)

	e.show = seedShow(t, e.store, basePrice, multipliers...)
	_, err := e.generator.GenerateInventory(context.Background(), e.show.ID)
	require.NoError(t, err)
	e.tickets, err = e.store.ListTickets(context.Background(), e.show.ID)
	require.NoError(t, err)
	return e
}

func (e *env) ticketID(i int) uint64 { return e.tickets[i].ID }

func (e *env) owner(t *testing.T, ticketID uint64) *uint64 {
	t.Helper()
	tickets, err := e.store.ListTickets(context.Background(), e.show.ID)
	require.NoError(t, err)
	for _, tk := range tickets {
		if tk.ID == ticketID {
			return tk.BookingID
		}
	}
	t.Fatalf("ticket %d not found", ticketID)
	return nil
}
