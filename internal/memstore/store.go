// Package memstore is an in-process implementation of the reservation
// store.  Rows live in maps guarded by a single mutex; transactions take
// exclusive per-ticket and per-booking locks, held until the transaction
// ends, and undo their writes on rollback.  Reads outside a transaction
// may observe writes of transactions still in flight.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
	"github.com/iliyamo/cinema-ticket-engine/internal/reservation"
)

type showSeat struct {
	showID uint64
	seatID uint64
}

// Store keeps catalog, inventory and bookings in memory.
type Store struct {
	mu  sync.RWMutex
	seq map[string]uint64

	theatres  map[uint64]model.Theatre
	movies    map[uint64]model.Movie
	halls     map[uint64]model.Hall
	seatTypes map[uint64]model.SeatType
	seats     map[uint64]model.Seat
	shows     map[uint64]model.Show

	tickets      map[uint64]*model.Ticket
	ticketBySeat map[showSeat]uint64
	bookings     map[uint64]*model.Booking

	ticketLocks  map[uint64]rowLock
	bookingLocks map[uint64]rowLock

	lockTimeout time.Duration
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout makes lock waits longer than d fail with
// reservation.ErrTransient.  Zero waits until the context is done.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// WithClock overrides the clock used for catalog timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		seq:          make(map[string]uint64),
		theatres:     make(map[uint64]model.Theatre),
		movies:       make(map[uint64]model.Movie),
		halls:        make(map[uint64]model.Hall),
		seatTypes:    make(map[uint64]model.SeatType),
		seats:        make(map[uint64]model.Seat),
		shows:        make(map[uint64]model.Show),
		tickets:      make(map[uint64]*model.Ticket),
		ticketBySeat: make(map[showSeat]uint64),
		bookings:     make(map[uint64]*model.Booking),
		ticketLocks:  make(map[uint64]rowLock),
		bookingLocks: make(map[uint64]rowLock),
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ reservation.Store = (*Store)(nil)

// nextID must be called with s.mu held for writing.
func (s *Store) nextID(table string) uint64 {
	s.seq[table]++
	return s.seq[table]
}

func (s *Store) stamp() time.Time { return s.now().UTC().Truncate(time.Microsecond) }

func (s *Store) GetShow(_ context.Context, showID uint64) (*model.Show, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shows[showID]
	if !ok {
		return nil, fmt.Errorf("show %d: %w", showID, reservation.ErrNotFound)
	}
	return &sh, nil
}

func (s *Store) ListHallSeats(_ context.Context, hallID uint64) ([]model.PricedSeat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.PricedSeat
	for _, seat := range s.seats {
		if seat.HallID != hallID {
			continue
		}
		st, ok := s.seatTypes[seat.SeatTypeID]
		if !ok {
			return nil, fmt.Errorf("seat type %d of seat %d: %w", seat.SeatTypeID, seat.ID, reservation.ErrNotFound)
		}
		out = append(out, model.PricedSeat{SeatID: seat.ID, PriceMultiplier: st.PriceMultiplier})
	}
	slices.SortFunc(out, func(a, b model.PricedSeat) int { return cmp.Compare(a.SeatID, b.SeatID) })
	return out, nil
}

// InsertTickets adds the batch atomically: no reader sees part of it.
func (s *Store) InsertTickets(_ context.Context, tickets []model.Ticket) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := 0
	for _, t := range tickets {
		key := showSeat{t.ShowID, t.SeatID}
		if _, dup := s.ticketBySeat[key]; dup {
			continue
		}
		row := t
		row.ID = s.nextID("tickets")
		row.BookingID = nil
		s.tickets[row.ID] = &row
		s.ticketBySeat[key] = row.ID
		created++
	}
	return created, nil
}

func (s *Store) ListTickets(_ context.Context, showID uint64) ([]model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Ticket, 0)
	for _, t := range s.tickets {
		if t.ShowID == showID {
			out = append(out, copyTicket(t))
		}
	}
	slices.SortFunc(out, func(a, b model.Ticket) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) GetBooking(_ context.Context, bookingID uint64) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, fmt.Errorf("booking %d: %w", bookingID, reservation.ErrNotFound)
	}
	return s.bookingView(b), nil
}

// MarkPaid waits for the booking's row lock, so it serializes with a
// reclaim holding that lock.
func (s *Store) MarkPaid(ctx context.Context, bookingID uint64, at time.Time) (*model.Booking, error) {
	l, ok := s.lockFor(s.bookingLocks, bookingID, func() bool { _, ok := s.bookings[bookingID]; return ok })
	if !ok {
		return nil, fmt.Errorf("booking %d: %w", bookingID, reservation.ErrNotFound)
	}
	if err := l.lock(ctx, s.lockTimeout); err != nil {
		return nil, err
	}
	defer l.unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, fmt.Errorf("booking %d: %w", bookingID, reservation.ErrNotFound)
	}
	if !b.Paid {
		b.Paid = true
		b.ModifiedAt = at
	}
	return s.bookingView(b), nil
}

func (s *Store) ListExpiredBookings(_ context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	s.mu.RLock()
	var expired []*model.Booking
	for _, b := range s.bookings {
		if !b.Paid && !b.ModifiedAt.After(cutoff) {
			expired = append(expired, b)
		}
	}
	slices.SortFunc(expired, func(a, b *model.Booking) int {
		if c := a.ModifiedAt.Compare(b.ModifiedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	ids := make([]uint64, 0, len(expired))
	for _, b := range expired {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, b.ID)
	}
	s.mu.RUnlock()
	return ids, nil
}

// InTx runs fn with a fresh transaction.  Locks are released when InTx
// returns; writes are undone unless fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx reservation.Tx) error) error {
	t := &tx{
		s:            s,
		heldTickets:  make(map[uint64]rowLock),
		heldBookings: make(map[uint64]rowLock),
	}
	committed := false
	defer func() {
		if !committed {
			t.rollback()
		}
		t.unlockAll()
	}()
	if err := fn(ctx, t); err != nil {
		return err
	}
	committed = true
	return nil
}

// lockFor returns the lock of a row, creating it when exists reports the
// row is present.  exists runs with s.mu held.
func (s *Store) lockFor(locks map[uint64]rowLock, id uint64, exists func() bool) (rowLock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := locks[id]; ok {
		return l, true
	}
	if !exists() {
		return nil, false
	}
	l := newRowLock()
	locks[id] = l
	return l, true
}

// forgetBookingLock drops the lock of a booking that no longer exists.
// Waiters still queued on l re-check the booking after acquiring it and
// find it gone.
func (s *Store) forgetBookingLock(id uint64, l rowLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[id]; !ok && s.bookingLocks[id] == l {
		delete(s.bookingLocks, id)
	}
}

// bookingView must be called with s.mu held.
func (s *Store) bookingView(b *model.Booking) *model.Booking {
	out := *b
	out.TicketIDs = s.ticketsOf(b.ID)
	return &out
}

// ticketsOf must be called with s.mu held.
func (s *Store) ticketsOf(bookingID uint64) []uint64 {
	ids := make([]uint64, 0)
	for id, t := range s.tickets {
		if t.BookingID != nil && *t.BookingID == bookingID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func copyTicket(t *model.Ticket) model.Ticket {
	out := *t
	if t.BookingID != nil {
		id := *t.BookingID
		out.BookingID = &id
	}
	return out
}
