package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
	"github.com/iliyamo/cinema-ticket-engine/internal/reservation"
)

// Store implements reservation.Store on MySQL.  Claims and releases
// run in InnoDB transactions using SELECT ... FOR UPDATE row locks.
type Store struct {
	db       *sql.DB
	shows    *ShowRepo
	seats    *SeatRepo
	tickets  *TicketRepo
	bookings *BookingRepo
	now      func() time.Time
}

// NewStore builds a Store over db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		shows:    NewShowRepo(db),
		seats:    NewSeatRepo(db),
		tickets:  NewTicketRepo(db),
		bookings: NewBookingRepo(db),
		now:      time.Now,
	}
}

var _ reservation.Store = (*Store)(nil)

func (s *Store) GetShow(ctx context.Context, showID uint64) (*model.Show, error) {
	return s.shows.GetByID(ctx, showID)
}

func (s *Store) ListHallSeats(ctx context.Context, hallID uint64) ([]model.PricedSeat, error) {
	return s.seats.ListPriced(ctx, hallID)
}

func (s *Store) InsertTickets(ctx context.Context, tickets []model.Ticket) (int, error) {
	return s.tickets.InsertBatch(ctx, tickets)
}

func (s *Store) ListTickets(ctx context.Context, showID uint64) ([]model.Ticket, error) {
	return s.tickets.ListByShow(ctx, showID)
}

func (s *Store) GetBooking(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	return s.bookings.GetByID(ctx, bookingID)
}

func (s *Store) MarkPaid(ctx context.Context, bookingID uint64, at time.Time) (*model.Booking, error) {
	return s.bookings.MarkPaid(ctx, bookingID, at)
}

func (s *Store) ListExpiredBookings(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	return s.bookings.ListExpired(ctx, cutoff, limit)
}

// InTx begins a transaction, runs fn and commits.  Any error from fn, or
// a panic, rolls the transaction back.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx reservation.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()
	if err := fn(ctx, &storeTx{s: s, tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}

type storeTx struct {
	s  *Store
	tx *sql.Tx
}

var _ reservation.Tx = (*storeTx)(nil)

func (t *storeTx) LockTickets(ctx context.Context, ids []uint64) ([]model.Ticket, error) {
	return t.s.tickets.LockTx(ctx, t.tx, ids)
}

func (t *storeTx) CreateBooking(ctx context.Context, b *model.Booking) error {
	return t.s.bookings.CreateTx(ctx, t.tx, b)
}

func (t *storeTx) ClaimTickets(ctx context.Context, bookingID uint64, ids []uint64) (int64, error) {
	return t.s.tickets.ClaimTx(ctx, t.tx, bookingID, ids, t.stamp())
}

func (t *storeTx) LockBooking(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	return t.s.bookings.LockTx(ctx, t.tx, bookingID)
}

func (t *storeTx) DeleteUnpaidBooking(ctx context.Context, bookingID uint64, cutoff time.Time) (bool, error) {
	return t.s.bookings.DeleteUnpaidTx(ctx, t.tx, bookingID, cutoff)
}

func (t *storeTx) ReleaseTickets(ctx context.Context, bookingID uint64) (int64, error) {
	return t.s.tickets.ReleaseTx(ctx, t.tx, bookingID, t.stamp())
}

func (t *storeTx) stamp() time.Time { return t.s.now().UTC().Truncate(time.Microsecond) }
