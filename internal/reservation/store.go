package reservation

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
	"github.com/iliyamo/cinema-ticket-engine/internal/queue"
)

// Store is the durable inventory/booking storage the engine relies on.
// Implementations must return ErrNotFound (possibly wrapped) for unknown
// shows and bookings, and ErrTransient for lock timeouts or deadlocks.
type Store interface {
	GetShow(ctx context.Context, showID uint64) (*model.Show, error)
	// ListHallSeats returns every seat of the hall with its seat type
	// multiplier, ordered by seat ID.
	ListHallSeats(ctx context.Context, hallID uint64) ([]model.PricedSeat, error)
	// InsertTickets writes all tickets in one atomic batch, skipping any
	// (show, seat) pair that already has a ticket.  It returns the number
	// of tickets actually created.
	InsertTickets(ctx context.Context, tickets []model.Ticket) (int, error)
	ListTickets(ctx context.Context, showID uint64) ([]model.Ticket, error)
	GetBooking(ctx context.Context, bookingID uint64) (*model.Booking, error)
	MarkPaid(ctx context.Context, bookingID uint64, at time.Time) (*model.Booking, error)
	// ListExpiredBookings returns IDs of unpaid bookings last modified at
	// or before cutoff, oldest first.
	ListExpiredBookings(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error)
	// InTx runs fn in a transaction.  The transaction is rolled back when
	// fn returns an error and committed otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the row-scoped primitives used by the claim and release
// protocols.  Locks taken through a Tx are held until it ends.
type Tx interface {
	// LockTickets locks the given tickets in ascending ID order and
	// returns the ones that exist.  ids must be sorted ascending.
	LockTickets(ctx context.Context, ids []uint64) ([]model.Ticket, error)
	// CreateBooking inserts b and assigns its ID.
	CreateBooking(ctx context.Context, b *model.Booking) error
	// ClaimTickets points every still-unclaimed ticket in ids at bookingID
	// and returns how many rows were claimed.
	ClaimTickets(ctx context.Context, bookingID uint64, ids []uint64) (int64, error)
	// LockBooking locks and returns the booking, or ErrNotFound.
	LockBooking(ctx context.Context, bookingID uint64) (*model.Booking, error)
	// DeleteUnpaidBooking deletes the booking only if it is unpaid and was
	// last modified at or before cutoff.
	DeleteUnpaidBooking(ctx context.Context, bookingID uint64, cutoff time.Time) (bool, error)
	// ReleaseTickets clears the booking reference of every ticket owned by
	// bookingID and returns the number of tickets released.
	ReleaseTickets(ctx context.Context, bookingID uint64) (int64, error)
}

// Scheduler dispatches the engine's deferred work to the job queue.
type Scheduler interface {
	ScheduleInventory(ctx context.Context, showID uint64) error
	ScheduleReclaim(ctx context.Context, bookingID uint64, at time.Time) error
}

// Publisher emits domain events after state changes have committed.
type Publisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.Event) error { return nil }

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
