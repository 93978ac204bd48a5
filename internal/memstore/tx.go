package memstore

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
	"github.com/iliyamo/cinema-ticket-engine/internal/reservation"
)

type tx struct {
	s            *Store
	heldTickets  map[uint64]rowLock
	heldBookings map[uint64]rowLock
	undo         []func()
}

var _ reservation.Tx = (*tx)(nil)

func (t *tx) lockTicket(ctx context.Context, id uint64) (bool, error) {
	if _, ok := t.heldTickets[id]; ok {
		return true, nil
	}
	l, ok := t.s.lockFor(t.s.ticketLocks, id, func() bool { _, ok := t.s.tickets[id]; return ok })
	if !ok {
		return false, nil
	}
	if err := l.lock(ctx, t.s.lockTimeout); err != nil {
		return false, err
	}
	t.heldTickets[id] = l
	return true, nil
}

func (t *tx) lockBooking(ctx context.Context, id uint64) (bool, error) {
	if _, ok := t.heldBookings[id]; ok {
		return true, nil
	}
	l, ok := t.s.lockFor(t.s.bookingLocks, id, func() bool { _, ok := t.s.bookings[id]; return ok })
	if !ok {
		return false, nil
	}
	if err := l.lock(ctx, t.s.lockTimeout); err != nil {
		return false, err
	}
	t.heldBookings[id] = l
	return true, nil
}

// LockTickets acquires ticket locks in ascending ID order regardless of
// the order of ids.
func (t *tx) LockTickets(ctx context.Context, ids []uint64) ([]model.Ticket, error) {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	out := make([]model.Ticket, 0, len(ordered))
	for _, id := range ordered {
		ok, err := t.lockTicket(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		t.s.mu.RLock()
		out = append(out, copyTicket(t.s.tickets[id]))
		t.s.mu.RUnlock()
	}
	return out, nil
}

func (t *tx) CreateBooking(_ context.Context, b *model.Booking) error {
	s := t.s
	s.mu.Lock()
	b.ID = s.nextID("bookings")
	row := *b
	row.TicketIDs = nil
	s.bookings[b.ID] = &row
	l := newRowLock()
	s.bookingLocks[b.ID] = l
	s.mu.Unlock()

	// Nobody else knows the ID yet, so the lock is free.
	l <- struct{}{}
	t.heldBookings[b.ID] = l
	t.undo = append(t.undo, func() { delete(s.bookings, b.ID) })
	return nil
}

func (t *tx) ClaimTickets(ctx context.Context, bookingID uint64, ids []uint64) (int64, error) {
	for _, id := range ids {
		if _, err := t.lockTicket(ctx, id); err != nil {
			return 0, err
		}
	}
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		row, ok := s.tickets[id]
		if !ok || row.BookingID != nil {
			continue
		}
		owner := bookingID
		row.BookingID = &owner
		row.UpdatedAt = s.stamp()
		n++
		t.undo = append(t.undo, func() { row.BookingID = nil })
	}
	return n, nil
}

func (t *tx) LockBooking(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	ok, err := t.lockBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, exists := s.bookings[bookingID]
	if !ok || !exists {
		return nil, fmt.Errorf("booking %d: %w", bookingID, reservation.ErrNotFound)
	}
	return s.bookingView(b), nil
}

func (t *tx) DeleteUnpaidBooking(ctx context.Context, bookingID uint64, cutoff time.Time) (bool, error) {
	if _, err := t.lockBooking(ctx, bookingID); err != nil {
		return false, err
	}
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok || b.Paid || b.ModifiedAt.After(cutoff) {
		return false, nil
	}
	delete(s.bookings, bookingID)
	t.undo = append(t.undo, func() { s.bookings[bookingID] = b })
	return true, nil
}

func (t *tx) ReleaseTickets(ctx context.Context, bookingID uint64) (int64, error) {
	s := t.s
	s.mu.RLock()
	ids := s.ticketsOf(bookingID)
	s.mu.RUnlock()
	for _, id := range ids {
		if _, err := t.lockTicket(ctx, id); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		row := s.tickets[id]
		if row.BookingID == nil || *row.BookingID != bookingID {
			continue
		}
		prev := row.BookingID
		row.BookingID = nil
		row.UpdatedAt = s.stamp()
		n++
		t.undo = append(t.undo, func() { row.BookingID = prev })
	}
	return n, nil
}

func (t *tx) rollback() {
	if len(t.undo) == 0 {
		return
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// unlockAll must run after rollback so that rolled back bookings are
// already gone when their locks are forgotten.
func (t *tx) unlockAll() {
	for id, l := range t.heldTickets {
		l.unlock()
		delete(t.heldTickets, id)
	}
	for id, l := range t.heldBookings {
		t.s.forgetBookingLock(id, l)
		l.unlock()
		delete(t.heldBookings, id)
	}
}
