package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticket-engine/internal/reservation"
)

// InventoryGenerator is satisfied by *reservation.InventoryGenerator.
type InventoryGenerator interface {
	GenerateInventory(ctx context.Context, showID uint64) (int, error)
}

// BookingReclaimer is satisfied by *reservation.Reclaimer.
type BookingReclaimer interface {
	Reclaim(ctx context.Context, bookingID uint64) (reservation.ReclaimResult, error)
}

// InventoryHandler generates the inventory of t.ShowID.  A show that no
// longer exists is buried without retries.
func InventoryHandler(g InventoryGenerator) Handler {
	return HandlerFunc(func(ctx context.Context, t Task) error {
		_, err := g.GenerateInventory(ctx, t.ShowID)
		if errors.Is(err, reservation.ErrNotFound) {
			return Permanent(err)
		}
		return err
	})
}

// ReclaimHandler reclaims t.BookingID.  A booking that is already paid
// or gone counts as done; one whose lease has not elapsed is deferred.
func ReclaimHandler(r BookingReclaimer) Handler {
	return HandlerFunc(func(ctx context.Context, t Task) error {
		res, err := r.Reclaim(ctx, t.BookingID)
		switch {
		case errors.Is(err, reservation.ErrAlreadySettled):
			return nil
		case err != nil:
			return err
		case res.Outcome == reservation.NotDue:
			return Defer(res.RetryAt)
		}
		return nil
	})
}

// Scheduler turns engine requests for deferred work into queued tasks.
type Scheduler struct {
	queue Queue
	now   func() time.Time
}

func NewScheduler(queue Queue) *Scheduler {
	return &Scheduler{queue: queue, now: time.Now}
}

var _ reservation.Scheduler = (*Scheduler)(nil)

func (s *Scheduler) ScheduleInventory(ctx context.Context, showID uint64) error {
	if err := s.queue.Enqueue(ctx, Task{
		ID:        uuid.New(),
		Kind:      KindGenerateInventory,
		ShowID:    showID,
		NotBefore: s.now(),
	}); err != nil {
		return fmt.Errorf("schedule inventory for show %d: %w", showID, err)
	}
	return nil
}

func (s *Scheduler) ScheduleReclaim(ctx context.Context, bookingID uint64, at time.Time) error {
	if err := s.queue.Enqueue(ctx, Task{
		ID:        uuid.New(),
		Kind:      KindReclaimBooking,
		BookingID: bookingID,
		NotBefore: at,
	}); err != nil {
		return fmt.Errorf("schedule reclaim of booking %d: %w", bookingID, err)
	}
	return nil
}
