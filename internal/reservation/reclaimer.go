package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/cinema-ticket-engine/internal/queue"
)

// ReclaimOutcome reports what a reclaim attempt did.
type ReclaimOutcome int

const (
	// Reclaimed means the booking was deleted and its tickets released.
	Reclaimed ReclaimOutcome = iota
	// NotDue means the lease has not elapsed yet; retry at RetryAt.
	NotDue
)

func (o ReclaimOutcome) String() string {
	if o == NotDue {
		return "not_due"
	}
	return "reclaimed"
}

// ReclaimResult is returned by Reclaim.
type ReclaimResult struct {
	Outcome  ReclaimOutcome
	Released int64
	RetryAt  time.Time
}

// Reclaimer deletes bookings that stayed unpaid past the lease window and
// returns their tickets to the available pool.
type Reclaimer struct {
	store  Store
	events Publisher
	opts   Options
	log    zerolog.Logger
}

func NewReclaimer(store Store, events Publisher, opts Options, log zerolog.Logger) *Reclaimer {
	return &Reclaimer{
		store:  store,
		events: publisherOrNop(events),
		opts:   opts.withDefaults(),
		log:    log,
	}
}

// LeaseWindow reports the configured lease.
func (r *Reclaimer) LeaseWindow() time.Duration { return r.opts.LeaseWindow }

// Reclaim releases the booking if it is still unpaid and its lease has
// elapsed.  A paid or missing booking yields ErrAlreadySettled and changes
// nothing, so the call can be repeated safely.
func (r *Reclaimer) Reclaim(ctx context.Context, bookingID uint64) (ReclaimResult, error) {
	now := r.opts.Now().UTC()
	cutoff := now.Add(-r.opts.LeaseWindow)

	var res ReclaimResult
	err := r.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if errors.Is(err, ErrNotFound) {
			return ErrAlreadySettled
		}
		if err != nil {
			return fmt.Errorf("lock booking: %w", err)
		}
		if b.Paid {
			return ErrAlreadySettled
		}
		if b.ModifiedAt.After(cutoff) {
			res = ReclaimResult{Outcome: NotDue, RetryAt: b.ModifiedAt.Add(r.opts.LeaseWindow)}
			return nil
		}

		released, err := tx.ReleaseTickets(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("release tickets: %w", err)
		}
		deleted, err := tx.DeleteUnpaidBooking(ctx, bookingID, cutoff)
		if err != nil {
			return fmt.Errorf("delete booking: %w", err)
		}
		if !deleted {
			// Paid or touched under our feet; undo the release.
			return ErrAlreadySettled
		}
		res = ReclaimResult{Outcome: Reclaimed, Released: released}
		return nil
	})
	if err != nil {
		return ReclaimResult{}, err
	}

	if res.Outcome == Reclaimed {
		r.log.Info().
			Uint64("booking_id", bookingID).
			Int64("released", res.Released).
			Msg("booking reclaimed")
		if err := r.events.Publish(ctx, queue.Event{
			Type:       queue.EventBookingReclaimed,
			BookingID:  bookingID,
			Count:      res.Released,
			OccurredAt: now.Format(time.RFC3339),
		}); err != nil {
			r.log.Warn().Err(err).Uint64("booking_id", bookingID).Msg("publish reclaim event")
		}
	}
	return res, nil
}

// SweepExpired reclaims up to limit unpaid bookings whose lease has
// already elapsed and returns how many were reclaimed.  It backs up the
// per-booking reclaim jobs.
func (r *Reclaimer) SweepExpired(ctx context.Context, limit int) (int, error) {
	cutoff := r.opts.Now().UTC().Add(-r.opts.LeaseWindow)
	ids, err := r.store.ListExpiredBookings(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("list expired bookings: %w", err)
	}
	reclaimed := 0
	for _, id := range ids {
		res, err := r.Reclaim(ctx, id)
		switch {
		case errors.Is(err, ErrAlreadySettled):
		case err != nil:
			r.log.Error().Err(err).Uint64("booking_id", id).Msg("sweep reclaim failed")
		case res.Outcome == Reclaimed:
			reclaimed++
		}
	}
	return reclaimed, nil
}

// RunSweeper calls SweepExpired every interval until ctx is done.
func (r *Reclaimer) RunSweeper(ctx context.Context, interval time.Duration, batch int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := r.SweepExpired(ctx, batch)
			if err != nil {
				r.log.Error().Err(err).Msg("sweep failed")
				continue
			}
			if n > 0 {
				r.log.Info().Int("reclaimed", n).Msg("sweep reclaimed bookings")
			}
		}
	}
}
