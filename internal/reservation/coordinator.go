package reservation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
	"github.com/iliyamo/cinema-ticket-engine/internal/queue"
)

// Options tunes the reservation components.  Zero values fall back to the
// defaults below.
type Options struct {
	// LeaseWindow is how long an unpaid booking holds its tickets.
	LeaseWindow time.Duration
	// MaxAttempts bounds how many times a claim is retried after a
	// transient store failure.
	MaxAttempts int
	// RetryBackoff is the base delay between claim attempts.
	RetryBackoff time.Duration
	// TaxRate is applied to the booking price.
	TaxRate decimal.Decimal
	// Now overrides the wall clock, used by tests.
	Now func() time.Time
}

const (
	DefaultLeaseWindow  = 100 * time.Second
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = 20 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.LeaseWindow <= 0 {
		o.LeaseWindow = DefaultLeaseWindow
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Coordinator claims sets of tickets into bookings, all or nothing.
type Coordinator struct {
	store     Store
	scheduler Scheduler
	events    Publisher
	opts      Options
	log       zerolog.Logger
}

// NewCoordinator builds a Coordinator.  scheduler and events may be nil,
// in which case no reclaim is scheduled and no event is published.
func NewCoordinator(store Store, scheduler Scheduler, events Publisher, opts Options, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		scheduler: scheduler,
		events:    publisherOrNop(events),
		opts:      opts.withDefaults(),
		log:       log,
	}
}

// Reserve atomically claims every ticket in ticketIDs into a new unpaid
// booking.  Either all tickets are claimed or none is and an error is
// returned:
//
//   - *InputError for an empty or duplicated set
//   - *MissingError when some tickets do not exist
//   - *ConflictError when some tickets are already claimed
//   - ErrTransient when the store kept failing after retries
func (c *Coordinator) Reserve(ctx context.Context, ticketIDs []uint64) (*model.Booking, error) {
	ordered, err := normalizeTicketIDs(ticketIDs)
	if err != nil {
		return nil, err
	}

	var booking *model.Booking
	for attempt := 1; ; attempt++ {
		booking, err = c.reserveOnce(ctx, ticketIDs, ordered)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrTransient) || attempt >= c.opts.MaxAttempts {
			return nil, err
		}
		c.log.Warn().Err(err).Int("attempt", attempt).Msg("claim failed, retrying")
		if err := sleepCtx(ctx, c.opts.RetryBackoff*time.Duration(attempt)); err != nil {
			return nil, err
		}
	}

	c.log.Info().
		Uint64("booking_id", booking.ID).
		Int("tickets", len(booking.TicketIDs)).
		Str("price", booking.Price.StringFixed(2)).
		Msg("booking created")

	if c.scheduler != nil {
		at := booking.CreatedAt.Add(c.opts.LeaseWindow)
		if err := c.scheduler.ScheduleReclaim(ctx, booking.ID, at); err != nil {
			c.log.Error().Err(err).Uint64("booking_id", booking.ID).Msg("schedule reclaim")
		}
	}
	if err := c.events.Publish(ctx, queue.Event{
		Type:        queue.EventBookingCreated,
		BookingID:   booking.ID,
		BookingUUID: booking.UUID.String(),
		TicketIDs:   booking.TicketIDs,
		Price:       booking.Price.StringFixed(2),
		OccurredAt:  booking.CreatedAt.Format(time.RFC3339),
	}); err != nil {
		c.log.Warn().Err(err).Uint64("booking_id", booking.ID).Msg("publish booking event")
	}
	return booking, nil
}

func (c *Coordinator) reserveOnce(ctx context.Context, requested, ordered []uint64) (*model.Booking, error) {
	var booking *model.Booking
	err := c.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		tickets, err := tx.LockTickets(ctx, ordered)
		if err != nil {
			return fmt.Errorf("lock tickets: %w", err)
		}
		byID := make(map[uint64]model.Ticket, len(tickets))
		for _, t := range tickets {
			byID[t.ID] = t
		}

		var missing, claimed []uint64
		for _, id := range requested {
			t, ok := byID[id]
			switch {
			case !ok:
				missing = append(missing, id)
			case !t.Available():
				claimed = append(claimed, id)
			}
		}
		if len(missing) > 0 {
			return &MissingError{Missing: missing}
		}
		if len(claimed) > 0 {
			return &ConflictError{AlreadyClaimed: claimed}
		}

		total := decimal.Zero
		for _, id := range ordered {
			total = total.Add(byID[id].Price)
		}
		now := c.opts.Now().UTC().Truncate(time.Microsecond)
		b := &model.Booking{
			UUID:       uuid.New(),
			Price:      total,
			Tax:        total.Mul(c.opts.TaxRate).Round(2),
			TicketIDs:  ordered,
			CreatedAt:  now,
			ModifiedAt: now,
		}
		if err := tx.CreateBooking(ctx, b); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		n, err := tx.ClaimTickets(ctx, b.ID, ordered)
		if err != nil {
			return fmt.Errorf("claim tickets: %w", err)
		}
		if n != int64(len(ordered)) {
			return fmt.Errorf("%w: claimed %d of %d tickets", ErrTransient, n, len(ordered))
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// normalizeTicketIDs rejects empty and duplicated sets and returns a
// sorted copy, the global lock order.
func normalizeTicketIDs(ids []uint64) ([]uint64, error) {
	if len(ids) == 0 {
		return nil, &InputError{Reason: "ticket set is empty"}
	}
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	var dups []uint64
	for i := 1; i < len(ordered); i++ {
		if ordered[i] == ordered[i-1] && (len(dups) == 0 || dups[len(dups)-1] != ordered[i]) {
			dups = append(dups, ordered[i])
		}
	}
	if len(dups) > 0 {
		return nil, &InputError{Reason: "duplicate ticket ids", Duplicates: dups}
	}
	return ordered, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
