package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
	"github.com/iliyamo/cinema-ticket-engine/internal/queue"
)

// Payments records payment confirmations from the payment collaborator.
type Payments struct {
	store  Store
	events Publisher
	now    func() time.Time
	log    zerolog.Logger
}

func NewPayments(store Store, events Publisher, opts Options, log zerolog.Logger) *Payments {
	opts = opts.withDefaults()
	return &Payments{
		store:  store,
		events: publisherOrNop(events),
		now:    opts.Now,
		log:    log,
	}
}

// MarkPaid flags the booking as paid.  Marking a paid booking again is a
// no-op that returns the booking.  Once paid, the reclaimer never deletes it.
func (p *Payments) MarkPaid(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	now := p.now().UTC().Truncate(time.Microsecond)
	b, err := p.store.MarkPaid(ctx, bookingID, now)
	if err != nil {
		return nil, fmt.Errorf("mark booking %d paid: %w", bookingID, err)
	}
	p.log.Info().Uint64("booking_id", bookingID).Msg("booking paid")
	if err := p.events.Publish(ctx, queue.Event{
		Type:        queue.EventBookingPaid,
		BookingID:   b.ID,
		BookingUUID: b.UUID.String(),
		Price:       b.Price.StringFixed(2),
		OccurredAt:  now.Format(time.RFC3339),
	}); err != nil {
		p.log.Warn().Err(err).Uint64("booking_id", bookingID).Msg("publish paid event")
	}
	return b, nil
}
