package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
	"github.com/iliyamo/cinema-ticket-engine/internal/queue"
)

// InventoryGenerator materializes one ticket per hall seat for a show.
type InventoryGenerator struct {
	store  Store
	events Publisher
	log    zerolog.Logger
	now    func() time.Time
}

// NewInventoryGenerator builds a generator over store.  events may be nil.
func NewInventoryGenerator(store Store, events Publisher, log zerolog.Logger) *InventoryGenerator {
	return &InventoryGenerator{
		store:  store,
		events: publisherOrNop(events),
		log:    log,
		now:    time.Now,
	}
}

// TicketPrice is the frozen price of a ticket: the show's base price
// times the seat type multiplier, rounded to cents.
func TicketPrice(basePrice, multiplier decimal.Decimal) decimal.Decimal {
	return basePrice.Mul(multiplier).Round(2)
}

// BuildTickets prices one ticket per seat of the show.
func BuildTickets(show *model.Show, seats []model.PricedSeat, now time.Time) []model.Ticket {
	tickets := make([]model.Ticket, 0, len(seats))
	for _, s := range seats {
		tickets = append(tickets, model.Ticket{
			UUID:      uuid.New(),
			ShowID:    show.ID,
			SeatID:    s.SeatID,
			Price:     TicketPrice(show.BasePrice, s.PriceMultiplier),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return tickets
}

// GenerateInventory creates the show's tickets.  Calling it again for the
// same show creates nothing new, so it is safe under at-least-once
// delivery.  A hall without seats yields an empty inventory.
func (g *InventoryGenerator) GenerateInventory(ctx context.Context, showID uint64) (int, error) {
	show, err := g.store.GetShow(ctx, showID)
	if err != nil {
		return 0, fmt.Errorf("load show %d: %w", showID, err)
	}
	seats, err := g.store.ListHallSeats(ctx, show.HallID)
	if err != nil {
		return 0, fmt.Errorf("load seats of hall %d: %w", show.HallID, err)
	}
	now := g.now().UTC().Truncate(time.Microsecond)
	created, err := g.store.InsertTickets(ctx, BuildTickets(show, seats, now))
	if err != nil {
		return 0, fmt.Errorf("insert tickets for show %d: %w", showID, err)
	}

	g.log.Info().
		Uint64("show_id", showID).
		Int("seats", len(seats)).
		Int("created", created).
		Msg("inventory generated")

	if err := g.events.Publish(ctx, queue.Event{
		Type:       queue.EventInventoryGenerated,
		ShowID:     showID,
		Count:      int64(created),
		OccurredAt: now.Format(time.RFC3339),
	}); err != nil {
		g.log.Warn().Err(err).Uint64("show_id", showID).Msg("publish inventory event")
	}
	return created, nil
}
