package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ticket is the atomic sellable unit: one seat at one show at a price
// frozen when the show's inventory was generated.  There is exactly one
// ticket per (show, seat) pair.  BookingID is nil while the ticket is
// available; a non-nil value is the only proof of ownership and is
// written solely by a reservation (claim) or a reclaim (release).
type Ticket struct {
	ID        uint64          `json:"id"`                   // tickets.id
	UUID      uuid.UUID       `json:"uuid"`                 // tickets.uuid
	ShowID    uint64          `json:"show_id"`              // tickets.show_id
	SeatID    uint64          `json:"seat_id"`              // tickets.seat_id
	Price     decimal.Decimal `json:"price"`                // tickets.price
	BookingID *uint64         `json:"booking_id,omitempty"` // tickets.booking_id (nullable)
	CreatedAt time.Time       `json:"created_at"`           // tickets.created_at
	UpdatedAt time.Time       `json:"updated_at"`           // tickets.updated_at
}

// Available reports whether the ticket is not claimed by any booking.
func (t Ticket) Available() bool { return t.BookingID == nil }
