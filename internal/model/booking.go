package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Booking is a claim over a non-empty set of tickets pending payment.
// Price is the sum of the claimed tickets' frozen prices at claim time
// and is never recomputed.  A booking is created only by a successful
// reservation and destroyed only by the lease reclaimer while unpaid.
//
// Fields:
//  ID         – primary key identifier.
//  UUID       – public identifier handed to clients.
//  Price      – sum of claimed ticket prices.
//  Tax        – tax charged on Price.
//  Paid       – set by the payment collaborator.
//  TicketIDs  – tickets claimed by this booking, ascending.
//  CreatedAt  – creation timestamp; the lease window starts here.
//  ModifiedAt – last modification timestamp.
type Booking struct {
	ID         uint64          `json:"id"`          // bookings.id
	UUID       uuid.UUID       `json:"uuid"`        // bookings.uuid
	Price      decimal.Decimal `json:"price"`       // bookings.price
	Tax        decimal.Decimal `json:"tax"`         // bookings.tax
	Paid       bool            `json:"paid"`        // bookings.paid
	TicketIDs  []uint64        `json:"ticket_ids"`  // tickets.booking_id = bookings.id
	CreatedAt  time.Time       `json:"created_at"`  // bookings.created_at
	ModifiedAt time.Time       `json:"modified_at"` // bookings.modified_at
}
