// Package queue defines the domain events exchanged over the message
// broker, the publisher that emits them and the audit consumer that
// records them.
package queue

// QueueName is the durable queue every domain event is routed to.
const QueueName = "booking.events"

// Event types.
const (
	EventBookingCreated     = "booking.created"
	EventBookingPaid        = "booking.paid"
	EventBookingReclaimed   = "booking.reclaimed"
	EventInventoryGenerated = "inventory.generated"
)

// Event is published after a booking or inventory change has committed.
// It carries enough information for downstream consumers to log, notify
// or trigger analytics without querying the primary database.  Count is
// the number of tickets created or released, depending on Type.
type Event struct {
	Type        string   `json:"type"`
	BookingID   uint64   `json:"booking_id,omitempty"`
	BookingUUID string   `json:"booking_uuid,omitempty"`
	ShowID      uint64   `json:"show_id,omitempty"`
	TicketIDs   []uint64 `json:"ticket_ids,omitempty"`
	Price       string   `json:"price,omitempty"`
	Count       int64    `json:"count,omitempty"`
	OccurredAt  string   `json:"occurred_at"`
}
