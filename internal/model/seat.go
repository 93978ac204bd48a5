package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeatType is a pricing class defined per theatre (for example REGULAR
// or RECLINER).  PriceMultiplier is applied to a show's base price when
// the show's inventory is generated.
type SeatType struct {
	ID              uint64          `json:"id"`               // seat_types.id
	TheatreID       uint64          `json:"theatre_id"`       // seat_types.theatre_id
	Name            string          `json:"name"`             // seat_types.name
	PriceMultiplier decimal.Decimal `json:"price_multiplier"` // seat_types.price_multiplier
	CreatedAt       time.Time       `json:"created_at"`       // seat_types.created_at
	UpdatedAt       time.Time       `json:"updated_at"`       // seat_types.updated_at
}

// Seat describes a physical seat in a hall.  Seats are uniquely
// identified by their hall, row and column and are immutable once shows
// have been scheduled against the hall.
//
// Fields:
//  ID         – primary key identifier.
//  HallID     – hall to which this seat belongs.
//  SeatTypeID – pricing class of the seat.
//  Row        – row label.
//  Column     – column label within the row.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Seat struct {
	ID         uint64    `json:"id"`           // seats.id
	HallID     uint64    `json:"hall_id"`      // seats.hall_id
	SeatTypeID uint64    `json:"seat_type_id"` // seats.seat_type_id
	Row        string    `json:"row"`          // seats.seat_row
	Column     string    `json:"column"`       // seats.seat_column
	CreatedAt  time.Time `json:"created_at"`   // seats.created_at
	UpdatedAt  time.Time `json:"updated_at"`   // seats.updated_at
}

// PricedSeat is a seat joined with the multiplier of its seat type.  It
// is what the inventory generator needs to price a ticket without
// traversing relations lazily.
type PricedSeat struct {
	SeatID          uint64
	PriceMultiplier decimal.Decimal
}
