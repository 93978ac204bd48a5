package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Show represents a scheduled screening of a movie in a particular
// hall.  BasePrice is multiplied by each seat type's multiplier when
// the show's tickets are generated; later changes to the show never
// reprice existing tickets.
//
// Fields:
//  ID        – primary key identifier.
//  MovieID   – movie being screened.
//  HallID    – hall where the show is taking place.
//  StartsAt  – when the show begins.
//  EndsAt    – when the show ends (must be after StartsAt).
//  BasePrice – base ticket price before the seat multiplier.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Show struct {
	ID        uint64          `json:"id"`         // shows.id
	MovieID   uint64          `json:"movie_id"`   // shows.movie_id
	HallID    uint64          `json:"hall_id"`    // shows.hall_id
	StartsAt  time.Time       `json:"starts_at"`  // shows.starts_at
	EndsAt    time.Time       `json:"ends_at"`    // shows.ends_at
	BasePrice decimal.Decimal `json:"base_price"` // shows.base_price
	CreatedAt time.Time       `json:"created_at"` // shows.created_at
	UpdatedAt time.Time       `json:"updated_at"` // shows.updated_at
}
