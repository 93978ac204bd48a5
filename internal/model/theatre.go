package model

import "time"

// Theatre represents a cinema venue.  A theatre owns its halls and the
// seat types used to price seats inside those halls.  This struct
// corresponds to a row in the `theatres` table.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name of the theatre.
//  City      – city the theatre is located in.
//  CreatedAt – timestamp when the theatre was created.
//  UpdatedAt – timestamp of last update.
type Theatre struct {
	ID        uint64    `json:"id"`         // theatres.id
	Name      string    `json:"name"`       // theatres.name
	City      string    `json:"city"`       // theatres.city
	CreatedAt time.Time `json:"created_at"` // theatres.created_at
	UpdatedAt time.Time `json:"updated_at"` // theatres.updated_at
}
