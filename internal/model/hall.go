package model

import "time"

// Hall represents an individual screening hall within a theatre.  Shows
// are scheduled against a hall and the hall's seats define the
// inventory generated for every show.
//
// Fields:
//  ID        – primary key identifier.
//  TheatreID – theatre that contains the hall.
//  Name      – hall name, unique per theatre.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Hall struct {
	ID        uint64    `json:"id"`         // halls.id
	TheatreID uint64    `json:"theatre_id"` // halls.theatre_id
	Name      string    `json:"name"`       // halls.name
	CreatedAt time.Time `json:"created_at"` // halls.created_at
	UpdatedAt time.Time `json:"updated_at"` // halls.updated_at
}
