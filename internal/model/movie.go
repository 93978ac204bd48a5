package model

import "time"

// Movie is a film that can be scheduled as shows.  Only the attributes
// needed for browsing are stored; the engine never reads them when
// pricing or reserving tickets.
type Movie struct {
	ID            uint64    `json:"id"`                    // movies.id
	Name          string    `json:"name"`                  // movies.name
	Description   *string   `json:"description,omitempty"` // movies.description (nullable)
	LengthMinutes float64   `json:"length_minutes"`        // movies.length_minutes
	Cast          []string  `json:"cast"`                  // movies.cast_members (JSON array)
	Director      string    `json:"director"`              // movies.director
	Genre         string    `json:"genre"`                 // movies.genre
	Certificate   string    `json:"certificate"`           // movies.certificate (A, UA, U, S)
	ReleaseDate   time.Time `json:"release_date"`          // movies.release_date
	CreatedAt     time.Time `json:"created_at"`            // movies.created_at
	UpdatedAt     time.Time `json:"updated_at"`            // movies.updated_at
}

// Movie certificates accepted by the catalog.
const (
	CertificateA  = "A"
	CertificateUA = "UA"
	CertificateU  = "U"
	CertificateS  = "S"
)
