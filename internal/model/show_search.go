package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Time windows accepted by ShowSearch.When.
const (
	WhenUpcoming = "upcoming" // shows that have not started
	WhenActive   = "active"   // shows that have not ended
	WhenAny      = "any"
)

// ShowSearch filters and paginates the public show listing.  Text
// filters match case-insensitive substrings.
type ShowSearch struct {
	Movie    string
	Theatre  string
	City     string
	When     string
	Now      time.Time
	Page     int
	PageSize int
}

// Normalize fills defaults: upcoming shows, page 1, 20 rows per page,
// at most 100.
func (q ShowSearch) Normalize() ShowSearch {
	q.Movie = strings.TrimSpace(q.Movie)
	q.Theatre = strings.TrimSpace(q.Theatre)
	q.City = strings.TrimSpace(q.City)
	switch strings.ToLower(q.When) {
	case WhenActive, WhenAny:
		q.When = strings.ToLower(q.When)
	default:
		q.When = WhenUpcoming
	}
	if q.Now.IsZero() {
		q.Now = time.Now()
	}
	q.Now = q.Now.UTC()
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
	return q
}

// Offset is the number of rows skipped before the current page.
func (q ShowSearch) Offset() int { return (q.Page - 1) * q.PageSize }

// ShowListing is a show joined with its movie, hall and theatre plus
// the number of tickets still available.
type ShowListing struct {
	ShowID    uint64          `json:"show_id"`
	MovieID   uint64          `json:"movie_id"`
	Movie     string          `json:"movie"`
	HallID    uint64          `json:"hall_id"`
	Hall      string          `json:"hall"`
	TheatreID uint64          `json:"theatre_id"`
	Theatre   string          `json:"theatre"`
	City      string          `json:"city"`
	StartsAt  time.Time       `json:"starts_at"`
	EndsAt    time.Time       `json:"ends_at"`
	BasePrice decimal.Decimal `json:"base_price"`
	Available int             `json:"available"`
}
