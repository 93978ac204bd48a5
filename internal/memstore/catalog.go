package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
	"github.com/iliyamo/cinema-ticket-engine/internal/reservation"
)

func unknown(kind string, id uint64) error {
	return fmt.Errorf("%w: unknown %s %d", reservation.ErrInvalidInput, kind, id)
}

func missing(kind string, id uint64) error {
	return fmt.Errorf("%s %d: %w", kind, id, reservation.ErrNotFound)
}

func sortedValues[T any](m map[uint64]T, keep func(T) bool) []T {
	keys := make([]uint64, 0, len(m))
	for k, v := range m {
		if keep == nil || keep(v) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func (s *Store) CreateTheatre(_ context.Context, t *model.Theatre) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.nextID("theatres")
	t.CreatedAt, t.UpdatedAt = s.stamp(), s.stamp()
	s.theatres[t.ID] = *t
	return nil
}

func (s *Store) GetTheatre(_ context.Context, id uint64) (*model.Theatre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.theatres[id]
	if !ok {
		return nil, missing("theatre", id)
	}
	return &t, nil
}

func (s *Store) ListTheatres(context.Context) ([]model.Theatre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.theatres, nil), nil
}

func (s *Store) CreateMovie(_ context.Context, m *model.Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.nextID("movies")
	m.CreatedAt, m.UpdatedAt = s.stamp(), s.stamp()
	if m.Cast == nil {
		m.Cast = []string{}
	}
	row := *m
	row.Cast = slices.Clone(m.Cast)
	s.movies[m.ID] = row
	return nil
}

func (s *Store) GetMovie(_ context.Context, id uint64) (*model.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.movies[id]
	if !ok {
		return nil, missing("movie", id)
	}
	m.Cast = slices.Clone(m.Cast)
	return &m, nil
}

func (s *Store) ListMovies(context.Context) ([]model.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.movies, nil), nil
}

func (s *Store) CreateHall(_ context.Context, h *model.Hall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.theatres[h.TheatreID]; !ok {
		return unknown("theatre", h.TheatreID)
	}
	h.ID = s.nextID("halls")
	h.CreatedAt, h.UpdatedAt = s.stamp(), s.stamp()
	s.halls[h.ID] = *h
	return nil
}

func (s *Store) GetHall(_ context.Context, id uint64) (*model.Hall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.halls[id]
	if !ok {
		return nil, missing("hall", id)
	}
	return &h, nil
}

// ListHalls lists halls of a theatre, or all halls when theatreID is 0.
func (s *Store) ListHalls(_ context.Context, theatreID uint64) ([]model.Hall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.halls, func(h model.Hall) bool {
		return theatreID == 0 || h.TheatreID == theatreID
	}), nil
}

func (s *Store) CreateSeatType(_ context.Context, st *model.SeatType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.theatres[st.TheatreID]; !ok {
		return unknown("theatre", st.TheatreID)
	}
	st.ID = s.nextID("seat_types")
	st.CreatedAt, st.UpdatedAt = s.stamp(), s.stamp()
	s.seatTypes[st.ID] = *st
	return nil
}

func (s *Store) GetSeatType(_ context.Context, id uint64) (*model.SeatType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.seatTypes[id]
	if !ok {
		return nil, missing("seat type", id)
	}
	return &st, nil
}

func (s *Store) ListSeatTypes(_ context.Context, theatreID uint64) ([]model.SeatType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.seatTypes, func(st model.SeatType) bool {
		return theatreID == 0 || st.TheatreID == theatreID
	}), nil
}

// CreateSeat rejects a seat whose type belongs to another theatre than
// its hall, and a second seat at the same row and column of a hall.
func (s *Store) CreateSeat(_ context.Context, seat *model.Seat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.halls[seat.HallID]
	if !ok {
		return unknown("hall", seat.HallID)
	}
	st, ok := s.seatTypes[seat.SeatTypeID]
	if !ok {
		return unknown("seat type", seat.SeatTypeID)
	}
	if st.TheatreID != h.TheatreID {
		return fmt.Errorf("%w: seat type %d belongs to another theatre", reservation.ErrInvalidInput, st.ID)
	}
	for _, other := range s.seats {
		if other.HallID == seat.HallID && other.Row == seat.Row && other.Column == seat.Column {
			return fmt.Errorf("%w: seat %s%s already exists in hall %d", reservation.ErrConflict, seat.Row, seat.Column, seat.HallID)
		}
	}
	seat.ID = s.nextID("seats")
	seat.CreatedAt, seat.UpdatedAt = s.stamp(), s.stamp()
	s.seats[seat.ID] = *seat
	return nil
}

func (s *Store) GetSeat(_ context.Context, id uint64) (*model.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seat, ok := s.seats[id]
	if !ok {
		return nil, missing("seat", id)
	}
	return &seat, nil
}

func (s *Store) ListSeats(_ context.Context, hallID uint64) ([]model.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.seats, func(seat model.Seat) bool {
		return hallID == 0 || seat.HallID == hallID
	}), nil
}

func (s *Store) CreateShow(_ context.Context, sh *model.Show) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.movies[sh.MovieID]; !ok {
		return unknown("movie", sh.MovieID)
	}
	if _, ok := s.halls[sh.HallID]; !ok {
		return unknown("hall", sh.HallID)
	}
	sh.ID = s.nextID("shows")
	sh.CreatedAt, sh.UpdatedAt = s.stamp(), s.stamp()
	s.shows[sh.ID] = *sh
	return nil
}

// ListShows lists shows of a hall ordered by start time, or all shows
// when hallID is 0.
func (s *Store) ListShows(_ context.Context, hallID uint64) ([]model.Show, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := sortedValues(s.shows, func(sh model.Show) bool {
		return hallID == 0 || sh.HallID == hallID
	})
	slices.SortStableFunc(out, func(a, b model.Show) int {
		if c := a.StartsAt.Compare(b.StartsAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// SearchShows lists shows joined with their movie, hall and theatre,
// filtered by case-insensitive substrings and paginated by start time.
func (s *Store) SearchShows(_ context.Context, q model.ShowSearch) ([]model.ShowListing, int64, error) {
	q = q.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()

	available := make(map[uint64]int)
	for _, t := range s.tickets {
		if t.Available() {
			available[t.ShowID]++
		}
	}

	var matched []model.ShowListing
	for _, sh := range s.shows {
		switch q.When {
		case model.WhenUpcoming:
			if sh.StartsAt.Before(q.Now) {
				continue
			}
		case model.WhenActive:
			if sh.EndsAt.Before(q.Now) {
				continue
			}
		}
		movie, hall := s.movies[sh.MovieID], s.halls[sh.HallID]
		theatre := s.theatres[hall.TheatreID]
		if !contains(movie.Name, q.Movie) || !contains(theatre.Name, q.Theatre) || !contains(theatre.City, q.City) {
			continue
		}
		matched = append(matched, model.ShowListing{
			ShowID:    sh.ID,
			MovieID:   movie.ID,
			Movie:     movie.Name,
			HallID:    hall.ID,
			Hall:      hall.Name,
			TheatreID: theatre.ID,
			Theatre:   theatre.Name,
			City:      theatre.City,
			StartsAt:  sh.StartsAt,
			EndsAt:    sh.EndsAt,
			BasePrice: sh.BasePrice,
			Available: available[sh.ID],
		})
	}
	slices.SortFunc(matched, func(a, b model.ShowListing) int {
		if c := a.StartsAt.Compare(b.StartsAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ShowID, b.ShowID)
	})

	total := int64(len(matched))
	from := min(q.Offset(), len(matched))
	to := min(from+q.PageSize, len(matched))
	return append([]model.ShowListing{}, matched[from:to]...), total, nil
}

func contains(value, sub string) bool {
	return sub == "" || strings.Contains(strings.ToLower(value), strings.ToLower(sub))
}
