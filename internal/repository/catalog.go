package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
)

// Catalog groups the catalog repositories behind one value so the HTTP
// layer can depend on a single collaborator.
type Catalog struct {
	Theatres  *TheatreRepo
	Movies    *MovieRepo
	Halls     *HallRepo
	SeatTypes *SeatTypeRepo
	Seats     *SeatRepo
	Shows     *ShowRepo
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{
		Theatres:  NewTheatreRepo(db),
		Movies:    NewMovieRepo(db),
		Halls:     NewHallRepo(db),
		SeatTypes: NewSeatTypeRepo(db),
		Seats:     NewSeatRepo(db),
		Shows:     NewShowRepo(db),
	}
}

func (c *Catalog) CreateTheatre(ctx context.Context, t *model.Theatre) error {
	return c.Theatres.Create(ctx, t)
}

func (c *Catalog) GetTheatre(ctx context.Context, id uint64) (*model.Theatre, error) {
	return c.Theatres.GetByID(ctx, id)
}

func (c *Catalog) ListTheatres(ctx context.Context) ([]model.Theatre, error) {
	return c.Theatres.List(ctx)
}

func (c *Catalog) CreateMovie(ctx context.Context, m *model.Movie) error {
	return c.Movies.Create(ctx, m)
}

func (c *Catalog) GetMovie(ctx context.Context, id uint64) (*model.Movie, error) {
	return c.Movies.GetByID(ctx, id)
}

func (c *Catalog) ListMovies(ctx context.Context) ([]model.Movie, error) {
	return c.Movies.List(ctx)
}

func (c *Catalog) CreateHall(ctx context.Context, h *model.Hall) error {
	return c.Halls.Create(ctx, h)
}

func (c *Catalog) GetHall(ctx context.Context, id uint64) (*model.Hall, error) {
	return c.Halls.GetByID(ctx, id)
}

func (c *Catalog) ListHalls(ctx context.Context, theatreID uint64) ([]model.Hall, error) {
	return c.Halls.List(ctx, theatreID)
}

func (c *Catalog) CreateSeatType(ctx context.Context, st *model.SeatType) error {
	return c.SeatTypes.Create(ctx, st)
}

func (c *Catalog) GetSeatType(ctx context.Context, id uint64) (*model.SeatType, error) {
	return c.SeatTypes.GetByID(ctx, id)
}

func (c *Catalog) ListSeatTypes(ctx context.Context, theatreID uint64) ([]model.SeatType, error) {
	return c.SeatTypes.List(ctx, theatreID)
}

func (c *Catalog) CreateSeat(ctx context.Context, s *model.Seat) error {
	return c.Seats.Create(ctx, s)
}

func (c *Catalog) GetSeat(ctx context.Context, id uint64) (*model.Seat, error) {
	return c.Seats.GetByID(ctx, id)
}

func (c *Catalog) ListSeats(ctx context.Context, hallID uint64) ([]model.Seat, error) {
	return c.Seats.ListByHall(ctx, hallID)
}

func (c *Catalog) CreateShow(ctx context.Context, s *model.Show) error {
	return c.Shows.Create(ctx, s)
}

func (c *Catalog) GetShow(ctx context.Context, id uint64) (*model.Show, error) {
	return c.Shows.GetByID(ctx, id)
}

func (c *Catalog) ListShows(ctx context.Context, hallID uint64) ([]model.Show, error) {
	return c.Shows.ListByHall(ctx, hallID)
}

func (c *Catalog) SearchShows(ctx context.Context, q model.ShowSearch) ([]model.ShowListing, int64, error) {
	return c.Shows.Search(ctx, q)
}
