package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
)

// ShowRepo manages persistence for shows.  A show is a scheduled
// screening of a movie in a hall; BasePrice is multiplied by each seat
// type's multiplier when its tickets are generated.
type ShowRepo struct {
	db *sql.DB
}

// NewShowRepo constructs a ShowRepo with the given DB handle.
func NewShowRepo(db *sql.DB) *ShowRepo {
	return &ShowRepo{db: db}
}

const showColumns = `id, movie_id, hall_id, starts_at, ends_at, base_price, created_at, updated_at`

func scanShow(row interface{ Scan(...any) error }, s *model.Show) error {
	return row.Scan(&s.ID, &s.MovieID, &s.HallID, &s.StartsAt, &s.EndsAt, &s.BasePrice, &s.CreatedAt, &s.UpdatedAt)
}

// Create inserts a new show and assigns the generated ID back to it.
// Unknown movie or hall yields ErrInvalidInput via the foreign keys.
func (r *ShowRepo) Create(ctx context.Context, s *model.Show) error {
	now := time.Now().UTC().Truncate(time.Microsecond)
	const q = `INSERT INTO shows (movie_id, hall_id, starts_at, ends_at, base_price, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.MovieID, s.HallID, s.StartsAt.UTC(), s.EndsAt.UTC(), s.BasePrice, now, now)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.CreatedAt, s.UpdatedAt = now, now
	return nil
}

// GetByID retrieves a show by its ID.  It returns reservation.ErrNotFound
// if there is no matching row.
func (r *ShowRepo) GetByID(ctx context.Context, id uint64) (*model.Show, error) {
	var s model.Show
	if err := scanShow(r.db.QueryRowContext(ctx, "SELECT "+showColumns+" FROM shows WHERE id = ?", id), &s); err != nil {
		return nil, notFound(err, "show", id)
	}
	return &s, nil
}

// ListByHall returns the shows of a hall ordered by start time, or every
// show when hallID is 0.
func (r *ShowRepo) ListByHall(ctx context.Context, hallID uint64) ([]model.Show, error) {
	q := "SELECT " + showColumns + " FROM shows"
	var args []any
	if hallID != 0 {
		q += " WHERE hall_id = ?"
		args = append(args, hallID)
	}
	q += " ORDER BY starts_at ASC, id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := make([]model.Show, 0)
	for rows.Next() {
		var s model.Show
		if err := scanShow(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
