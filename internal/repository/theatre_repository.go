package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
)

// TheatreRepo encapsulates all database queries related to theatres.
// A theatre is a venue that owns halls and seat types.
type TheatreRepo struct {
	db *sql.DB
}

// NewTheatreRepo constructs a TheatreRepo with the provided DB handle.
func NewTheatreRepo(db *sql.DB) *TheatreRepo {
	return &TheatreRepo{db: db}
}

// Create inserts a new theatre.  On success the theatre's ID and
// timestamps are populated.
func (r *TheatreRepo) Create(ctx context.Context, t *model.Theatre) error {
	now := time.Now().UTC().Truncate(time.Microsecond)
	const q = "INSERT INTO theatres (name, city, created_at, updated_at) VALUES (?, ?, ?, ?)"
	res, err := r.db.ExecContext(ctx, q, t.Name, t.City, now, now)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	t.CreatedAt, t.UpdatedAt = now, now
	return nil
}

// GetByID fetches a theatre by its ID.  It returns reservation.ErrNotFound
// if no row is found.
func (r *TheatreRepo) GetByID(ctx context.Context, id uint64) (*model.Theatre, error) {
	const q = "SELECT id, name, city, created_at, updated_at FROM theatres WHERE id = ?"
	var t model.Theatre
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.Name, &t.City, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, notFound(err, "theatre", id)
	}
	return &t, nil
}

// List returns all theatres ordered by ID.
func (r *TheatreRepo) List(ctx context.Context) ([]model.Theatre, error) {
	const q = "SELECT id, name, city, created_at, updated_at FROM theatres ORDER BY id"
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := make([]model.Theatre, 0)
	for rows.Next() {
		var t model.Theatre
		if err := rows.Scan(&t.ID, &t.Name, &t.City, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
