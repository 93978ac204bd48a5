package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
)

// HallRepo provides methods to work with halls in the database.  A hall
// belongs to a theatre and contains seats.
type HallRepo struct {
	db *sql.DB
}

// NewHallRepo constructs a HallRepo with the given DB handle.
func NewHallRepo(db *sql.DB) *HallRepo {
	return &HallRepo{db: db}
}

// Create inserts a hall.  An unknown theatre yields ErrInvalidInput via
// the foreign key.
func (r *HallRepo) Create(ctx context.Context, h *model.Hall) error {
	now := time.Now().UTC().Truncate(time.Microsecond)
	const q = "INSERT INTO halls (theatre_id, name, created_at, updated_at) VALUES (?, ?, ?, ?)"
	res, err := r.db.ExecContext(ctx, q, h.TheatreID, h.Name, now, now)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	h.CreatedAt, h.UpdatedAt = now, now
	return nil
}

// GetByID retrieves a hall by its ID.
func (r *HallRepo) GetByID(ctx context.Context, id uint64) (*model.Hall, error) {
	const q = "SELECT id, theatre_id, name, created_at, updated_at FROM halls WHERE id = ?"
	var h model.Hall
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&h.ID, &h.TheatreID, &h.Name, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, notFound(err, "hall", id)
	}
	return &h, nil
}

// List returns the halls of a theatre, or every hall when theatreID is 0.
func (r *HallRepo) List(ctx context.Context, theatreID uint64) ([]model.Hall, error) {
	q := "SELECT id, theatre_id, name, created_at, updated_at FROM halls"
	var args []any
	if theatreID != 0 {
		q += " WHERE theatre_id = ?"
		args = append(args, theatreID)
	}
	q += " ORDER BY id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := make([]model.Hall, 0)
	for rows.Next() {
		var h model.Hall
		if err := rows.Scan(&h.ID, &h.TheatreID, &h.Name, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
