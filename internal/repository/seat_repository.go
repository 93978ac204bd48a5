package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
	"github.com/iliyamo/cinema-ticket-engine/internal/reservation"
)

// SeatTypeRepo manages the per-theatre seat classes and their price
// multipliers.
type SeatTypeRepo struct {
	db *sql.DB
}

func NewSeatTypeRepo(db *sql.DB) *SeatTypeRepo {
	return &SeatTypeRepo{db: db}
}

func (r *SeatTypeRepo) Create(ctx context.Context, st *model.SeatType) error {
	now := time.Now().UTC().Truncate(time.Microsecond)
	const q = `INSERT INTO seat_types (theatre_id, name, price_multiplier, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, st.TheatreID, st.Name, st.PriceMultiplier, now, now)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	st.ID = uint64(id)
	st.CreatedAt, st.UpdatedAt = now, now
	return nil
}

func (r *SeatTypeRepo) GetByID(ctx context.Context, id uint64) (*model.SeatType, error) {
	const q = `SELECT id, theatre_id, name, price_multiplier, created_at, updated_at FROM seat_types WHERE id = ?`
	var st model.SeatType
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&st.ID, &st.TheatreID, &st.Name, &st.PriceMultiplier, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, notFound(err, "seat type", id)
	}
	return &st, nil
}

// List returns the seat types of a theatre, or all when theatreID is 0.
func (r *SeatTypeRepo) List(ctx context.Context, theatreID uint64) ([]model.SeatType, error) {
	q := `SELECT id, theatre_id, name, price_multiplier, created_at, updated_at FROM seat_types`
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
	out := make([]model.SeatType, 0)
	for rows.Next() {
		var st model.SeatType
		if err := rows.Scan(&st.ID, &st.TheatreID, &st.Name, &st.PriceMultiplier, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// SeatRepo provides methods to work with seats in the database.  Row
// and Column identify the seat's position inside its hall.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// Create inserts a single seat.  The seat type must belong to the same
// theatre as the hall; the check and the insert share one transaction.
// A second seat at the same position yields ErrConflict.
func (r *SeatRepo) Create(ctx context.Context, s *model.Seat) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var hallTheatre, typeTheatre uint64
	if err := tx.QueryRowContext(ctx, `SELECT theatre_id FROM halls WHERE id = ?`, s.HallID).Scan(&hallTheatre); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: unknown hall %d", reservation.ErrInvalidInput, s.HallID)
		}
		return classify(err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT theatre_id FROM seat_types WHERE id = ?`, s.SeatTypeID).Scan(&typeTheatre); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: unknown seat type %d", reservation.ErrInvalidInput, s.SeatTypeID)
		}
		return classify(err)
	}
	if hallTheatre != typeTheatre {
		return fmt.Errorf("%w: seat type %d belongs to another theatre", reservation.ErrInvalidInput, s.SeatTypeID)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	const q = `INSERT INTO seats (hall_id, seat_type_id, seat_row, seat_column, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, s.HallID, s.SeatTypeID, s.Row, s.Column, now, now)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	s.ID = uint64(id)
	s.CreatedAt, s.UpdatedAt = now, now
	return nil
}

// GetByID returns the seat with the given ID.
func (r *SeatRepo) GetByID(ctx context.Context, id uint64) (*model.Seat, error) {
	const q = `SELECT id, hall_id, seat_type_id, seat_row, seat_column, created_at, updated_at FROM seats WHERE id = ?`
	var s model.Seat
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.HallID, &s.SeatTypeID, &s.Row, &s.Column, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, notFound(err, "seat", id)
	}
	return &s, nil
}

// ListByHall returns the seats of a hall ordered by ID, or
// every seat when hallID is 0.
func (r *SeatRepo) ListByHall(ctx context.Context, hallID uint64) ([]model.Seat, error) {
	q := `SELECT id, hall_id, seat_type_id, seat_row, seat_column, created_at, updated_at FROM seats`
	var args []any
	if hallID != 0 {
		q += " WHERE hall_id = ?"
		args = append(args, hallID)
	}
	q += " ORDER BY id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := make([]model.Seat, 0)
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.HallID, &s.SeatTypeID, &s.Row, &s.Column, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListPriced returns every seat of the hall with its seat type's price
// multiplier in one query, ordered by seat ID.
func (r *SeatRepo) ListPriced(ctx context.Context, hallID uint64) ([]model.PricedSeat, error) {
	const q = `SELECT s.id, st.price_multiplier
	           FROM seats s
	           JOIN seat_types st ON st.id = s.seat_type_id
	           WHERE s.hall_id = ?
	           ORDER BY s.id`
	rows, err := r.db.QueryContext(ctx, q, hallID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := make([]model.PricedSeat, 0)
	for rows.Next() {
		var ps model.PricedSeat
		if err := rows.Scan(&ps.SeatID, &ps.PriceMultiplier); err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}
