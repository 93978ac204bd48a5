package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
)

// ticketInsertChunk bounds the rows per INSERT so large halls stay well
// below the placeholder limit of a prepared statement.
const ticketInsertChunk = 1000

const ticketColumns = `id, uuid, show_id, seat_id, price, booking_id, created_at, updated_at`

// TicketRepo encapsulates database operations for tickets.  Each
// (show, seat) pair has at most one ticket; a ticket is available while
// its booking_id is NULL.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo constructs a TicketRepo given a DB handle.
func NewTicketRepo(db *sql.DB) *TicketRepo {
	return &TicketRepo{db: db}
}

func scanTicket(row interface{ Scan(...any) error }, t *model.Ticket) error {
	var booking sql.NullInt64
	if err := row.Scan(&t.ID, &t.UUID, &t.ShowID, &t.SeatID, &t.Price, &booking, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return err
	}
	t.BookingID = nil
	if booking.Valid {
		id := uint64(booking.Int64)
		t.BookingID = &id
	}
	return nil
}

func collectTickets(rows *sql.Rows) ([]model.Ticket, error) {
	defer rows.Close()
	out := make([]model.Ticket, 0)
	for rows.Next() {
		var t model.Ticket
		if err := scanTicket(rows, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertBatch writes all tickets in one transaction using multi-row
// INSERTs.  Rows whose (show_id, seat_id) already exists are left
// untouched, so repeating the call is harmless.  It returns the number
// of rows actually inserted.
func (r *TicketRepo) InsertBatch(ctx context.Context, tickets []model.Ticket) (int, error) {
	if len(tickets) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	created := 0
	for start := 0; start < len(tickets); start += ticketInsertChunk {
		chunk := tickets[start:min(start+ticketInsertChunk, len(tickets))]
		// Each row requires six values; booking_id starts NULL.
		query := `INSERT INTO tickets (uuid, show_id, seat_id, price, created_at, updated_at) VALUES `
		args := make([]any, 0, len(chunk)*6)
		for i, t := range chunk {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?)"
			args = append(args, t.UUID, t.ShowID, t.SeatID, t.Price, t.CreatedAt, t.UpdatedAt)
		}
		// A no-op update reports zero affected rows for duplicates.
		query += " ON DUPLICATE KEY UPDATE id = id"
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, classify(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		created += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, classify(err)
	}
	committed = true
	return created, nil
}

// ListByShow returns the tickets of a show ordered by ID.
func (r *TicketRepo) ListByShow(ctx context.Context, showID uint64) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE show_id = ? ORDER BY id", showID)
	if err != nil {
		return nil, classify(err)
	}
	return collectTickets(rows)
}

// LockTx locks the given ticket rows in ascending ID order for the rest
// of the transaction and returns the rows that exist.
func (r *TicketRepo) LockTx(ctx context.Context, tx *sql.Tx, ids []uint64) ([]model.Ticket, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := "SELECT " + ticketColumns + " FROM tickets WHERE id IN (" + placeholders(len(ids)) + ") ORDER BY id FOR UPDATE"
	rows, err := tx.QueryContext(ctx, q, idArgs(ids)...)
	if err != nil {
		return nil, classify(err)
	}
	tickets, err := collectTickets(rows)
	return tickets, classify(err)
}

// ClaimTx assigns every still unclaimed ticket of ids to bookingID and
// returns the number of rows changed.  The booking_id IS NULL guard
// makes a claimed ticket impossible to steal even without row locks.
func (r *TicketRepo) ClaimTx(ctx context.Context, tx *sql.Tx, bookingID uint64, ids []uint64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := "UPDATE tickets SET booking_id = ?, updated_at = ? WHERE id IN (" + placeholders(len(ids)) + ") AND booking_id IS NULL"
	args := append([]any{bookingID, at}, idArgs(ids)...)
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}

// ReleaseTx clears the booking of every ticket owned by bookingID.
func (r *TicketRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, bookingID uint64, at time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE tickets SET booking_id = NULL, updated_at = ? WHERE booking_id = ?`, at, bookingID)
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}

// idsByBooking lists the IDs of the tickets held by a booking.
func idsByBooking(ctx context.Context, q queryer, bookingID uint64) ([]uint64, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM tickets WHERE booking_id = ? ORDER BY id`, bookingID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	ids := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
