package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-ticket-engine/internal/model"
)

// BookingRepo provides persistence for bookings.  The tickets of a
// booking are the ticket rows whose booking_id points at it.  All
// timestamps are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, uuid, price, tax, paid, created_at, modified_at`

func scanBooking(row interface{ Scan(...any) error }, b *model.Booking) error {
	return row.Scan(&b.ID, &b.UUID, &b.Price, &b.Tax, &b.Paid, &b.CreatedAt, &b.ModifiedAt)
}

// CreateTx inserts a new booking within the scope of an existing
// transaction and populates the generated ID.  The caller must commit or
// roll back the transaction.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (uuid, price, tax, paid, created_at, modified_at) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.UUID, b.Price, b.Tax, b.Paid, b.CreatedAt, b.ModifiedAt)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByID returns a booking with its ticket IDs.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return getBooking(ctx, r.db, id, "")
}

// LockTx locks the booking row for the rest of the transaction.
func (r *BookingRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return getBooking(ctx, tx, id, " FOR UPDATE")
}

func getBooking(ctx context.Context, q queryer, id uint64, suffix string) (*model.Booking, error) {
	var b model.Booking
	if err := scanBooking(q.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ?"+suffix, id), &b); err != nil {
		return nil, notFound(err, "booking", id)
	}
	ids, err := idsByBooking(ctx, q, id)
	if err != nil {
		return nil, err
	}
	b.TicketIDs = ids
	return &b, nil
}

// DeleteUnpaidTx deletes the booking only while it is unpaid and was
// last modified at or before cutoff.  It reports whether a row was
// deleted.
func (r *BookingRepo) DeleteUnpaidTx(ctx context.Context, tx *sql.Tx, id uint64, cutoff time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ? AND paid = 0 AND modified_at <= ?`, id, cutoff)
	if err != nil {
		return false, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkPaid sets paid and bumps modified_at unless the booking is
// already paid, then returns the stored row.  The booking row lock serializes it
// with a concurrent reclaim.
func (r *BookingRepo) MarkPaid(ctx context.Context, id uint64, at time.Time) (*model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := r.LockTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !b.Paid {
		if _, err := tx.ExecContext(ctx, `UPDATE bookings SET paid = 1, modified_at = ? WHERE id = ? AND paid = 0`, at, id); err != nil {
			return nil, classify(err)
		}
		b.Paid = true
		b.ModifiedAt = at
	}
	if err := tx.Commit(); err != nil {
		return nil, classify(err)
	}
	committed = true
	return b, nil
}

// ListExpired returns IDs of unpaid bookings last modified at or before
// cutoff, oldest first.
func (r *BookingRepo) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	q := `SELECT id FROM bookings WHERE paid = 0 AND modified_at <= ? ORDER BY modified_at, id`
	args := []any{cutoff}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
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
