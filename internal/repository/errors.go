// Package repository contains the MySQL data access layer.  Errors are
// translated into the reservation error taxonomy so that handlers and
// the engine can classify them without knowing about the driver.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cinema-ticket-engine/internal/reservation"
)

// MySQL server error numbers the repository reacts to.
const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
	errDuplicateEntry  = 1062
	errNoReferencedRow = 1452
	errRowIsReferenced = 1451
)

// classify wraps driver errors with the matching reservation sentinel.
// Deadlocks and lock wait timeouts become ErrTransient so the claim can
// be retried; foreign key failures become ErrInvalidInput and unique key
// violations ErrConflict.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case errDeadlock, errLockWaitTimeout:
		return fmt.Errorf("%w: %s", reservation.ErrTransient, me.Message)
	case errNoReferencedRow:
		return fmt.Errorf("%w: unknown reference: %s", reservation.ErrInvalidInput, me.Message)
	case errDuplicateEntry, errRowIsReferenced:
		return fmt.Errorf("%w: %s", reservation.ErrConflict, me.Message)
	}
	return err
}

// notFound maps sql.ErrNoRows to reservation.ErrNotFound.
func notFound(err error, kind string, id uint64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", kind, id, reservation.ErrNotFound)
	}
	return classify(err)
}

// placeholders returns "?,?,...,?" with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func idArgs(ids []uint64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
