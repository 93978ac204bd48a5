// Package reservation implements the ticket inventory engine: generating
// a show's tickets, atomically reserving a set of tickets into a booking
// and reclaiming bookings that stay unpaid past their lease window.
package reservation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors.  Typed errors below wrap them so callers can use
// errors.Is for classification and errors.As for details.
var (
	// ErrNotFound is returned when a show, ticket or booking does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when at least one requested ticket is already claimed.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput is returned for an empty or duplicated ticket set.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadySettled is returned by the reclaimer when the booking is paid
	// or gone.  It is an internal no-op signal and never reaches clients.
	ErrAlreadySettled = errors.New("already settled")
	// ErrTransient signals that the store could not complete the claim
	// (lock timeout, deadlock, lost guard) and the whole call was rolled back.
	ErrTransient = errors.New("transient failure, retry")
)

// ConflictError enumerates the requested tickets that are already claimed.
type ConflictError struct {
	AlreadyClaimed []uint64
}

func (e *ConflictError) Error() string {
	return "tickets already claimed: " + joinIDs(e.AlreadyClaimed)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// MissingError enumerates requested tickets that do not exist (yet).
// Tickets of a freshly created show are missing until its inventory has
// been generated.
type MissingError struct {
	Missing []uint64
}

func (e *MissingError) Error() string {
	return "tickets not found: " + joinIDs(e.Missing)
}

func (e *MissingError) Unwrap() error { return ErrNotFound }

// InputError describes why a ticket set was rejected before touching the store.
type InputError struct {
	Reason     string
	Duplicates []uint64
}

func (e *InputError) Error() string {
	if len(e.Duplicates) > 0 {
		return fmt.Sprintf("%s: %s", e.Reason, joinIDs(e.Duplicates))
	}
	return e.Reason
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func joinIDs(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(id, 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
