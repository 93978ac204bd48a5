// Package jobs runs the engine's deferred work: inventory generation
// after a show is created and lease reclaims after a booking is made.
// Tasks are delivered at least once, so every handler must be idempotent.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind selects the handler of a task.
type Kind string

const (
	KindGenerateInventory Kind = "inventory.generate"
	KindReclaimBooking    Kind = "booking.reclaim"
)

// Task is one unit of deferred work.  It is not handed to a worker
// before NotBefore.
type Task struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	ShowID    uint64    `json:"show_id,omitempty"`
	BookingID uint64    `json:"booking_id,omitempty"`
	NotBefore time.Time `json:"not_before"`
	Attempt   int       `json:"attempt"`
	LastError string    `json:"last_error,omitempty"`
}

func (t Task) String() string {
	switch t.Kind {
	case KindGenerateInventory:
		return fmt.Sprintf("%s(show=%d)", t.Kind, t.ShowID)
	case KindReclaimBooking:
		return fmt.Sprintf("%s(booking=%d)", t.Kind, t.BookingID)
	}
	return string(t.Kind)
}

// ErrNoTask is returned by Dequeue when no task is due.
var ErrNoTask = errors.New("no task due")

// Queue is a delayed task queue with visibility timeouts.
type Queue interface {
	// Enqueue stores t to become due at t.NotBefore.  Enqueueing a task
	// that is being processed replaces it, which is how retries are
	// scheduled.
	Enqueue(ctx context.Context, t Task) error
	// Dequeue hands out the earliest due task and hides it from other
	// consumers until the visibility timeout elapses.
	Dequeue(ctx context.Context) (Task, error)
	// Ack removes a processed task.
	Ack(ctx context.Context, t Task) error
	// Bury moves a task that will never succeed to the dead letter list.
	Bury(ctx context.Context, t Task, reason string) error
	// Requeue makes tasks whose visibility timeout elapsed due again and
	// returns how many were recovered.
	Requeue(ctx context.Context) (int, error)
}

// Handler processes one task kind.
type Handler interface {
	Handle(ctx context.Context, t Task) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, t Task) error

func (f HandlerFunc) Handle(ctx context.Context, t Task) error { return f(ctx, t) }

// DeferError asks the pool to run the task again at At without counting
// the attempt as a failure.
type DeferError struct {
	At time.Time
}

func (e *DeferError) Error() string { return "deferred until " + e.At.Format(time.RFC3339) }

// Defer returns a *DeferError for at.
func Defer(at time.Time) error { return &DeferError{At: at} }

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the task is buried at once.
func Permanent(err error) error { return &permanentError{err: err} }

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
