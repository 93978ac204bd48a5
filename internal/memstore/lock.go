package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/cinema-ticket-engine/internal/reservation"
)

// rowLock is an exclusive row lock whose acquisition honours context
// cancellation and an optional wait timeout.
type rowLock chan struct{}

func newRowLock() rowLock { return make(rowLock, 1) }

func (l rowLock) lock(ctx context.Context, timeout time.Duration) error {
	select {
	case l <- struct{}{}:
		return nil
	default:
	}
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		return fmt.Errorf("%w: lock wait timeout exceeded", reservation.ErrTransient)
	}
}

func (l rowLock) unlock() { <-l }
