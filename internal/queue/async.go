package queue

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ErrBufferFull is returned when the async publisher cannot accept more
// events.  The event is dropped.
var ErrBufferFull = errors.New("event buffer full")

// AsyncPublisher hands events to a background goroutine so a slow or
// unreachable broker never adds latency to the caller.  Publish only
// enqueues; Run delivers.
type AsyncPublisher struct {
	next    EventPublisher
	events  chan Event
	timeout time.Duration
	log     zerolog.Logger
}

// NewAsyncPublisher buffers up to size events and gives each delivery
// at most timeout.
func NewAsyncPublisher(next EventPublisher, size int, timeout time.Duration, log zerolog.Logger) *AsyncPublisher {
	if size <= 0 {
		size = 1024
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AsyncPublisher{next: next, events: make(chan Event, size), timeout: timeout, log: log}
}

// Publish never blocks.  ctx is not used for delivery since the request
// that produced the event is usually finished by then.
func (a *AsyncPublisher) Publish(_ context.Context, ev Event) error {
	select {
	case a.events <- ev:
		return nil
	default:
		a.log.Warn().Str("event", ev.Type).Uint64("booking_id", ev.BookingID).Msg("event dropped, buffer full")
		return ErrBufferFull
	}
}

// Run delivers buffered events until ctx is done, then flushes what is
// left with one more timeout budget.
func (a *AsyncPublisher) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-a.events:
			a.deliver(ctx, ev)
		case <-ctx.Done():
			flush, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
			defer cancel()
			for {
				select {
				case ev := <-a.events:
					if flush.Err() != nil {
						return nil
					}
					a.deliver(flush, ev)
				default:
					return nil
				}
			}
		}
	}
}

// deliver is not cut short by shutdown; the timeout bounds it.
func (a *AsyncPublisher) deliver(ctx context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()
	if err := a.next.Publish(ctx, ev); err != nil {
		a.log.Warn().Err(err).Str("event", ev.Type).Uint64("booking_id", ev.BookingID).Msg("event not delivered")
	}
}
