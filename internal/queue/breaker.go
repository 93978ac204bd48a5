package queue

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// EventPublisher is anything that can publish an Event.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// ErrBrokerUnavailable is returned while the breaker is open and events
// are being dropped.
var ErrBrokerUnavailable = errors.New("broker unavailable")

// BreakerPublisher stops calling a failing broker for a cool-down period
// after consecutive failures, so bookings do not pay a dial timeout for
// every event while the broker is down.  Dropped events are logged.
type BreakerPublisher struct {
	next EventPublisher
	cb   *gobreaker.CircuitBreaker
	log  zerolog.Logger
}

// NewBreakerPublisher opens the breaker after failures consecutive
// errors and probes the broker again after cooldown.
func NewBreakerPublisher(next EventPublisher, failures uint32, cooldown time.Duration, log zerolog.Logger) *BreakerPublisher {
	if failures == 0 {
		failures = 5
	}
	b := &BreakerPublisher{next: next, log: log}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "event-publisher",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("breaker state changed")
		},
	})
	return b
}

func (b *BreakerPublisher) Publish(ctx context.Context, ev Event) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Publish(ctx, ev)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.log.Debug().Str("event", ev.Type).Uint64("booking_id", ev.BookingID).Msg("event dropped, breaker open")
		return ErrBrokerUnavailable
	}
	return err
}

// State reports the breaker state, for readiness reporting.
func (b *BreakerPublisher) State() gobreaker.State {
	return b.cb.State()
}
