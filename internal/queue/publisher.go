package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher publishes events to QueueName over a single long-lived AMQP
// channel.  The connection is opened on first use and reopened after it
// breaks.  Dials run outside the lock and are bounded by DialTimeout and
// the caller's deadline, so a blackholed broker never queues publishers
// behind one another.  Errors are logged and returned so callers can
// ignore them without interrupting the main request flow.
type Publisher struct {
	url string
	log zerolog.Logger

	// DialTimeout bounds connection setup.  Zero means 3s.
	DialTimeout time.Duration

	dial func(ctx context.Context) (*amqp.Connection, *amqp.Channel, error)

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url string, log zerolog.Logger) *Publisher {
	p := &Publisher{url: url, log: log}
	p.dial = p.dialBroker
	return p
}

func (p *Publisher) dialTimeout(ctx context.Context) time.Duration {
	d := p.DialTimeout
	if d <= 0 {
		d = 3 * time.Second
	}
	if dl, ok := ctx.Deadline(); ok {
		d = min(d, time.Until(dl))
	}
	return max(d, time.Millisecond)
}

func (p *Publisher) dialBroker(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Dial:      amqp.DefaultDial(p.dialTimeout(ctx)),
		Heartbeat: 10 * time.Second,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare queue: %w", err)
	}
	return conn, ch, nil
}

// channel returns the open channel, dialing without holding p.mu when
// there is none.  When two publishers dial at once the first to finish
// wins and the other connection is closed.
func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
	p.mu.Lock()
	if p.ch != nil && !p.ch.IsClosed() {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	p.mu.Unlock()

	conn, ch, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil && !p.ch.IsClosed() {
		_ = ch.Close()
		_ = conn.Close()
		return p.ch, nil
	}
	p.resetLocked()
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil && !p.conn.IsClosed() {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// Publish sends ev as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ch, err := p.channel(ctx)
	if err != nil {
		p.log.Warn().Err(err).Str("event", ev.Type).Msg("broker unavailable")
		return err
	}
	err = ch.PublishWithContext(ctx, "", QueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	})
	if err != nil {
		p.log.Warn().Err(err).Str("event", ev.Type).Msg("publish failed")
		if errors.Is(err, amqp.ErrClosed) {
			p.mu.Lock()
			if p.ch == ch {
				p.resetLocked()
			}
			p.mu.Unlock()
		}
		return err
	}
	return nil
}

// Close shuts the underlying connection down.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}

// NopPublisher drops every event.  It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
