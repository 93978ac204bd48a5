package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// AuditConsumer appends one line per domain event to a log file.
type AuditConsumer struct {
	url     string
	logPath string
	log     zerolog.Logger
}

// NewAuditConsumer returns a consumer writing to logPath, typically
// logs/booking.log.
func NewAuditConsumer(url, logPath string, log zerolog.Logger) *AuditConsumer {
	return &AuditConsumer{url: url, logPath: logPath, log: log}
}

// Run connects to the broker and consumes QueueName until ctx is done,
// reconnecting with exponential backoff whenever the connection drops.
// Undecodable messages are rejected without requeue so they cannot loop.
func (c *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("dial broker failed")
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn().Err(err).Msg("consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn().Err(err).Msg("set QoS failed")
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				c.log.Error().Err(err).Msg("handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message body and appends it to the audit log.
func (c *AuditConsumer) Handle(body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders ev as a single human friendly log line.
func FormatLine(ev Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", ev.OccurredAt, ev.Type)
	if ev.BookingID != 0 {
		fmt.Fprintf(&b, " | booking_id=%d", ev.BookingID)
	}
	if ev.BookingUUID != "" {
		fmt.Fprintf(&b, " | booking_uuid=%s", ev.BookingUUID)
	}
	if ev.ShowID != 0 {
		fmt.Fprintf(&b, " | show_id=%d", ev.ShowID)
	}
	if ev.Price != "" {
		fmt.Fprintf(&b, " | price=%s", ev.Price)
	}
	if ev.Type != EventBookingCreated && ev.Type != EventBookingPaid {
		fmt.Fprintf(&b, " | count=%d", ev.Count)
	}
	if len(ev.TicketIDs) > 0 {
		ids := make([]string, len(ev.TicketIDs))
		for i, id := range ev.TicketIDs {
			ids[i] = strconv.FormatUint(id, 10)
		}
		fmt.Fprintf(&b, " | tickets=[%s]", strings.Join(ids, ","))
	}
	b.WriteByte('\n')
	return b.String()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
