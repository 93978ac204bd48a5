package queue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLine(t *testing.T) {
	line := FormatLine(Event{
		Type:        EventBookingCreated,
		BookingID:   7,
		BookingUUID: "b-uuid",
		TicketIDs:   []uint64{1, 3},
		Price:       "25.00",
		OccurredAt:  "2026-01-02T03:04:05Z",
	})
	assert.Equal(t, "[2026-01-02T03:04:05Z] booking.created | booking_id=7 | booking_uuid=b-uuid | price=25.00 | tickets=[1,3]\n", line)

	line = FormatLine(Event{Type: EventBookingReclaimed, BookingID: 7, Count: 2, OccurredAt: "t"})
	assert.Equal(t, "[t] booking.reclaimed | booking_id=7 | count=2\n", line)
}

func TestAuditConsumerHandleAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "booking.log")
	c := NewAuditConsumer("amqp://unused", path, zerolog.Nop())

	require.NoError(t, c.Handle([]byte(`{"type":"inventory.generated","show_id":4,"count":12,"occurred_at":"t1"}`)))
	require.NoError(t, c.Handle([]byte(`{"type":"booking.paid","booking_id":9,"occurred_at":"t2"}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"[t1] inventory.generated | show_id=4 | count=12\n[t2] booking.paid | booking_id=9\n",
		string(data))
}

func TestAuditConsumerRejectsBadPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "booking.log")
	c := NewAuditConsumer("amqp://unused", path, zerolog.Nop())

	assert.Error(t, c.Handle([]byte("not json")))
	assert.Error(t, c.Handle([]byte(`{"booking_id":1}`)))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
