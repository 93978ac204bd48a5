package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingPublisher holds every delivery until release is closed.
type blockingPublisher struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Event
}

func (b *blockingPublisher) Publish(ctx context.Context, ev Event) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, ev)
	return nil
}

func (b *blockingPublisher) delivered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.got)
}

func TestAsyncPublisherNeverBlocksCaller(t *testing.T) {
	next := &blockingPublisher{release: make(chan struct{})}
	a := NewAsyncPublisher(next, 2, time.Second, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	start := time.Now()
	for i := 0; i < 10; i++ {
		_ = a.Publish(context.Background(), Event{Type: EventBookingCreated, BookingID: uint64(i)})
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	// at most one event in flight and two buffered, the rest were dropped
	assert.ErrorIs(t, a.Publish(context.Background(), Event{Type: EventBookingCreated}), ErrBufferFull)

	close(next.release)
	require.Eventually(t, func() bool { return next.delivered() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestAsyncPublisherFlushesOnShutdown(t *testing.T) {
	next := &blockingPublisher{release: make(chan struct{})}
	close(next.release)
	a := NewAsyncPublisher(next, 8, time.Second, zerolog.Nop())
	for i := 0; i < 5; i++ {
		require.NoError(t, a.Publish(context.Background(), Event{Type: EventBookingPaid, BookingID: uint64(i)}))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.Run(ctx))
	assert.Equal(t, 5, next.delivered())
}
