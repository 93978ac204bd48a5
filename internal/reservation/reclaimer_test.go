package reservation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-engine/internal/queue"
	"github.com/iliyamo/cinema-ticket-engine/internal/reservation"
)

const lease = 100 * time.Second

func TestReclaimBeforeLeaseIsNotDue(t *testing.T) {
	e := newEnv(t, reservation.Options{LeaseWindow: lease}, "10", "1", "1")
	ctx := context.Background()
	b, err := e.coord.Reserve(ctx, []uint64{e.ticketID(0), e.ticketID(1)})
	require.NoError(t, err)

	e.clock.Advance(lease - time.Second)
	res, err := e.reclaimer.Reclaim(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.NotDue, res.Outcome)
	assert.Equal(t, b.CreatedAt.Add(lease), res.RetryAt)

	_, err = e.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, *e.owner(t, e.ticketID(0)))
}

func TestReclaimAfterLeaseReleasesTickets(t *testing.T) {
	e := newEnv(t, reservation.Options{LeaseWindow: lease}, "10", "1", "1", "1.5")
	ctx := context.Background()
	b, err := e.coord.Reserve(ctx, []uint64{e.ticketID(0), e.ticketID(2)})
	require.NoError(t, err)

	e.clock.Advance(lease)
	res, err := e.reclaimer.Reclaim(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.Reclaimed, res.Outcome)
	assert.EqualValues(t, 2, res.Released)

	_, err = e.store.GetBooking(ctx, b.ID)
	assert.ErrorIs(t, err, reservation.ErrNotFound)
	for _, tk := range e.tickets {
		assert.Nil(t, e.owner(t, tk.ID))
	}
	assert.Contains(t, e.events.types(), queue.EventBookingReclaimed)

	// Released tickets can be booked again.
	_, err = e.coord.Reserve(ctx, []uint64{e.ticketID(0), e.ticketID(2)})
	require.NoError(t, err)
}

func TestReclaimTwiceNeverTouchesNewerBooking(t *testing.T) {
	e := newEnv(t, reservation.Options{LeaseWindow: lease}, "10", "1", "1")
	ctx := context.Background()
	ids := []uint64{e.ticketID(0), e.ticketID(1)}

	old, err := e.coord.Reserve(ctx, ids)
	require.NoError(t, err)
	e.clock.Advance(lease)
	_, err = e.reclaimer.Reclaim(ctx, old.ID)
	require.NoError(t, err)

	fresh, err := e.coord.Reserve(ctx, ids)
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, fresh.ID)

	// A duplicate delivery of the old reclaim job.
	e.clock.Advance(lease)
	_, err = e.reclaimer.Reclaim(ctx, old.ID)
	assert.ErrorIs(t, err, reservation.ErrAlreadySettled)
	for _, id := range ids {
		assert.Equal(t, fresh.ID, *e.owner(t, id))
	}
}

func TestReclaimSkipsPaidBooking(t *testing.T) {
	e := newEnv(t, reservation.Options{LeaseWindow: lease}, "10", "1")
	ctx := context.Background()
	b, err := e.coord.Reserve(ctx, []uint64{e.ticketID(0)})
	require.NoError(t, err)

	e.clock.Advance(lease / 2)
	paid, err := e.payments.MarkPaid(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, paid.Paid)
	assert.Equal(t, e.clock.Now(), paid.ModifiedAt)

	e.clock.Advance(10 * lease)
	_, err = e.reclaimer.Reclaim(ctx, b.ID)
	assert.ErrorIs(t, err, reservation.ErrAlreadySettled)

	stored, err := e.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, stored.Paid)
	assert.Equal(t, b.ID, *e.owner(t, e.ticketID(0)))
}

func TestMarkPaid(t *testing.T) {
	e := newEnv(t, reservation.Options{}, "10", "1")
	ctx := context.Background()

	_, err := e.payments.MarkPaid(ctx, 404)
	assert.ErrorIs(t, err, reservation.ErrNotFound)

	b, err := e.coord.Reserve(ctx, []uint64{e.ticketID(0)})
	require.NoError(t, err)
	first, err := e.payments.MarkPaid(ctx, b.ID)
	require.NoError(t, err)
	e.clock.Advance(time.Minute)
	again, err := e.payments.MarkPaid(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, again.Paid)
	assert.Equal(t, first.ModifiedAt, again.ModifiedAt)
	assert.Equal(t, []uint64{e.ticketID(0)}, again.TicketIDs)
	assert.Contains(t, e.events.types(), queue.EventBookingPaid)
}

func TestPaymentRacingReclaimIsConsistent(t *testing.T) {
	for i := 0; i < 30; i++ {
		e := newEnv(t, reservation.Options{LeaseWindow: lease}, "10", "1", "1")
		ctx := context.Background()
		b, err := e.coord.Reserve(ctx, []uint64{e.ticketID(0), e.ticketID(1)})
		require.NoError(t, err)
		e.clock.Advance(lease)

		var wg sync.WaitGroup
		var payErr, reclaimErr error
		wg.Add(2)
		go func() { defer wg.Done(); _, payErr = e.payments.MarkPaid(ctx, b.ID) }()
		go func() { defer wg.Done(); _, reclaimErr = e.reclaimer.Reclaim(ctx, b.ID) }()
		wg.Wait()

		stored, getErr := e.store.GetBooking(ctx, b.ID)
		if payErr == nil {
			require.NoError(t, getErr)
			assert.True(t, stored.Paid)
			assert.True(t, errors.Is(reclaimErr, reservation.ErrAlreadySettled))
			assert.Equal(t, b.ID, *e.owner(t, e.ticketID(0)))
		} else {
			assert.ErrorIs(t, payErr, reservation.ErrNotFound)
			assert.NoError(t, reclaimErr)
			assert.ErrorIs(t, getErr, reservation.ErrNotFound)
			assert.Nil(t, e.owner(t, e.ticketID(0)))
			assert.Nil(t, e.owner(t, e.ticketID(1)))
		}
	}
}

func TestSweepExpiredReclaimsOnlyLapsedUnpaid(t *testing.T) {
	e := newEnv(t, reservation.Options{LeaseWindow: lease}, "10", "1", "1", "1")
	ctx := context.Background()

	lapsed, err := e.coord.Reserve(ctx, []uint64{e.ticketID(0)})
	require.NoError(t, err)
	paid, err := e.coord.Reserve(ctx, []uint64{e.ticketID(1)})
	require.NoError(t, err)
	_, err = e.payments.MarkPaid(ctx, paid.ID)
	require.NoError(t, err)

	e.clock.Advance(lease)
	fresh, err := e.coord.Reserve(ctx, []uint64{e.ticketID(2)})
	require.NoError(t, err)

	n, err := e.reclaimer.SweepExpired(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = e.store.GetBooking(ctx, lapsed.ID)
	assert.ErrorIs(t, err, reservation.ErrNotFound)
	_, err = e.store.GetBooking(ctx, paid.ID)
	assert.NoError(t, err)
	_, err = e.store.GetBooking(ctx, fresh.ID)
	assert.NoError(t, err)

	n, err = e.reclaimer.SweepExpired(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}
