package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cimillas/checkin-pay/internal/clock"
	"github.com/cimillas/checkin-pay/internal/domain"
	"github.com/cimillas/checkin-pay/internal/storage/memory"
)

func newTestCoordinator(opts ...CoordinatorOption) (*Coordinator, *clock.Manual) {
	clk := clock.NewManual(t0)
	return NewCoordinator(memory.New(), clk, opts...), clk
}

func TestCoordinator_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("first caller is granted and marks in flight", func(t *testing.T) {
		c, _ := newTestCoordinator()

		res, err := c.Acquire(ctx, "DINING_1700000000_42")
		require.NoError(t, err)
		assert.Equal(t, domain.AcquireGranted, res.Status)
		assert.Equal(t, domain.ConfirmInFlight, res.Record.State)
		assert.Equal(t, 1, res.Record.Attempts)

		again, err := c.Acquire(ctx, "DINING_1700000000_42")
		require.NoError(t, err)
		assert.Equal(t, domain.AcquireAlreadyInFlight, again.Status)
	})

	t.Run("concurrent callers get exactly one grant", func(t *testing.T) {
		c, _ := newTestCoordinator()

		const n = 32
		statuses := make(chan domain.AcquireStatus, n)
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				res, err := c.Acquire(ctx, "ROOM_1700000000_7")
				if err != nil {
					t.Errorf("acquire: %v", err)
					return
				}
				statuses <- res.Status
			}()
		}
		close(start)
		wg.Wait()
		close(statuses)

		granted := 0
		for s := range statuses {
			if s == domain.AcquireGranted {
				granted++
			} else {
				assert.Equal(t, domain.AcquireAlreadyInFlight, s)
			}
		}
		assert.Equal(t, 1, granted)
	})

	t.Run("processed order is already done", func(t *testing.T) {
		c, _ := newTestCoordinator()
		_, err := c.Acquire(ctx, "o1")
		require.NoError(t, err)
		_, err = c.Complete(ctx, "o1", domain.OutcomeAccepted, "")
		require.NoError(t, err)

		res, err := c.Acquire(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, domain.AcquireAlreadyDone, res.Status)
	})

	t.Run("exhausted order can be granted again", func(t *testing.T) {
		c, _ := newTestCoordinator()
		_, err := c.Acquire(ctx, "o1")
		require.NoError(t, err)
		rec, err := c.Complete(ctx, "o1", domain.OutcomeFailed, "503 service unavailable")
		require.NoError(t, err)
		assert.Equal(t, domain.ReasonUnavailable, rec.FailureReason)

		res, err := c.Acquire(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, domain.AcquireGranted, res.Status)
		assert.Equal(t, 2, res.Record.Attempts)
		assert.Empty(t, res.Record.LastError)
		assert.Empty(t, res.Record.FailureReason)
	})

	t.Run("rejected order is never granted again", func(t *testing.T) {
		c, clk := newTestCoordinator()
		_, err := c.Acquire(ctx, "o1")
		require.NoError(t, err)
		rec, err := c.Complete(ctx, "o1", domain.OutcomeRejected, "card declined")
		require.NoError(t, err)
		assert.Equal(t, domain.ConfirmFailed, rec.State)
		assert.True(t, rec.Rejected())

		clk.Advance(time.Hour)
		res, err := c.Acquire(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, domain.AcquireRejected, res.Status)
		assert.Equal(t, 1, res.Record.Attempts)
		assert.Equal(t, "card declined", res.Record.LastError)
	})

	t.Run("stale in flight marker is re-granted", func(t *testing.T) {
		c, clk := newTestCoordinator(WithStaleAfter(30 * time.Second))
		_, err := c.Acquire(ctx, "o1")
		require.NoError(t, err)

		clk.Advance(29 * time.Second)
		res, err := c.Acquire(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, domain.AcquireAlreadyInFlight, res.Status)

		clk.Advance(time.Second)
		res, err = c.Acquire(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, domain.AcquireGranted, res.Status)
		assert.Equal(t, 2, res.Record.Attempts)
	})

	t.Run("blocked order is not granted", func(t *testing.T) {
		c, _ := newTestCoordinator()
		processed, err := c.Block(ctx, "o1")
		require.NoError(t, err)
		assert.False(t, processed)

		res, err := c.Acquire(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, domain.AcquireBlocked, res.Status)
	})

	t.Run("empty order id", func(t *testing.T) {
		c, _ := newTestCoordinator()
		_, err := c.Acquire(ctx, "")
		assert.ErrorIs(t, err, domain.ErrOrderIDRequired)
	})
}

func TestCoordinator_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted twice is a no-op", func(t *testing.T) {
		c, clk := newTestCoordinator()
		_, err := c.Acquire(ctx, "o1")
		require.NoError(t, err)

		first, err := c.Complete(ctx, "o1", domain.OutcomeAccepted, "")
		require.NoError(t, err)
		clk.Advance(time.Minute)
		second, err := c.Complete(ctx, "o1", domain.OutcomeAccepted, "")
		require.NoError(t, err)

		assert.Equal(t, domain.ConfirmProcessed, second.State)
		require.NotNil(t, second.CompletedAt)
		assert.True(t, first.CompletedAt.Equal(*second.CompletedAt))
	})

	t.Run("processed never regresses", func(t *testing.T) {
		c, _ := newTestCoordinator()
		_, err := c.Acquire(ctx, "o1")
		require.NoError(t, err)
		_, err = c.Complete(ctx, "o1", domain.OutcomeAccepted, "")
		require.NoError(t, err)

		rec, err := c.Complete(ctx, "o1", domain.OutcomeFailed, "late failure")
		require.NoError(t, err)
		assert.Equal(t, domain.ConfirmProcessed, rec.State)
	})

	t.Run("failed requires in flight", func(t *testing.T) {
		c, _ := newTestCoordinator()
		_, err := c.Complete(ctx, "o1", domain.OutcomeFailed, "boom")
		assert.ErrorIs(t, err, domain.ErrNotInFlight)

		_, found, err := c.Record(ctx, "o1")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("late accept after block is recorded", func(t *testing.T) {
		c, _ := newTestCoordinator()
		_, err := c.Acquire(ctx, "o1")
		require.NoError(t, err)
		_, err = c.Block(ctx, "o1")
		require.NoError(t, err)

		rec, err := c.Complete(ctx, "o1", domain.OutcomeAccepted, "")
		require.NoError(t, err)
		assert.Equal(t, domain.ConfirmProcessed, rec.State)

		res, err := c.Acquire(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, domain.AcquireAlreadyDone, res.Status)
	})
}

func TestCoordinator_Block(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCoordinator()

	_, err := c.Acquire(ctx, "o1")
	require.NoError(t, err)
	_, err = c.Complete(ctx, "o1", domain.OutcomeAccepted, "")
	require.NoError(t, err)

	processed, err := c.Block(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, processed)

	rec, _, err := c.Record(ctx, "o1")
	require.NoError(t, err)
	assert.Nil(t, rec.BlockedAt)
}

func TestCoordinator_WaitForCompletion(t *testing.T) {
	ctx := context.Background()

	t.Run("returns once the holder completes", func(t *testing.T) {
		c, _ := newTestCoordinator(WithPollInterval(5 * time.Millisecond))
		_, err := c.Acquire(ctx, "o1")
		require.NoError(t, err)

		go func() {
			time.Sleep(20 * time.Millisecond)
			_, _ = c.Complete(context.Background(), "o1", domain.OutcomeAccepted, "")
		}()

		rec, err := c.WaitForCompletion(ctx, "o1", time.Second)
		require.NoError(t, err)
		assert.Equal(t, domain.ConfirmProcessed, rec.State)
	})

	t.Run("times out while still in flight", func(t *testing.T) {
		c, _ := newTestCoordinator(WithPollInterval(5 * time.Millisecond))
		_, err := c.Acquire(ctx, "o1")
		require.NoError(t, err)

		rec, err := c.WaitForCompletion(ctx, "o1", 30*time.Millisecond)
		assert.ErrorIs(t, err, domain.ErrWaitTimeout)
		assert.Equal(t, domain.ConfirmInFlight, rec.State)
	})
}
