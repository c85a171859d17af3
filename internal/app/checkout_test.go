package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cimillas/checkin-pay/internal/domain"
)

func TestCheckoutService_Begin(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the order once", func(t *testing.T) {
		env := newTestEnv(newFakeBackend())

		order, err := env.checkout(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "DINING_1700000000_42", order.ID)
		assert.Equal(t, int64(45000), order.Amount)

		env.clock.Advance(10 * time.Second)
		res, err := env.svc.BeginCheckout(ctx, "s1", BeginInput{Subject: dining42, Amount: 45000})
		require.NoError(t, err)
		assert.False(t, res.Created)
		assert.Equal(t, order.ID, res.Order.ID)
	})

	t.Run("conflicting amount", func(t *testing.T) {
		env := newTestEnv(newFakeBackend())
		_, err := env.checkout(ctx, "s1")
		require.NoError(t, err)

		_, err = env.svc.BeginCheckout(ctx, "s1", BeginInput{Subject: dining42, Amount: 46000})
		assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)
	})

	t.Run("requires a running hold", func(t *testing.T) {
		env := newTestEnv(newFakeBackend())

		_, err := env.svc.BeginCheckout(ctx, "s1", BeginInput{Subject: dining42, Amount: 45000})
		assert.ErrorIs(t, err, domain.ErrHoldNotFound)

		_, err = env.svc.EnterHold(ctx, "s1", dining42)
		require.NoError(t, err)
		env.clock.Advance(601 * time.Second)

		_, err = env.svc.BeginCheckout(ctx, "s1", BeginInput{Subject: dining42, Amount: 45000})
		assert.ErrorIs(t, err, domain.ErrHoldExpired)
	})

	t.Run("validates amounts", func(t *testing.T) {
		env := newTestEnv(newFakeBackend())
		_, err := env.svc.EnterHold(ctx, "s1", dining42)
		require.NoError(t, err)

		_, err = env.svc.BeginCheckout(ctx, "s1", BeginInput{Subject: dining42, Amount: 0})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)

		_, err = env.svc.BeginCheckout(ctx, "s1", BeginInput{
			Subject:    dining42,
			Amount:     45000,
			Components: domain.PaymentComponents{Cash: 100},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	t.Run("a new hold after expiry gets a new order", func(t *testing.T) {
		env := newTestEnv(newFakeBackend())
		first, err := env.checkout(ctx, "s1")
		require.NoError(t, err)

		env.clock.Advance(700 * time.Second)
		second, err := env.checkout(ctx, "s1")
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})
}
