package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/checkin-pay/internal/clock"
	"github.com/cimillas/checkin-pay/internal/domain"
	"github.com/cimillas/checkin-pay/internal/storage"
)

// CheckoutService turns a running hold into an Order, once.
type CheckoutService struct {
	store storage.Store
	holds *HoldService
	clock clock.Clock
}

func NewCheckoutService(store storage.Store, holds *HoldService, clk clock.Clock) *CheckoutService {
	return &CheckoutService{
		store: store,
		holds: holds,
		clock: clk,
	}
}

type BeginInput struct {
	Subject    domain.Subject
	Amount     int64
	Components domain.PaymentComponents
}

type BeginResult struct {
	Order   domain.Order
	Created bool
}

// Begin returns the order attached to the subject's hold, creating it on first
// call. A retry after a failed attempt gets the same order ID back.
func (s *CheckoutService) Begin(ctx context.Context, in BeginInput) (BeginResult, error) {
	if err := in.Subject.Validate(); err != nil {
		return BeginResult{}, err
	}
	if in.Amount <= 0 {
		return BeginResult{}, domain.ErrInvalidAmount
	}
	if !in.Components.IsZero() && in.Components.Total() != in.Amount {
		return BeginResult{}, domain.ErrInvalidAmount
	}

	timer, err := s.holds.Evaluate(ctx, in.Subject)
	if err != nil {
		return BeginResult{}, err
	}
	switch timer.Status {
	case domain.HoldStatusExpired:
		return BeginResult{}, domain.ErrHoldExpired
	case domain.HoldStatusCleared:
		return BeginResult{}, domain.ErrHoldNotFound
	}

	if timer.OrderID != "" {
		return s.existing(ctx, timer.OrderID, in)
	}

	now := s.clock.Now()
	order := domain.Order{
		ID:         domain.NewOrderID(in.Subject, now),
		Amount:     in.Amount,
		Components: in.Components,
		Subject:    in.Subject,
		CreatedAt:  now,
	}

	err = storage.UpdateJSON(ctx, s.store, orderKey(order.ID), func(cur domain.Order, found bool) (domain.Order, bool, error) {
		if found {
			return cur, false, domain.ErrIdempotencyConflict
		}
		return order, true, nil
	})
	if err != nil {
		return BeginResult{}, fmt.Errorf("create order %s: %w", order.ID, err)
	}

	if _, err := s.holds.AttachOrder(ctx, in.Subject, order.ID); err != nil {
		// Another request attached its order first; answer with that one.
		if errors.Is(err, domain.ErrIdempotencyConflict) {
			_ = s.store.Delete(ctx, orderKey(order.ID))
			timer, err := s.holds.Get(ctx, in.Subject)
			if err != nil {
				return BeginResult{}, err
			}
			return s.existing(ctx, timer.OrderID, in)
		}
		_ = s.store.Delete(ctx, orderKey(order.ID))
		return BeginResult{}, err
	}

	return BeginResult{Order: order, Created: true}, nil
}

func (s *CheckoutService) existing(ctx context.Context, orderID string, in BeginInput) (BeginResult, error) {
	order, err := s.LoadOrder(ctx, orderID)
	if err != nil {
		return BeginResult{}, err
	}
	if order.Amount != in.Amount || (!in.Components.IsZero() && order.Components != in.Components) {
		return BeginResult{}, domain.ErrIdempotencyConflict
	}
	return BeginResult{Order: order, Created: false}, nil
}

// LoadOrder reads the persisted order context.
func (s *CheckoutService) LoadOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}
	order, found, err := storage.GetJSON[domain.Order](ctx, s.store, orderKey(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	if !found {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}
