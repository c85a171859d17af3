package app

import (
	"context"
	"errors"

	"github.com/cimillas/checkin-pay/internal/clock"
	"github.com/cimillas/checkin-pay/internal/domain"
	"github.com/cimillas/checkin-pay/internal/storage"
)

// WidgetResult is what the payment widget hands back in-page. It carries the
// whole order context.
type WidgetResult struct {
	Order          domain.Order
	PaymentKey     string
	Succeeded      bool
	FailureCode    string
	FailureMessage string
}

// WidgetCallbackAdapter confirms payments reported by the embedded widget.
type WidgetCallbackAdapter struct {
	checkout *CheckoutService
	flow     *confirmFlow
}

func (a *WidgetCallbackAdapter) Handle(ctx context.Context, in WidgetResult) (domain.Result, error) {
	if in.Order.ID == "" {
		return domain.Result{}, domain.ErrOrderIDRequired
	}
	if !in.Succeeded {
		return failure(in.Order.ID, domain.ReasonWidgetFailed, failureText(in.FailureCode, in.FailureMessage), true, 0), nil
	}
	if err := in.Order.Validate(); err != nil {
		return domain.Result{}, err
	}
	// The page's copy of the order must match the one checkout persisted.
	stored, err := a.checkout.LoadOrder(ctx, in.Order.ID)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
	case err != nil:
		return domain.Result{}, err
	case stored.Amount != in.Order.Amount:
		return failure(in.Order.ID, domain.ReasonAmountMismatch, domain.ErrAmountMismatch.Error(), false, 0), nil
	default:
		in.Order = stored
	}
	return a.flow.run(ctx, OrderContext{Order: in.Order, PaymentKey: in.PaymentKey}, "widget")
}

// RedirectReturnAdapter handles the provider sending the user back to us. The
// query parameters are persisted by Consume and the rest of the work happens in
// Resume, from the store alone.
type RedirectReturnAdapter struct {
	store    storage.Store
	checkout *CheckoutService
	coord    *Coordinator
	flow     *confirmFlow
	clock    clock.Clock
}

// Consume saves the provider's parameters so they can be stripped from the URL.
func (a *RedirectReturnAdapter) Consume(ctx context.Context, params domain.ReturnParams) (string, error) {
	if params.OrderID == "" {
		return "", domain.ErrOrderIDRequired
	}
	if params.PaymentKey == "" && !params.Failed() {
		return "", domain.ErrTokenRequired
	}
	params.ReceivedAt = a.clock.Now()
	if err := storage.PutJSON(ctx, a.store, returnKey(params.OrderID), params); err != nil {
		return "", err
	}
	return params.OrderID, nil
}

// Resume rebuilds the order context and runs the shared confirm flow. A refresh
// lands on ALREADY_DONE without calling the backend.
func (a *RedirectReturnAdapter) Resume(ctx context.Context, orderID string) (domain.Result, error) {
	order, err := a.checkout.LoadOrder(ctx, orderID)
	if err != nil {
		return domain.Result{}, err
	}

	params, found, err := storage.GetJSON[domain.ReturnParams](ctx, a.store, returnKey(orderID))
	if err != nil {
		return domain.Result{}, err
	}
	if !found {
		return domain.Result{}, domain.ErrTokenRequired
	}

	if params.Failed() {
		rec, found, err := a.coord.Record(ctx, orderID)
		if err != nil {
			return domain.Result{}, err
		}
		if found && rec.State == domain.ConfirmProcessed {
			return success(orderID, 0), nil
		}
		return failure(orderID, domain.ReasonProviderReturned, failureText(params.FailureCode, params.FailureMessage), true, 0), nil
	}

	if params.Amount != nil && *params.Amount != order.Amount {
		return failure(orderID, domain.ReasonAmountMismatch, domain.ErrAmountMismatch.Error(), false, 0), nil
	}

	return a.flow.run(ctx, OrderContext{Order: order, PaymentKey: params.PaymentKey}, "redirect")
}

func failureText(code, message string) string {
	switch {
	case code == "":
		return message
	case message == "":
		return code
	}
	return code + ": " + message
}
