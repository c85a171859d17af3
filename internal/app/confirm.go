package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cimillas/checkin-pay/internal/domain"
)

// Confirmer is the backend confirmation endpoint.
type Confirmer interface {
	Confirm(ctx context.Context, req domain.ConfirmRequest) (domain.ConfirmResponse, error)
}

// RetryPolicy bounds how often a TRANSIENT answer is retried within one attempt.
// Backoff grows linearly: Backoff, 2*Backoff, ...
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

var DefaultRetryPolicy = RetryPolicy{MaxRetries: 2, Backoff: 500 * time.Millisecond}

const defaultWaitTimeout = 5 * time.Second

// OrderContext is everything the confirm flow needs, however the entry adapter
// came by it.
type OrderContext struct {
	Order      domain.Order
	PaymentKey string
}

// confirmFlow is the single decision procedure both entry adapters call.
type confirmFlow struct {
	coord       *Coordinator
	holds       *HoldService
	backend     Confirmer
	classifier  Classifier
	retry       RetryPolicy
	waitTimeout time.Duration
	logger      *log.Logger
}

func (f *confirmFlow) run(ctx context.Context, oc OrderContext, source string) (domain.Result, error) {
	orderID := oc.Order.ID
	if orderID == "" {
		return domain.Result{}, domain.ErrOrderIDRequired
	}
	if oc.PaymentKey == "" {
		return domain.Result{}, domain.ErrTokenRequired
	}

	// An overdue hold must block the order before we try to acquire it. The
	// timer only knows the order checkout attached, so block this one too.
	timer, err := f.holds.Evaluate(ctx, oc.Order.Subject)
	switch {
	case errors.Is(err, domain.ErrHoldNotFound):
	case err != nil:
		return domain.Result{}, err
	case timer.Status == domain.HoldStatusExpired:
		if _, err := f.coord.Block(ctx, orderID); err != nil {
			return domain.Result{}, err
		}
	}

	acq, err := f.coord.Acquire(ctx, orderID)
	if err != nil {
		return domain.Result{}, err
	}
	f.logger.Printf("confirm order_id=%s source=%s acquire=%s attempts=%d", orderID, source, acq.Status, acq.Record.Attempts)

	switch acq.Status {
	case domain.AcquireAlreadyDone:
		if err := f.holds.Clear(ctx, oc.Order.Subject); err != nil {
			f.logger.Printf("confirm order_id=%s clear hold failed: %v", orderID, err)
		}
		return success(orderID, 0), nil
	case domain.AcquireBlocked:
		return failure(orderID, domain.ReasonHoldExpired, domain.ErrHoldExpired.Error(), true, 0), nil
	case domain.AcquireRejected:
		return storedFailure(acq.Record), nil
	case domain.AcquireAlreadyInFlight:
		return f.await(ctx, orderID)
	}

	return f.settle(context.WithoutCancel(ctx), oc, source)
}

// await follows another request's attempt instead of starting a second one.
func (f *confirmFlow) await(ctx context.Context, orderID string) (domain.Result, error) {
	rec, err := f.coord.WaitForCompletion(ctx, orderID, f.waitTimeout)
	if errors.Is(err, domain.ErrWaitTimeout) {
		return domain.Result{OrderID: orderID, View: domain.ViewVerifying}, nil
	}
	if err != nil {
		return domain.Result{}, err
	}
	if rec.State == domain.ConfirmProcessed {
		return success(orderID, 0), nil
	}
	return storedFailure(rec), nil
}

// storedFailure renders a FAILED record the way its holder rendered it.
func storedFailure(rec domain.ConfirmationRecord) domain.Result {
	if rec.Rejected() {
		return failure(rec.OrderID, domain.ReasonRejected, rec.LastError, false, 0)
	}
	return failure(rec.OrderID, domain.ReasonUnavailable, rec.LastError, true, 0)
}

// settle owns the order until Complete. It runs detached from the request so a
// client that goes away cannot strand an accepted payment as IN_FLIGHT.
func (f *confirmFlow) settle(ctx context.Context, oc OrderContext, source string) (domain.Result, error) {
	order := oc.Order
	req := domain.ConfirmRequest{
		OrderID:     order.ID,
		PaymentKey:  oc.PaymentKey,
		Amount:      order.Amount,
		Components:  order.Components,
		SubjectID:   order.Subject.ID,
		SubjectType: order.Subject.Type,
	}

	var (
		resp  domain.ConfirmResponse
		class ResponseClass
		calls int
	)
	for attempt := 0; ; attempt++ {
		var callErr error
		resp, callErr = f.backend.Confirm(ctx, req)
		calls++
		class = f.classifier.Classify(resp, callErr)
		if class != ClassTransient || attempt >= f.retry.MaxRetries {
			if callErr != nil {
				resp.Message = callErr.Error()
			}
			break
		}

		delay := f.retry.Backoff * time.Duration(attempt+1)
		f.logger.Printf("confirm order_id=%s transient status=%d err=%v retry_in=%s", order.ID, resp.StatusCode, callErr, delay)
		select {
		case <-ctx.Done():
			return domain.Result{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	f.logger.Printf("confirm order_id=%s source=%s class=%s calls=%d", order.ID, source, class, calls)

	if class.Success() {
		if _, err := f.coord.Complete(ctx, order.ID, domain.OutcomeAccepted, ""); err != nil {
			return domain.Result{}, err
		}
		if err := f.holds.Clear(ctx, order.Subject); err != nil {
			f.logger.Printf("confirm order_id=%s clear hold failed: %v", order.ID, err)
		}
		return success(order.ID, calls), nil
	}

	outcome, reason, retryable := domain.OutcomeRejected, domain.ReasonRejected, false
	lastErr := resp.Message
	if class == ClassTransient {
		outcome, reason, retryable = domain.OutcomeFailed, domain.ReasonUnavailable, true
		if lastErr == "" {
			lastErr = domain.ErrTransientExhausted.Error()
		}
	} else if lastErr == "" {
		lastErr = domain.ErrRejected.Error()
	}

	rec, err := f.coord.Complete(ctx, order.ID, outcome, lastErr)
	switch {
	case errors.Is(err, domain.ErrNotInFlight):
		f.logger.Printf("confirm order_id=%s complete skipped state=%s", order.ID, rec.State)
	case err != nil:
		return domain.Result{}, err
	case rec.State == domain.ConfirmProcessed:
		// Another path confirmed the order while we were talking to the backend.
		return success(order.ID, calls), nil
	}
	return failure(order.ID, reason, lastErr, retryable, calls), nil
}

func success(orderID string, calls int) domain.Result {
	return domain.Result{OrderID: orderID, View: domain.ViewSuccess, BackendCalls: calls}
}

func failure(orderID, reason, message string, retryable bool, calls int) domain.Result {
	return domain.Result{
		OrderID:      orderID,
		View:         domain.ViewFailure,
		Reason:       reason,
		Message:      message,
		Retryable:    retryable,
		BackendCalls: calls,
	}
}
