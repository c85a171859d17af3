package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cimillas/checkin-pay/internal/clock"
	"github.com/cimillas/checkin-pay/internal/domain"
	"github.com/cimillas/checkin-pay/internal/poll"
	"github.com/cimillas/checkin-pay/internal/storage"
)

const (
	defaultStaleAfter   = 60 * time.Second
	defaultPollInterval = 100 * time.Millisecond
)

// Coordinator decides, per order, whether a caller may talk to the backend.
// Its only state is the confirmation record in the persisted store, so two
// requests that never share memory still agree on who goes first.
type Coordinator struct {
	store        storage.Store
	clock        clock.Clock
	staleAfter   time.Duration
	pollInterval time.Duration
}

type CoordinatorOption func(*Coordinator)

// WithStaleAfter bounds how long an IN_FLIGHT marker is honored. The marker is
// advisory: a holder that disappeared mid-flight must not wedge the order.
func WithStaleAfter(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.staleAfter = d
		}
	}
}

// WithPollInterval sets how often WaitForCompletion re-reads the record.
func WithPollInterval(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func NewCoordinator(store storage.Store, clk clock.Clock, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:        store,
		clock:        clk,
		staleAfter:   defaultStaleAfter,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type AcquireResult struct {
	Status domain.AcquireStatus
	Record domain.ConfirmationRecord
}

// Acquire writes IN_FLIGHT before returning GRANTED, inside one store update, so
// any later reader sees ALREADY_IN_FLIGHT.
func (c *Coordinator) Acquire(ctx context.Context, orderID string) (AcquireResult, error) {
	if orderID == "" {
		return AcquireResult{}, domain.ErrOrderIDRequired
	}

	now := c.clock.Now()
	var result AcquireResult

	err := storage.UpdateJSON(ctx, c.store, confirmKey(orderID), func(rec domain.ConfirmationRecord, found bool) (domain.ConfirmationRecord, bool, error) {
		if !found {
			rec = domain.ConfirmationRecord{OrderID: orderID, State: domain.ConfirmUnstarted}
		}

		switch {
		case rec.State == domain.ConfirmProcessed:
			result = AcquireResult{Status: domain.AcquireAlreadyDone, Record: rec}
			return rec, false, nil
		case rec.Rejected():
			result = AcquireResult{Status: domain.AcquireRejected, Record: rec}
			return rec, false, nil
		case rec.BlockedAt != nil:
			result = AcquireResult{Status: domain.AcquireBlocked, Record: rec}
			return rec, false, nil
		case rec.State == domain.ConfirmInFlight && !c.stale(rec, now):
			result = AcquireResult{Status: domain.AcquireAlreadyInFlight, Record: rec}
			return rec, false, nil
		}

		rec.State = domain.ConfirmInFlight
		rec.Attempts++
		rec.AcquiredAt = &now
		rec.CompletedAt = nil
		rec.LastError = ""
		rec.FailureReason = ""
		result = AcquireResult{Status: domain.AcquireGranted, Record: rec}
		return rec, true, nil
	})
	if err != nil {
		return AcquireResult{}, fmt.Errorf("acquire %s: %w", orderID, err)
	}
	return result, nil
}

func (c *Coordinator) stale(rec domain.ConfirmationRecord, now time.Time) bool {
	return rec.AcquiredAt == nil || now.Sub(*rec.AcquiredAt) >= c.staleAfter
}

// WaitForCompletion polls the record until it is PROCESSED or FAILED. It returns
// domain.ErrWaitTimeout with the last seen record when maxWait elapses first.
func (c *Coordinator) WaitForCompletion(ctx context.Context, orderID string, maxWait time.Duration) (domain.ConfirmationRecord, error) {
	if orderID == "" {
		return domain.ConfirmationRecord{}, domain.ErrOrderIDRequired
	}

	var last domain.ConfirmationRecord
	err := poll.Until(ctx, c.pollInterval, maxWait, func(ctx context.Context) (bool, error) {
		rec, found, err := storage.GetJSON[domain.ConfirmationRecord](ctx, c.store, confirmKey(orderID))
		if err != nil {
			return false, err
		}
		if !found {
			return false, nil
		}
		last = rec
		return rec.State.Terminal(), nil
	})
	if errors.Is(err, poll.ErrTimeout) {
		return last, domain.ErrWaitTimeout
	}
	if err != nil {
		return last, fmt.Errorf("wait for %s: %w", orderID, err)
	}
	return last, nil
}

// Complete records what the backend said. ACCEPTED wins from any state that is
// not already PROCESSED, so a late success is never dropped. REJECTED and FAILED
// only apply to an IN_FLIGHT record; PROCESSED never regresses.
func (c *Coordinator) Complete(ctx context.Context, orderID string, outcome domain.Outcome, message string) (domain.ConfirmationRecord, error) {
	if orderID == "" {
		return domain.ConfirmationRecord{}, domain.ErrOrderIDRequired
	}

	now := c.clock.Now()
	var result domain.ConfirmationRecord

	err := storage.UpdateJSON(ctx, c.store, confirmKey(orderID), func(rec domain.ConfirmationRecord, found bool) (domain.ConfirmationRecord, bool, error) {
		if !found {
			rec = domain.ConfirmationRecord{OrderID: orderID, State: domain.ConfirmUnstarted}
		}
		result = rec

		if rec.State == domain.ConfirmProcessed {
			return rec, false, nil
		}

		switch outcome {
		case domain.OutcomeAccepted:
			rec.State = domain.ConfirmProcessed
			rec.LastError = ""
			rec.FailureReason = ""
		case domain.OutcomeRejected, domain.OutcomeFailed:
			if rec.State == domain.ConfirmFailed {
				return rec, false, nil
			}
			if rec.State != domain.ConfirmInFlight {
				return rec, false, domain.ErrNotInFlight
			}
			rec.State = domain.ConfirmFailed
			rec.LastError = message
			rec.FailureReason = domain.ReasonUnavailable
			if outcome == domain.OutcomeRejected {
				rec.FailureReason = domain.ReasonRejected
			}
		default:
			return rec, false, fmt.Errorf("unknown outcome %q", outcome)
		}
		rec.CompletedAt = &now
		result = rec
		return rec, true, nil
	})
	if err != nil {
		return result, fmt.Errorf("complete %s: %w", orderID, err)
	}
	return result, nil
}

// Block stops any further Acquire for the order. It reports processed=true and
// changes nothing when the order already went through.
func (c *Coordinator) Block(ctx context.Context, orderID string) (processed bool, err error) {
	if orderID == "" {
		return false, domain.ErrOrderIDRequired
	}

	now := c.clock.Now()
	err = storage.UpdateJSON(ctx, c.store, confirmKey(orderID), func(rec domain.ConfirmationRecord, found bool) (domain.ConfirmationRecord, bool, error) {
		if !found {
			rec = domain.ConfirmationRecord{OrderID: orderID, State: domain.ConfirmUnstarted}
		}
		if rec.State == domain.ConfirmProcessed {
			processed = true
			return rec, false, nil
		}
		if rec.BlockedAt != nil {
			return rec, false, nil
		}
		rec.BlockedAt = &now
		return rec, true, nil
	})
	if err != nil {
		return false, fmt.Errorf("block %s: %w", orderID, err)
	}
	return processed, nil
}

// Record returns the confirmation record without changing it.
func (c *Coordinator) Record(ctx context.Context, orderID string) (domain.ConfirmationRecord, bool, error) {
	if orderID == "" {
		return domain.ConfirmationRecord{}, false, domain.ErrOrderIDRequired
	}
	return storage.GetJSON[domain.ConfirmationRecord](ctx, c.store, confirmKey(orderID))
}
