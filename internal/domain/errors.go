package domain

import "errors"

var (
	ErrOrderIDRequired     = errors.New("order id required")
	ErrTokenRequired       = errors.New("provider transaction token required")
	ErrInvalidSubject      = errors.New("invalid subject")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrAmountMismatch      = errors.New("amount mismatch")
	ErrOrderNotFound       = errors.New("order not found")
	ErrHoldNotFound        = errors.New("hold not found")
	ErrHoldExpired         = errors.New("hold expired")
	ErrIdempotencyConflict = errors.New("idempotency conflict")
	ErrRejected            = errors.New("payment rejected")
	ErrTransientExhausted  = errors.New("payment confirmation unavailable")
	ErrWaitTimeout         = errors.New("timed out waiting for confirmation")
	ErrNotInFlight         = errors.New("confirmation not in flight")
)
