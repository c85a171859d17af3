package domain

import "time"

type ConfirmState string

const (
	ConfirmUnstarted ConfirmState = "UNSTARTED"
	ConfirmInFlight  ConfirmState = "IN_FLIGHT"
	ConfirmProcessed ConfirmState = "PROCESSED"
	ConfirmFailed    ConfirmState = "FAILED"
)

// Terminal reports whether a waiter can stop polling.
func (s ConfirmState) Terminal() bool {
	return s == ConfirmProcessed || s == ConfirmFailed
}

// ConfirmationRecord tracks whether an order has been confirmed with the backend.
// Exactly one record exists per order ID in the persisted store.
type ConfirmationRecord struct {
	OrderID     string       `json:"orderId" yaml:"orderId"`
	State       ConfirmState `json:"state" yaml:"state"`
	Attempts    int          `json:"attempts" yaml:"attempts"`
	AcquiredAt  *time.Time   `json:"acquiredAt,omitempty" yaml:"acquiredAt,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
	// BlockedAt is set when the order's hold expired before it was processed.
	BlockedAt *time.Time `json:"blockedAt,omitempty" yaml:"blockedAt,omitempty"`
	LastError string     `json:"lastError,omitempty" yaml:"lastError,omitempty"`
	// FailureReason classifies a FAILED record: ReasonRejected is final for the
	// order, ReasonUnavailable may be acquired again.
	FailureReason string `json:"failureReason,omitempty" yaml:"failureReason,omitempty"`
}

// Rejected reports whether the backend refused the order for good.
func (r ConfirmationRecord) Rejected() bool {
	return r.State == ConfirmFailed && r.FailureReason == ReasonRejected
}

type AcquireStatus string

const (
	AcquireGranted         AcquireStatus = "GRANTED"
	AcquireAlreadyInFlight AcquireStatus = "ALREADY_IN_FLIGHT"
	AcquireAlreadyDone     AcquireStatus = "ALREADY_DONE"
	AcquireBlocked         AcquireStatus = "BLOCKED"
	AcquireRejected        AcquireStatus = "REJECTED"
)

// Outcome is what the caller of Complete learned from the backend.
type Outcome string

const (
	OutcomeAccepted Outcome = "ACCEPTED"
	// OutcomeRejected is final: the order is never sent again.
	OutcomeRejected Outcome = "REJECTED"
	// OutcomeFailed means the retry budget ran out; a later Acquire may retry.
	OutcomeFailed Outcome = "FAILED"
)
