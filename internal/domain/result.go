package domain

// View is the screen the user ends up on after a confirmation attempt.
type View string

const (
	ViewSuccess   View = "success"
	ViewFailure   View = "failure"
	ViewVerifying View = "verifying"
)

const (
	ReasonHoldExpired      = "hold_expired"
	ReasonRejected         = "rejected"
	ReasonAmountMismatch   = "amount_mismatch"
	ReasonUnavailable      = "confirmation_unavailable"
	ReasonWidgetFailed     = "payment_failed"
	ReasonProviderReturned = "provider_failed"
	ReasonValidation       = "invalid_request"
)

// Result is what an entry adapter hands to the screen controller. Exactly one of
// success, failure-with-reason, or verifying.
type Result struct {
	OrderID string `json:"orderId"`
	View    View   `json:"view"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
	// Retryable means the user may start over with a fresh hold.
	Retryable bool `json:"retryable,omitempty"`
	// BackendCalls counts confirmation requests this attempt sent.
	BackendCalls int `json:"-"`
}
