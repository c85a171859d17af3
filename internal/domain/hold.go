package domain

import "time"

type HoldStatus string

const (
	HoldStatusRunning HoldStatus = "RUNNING"
	HoldStatusExpired HoldStatus = "EXPIRED"
	HoldStatusCleared HoldStatus = "CLEARED"
)

// HoldTimer is the countdown shown while a reservation is held pending payment.
type HoldTimer struct {
	Subject         Subject    `json:"subject" yaml:"subject"`
	OrderID         string     `json:"orderId,omitempty" yaml:"orderId,omitempty"`
	StartedAt       time.Time  `json:"startedAt" yaml:"startedAt"`
	DurationSeconds int        `json:"durationSeconds" yaml:"durationSeconds"`
	Status          HoldStatus `json:"status" yaml:"status"`
	EndedAt         *time.Time `json:"endedAt,omitempty" yaml:"endedAt,omitempty"`
}

func (h HoldTimer) Duration() time.Duration {
	return time.Duration(h.DurationSeconds) * time.Second
}

func (h HoldTimer) Deadline() time.Time {
	return h.StartedAt.Add(h.Duration())
}

// Remaining is always measured from the original start, so a redirect round-trip
// cannot extend the window.
func (h HoldTimer) Remaining(now time.Time) time.Duration {
	if h.Status != HoldStatusRunning {
		return 0
	}
	left := h.Duration() - now.Sub(h.StartedAt)
	if left < 0 {
		return 0
	}
	return left
}

func (h HoldTimer) Elapsed(now time.Time) bool {
	return !now.Before(h.Deadline())
}
