package domain

import "time"

// ConfirmRequest is the body sent to the backend confirmation endpoint.
type ConfirmRequest struct {
	OrderID     string            `json:"orderId"`
	PaymentKey  string            `json:"paymentKey"`
	Amount      int64             `json:"amount"`
	Components  PaymentComponents `json:"paymentComponents"`
	SubjectID   string            `json:"subjectId"`
	SubjectType SubjectType       `json:"subjectType"`
}

// ConfirmResponse is the backend's answer. StatusCode is filled in by the client.
type ConfirmResponse struct {
	Success          bool   `json:"success"`
	AlreadyProcessed bool   `json:"alreadyProcessed,omitempty"`
	Message          string `json:"message,omitempty"`
	StatusCode       int    `json:"-"`
}

// ReturnParams are the query parameters the provider appends when redirecting
// the browser back. They are persisted on first sight and then stripped.
type ReturnParams struct {
	OrderID        string    `json:"orderId" yaml:"orderId"`
	PaymentKey     string    `json:"paymentKey" yaml:"paymentKey"`
	Amount         *int64    `json:"amount,omitempty" yaml:"amount,omitempty"`
	FailureCode    string    `json:"failureCode,omitempty" yaml:"failureCode,omitempty"`
	FailureMessage string    `json:"failureMessage,omitempty" yaml:"failureMessage,omitempty"`
	ReceivedAt     time.Time `json:"receivedAt" yaml:"receivedAt"`
}

func (p ReturnParams) Failed() bool {
	return p.FailureCode != ""
}

// ReleaseRequest asks the backend to give held inventory back.
type ReleaseRequest struct {
	OrderID     string      `json:"orderId,omitempty"`
	SubjectType SubjectType `json:"subjectType"`
	SubjectID   string      `json:"subjectId"`
	Reason      string      `json:"reason"`
}
