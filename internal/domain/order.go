package domain

import (
	"fmt"
	"strings"
	"time"
)

type SubjectType string

const (
	SubjectRoom       SubjectType = "ROOM"
	SubjectDining     SubjectType = "DINING"
	SubjectSecondhand SubjectType = "SECONDHAND"
)

// ParseSubjectType accepts the canonical upper-case names and their lower-case
// route forms ("room", "dining", "secondhand").
func ParseSubjectType(s string) (SubjectType, error) {
	switch t := SubjectType(strings.ToUpper(strings.TrimSpace(s))); t {
	case SubjectRoom, SubjectDining, SubjectSecondhand:
		return t, nil
	}
	return "", ErrInvalidSubject
}

// Subject identifies the reserved thing a payment is for.
type Subject struct {
	Type SubjectType `json:"subjectType"`
	ID   string      `json:"subjectId"`
}

func (s Subject) Validate() error {
	switch s.Type {
	case SubjectRoom, SubjectDining, SubjectSecondhand:
	default:
		return ErrInvalidSubject
	}
	if strings.TrimSpace(s.ID) == "" || strings.ContainsAny(s.ID, "/_") {
		return ErrInvalidSubject
	}
	return nil
}

func (s Subject) String() string {
	return string(s.Type) + "/" + s.ID
}

// PaymentComponents is the breakdown of an order amount by funding source.
type PaymentComponents struct {
	Cash     int64 `json:"cash"`
	Point    int64 `json:"point"`
	External int64 `json:"external"`
}

func (c PaymentComponents) Total() int64 {
	return c.Cash + c.Point + c.External
}

func (c PaymentComponents) IsZero() bool {
	return c == PaymentComponents{}
}

// Order is a single monetary transaction attempt. It is created once when the
// user commits to paying and is never mutated afterwards.
type Order struct {
	ID         string            `json:"orderId"`
	Amount     int64             `json:"amount"`
	Components PaymentComponents `json:"paymentComponents"`
	Subject    Subject           `json:"subject"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func (o Order) Validate() error {
	if o.ID == "" {
		return ErrOrderIDRequired
	}
	if err := o.Subject.Validate(); err != nil {
		return err
	}
	if o.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !o.Components.IsZero() && o.Components.Total() != o.Amount {
		return ErrInvalidAmount
	}
	return nil
}

// NewOrderID builds the provider-visible order identifier, e.g. DINING_1700000000_42.
func NewOrderID(subject Subject, at time.Time) string {
	return fmt.Sprintf("%s_%d_%s", subject.Type, at.Unix(), subject.ID)
}
