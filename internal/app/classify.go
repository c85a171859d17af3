package app

import (
	"net/http"
	"strings"

	"github.com/cimillas/checkin-pay/internal/domain"
)

// ResponseClass is how the confirm flow reads a backend answer.
type ResponseClass string

const (
	ClassAccepted         ResponseClass = "ACCEPTED"
	ClassAlreadyProcessed ResponseClass = "ALREADY_PROCESSED"
	ClassRejected         ResponseClass = "REJECTED"
	ClassTransient        ResponseClass = "TRANSIENT"
)

// Success reports whether the order should be treated as paid.
func (c ResponseClass) Success() bool {
	return c == ClassAccepted || c == ClassAlreadyProcessed
}

// DefaultDuplicateMarkers are message fragments older backends send instead of
// the alreadyProcessed flag.
var DefaultDuplicateMarkers = []string{
	"already processed",
	"already been processed",
	"duplicate",
	"이미 처리",
}

type Classifier struct {
	markers []string
}

// NewClassifier matches messages against markers, case-insensitively. With no
// markers it falls back to DefaultDuplicateMarkers.
func NewClassifier(markers ...string) Classifier {
	if len(markers) == 0 {
		markers = DefaultDuplicateMarkers
	}
	lowered := make([]string, 0, len(markers))
	for _, m := range markers {
		if m = strings.TrimSpace(m); m != "" {
			lowered = append(lowered, strings.ToLower(m))
		}
	}
	return Classifier{markers: lowered}
}

// Classify maps one backend exchange to a class. callErr is a transport error;
// HTTP error statuses arrive in resp.StatusCode.
func (c Classifier) Classify(resp domain.ConfirmResponse, callErr error) ResponseClass {
	if callErr != nil {
		return ClassTransient
	}
	if resp.AlreadyProcessed {
		return ClassAlreadyProcessed
	}
	if resp.Success {
		return ClassAccepted
	}
	if c.duplicateMessage(resp.Message) {
		return ClassAlreadyProcessed
	}

	switch code := resp.StatusCode; {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return ClassTransient
	case code >= http.StatusInternalServerError:
		return ClassTransient
	}
	return ClassRejected
}

func (c Classifier) duplicateMessage(msg string) bool {
	if msg == "" {
		return false
	}
	msg = strings.ToLower(msg)
	for _, m := range c.markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
