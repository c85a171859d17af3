package app

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cimillas/checkin-pay/internal/domain"
)

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name string
		resp domain.ConfirmResponse
		err  error
		want ResponseClass
	}{
		{"success", domain.ConfirmResponse{Success: true, StatusCode: 200}, nil, ClassAccepted},
		{"already processed flag", domain.ConfirmResponse{AlreadyProcessed: true, StatusCode: 200}, nil, ClassAlreadyProcessed},
		{"korean duplicate message", domain.ConfirmResponse{Message: "이미 처리된 주문입니다", StatusCode: 400}, nil, ClassAlreadyProcessed},
		{"english message any case", domain.ConfirmResponse{Message: "Order ALREADY PROCESSED", StatusCode: 409}, nil, ClassAlreadyProcessed},
		{"already been processed", domain.ConfirmResponse{Message: "payment has already been processed", StatusCode: 400}, nil, ClassAlreadyProcessed},
		{"duplicate on 5xx", domain.ConfirmResponse{Message: "duplicate request", StatusCode: 500}, nil, ClassAlreadyProcessed},
		{"transport error", domain.ConfirmResponse{}, errors.New("connection reset"), ClassTransient},
		{"server error", domain.ConfirmResponse{StatusCode: 503}, nil, ClassTransient},
		{"request timeout", domain.ConfirmResponse{StatusCode: 408}, nil, ClassTransient},
		{"rate limited", domain.ConfirmResponse{StatusCode: 429}, nil, ClassTransient},
		{"declined", domain.ConfirmResponse{Message: "card declined", StatusCode: 400}, nil, ClassRejected},
		{"success false with 200", domain.ConfirmResponse{Message: "hold expired", StatusCode: 200}, nil, ClassRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.resp, tt.err))
		})
	}
}

func TestClassifier_CustomMarkers(t *testing.T) {
	c := NewClassifier("  ", "Bereits Verarbeitet")

	assert.Equal(t, ClassAlreadyProcessed, c.Classify(domain.ConfirmResponse{Message: "bereits verarbeitet", StatusCode: 400}, nil))
	assert.Equal(t, ClassRejected, c.Classify(domain.ConfirmResponse{Message: "duplicate", StatusCode: 400}, nil))
	assert.True(t, ClassAlreadyProcessed.Success())
	assert.False(t, ClassTransient.Success())
}
