package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cimillas/checkin-pay/internal/domain"
)

const (
	codeMethodNotAllowed    = "method_not_allowed"
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeOrderIDRequired     = "order_id_required"
	codeTokenRequired       = "payment_key_required"
	codeInvalidSubject      = "invalid_subject"
	codeInvalidAmount       = "invalid_amount"
	codeAmountMismatch      = "amount_mismatch"
	codeIdempotencyConflict = "idempotency_conflict"
	codeOrderNotFound       = "order_not_found"
	codeHoldNotFound        = "hold_not_found"
	codeHoldExpired         = "hold_expired"
	codeForbidden           = "forbidden"
	codeUnavailable         = "unavailable"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps service errors onto status codes. Anything unknown is a
// 500 without detail.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrOrderIDRequired):
		return http.StatusBadRequest, codeOrderIDRequired
	case errors.Is(err, domain.ErrTokenRequired):
		return http.StatusBadRequest, codeTokenRequired
	case errors.Is(err, domain.ErrInvalidSubject):
		return http.StatusBadRequest, codeInvalidSubject
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, codeInvalidAmount
	case errors.Is(err, domain.ErrAmountMismatch):
		return http.StatusConflict, codeAmountMismatch
	case errors.Is(err, domain.ErrIdempotencyConflict):
		return http.StatusConflict, codeIdempotencyConflict
	case errors.Is(err, domain.ErrHoldExpired):
		return http.StatusConflict, codeHoldExpired
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, codeOrderNotFound
	case errors.Is(err, domain.ErrHoldNotFound):
		return http.StatusNotFound, codeHoldNotFound
	}
	return http.StatusInternalServerError, codeInternalError
}
