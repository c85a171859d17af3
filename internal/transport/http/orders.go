package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cimillas/checkin-pay/internal/app"
	"github.com/cimillas/checkin-pay/internal/domain"
)

// OrderService is the minimal interface needed by the order endpoints.
type OrderService interface {
	BeginCheckout(ctx context.Context, sessionID string, in app.BeginInput) (app.BeginResult, error)
	OrderStatus(ctx context.Context, sessionID, orderID string) (domain.ConfirmationRecord, error)
}

// HandleCreateOrder commits the user to paying (POST /orders). A repeat call for
// the same hold answers 200 with the existing order.
func HandleCreateOrder(svc OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		sessionID, ok := requireSession(w, r)
		if !ok {
			return
		}

		var req createOrderRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		subject, err := parseSubject(req.SubjectType, req.SubjectID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		res, err := svc.BeginCheckout(r.Context(), sessionID, app.BeginInput{
			Subject:    subject,
			Amount:     req.Amount,
			Components: req.PaymentComponents,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		writeJSON(w, status, newOrderResponse(res.Order))
	}
}

// HandleOrderStatus returns the confirmation record (GET /orders/{orderId}).
func HandleOrderStatus(svc OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		orderID, ok := parseOrderPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		sessionID, ok := requireSession(w, r)
		if !ok {
			return
		}

		rec, err := svc.OrderStatus(r.Context(), sessionID, orderID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func parseOrderPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] != "orders" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

type createOrderRequest struct {
	SubjectType       string                   `json:"subjectType"`
	SubjectID         string                   `json:"subjectId"`
	Amount            int64                    `json:"amount"`
	PaymentComponents domain.PaymentComponents `json:"paymentComponents"`
}

type orderResponse struct {
	OrderID           string                   `json:"orderId"`
	Amount            int64                    `json:"amount"`
	PaymentComponents domain.PaymentComponents `json:"paymentComponents"`
	SubjectType       string                   `json:"subjectType"`
	SubjectID         string                   `json:"subjectId"`
	CreatedAt         time.Time                `json:"createdAt"`
}

func newOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		OrderID:           o.ID,
		Amount:            o.Amount,
		PaymentComponents: o.Components,
		SubjectType:       string(o.Subject.Type),
		SubjectID:         o.Subject.ID,
		CreatedAt:         o.CreatedAt,
	}
}
