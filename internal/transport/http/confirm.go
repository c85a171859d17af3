package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cimillas/checkin-pay/internal/app"
	"github.com/cimillas/checkin-pay/internal/domain"
)

// PaymentService is the minimal interface needed by the confirmation endpoints.
type PaymentService interface {
	ConfirmWidget(ctx context.Context, sessionID string, in app.WidgetResult) (domain.Result, error)
	ConsumeReturn(ctx context.Context, sessionID string, params domain.ReturnParams) (string, error)
	ResumeReturn(ctx context.Context, sessionID, orderID string) (domain.Result, error)
}

const returnPath = "/payments/return"

var errUnknownWidgetStatus = errors.New("unknown widget status")

// HandleWidgetCallback is called by the page when the embedded widget reports
// (POST /payments/callback). It answers with the result and where to go next.
func HandleWidgetCallback(svc PaymentService, routes Routes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		sessionID, ok := requireSession(w, r)
		if !ok {
			return
		}

		var req widgetCallbackRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		in, err := req.toWidgetResult()
		if errors.Is(err, errUnknownWidgetStatus) {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, err.Error())
			return
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}

		res, err := svc.ConfirmWidget(r.Context(), sessionID, in)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newResultResponse(res, routes))
	}
}

// HandleReturn serves the provider's redirect back to us. The first hop carries
// the provider parameters; they are persisted and the browser is sent to a
// clean URL, which is where confirmation actually runs.
func HandleReturn(svc PaymentService, routes Routes, logger *log.Logger) http.HandlerFunc {
	if logger == nil {
		logger = log.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		sessionID, ok := requireSession(w, r)
		if !ok {
			return
		}

		orderID, hasPathID, ok := parseReturnPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		if !hasPathID {
			params, err := parseReturnQuery(r.URL.Query())
			if err == nil {
				orderID, err = svc.ConsumeReturn(r.Context(), sessionID, params)
			}
			if err != nil {
				redirectOrFail(w, r, routes, logger, params.OrderID, err)
				return
			}
			http.Redirect(w, r, returnPath+"/"+url.PathEscape(orderID), http.StatusSeeOther)
			return
		}

		res, err := svc.ResumeReturn(r.Context(), sessionID, orderID)
		if err != nil {
			redirectOrFail(w, r, routes, logger, orderID, err)
			return
		}
		http.Redirect(w, r, routes.For(res), http.StatusSeeOther)
	}
}

// redirectOrFail sends a browser with a bad or unknown return to the failure
// page. Only store or backend trouble is answered with an error body.
func redirectOrFail(w http.ResponseWriter, r *http.Request, routes Routes, logger *log.Logger, orderID string, err error) {
	status, _ := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Printf("payment return order_id=%s: %v", orderID, err)
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "confirmation unavailable, retry shortly")
		return
	}
	res := domain.Result{OrderID: orderID, View: domain.ViewFailure, Reason: domain.ReasonValidation}
	http.Redirect(w, r, routes.For(res), http.StatusSeeOther)
}

// parseReturnPath accepts /payments/return and /payments/return/{orderId}.
func parseReturnPath(path string) (orderID string, hasID, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] != "payments" || parts[1] != "return" {
		return "", false, false
	}
	switch len(parts) {
	case 2:
		return "", false, true
	case 3:
		if parts[2] == "" {
			return "", false, false
		}
		return parts[2], true, true
	}
	return "", false, false
}

func parseReturnQuery(q url.Values) (domain.ReturnParams, error) {
	params := domain.ReturnParams{
		OrderID:        strings.TrimSpace(q.Get("orderId")),
		PaymentKey:     strings.TrimSpace(q.Get("paymentKey")),
		FailureCode:    q.Get("code"),
		FailureMessage: q.Get("message"),
	}
	if raw := q.Get("amount"); raw != "" {
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return params, domain.ErrInvalidAmount
		}
		params.Amount = &amount
	}
	return params, nil
}

type widgetCallbackRequest struct {
	Status            string                   `json:"status"`
	OrderID           string                   `json:"orderId"`
	PaymentKey        string                   `json:"paymentKey"`
	Amount            int64                    `json:"amount"`
	PaymentComponents domain.PaymentComponents `json:"paymentComponents"`
	SubjectType       string                   `json:"subjectType"`
	SubjectID         string                   `json:"subjectId"`
	Code              string                   `json:"code"`
	Message           string                   `json:"message"`
}

func (r widgetCallbackRequest) toWidgetResult() (app.WidgetResult, error) {
	var succeeded bool
	switch strings.ToLower(r.Status) {
	case "success", "done":
		succeeded = true
	case "fail", "failure", "error":
	default:
		return app.WidgetResult{}, errUnknownWidgetStatus
	}

	in := app.WidgetResult{
		Order: domain.Order{
			ID:         strings.TrimSpace(r.OrderID),
			Amount:     r.Amount,
			Components: r.PaymentComponents,
		},
		PaymentKey:     strings.TrimSpace(r.PaymentKey),
		Succeeded:      succeeded,
		FailureCode:    r.Code,
		FailureMessage: r.Message,
	}
	if in.Order.ID == "" {
		return app.WidgetResult{}, domain.ErrOrderIDRequired
	}
	if succeeded {
		subject, err := parseSubject(r.SubjectType, r.SubjectID)
		if err != nil {
			return app.WidgetResult{}, err
		}
		in.Order.Subject = subject
	}
	return in, nil
}

type resultResponse struct {
	OrderID    string `json:"orderId"`
	View       string `json:"view"`
	Reason     string `json:"reason,omitempty"`
	Message    string `json:"message,omitempty"`
	Retryable  bool   `json:"retryable"`
	NavigateTo string `json:"navigateTo"`
}

func newResultResponse(res domain.Result, routes Routes) resultResponse {
	return resultResponse{
		OrderID:    res.OrderID,
		View:       string(res.View),
		Reason:     res.Reason,
		Message:    res.Message,
		Retryable:  res.Retryable,
		NavigateTo: routes.For(res),
	}
}
