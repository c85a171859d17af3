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

// HoldService is the minimal interface needed by the hold endpoints.
type HoldService interface {
	EnterHold(ctx context.Context, sessionID string, subject domain.Subject) (app.HoldView, error)
	HoldStatus(ctx context.Context, sessionID string, subject domain.Subject) (app.HoldView, error)
	CancelHold(ctx context.Context, sessionID string, subject domain.Subject) (app.HoldView, error)
}

// HandleEnterHold starts or resumes the payment-screen timer (POST /holds).
func HandleEnterHold(svc HoldService, routes Routes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		sessionID, ok := requireSession(w, r)
		if !ok {
			return
		}

		var req enterHoldRequest
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

		view, err := svc.EnterHold(r.Context(), sessionID, subject)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newHoldResponse(view, routes))
	}
}

// HandleHold serves GET (timer tick) and DELETE (user cancel) on
// /holds/{type}/{id}.
func HandleHold(svc HoldService, routes Routes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, err := parseHoldPath(r.URL.Path)
		if err != nil {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		sessionID, ok := requireSession(w, r)
		if !ok {
			return
		}

		var view app.HoldView
		switch r.Method {
		case http.MethodGet:
			view, err = svc.HoldStatus(r.Context(), sessionID, subject)
		case http.MethodDelete:
			view, err = svc.CancelHold(r.Context(), sessionID, subject)
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newHoldResponse(view, routes))
	}
}

func parseHoldPath(path string) (domain.Subject, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "holds" {
		return domain.Subject{}, domain.ErrInvalidSubject
	}
	return parseSubject(parts[1], parts[2])
}

func parseSubject(subjectType, subjectID string) (domain.Subject, error) {
	t, err := domain.ParseSubjectType(subjectType)
	if err != nil {
		return domain.Subject{}, err
	}
	subject := domain.Subject{Type: t, ID: strings.TrimSpace(subjectID)}
	if err := subject.Validate(); err != nil {
		return domain.Subject{}, err
	}
	return subject, nil
}

type enterHoldRequest struct {
	SubjectType string `json:"subjectType"`
	SubjectID   string `json:"subjectId"`
}

type holdResponse struct {
	SubjectType      string     `json:"subjectType"`
	SubjectID        string     `json:"subjectId"`
	OrderID          string     `json:"orderId,omitempty"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"startedAt"`
	DurationSeconds  int        `json:"durationSeconds"`
	RemainingSeconds int        `json:"remainingSeconds"`
	EndedAt          *time.Time `json:"endedAt,omitempty"`
	NavigateTo       string     `json:"navigateTo,omitempty"`
}

func newHoldResponse(v app.HoldView, routes Routes) holdResponse {
	t := v.Timer
	resp := holdResponse{
		SubjectType:      string(t.Subject.Type),
		SubjectID:        t.Subject.ID,
		OrderID:          t.OrderID,
		Status:           string(t.Status),
		StartedAt:        t.StartedAt,
		DurationSeconds:  t.DurationSeconds,
		RemainingSeconds: v.RemainingSeconds,
		EndedAt:          t.EndedAt,
	}
	if t.Status == domain.HoldStatusExpired {
		resp.NavigateTo = routes.ExpiredFor(t)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
