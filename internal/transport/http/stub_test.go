package http

import (
	"context"
	"io"
	"log"

	"github.com/cimillas/checkin-pay/internal/app"
	"github.com/cimillas/checkin-pay/internal/domain"
)

type stubService struct {
	hold   app.HoldView
	begin  app.BeginResult
	record domain.ConfirmationRecord
	result domain.Result
	err    error

	gotSession string
	gotSubject domain.Subject
	gotBegin   app.BeginInput
	gotWidget  app.WidgetResult
	gotReturn  domain.ReturnParams
	gotOrderID string
}

func (s *stubService) EnterHold(_ context.Context, sessionID string, subject domain.Subject) (app.HoldView, error) {
	s.gotSession, s.gotSubject = sessionID, subject
	return s.hold, s.err
}

func (s *stubService) HoldStatus(_ context.Context, sessionID string, subject domain.Subject) (app.HoldView, error) {
	s.gotSession, s.gotSubject = sessionID, subject
	return s.hold, s.err
}

func (s *stubService) CancelHold(_ context.Context, sessionID string, subject domain.Subject) (app.HoldView, error) {
	s.gotSession, s.gotSubject = sessionID, subject
	return s.hold, s.err
}

func (s *stubService) BeginCheckout(_ context.Context, sessionID string, in app.BeginInput) (app.BeginResult, error) {
	s.gotSession, s.gotBegin = sessionID, in
	return s.begin, s.err
}

func (s *stubService) OrderStatus(_ context.Context, sessionID, orderID string) (domain.ConfirmationRecord, error) {
	s.gotSession, s.gotOrderID = sessionID, orderID
	return s.record, s.err
}

func (s *stubService) ConfirmWidget(_ context.Context, sessionID string, in app.WidgetResult) (domain.Result, error) {
	s.gotSession, s.gotWidget = sessionID, in
	return s.result, s.err
}

func (s *stubService) ConsumeReturn(_ context.Context, sessionID string, params domain.ReturnParams) (string, error) {
	s.gotSession, s.gotReturn = sessionID, params
	return params.OrderID, s.err
}

func (s *stubService) ResumeReturn(_ context.Context, sessionID, orderID string) (domain.Result, error) {
	s.gotSession, s.gotOrderID = sessionID, orderID
	return s.result, s.err
}

const testSession = "0b6f3f0e-6d1e-4c3a-9a57-2f4f1c1d8e11"

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
