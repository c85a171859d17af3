package app

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/cimillas/checkin-pay/internal/clock"
	"github.com/cimillas/checkin-pay/internal/domain"
	"github.com/cimillas/checkin-pay/internal/storage"
)

// Backend is the remote booking service.
type Backend interface {
	Confirmer
	Releaser
}

// Service wires the per-session components over one shared store.
type Service struct {
	store   storage.Store
	backend Backend
	clock   clock.Clock
	logger  *log.Logger

	holdDuration time.Duration
	staleAfter   time.Duration
	pollInterval time.Duration
	waitTimeout  time.Duration
	retry        RetryPolicy
	classifier   Classifier
}

type Option func(*Service)

func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithHoldWindow(d time.Duration) Option {
	return func(s *Service) { s.holdDuration = d }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Service) {
		if p.MaxRetries >= 0 {
			s.retry = p
		}
	}
}

// WithWaitTimeout bounds how long a second entry path waits on an in-flight one.
func WithWaitTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.waitTimeout = d
		}
	}
}

func WithStaleInFlight(d time.Duration) Option {
	return func(s *Service) { s.staleAfter = d }
}

func WithWaitPollInterval(d time.Duration) Option {
	return func(s *Service) { s.pollInterval = d }
}

func WithDuplicateMarkers(markers ...string) Option {
	return func(s *Service) { s.classifier = NewClassifier(markers...) }
}

func NewService(store storage.Store, backend Backend, clk clock.Clock, opts ...Option) *Service {
	s := &Service{
		store:       store,
		backend:     backend,
		clock:       clk,
		logger:      log.New(io.Discard, "", 0),
		waitTimeout: defaultWaitTimeout,
		retry:       DefaultRetryPolicy,
		classifier:  NewClassifier(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session bundles the components for one browser session. Components are cheap
// and hold no state of their own, so a Session is built per request.
type Session struct {
	Coordinator *Coordinator
	Holds       *HoldService
	Checkout    *CheckoutService
	Widget      *WidgetCallbackAdapter
	Redirect    *RedirectReturnAdapter
}

func (s *Service) Session(sessionID string) *Session {
	store := storage.Scope(s.store, sessionID)

	coord := NewCoordinator(store, s.clock, WithStaleAfter(s.staleAfter), WithPollInterval(s.pollInterval))
	holds := NewHoldService(store, coord, s.backend, s.clock, s.logger, WithHoldDuration(s.holdDuration))
	checkout := NewCheckoutService(store, holds, s.clock)
	flow := &confirmFlow{
		coord:       coord,
		holds:       holds,
		backend:     s.backend,
		classifier:  s.classifier,
		retry:       s.retry,
		waitTimeout: s.waitTimeout,
		logger:      s.logger,
	}

	return &Session{
		Coordinator: coord,
		Holds:       holds,
		Checkout:    checkout,
		Widget:      &WidgetCallbackAdapter{checkout: checkout, flow: flow},
		Redirect: &RedirectReturnAdapter{
			store:    store,
			checkout: checkout,
			coord:    coord,
			flow:     flow,
			clock:    s.clock,
		},
	}
}

// HoldView is a timer as the payment screen renders it.
type HoldView struct {
	Timer            domain.HoldTimer
	RemainingSeconds int
}

func (s *Service) holdView(t domain.HoldTimer) HoldView {
	remaining := t.Remaining(s.clock.Now())
	return HoldView{Timer: t, RemainingSeconds: int((remaining + time.Second - 1) / time.Second)}
}

func (s *Service) EnterHold(ctx context.Context, sessionID string, subject domain.Subject) (HoldView, error) {
	t, err := s.Session(sessionID).Holds.Enter(ctx, subject)
	if err != nil {
		return HoldView{}, err
	}
	return s.holdView(t), nil
}

func (s *Service) HoldStatus(ctx context.Context, sessionID string, subject domain.Subject) (HoldView, error) {
	t, err := s.Session(sessionID).Holds.Evaluate(ctx, subject)
	if err != nil {
		return HoldView{}, err
	}
	return s.holdView(t), nil
}

func (s *Service) CancelHold(ctx context.Context, sessionID string, subject domain.Subject) (HoldView, error) {
	t, err := s.Session(sessionID).Holds.Cancel(ctx, subject)
	if err != nil {
		return HoldView{}, err
	}
	return s.holdView(t), nil
}

func (s *Service) BeginCheckout(ctx context.Context, sessionID string, in BeginInput) (BeginResult, error) {
	return s.Session(sessionID).Checkout.Begin(ctx, in)
}

// OrderStatus returns the confirmation record, UNSTARTED when none exists yet.
func (s *Service) OrderStatus(ctx context.Context, sessionID, orderID string) (domain.ConfirmationRecord, error) {
	sess := s.Session(sessionID)
	if _, err := sess.Checkout.LoadOrder(ctx, orderID); err != nil {
		return domain.ConfirmationRecord{}, err
	}
	rec, found, err := sess.Coordinator.Record(ctx, orderID)
	if err != nil {
		return domain.ConfirmationRecord{}, err
	}
	if !found {
		rec = domain.ConfirmationRecord{OrderID: orderID, State: domain.ConfirmUnstarted}
	}
	return rec, nil
}

func (s *Service) ConfirmWidget(ctx context.Context, sessionID string, in WidgetResult) (domain.Result, error) {
	return s.Session(sessionID).Widget.Handle(ctx, in)
}

func (s *Service) ConsumeReturn(ctx context.Context, sessionID string, params domain.ReturnParams) (string, error) {
	return s.Session(sessionID).Redirect.Consume(ctx, params)
}

func (s *Service) ResumeReturn(ctx context.Context, sessionID, orderID string) (domain.Result, error) {
	return s.Session(sessionID).Redirect.Resume(ctx, orderID)
}
