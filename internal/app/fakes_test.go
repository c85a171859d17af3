package app

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/cimillas/checkin-pay/internal/clock"
	"github.com/cimillas/checkin-pay/internal/domain"
	"github.com/cimillas/checkin-pay/internal/storage/memory"
)

var t0 = time.Unix(1700000000, 0).UTC()

var discardLogger = log.New(io.Discard, "", 0)

type fakeAnswer struct {
	resp domain.ConfirmResponse
	err  error
}

func accepted() fakeAnswer {
	return fakeAnswer{resp: domain.ConfirmResponse{Success: true, StatusCode: 200}}
}

// fakeBackend answers from a script; the last answer repeats. With gate set,
// Confirm blocks until the gate is closed.
type fakeBackend struct {
	mu       sync.Mutex
	script   []fakeAnswer
	requests []domain.ConfirmRequest
	releases []domain.ReleaseRequest
	ctxErrs  []error

	gate    chan struct{}
	entered chan struct{}
}

func newFakeBackend(script ...fakeAnswer) *fakeBackend {
	if len(script) == 0 {
		script = []fakeAnswer{accepted()}
	}
	return &fakeBackend{script: script, entered: make(chan struct{}, 16)}
}

func (b *fakeBackend) Confirm(ctx context.Context, req domain.ConfirmRequest) (domain.ConfirmResponse, error) {
	b.mu.Lock()
	n := len(b.requests)
	b.requests = append(b.requests, req)
	gate := b.gate
	b.mu.Unlock()

	b.entered <- struct{}{}
	if gate != nil {
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.ctxErrs = append(b.ctxErrs, ctx.Err())
	if n >= len(b.script) {
		n = len(b.script) - 1
	}
	return b.script[n].resp, b.script[n].err
}

func (b *fakeBackend) Release(_ context.Context, req domain.ReleaseRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releases = append(b.releases, req)
	return nil
}

func (b *fakeBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func (b *fakeBackend) released() []domain.ReleaseRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.ReleaseRequest(nil), b.releases...)
}

type testEnv struct {
	store   *memory.Store
	clock   *clock.Manual
	backend *fakeBackend
	svc     *Service
}

func newTestEnv(backend *fakeBackend, opts ...Option) *testEnv {
	store := memory.New()
	clk := clock.NewManual(t0)
	base := []Option{
		WithLogger(discardLogger),
		WithRetryPolicy(RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond}),
		WithWaitPollInterval(5 * time.Millisecond),
		WithWaitTimeout(2 * time.Second),
	}
	return &testEnv{
		store:   store,
		clock:   clk,
		backend: backend,
		svc:     NewService(store, backend, clk, append(base, opts...)...),
	}
}

var dining42 = domain.Subject{Type: domain.SubjectDining, ID: "42"}

// checkout enters the hold and creates the order for the dining scenario.
func (e *testEnv) checkout(ctx context.Context, sessionID string) (domain.Order, error) {
	if _, err := e.svc.EnterHold(ctx, sessionID, dining42); err != nil {
		return domain.Order{}, err
	}
	res, err := e.svc.BeginCheckout(ctx, sessionID, BeginInput{
		Subject:    dining42,
		Amount:     45000,
		Components: domain.PaymentComponents{Cash: 40000, Point: 5000},
	})
	return res.Order, err
}

func int64Ptr(v int64) *int64 { return &v }
