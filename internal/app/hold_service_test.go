package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cimillas/checkin-pay/internal/clock"
	"github.com/cimillas/checkin-pay/internal/domain"
	"github.com/cimillas/checkin-pay/internal/storage/memory"
)

func TestHoldService(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	window := 600 * time.Second

	makeSvc := func() (*HoldService, *Coordinator, *clock.Manual, *fakeBackend) {
		store := memory.New()
		clk := clock.NewManual(t0)
		coord := NewCoordinator(store, clk)
		backend := newFakeBackend()
		svc := NewHoldService(store, coord, backend, clk, discardLogger, WithHoldDuration(window))
		return svc, coord, clk, backend
	}

	t.Run("starts a full window", func(t *testing.T) {
		svc, _, _, _ := makeSvc()

		timer, err := svc.Enter(ctx, dining42)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if timer.Status != domain.HoldStatusRunning {
			t.Fatalf("expected status %s, got %s", domain.HoldStatusRunning, timer.Status)
		}
		if !timer.StartedAt.Equal(t0) {
			t.Fatalf("expected started_at %v, got %v", t0, timer.StartedAt)
		}
		if timer.DurationSeconds != 600 {
			t.Fatalf("expected 600 seconds, got %d", timer.DurationSeconds)
		}
	})

	t.Run("re-entering the same subject keeps the original start", func(t *testing.T) {
		svc, _, clk, _ := makeSvc()

		if _, err := svc.Enter(ctx, dining42); err != nil {
			t.Fatalf("enter: %v", err)
		}
		clk.Advance(120 * time.Second)

		timer, err := svc.Enter(ctx, dining42)
		if err != nil {
			t.Fatalf("re-enter: %v", err)
		}
		if got := timer.Remaining(clk.Now()); got != 480*time.Second {
			t.Fatalf("expected 480s remaining, got %v", got)
		}
	})

	t.Run("a different subject gets its own window", func(t *testing.T) {
		svc, _, clk, _ := makeSvc()

		if _, err := svc.Enter(ctx, dining42); err != nil {
			t.Fatalf("enter: %v", err)
		}
		clk.Advance(120 * time.Second)

		room := domain.Subject{Type: domain.SubjectRoom, ID: "301"}
		timer, err := svc.Enter(ctx, room)
		if err != nil {
			t.Fatalf("enter room: %v", err)
		}
		if got := timer.Remaining(clk.Now()); got != window {
			t.Fatalf("expected full window, got %v", got)
		}
	})

	t.Run("expires after the window and releases inventory", func(t *testing.T) {
		svc, coord, clk, backend := makeSvc()

		if _, err := svc.Enter(ctx, dining42); err != nil {
			t.Fatalf("enter: %v", err)
		}
		if _, err := svc.AttachOrder(ctx, dining42, "DINING_1700000000_42"); err != nil {
			t.Fatalf("attach: %v", err)
		}

		clk.Set(t0.Add(599 * time.Second))
		timer, err := svc.Evaluate(ctx, dining42)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if timer.Status != domain.HoldStatusRunning {
			t.Fatalf("expected still running at T0+599s, got %s", timer.Status)
		}

		clk.Set(t0.Add(601 * time.Second))
		timer, err = svc.Evaluate(ctx, dining42)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if timer.Status != domain.HoldStatusExpired {
			t.Fatalf("expected expired at T0+601s, got %s", timer.Status)
		}

		releases := backend.released()
		if len(releases) != 1 || releases[0].Reason != releaseReasonExpired || releases[0].OrderID != "DINING_1700000000_42" {
			t.Fatalf("expected one expiry release, got %+v", releases)
		}

		res, err := coord.Acquire(ctx, "DINING_1700000000_42")
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if res.Status != domain.AcquireBlocked {
			t.Fatalf("expected blocked order, got %s", res.Status)
		}

		// A second tick does not release twice.
		if _, err := svc.Evaluate(ctx, dining42); err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if got := len(backend.released()); got != 1 {
			t.Fatalf("expected 1 release, got %d", got)
		}
	})

	t.Run("processed order clears the timer", func(t *testing.T) {
		svc, coord, clk, backend := makeSvc()

		if _, err := svc.Enter(ctx, dining42); err != nil {
			t.Fatalf("enter: %v", err)
		}
		if _, err := svc.AttachOrder(ctx, dining42, "DINING_1700000000_42"); err != nil {
			t.Fatalf("attach: %v", err)
		}
		if _, err := coord.Acquire(ctx, "DINING_1700000000_42"); err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if _, err := coord.Complete(ctx, "DINING_1700000000_42", domain.OutcomeAccepted, ""); err != nil {
			t.Fatalf("complete: %v", err)
		}

		clk.Set(t0.Add(300 * time.Second))
		timer, err := svc.Evaluate(ctx, dining42)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if timer.Status != domain.HoldStatusCleared {
			t.Fatalf("expected cleared, got %s", timer.Status)
		}

		clk.Set(t0.Add(601 * time.Second))
		timer, err = svc.Evaluate(ctx, dining42)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if timer.Status != domain.HoldStatusCleared {
			t.Fatalf("expected cleared to stay terminal, got %s", timer.Status)
		}
		if got := len(backend.released()); got != 0 {
			t.Fatalf("expected no release, got %d", got)
		}
	})

	t.Run("expiry after processing is a no-op", func(t *testing.T) {
		svc, coord, clk, backend := makeSvc()

		if _, err := svc.Enter(ctx, dining42); err != nil {
			t.Fatalf("enter: %v", err)
		}
		if _, err := svc.AttachOrder(ctx, dining42, "o1"); err != nil {
			t.Fatalf("attach: %v", err)
		}
		if _, err := coord.Complete(ctx, "o1", domain.OutcomeAccepted, ""); err != nil {
			t.Fatalf("complete: %v", err)
		}

		clk.Set(t0.Add(601 * time.Second))
		timer, err := svc.Evaluate(ctx, dining42)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if timer.Status != domain.HoldStatusCleared {
			t.Fatalf("expected cleared, got %s", timer.Status)
		}
		if got := len(backend.released()); got != 0 {
			t.Fatalf("expected no release, got %d", got)
		}
	})

	t.Run("entering after expiry starts a fresh window", func(t *testing.T) {
		svc, _, clk, _ := makeSvc()

		if _, err := svc.Enter(ctx, dining42); err != nil {
			t.Fatalf("enter: %v", err)
		}
		clk.Set(t0.Add(700 * time.Second))

		timer, err := svc.Enter(ctx, dining42)
		if err != nil {
			t.Fatalf("re-enter: %v", err)
		}
		if timer.Status != domain.HoldStatusRunning || !timer.StartedAt.Equal(clk.Now()) {
			t.Fatalf("expected fresh running timer, got %+v", timer)
		}
		if timer.OrderID != "" {
			t.Fatalf("expected no order on fresh timer, got %s", timer.OrderID)
		}
	})

	t.Run("cancel clears and releases without blocking the order", func(t *testing.T) {
		svc, coord, _, backend := makeSvc()

		if _, err := svc.Enter(ctx, dining42); err != nil {
			t.Fatalf("enter: %v", err)
		}
		if _, err := svc.AttachOrder(ctx, dining42, "o1"); err != nil {
			t.Fatalf("attach: %v", err)
		}

		timer, err := svc.Cancel(ctx, dining42)
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if timer.Status != domain.HoldStatusCleared {
			t.Fatalf("expected cleared, got %s", timer.Status)
		}
		releases := backend.released()
		if len(releases) != 1 || releases[0].Reason != releaseReasonCancelled {
			t.Fatalf("expected one cancel release, got %+v", releases)
		}

		res, err := coord.Acquire(ctx, "o1")
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if res.Status != domain.AcquireGranted {
			t.Fatalf("expected granted, got %s", res.Status)
		}
	})

	t.Run("attach rejects a second order", func(t *testing.T) {
		svc, _, _, _ := makeSvc()

		if _, err := svc.Enter(ctx, dining42); err != nil {
			t.Fatalf("enter: %v", err)
		}
		if _, err := svc.AttachOrder(ctx, dining42, "o1"); err != nil {
			t.Fatalf("attach: %v", err)
		}
		if _, err := svc.AttachOrder(ctx, dining42, "o1"); err != nil {
			t.Fatalf("re-attach same order: %v", err)
		}
		if _, err := svc.AttachOrder(ctx, dining42, "o2"); !errors.Is(err, domain.ErrIdempotencyConflict) {
			t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
		}
	})

	t.Run("rejects invalid subjects", func(t *testing.T) {
		svc, _, _, _ := makeSvc()

		for _, subject := range []domain.Subject{
			{Type: "PARKING", ID: "1"},
			{Type: domain.SubjectRoom, ID: ""},
			{Type: domain.SubjectRoom, ID: "a/b"},
			{Type: domain.SubjectRoom, ID: "a_b"},
		} {
			if _, err := svc.Enter(ctx, subject); !errors.Is(err, domain.ErrInvalidSubject) {
				t.Fatalf("expected ErrInvalidSubject for %+v, got %v", subject, err)
			}
		}
	})

	t.Run("unknown hold", func(t *testing.T) {
		svc, _, _, _ := makeSvc()
		if _, err := svc.Evaluate(ctx, dining42); !errors.Is(err, domain.ErrHoldNotFound) {
			t.Fatalf("expected ErrHoldNotFound, got %v", err)
		}
		if err := svc.Clear(ctx, dining42); err != nil {
			t.Fatalf("expected clear of missing hold to be a no-op, got %v", err)
		}
	})
}
