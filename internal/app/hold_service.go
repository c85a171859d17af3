package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cimillas/checkin-pay/internal/clock"
	"github.com/cimillas/checkin-pay/internal/domain"
	"github.com/cimillas/checkin-pay/internal/storage"
)

// Releaser gives held inventory back to the backend.
type Releaser interface {
	Release(ctx context.Context, req domain.ReleaseRequest) error
}

const (
	releaseReasonExpired   = "expired"
	releaseReasonCancelled = "cancelled"
)

// HoldService runs the payment-screen countdown for one session.
type HoldService struct {
	store    storage.Store
	coord    *Coordinator
	releaser Releaser
	clock    clock.Clock
	duration time.Duration
	logger   *log.Logger
}

const defaultHoldDuration = 600 * time.Second

func NewHoldService(store storage.Store, coord *Coordinator, releaser Releaser, clk clock.Clock, logger *log.Logger, opts ...HoldServiceOption) *HoldService {
	svc := &HoldService{
		store:    store,
		coord:    coord,
		releaser: releaser,
		clock:    clk,
		duration: defaultHoldDuration,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type HoldServiceOption func(*HoldService)

// WithHoldDuration overrides the default window for new timers.
func WithHoldDuration(d time.Duration) HoldServiceOption {
	return func(s *HoldService) {
		if d >= time.Second {
			s.duration = d
		}
	}
}

// Enter starts the timer for subject, or resumes it. A RUNNING timer for the same
// subject keeps its original start; anything else gets a full window.
func (s *HoldService) Enter(ctx context.Context, subject domain.Subject) (domain.HoldTimer, error) {
	if err := subject.Validate(); err != nil {
		return domain.HoldTimer{}, err
	}

	// Settle an overdue timer first so its order is blocked and inventory released.
	if _, err := s.Evaluate(ctx, subject); err != nil && !errors.Is(err, domain.ErrHoldNotFound) {
		return domain.HoldTimer{}, err
	}

	now := s.clock.Now()
	var result domain.HoldTimer

	err := storage.UpdateJSON(ctx, s.store, holdKey(subject), func(cur domain.HoldTimer, found bool) (domain.HoldTimer, bool, error) {
		if found && cur.Status == domain.HoldStatusRunning && !cur.Elapsed(now) {
			result = cur
			return cur, false, nil
		}
		result = domain.HoldTimer{
			Subject:         subject,
			StartedAt:       now,
			DurationSeconds: int(s.duration / time.Second),
			Status:          domain.HoldStatusRunning,
		}
		return result, true, nil
	})
	if err != nil {
		return domain.HoldTimer{}, fmt.Errorf("enter hold %s: %w", subject, err)
	}
	return result, nil
}

// Get returns the stored timer without evaluating it.
func (s *HoldService) Get(ctx context.Context, subject domain.Subject) (domain.HoldTimer, error) {
	timer, found, err := storage.GetJSON[domain.HoldTimer](ctx, s.store, holdKey(subject))
	if err != nil {
		return domain.HoldTimer{}, err
	}
	if !found {
		return domain.HoldTimer{}, domain.ErrHoldNotFound
	}
	return timer, nil
}

// Evaluate is one timer tick. A RUNNING timer whose order was processed becomes
// CLEARED; one whose window has elapsed becomes EXPIRED, blocking the order and
// releasing inventory.
func (s *HoldService) Evaluate(ctx context.Context, subject domain.Subject) (domain.HoldTimer, error) {
	timer, err := s.Get(ctx, subject)
	if err != nil {
		return domain.HoldTimer{}, err
	}
	if timer.Status != domain.HoldStatusRunning {
		return timer, nil
	}

	if timer.OrderID != "" {
		rec, found, err := s.coord.Record(ctx, timer.OrderID)
		if err != nil {
			return domain.HoldTimer{}, err
		}
		if found && rec.State == domain.ConfirmProcessed {
			timer, _, err = s.finish(ctx, subject, domain.HoldStatusCleared)
			return timer, err
		}
	}

	if !timer.Elapsed(s.clock.Now()) {
		return timer, nil
	}

	if timer.OrderID != "" {
		processed, err := s.coord.Block(ctx, timer.OrderID)
		if err != nil {
			return domain.HoldTimer{}, err
		}
		if processed {
			timer, _, err = s.finish(ctx, subject, domain.HoldStatusCleared)
			return timer, err
		}
	}

	timer, changed, err := s.finish(ctx, subject, domain.HoldStatusExpired)
	if err != nil {
		return domain.HoldTimer{}, err
	}
	if changed {
		s.logger.Printf("hold expired subject=%s order_id=%s", subject, timer.OrderID)
		s.release(ctx, timer, releaseReasonExpired)
	}
	return timer, nil
}

// AttachOrder binds the order being paid to the RUNNING timer.
func (s *HoldService) AttachOrder(ctx context.Context, subject domain.Subject, orderID string) (domain.HoldTimer, error) {
	if orderID == "" {
		return domain.HoldTimer{}, domain.ErrOrderIDRequired
	}

	var result domain.HoldTimer
	err := storage.UpdateJSON(ctx, s.store, holdKey(subject), func(cur domain.HoldTimer, found bool) (domain.HoldTimer, bool, error) {
		if !found {
			return cur, false, domain.ErrHoldNotFound
		}
		result = cur
		switch cur.Status {
		case domain.HoldStatusExpired:
			return cur, false, domain.ErrHoldExpired
		case domain.HoldStatusCleared:
			return cur, false, domain.ErrHoldNotFound
		}
		if cur.OrderID == orderID {
			return cur, false, nil
		}
		if cur.OrderID != "" {
			return cur, false, domain.ErrIdempotencyConflict
		}
		cur.OrderID = orderID
		result = cur
		return cur, true, nil
	})
	return result, err
}

// Clear stops a RUNNING timer after payment. Ended or missing timers are left alone.
func (s *HoldService) Clear(ctx context.Context, subject domain.Subject) error {
	_, _, err := s.finish(ctx, subject, domain.HoldStatusCleared)
	if errors.Is(err, domain.ErrHoldNotFound) {
		return nil
	}
	return err
}

// Cancel is the user leaving the payment screen: the timer is CLEARED and the
// inventory handed back. The order itself stays confirmable so a payment the
// provider already took can still be recorded.
func (s *HoldService) Cancel(ctx context.Context, subject domain.Subject) (domain.HoldTimer, error) {
	timer, changed, err := s.finish(ctx, subject, domain.HoldStatusCleared)
	if err != nil {
		return domain.HoldTimer{}, err
	}
	if changed {
		s.logger.Printf("hold cancelled subject=%s order_id=%s", subject, timer.OrderID)
		s.release(ctx, timer, releaseReasonCancelled)
	}
	return timer, nil
}

// finish moves a RUNNING timer to status. changed is false when the timer had
// already ended, in which case the stored timer is returned as is.
func (s *HoldService) finish(ctx context.Context, subject domain.Subject, status domain.HoldStatus) (domain.HoldTimer, bool, error) {
	now := s.clock.Now()
	var (
		result  domain.HoldTimer
		changed bool
	)
	err := storage.UpdateJSON(ctx, s.store, holdKey(subject), func(cur domain.HoldTimer, found bool) (domain.HoldTimer, bool, error) {
		if !found {
			return cur, false, domain.ErrHoldNotFound
		}
		result = cur
		if cur.Status != domain.HoldStatusRunning {
			return cur, false, nil
		}
		cur.Status = status
		cur.EndedAt = &now
		result, changed = cur, true
		return cur, true, nil
	})
	if err != nil {
		return domain.HoldTimer{}, false, err
	}
	return result, changed, nil
}

func (s *HoldService) release(ctx context.Context, timer domain.HoldTimer, reason string) {
	if s.releaser == nil {
		return
	}
	err := s.releaser.Release(context.WithoutCancel(ctx), domain.ReleaseRequest{
		OrderID:     timer.OrderID,
		SubjectType: timer.Subject.Type,
		SubjectID:   timer.Subject.ID,
		Reason:      reason,
	})
	if err != nil {
		s.logger.Printf("hold release failed subject=%s reason=%s: %v", timer.Subject, reason, err)
	}
}
