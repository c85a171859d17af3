package app

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cimillas/checkin-pay/internal/domain"
	"github.com/cimillas/checkin-pay/internal/storage"
)

type dueHold struct {
	sessionID string
	subject   domain.Subject
}

// SweepHolds ticks every RUNNING timer whose window has passed, across all
// sessions, so abandoned payment screens still release their inventory.
func (s *Service) SweepHolds(ctx context.Context) (int, error) {
	now := s.clock.Now()
	var due []dueHold

	err := s.store.Scan(ctx, storage.SessionPrefix(), func(key string, value []byte) error {
		sessionID, rest, ok := storage.SplitSessionKey(key)
		if !ok || !strings.HasPrefix(rest, holdPrefix) {
			return nil
		}
		var t domain.HoldTimer
		if err := json.Unmarshal(value, &t); err != nil {
			s.logger.Printf("sweep skip key=%s: %v", key, err)
			return nil
		}
		if t.Status == domain.HoldStatusRunning && t.Elapsed(now) {
			due = append(due, dueHold{sessionID: sessionID, subject: t.Subject})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, d := range due {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		t, err := s.Session(d.sessionID).Holds.Evaluate(ctx, d.subject)
		if err != nil {
			s.logger.Printf("sweep session=%s subject=%s: %v", d.sessionID, d.subject, err)
			continue
		}
		if t.Status == domain.HoldStatusExpired {
			expired++
		}
	}
	return expired, nil
}

// RunSweeper calls SweepHolds every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepHolds(ctx)
			if err != nil && ctx.Err() == nil {
				s.logger.Printf("sweep failed: %v", err)
			}
			if n > 0 {
				s.logger.Printf("sweep expired=%d", n)
			}
		}
	}
}
