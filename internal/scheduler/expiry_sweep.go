package scheduler

import (
	"context"
	"time"

	"quote_pipeline_backend/platform/logger"

	"github.com/google/uuid"
)

const defaultExpirySweepInterval = 15 * time.Minute

// OverdueExpirer expires every sent quote whose validity has passed.
type OverdueExpirer interface {
	ExpireOverdue(ctx context.Context) ([]uuid.UUID, error)
}

// ExpirySweeper periodically catches quotes whose scheduled task was lost,
// for instance when Redis was flushed or the quote predates the scheduler.
type ExpirySweeper struct {
	expirer  OverdueExpirer
	log      *logger.Logger
	interval time.Duration
}

func NewExpirySweeper(expirer OverdueExpirer, log *logger.Logger, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = defaultExpirySweepInterval
	}

	return &ExpirySweeper{
		expirer:  expirer,
		log:      log.WithComponent("expiry_sweep"),
		interval: interval,
	}
}

func (s *ExpirySweeper) Run(ctx context.Context) {
	if s == nil || s.expirer == nil {
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) int {
	expired, err := s.expirer.ExpireOverdue(ctx)
	if err != nil {
		s.log.Warn("quote expiry sweep failed", "error", err)
		return 0
	}

	if len(expired) > 0 {
		s.log.Info("quote expiry sweep expired quotes", "expired", len(expired))
	}
	return len(expired)
}
