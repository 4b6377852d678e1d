package expiry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs the sweep on a fixed interval until ctx is cancelled. The
// first sweep runs immediately so overdue rows are caught up on start.
type Scheduler struct {
	Sweeper  *Sweeper
	Interval time.Duration
	Logger   *zap.Logger
}

func (s *Scheduler) Run(ctx context.Context) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("expiry_scheduler_started", zap.Duration("interval", s.Interval))

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		// A sweep is not interrupted by shutdown mid-batch.
		s.Sweeper.RunExpirySweep(context.WithoutCancel(ctx))
		select {
		case <-ctx.Done():
			logger.Info("expiry_scheduler_stopped")
			return nil
		case <-ticker.C:
		}
	}
}
