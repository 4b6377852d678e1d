// Package expiry advances time-based transitions: stale pending
// confirmations expire, departed listings close and standing requests past
// their expiry are deactivated.
package expiry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/travel-matching/internal/observability"
)

const (
	DefaultBatchSize           = 500
	DefaultCloseAfterDeparture = 24 * time.Hour
)

type Store interface {
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]string, error)
	ListDepartedOpen(ctx context.Context, departedBefore time.Time, limit int) ([]string, error)
	CloseListing(ctx context.Context, id string, at time.Time) (bool, error)
	DeactivateExpiredRequests(ctx context.Context, now time.Time) (int, error)
}

// Expirer moves one confirmation to expired when it is still due.
type Expirer interface {
	Expire(ctx context.Context, id string) (bool, error)
	StaleBefore(now time.Time) time.Time
}

// SweepReport counts what one sweep changed.
type SweepReport struct {
	Expired             int `json:"expired"`
	ClosedListings      int `json:"closed_listings"`
	DeactivatedRequests int `json:"deactivated_requests"`
	Failures            int `json:"failures"`
}

type Sweeper struct {
	Store               Store
	Confirmations       Expirer
	BatchSize           int
	CloseAfterDeparture time.Duration
	Now                 func() time.Time
	Logger              *zap.Logger
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Sweeper) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

func (s *Sweeper) batchSize() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return DefaultBatchSize
}

// RunExpirySweep processes every overdue row in batches. It never returns an
// error: per-row failures are logged and counted and the sweep moves on.
// Each row change is conditional, so concurrent or repeated sweeps do not
// apply an effect twice. Cancelling ctx stops the sweep between batches.
func (s *Sweeper) RunExpirySweep(ctx context.Context) SweepReport {
	start := time.Now()
	now := s.now()
	var rep SweepReport

	if s.Confirmations != nil {
		cutoff := s.Confirmations.StaleBefore(now)
		rep.Expired, rep.Failures = s.drain(ctx, "expire_confirmation",
			func(ctx context.Context, limit int) ([]string, error) {
				return s.Store.ListStalePending(ctx, cutoff, limit)
			},
			s.Confirmations.Expire,
		)
	}

	closeAfter := s.CloseAfterDeparture
	if closeAfter == 0 {
		closeAfter = DefaultCloseAfterDeparture
	}
	departedBefore := now.Add(-closeAfter)
	closed, failed := s.drain(ctx, "close_listing",
		func(ctx context.Context, limit int) ([]string, error) {
			return s.Store.ListDepartedOpen(ctx, departedBefore, limit)
		},
		func(ctx context.Context, id string) (bool, error) {
			return s.Store.CloseListing(ctx, id, now)
		},
	)
	rep.ClosedListings = closed
	rep.Failures += failed

	if ctx.Err() == nil {
		n, err := s.Store.DeactivateExpiredRequests(ctx, now)
		if err != nil {
			rep.Failures++
			s.logger().Error("sweep_requests_failed", zap.Error(err))
		}
		rep.DeactivatedRequests = n
	}

	observability.SweepRows.WithLabelValues("expired").Add(float64(rep.Expired))
	observability.SweepRows.WithLabelValues("closed").Add(float64(rep.ClosedListings))
	observability.SweepRows.WithLabelValues("deactivated").Add(float64(rep.DeactivatedRequests))
	observability.SweepRows.WithLabelValues("failed").Add(float64(rep.Failures))
	observability.SweepDuration.Observe(time.Since(start).Seconds())

	s.logger().Info("sweep_completed",
		zap.Int("expired", rep.Expired),
		zap.Int("closed_listings", rep.ClosedListings),
		zap.Int("deactivated_requests", rep.DeactivatedRequests),
		zap.Int("failures", rep.Failures),
		zap.Duration("took", time.Since(start)),
	)
	return rep
}

// drain lists due ids batch by batch and applies step to each. It stops when
// a batch comes back short or changes nothing, so rows that keep failing
// cannot spin the loop.
func (s *Sweeper) drain(
	ctx context.Context,
	action string,
	list func(ctx context.Context, limit int) ([]string, error),
	step func(ctx context.Context, id string) (bool, error),
) (changed, failed int) {
	limit := s.batchSize()
	for ctx.Err() == nil {
		ids, err := list(ctx, limit)
		if err != nil {
			failed++
			s.logger().Error("sweep_list_failed", zap.String("action", action), zap.Error(err))
			return changed, failed
		}
		progress := 0
		for _, id := range ids {
			ok, err := step(ctx, id)
			if err != nil {
				failed++
				s.logger().Warn("sweep_row_failed", zap.String("action", action), zap.String("id", id), zap.Error(err))
				continue
			}
			if ok {
				changed++
				progress++
			}
		}
		if len(ids) < limit || progress == 0 {
			return changed, failed
		}
	}
	return changed, failed
}
