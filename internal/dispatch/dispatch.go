// Package dispatch turns matches into persisted, deduplicated notification
// records and pushes them to connected clients.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/travel-matching/internal/apperr"
	"github.com/example/travel-matching/internal/models"
	"github.com/example/travel-matching/internal/observability"
)

// Pusher delivers one record to a recipient. Delivery is best effort.
type Pusher interface {
	Push(ctx context.Context, recipientID string, rec models.NotificationRecord) error
}

// Claimer reserves a dedup key ahead of the insert so concurrent
// dispatchers skip the store round trip for keys already taken.
type Claimer interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Store persists notification records. InsertNotification must be atomic per
// dedup key.
type Store interface {
	InsertNotification(ctx context.Context, rec *models.NotificationRecord) (bool, error)
}

const (
	defaultPushTimeout = 3 * time.Second
	releaseTimeout     = 2 * time.Second
)

type Dispatcher struct {
	Store       Store
	Pusher      Pusher
	Claimer     Claimer
	PushTimeout time.Duration
	Now         func() time.Time
	Logger      *zap.Logger
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dispatcher) logger() *zap.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return zap.NewNop()
}

func priorityRank(p models.Priority) int {
	switch p {
	case models.PriorityHigh:
		return 0
	case models.PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Dispatch persists one record per distinct dedup key that is not already
// stored and pushes each new record. It returns the number of records
// created. Push failures are logged and counted, never returned; store
// failures are joined into the error while the rest of the batch proceeds.
func (d *Dispatcher) Dispatch(ctx context.Context, matches []models.Match) (int, error) {
	ordered := make([]models.Match, len(matches))
	copy(ordered, matches)
	// A direct match and a subscription alert may share a key; the direct
	// one is offered first so it keeps the higher priority.
	sort.SliceStable(ordered, func(i, j int) bool {
		return priorityRank(ordered[i].Priority) < priorityRank(ordered[j].Priority)
	})

	seen := make(map[string]struct{}, len(ordered))
	created := 0
	var errs []error
	for _, m := range ordered {
		key := m.DedupKey()
		if _, dup := seen[key]; dup {
			observability.NotificationsDeduplicated.Inc()
			continue
		}
		seen[key] = struct{}{}

		rec, ok, err := d.persist(ctx, m, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			observability.NotificationsDeduplicated.Inc()
			continue
		}
		created++
		observability.NotificationsCreated.Inc()
		d.push(ctx, rec)
	}
	return created, errors.Join(errs...)
}

func (d *Dispatcher) persist(ctx context.Context, m models.Match, key string) (models.NotificationRecord, bool, error) {
	claimed := false
	if d.Claimer != nil {
		ok, err := d.Claimer.Claim(ctx, key)
		switch {
		case err != nil:
			// The store still enforces uniqueness.
			d.logger().Warn("dispatch_claim_failed", zap.String("dedup_key", key), zap.Error(err))
		case !ok:
			return models.NotificationRecord{}, false, nil
		default:
			claimed = true
		}
	}

	rec := models.NotificationRecord{
		ID:            uuid.NewString(),
		RecipientID:   m.RecipientID,
		Type:          m.Type,
		Priority:      m.Priority,
		RelatedUserID: m.RelatedUserID,
		RelatedKind:   m.RelatedKind,
		RelatedID:     m.RelatedID,
		DedupKey:      key,
		CreatedAt:     d.now(),
	}
	inserted, err := d.Store.InsertNotification(ctx, &rec)
	if err != nil {
		if claimed {
			// The caller may have been cancelled mid-insert; a claim left
			// behind would suppress the record on redelivery.
			relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			relErr := d.Claimer.Release(relCtx, key)
			cancel()
			if relErr != nil {
				d.logger().Warn("dispatch_release_failed", zap.String("dedup_key", key), zap.Error(relErr))
			}
		}
		return rec, false, fmt.Errorf("persist notification %s: %w", key, err)
	}
	return rec, inserted, nil
}

func (d *Dispatcher) push(ctx context.Context, rec models.NotificationRecord) {
	if d.Pusher == nil {
		return
	}
	timeout := d.PushTimeout
	if timeout <= 0 {
		timeout = defaultPushTimeout
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := d.Pusher.Push(pctx, rec.RecipientID, rec)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoSession):
		// Offline; the record is still listed on next fetch.
		d.logger().Debug("dispatch_recipient_offline", zap.String("recipient_id", rec.RecipientID))
	default:
		observability.PushFailures.Inc()
		d.logger().Warn("dispatch_push_failed",
			zap.String("recipient_id", rec.RecipientID),
			zap.String("notification_id", rec.ID),
			zap.Error(apperr.Transport("push", err)),
		)
	}
}
