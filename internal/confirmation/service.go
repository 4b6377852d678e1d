// Package confirmation runs the booking lifecycle between a listing owner and
// a requester. Seats are reserved only on accept and every seat change goes
// through the store's conditional updates inside one transaction with the
// status change.
package confirmation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/travel-matching/internal/apperr"
	"github.com/example/travel-matching/internal/models"
	"github.com/example/travel-matching/internal/observability"
)

const (
	DefaultPendingTTL     = 24 * time.Hour
	DefaultReversalWindow = 5 * time.Minute
)

type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetListing(ctx context.Context, id string) (*models.Listing, error)
	ReserveSeats(ctx context.Context, listingID string, n int) error
	ReleaseSeats(ctx context.Context, listingID string, n int) error

	CreateConfirmation(ctx context.Context, c *models.Confirmation) error
	GetConfirmation(ctx context.Context, id string) (*models.Confirmation, error)
	FindOpenConfirmation(ctx context.Context, listingID, requesterID string) (*models.Confirmation, error)
	UpdateConfirmation(ctx context.Context, c *models.Confirmation, expected models.ConfirmationStatus) error
}

type Service struct {
	Store          Store
	Now            func() time.Time
	PendingTTL     time.Duration
	ReversalWindow time.Duration
	Logger         *zap.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) pendingTTL() time.Duration {
	if s.PendingTTL > 0 {
		return s.PendingTTL
	}
	return DefaultPendingTTL
}

func (s *Service) reversalWindow() time.Duration {
	if s.ReversalWindow > 0 {
		return s.ReversalWindow
	}
	return DefaultReversalWindow
}

func (s *Service) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

// RequestToJoin creates a pending confirmation. Seats are checked against
// what is available now but not reserved.
func (s *Service) RequestToJoin(ctx context.Context, listingID, requesterID string, seats int) (*models.Confirmation, error) {
	const op = "request_to_join"
	if requesterID == "" {
		return nil, apperr.Validation(op, "requester id is required")
	}
	if seats < 1 {
		return nil, apperr.Validation(op, "seats must be >= 1, got %d", seats)
	}

	var out *models.Confirmation
	err := s.Store.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.Store.GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		now := s.now()
		if l.Status != models.ListingOpen || l.Departed(now) {
			return apperr.State(op, "listing %s is not open for booking", listingID)
		}
		if l.OwnerID == requesterID {
			return apperr.Validation(op, "owner cannot join their own listing")
		}
		if seats > l.SeatsAvailable {
			observability.CapacityConflicts.Inc()
			return apperr.Capacity(op, "listing %s has %d seats left, %d requested", listingID, l.SeatsAvailable, seats)
		}
		open, err := s.Store.FindOpenConfirmation(ctx, listingID, requesterID)
		if err != nil {
			return err
		}
		if open != nil {
			return apperr.State(op, "requester already holds %s confirmation %s", open.Status, open.ID)
		}

		c := &models.Confirmation{
			ID:             uuid.NewString(),
			ListingKind:    l.Kind,
			ListingID:      l.ID,
			OwnerID:        l.OwnerID,
			RequesterID:    requesterID,
			Status:         models.ConfirmationPending,
			SeatsRequested: seats,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.Store.CreateConfirmation(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(out, "")
	return out, nil
}

func (s *Service) Get(ctx context.Context, id, actorID string) (*models.Confirmation, error) {
	c, err := s.Store.GetConfirmation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Party(actorID) {
		return nil, apperr.Forbidden("get_confirmation", "user is not a party to confirmation %s", id)
	}
	return c, nil
}

// Accept reserves the requested seats and moves pending to accepted. When the
// seats are gone it fails with a capacity error and the confirmation stays
// pending.
func (s *Service) Accept(ctx context.Context, id, actorID string) (*models.Confirmation, error) {
	const op = "accept"
	return s.mutate(ctx, op, id, func(ctx context.Context, c *models.Confirmation, now time.Time) error {
		if actorID != c.OwnerID {
			return apperr.Forbidden(op, "only the listing owner can accept")
		}
		if err := s.checkTransition(op, c, models.ConfirmationAccepted, now); err != nil {
			return err
		}
		if err := s.reserve(ctx, op, c); err != nil {
			return err
		}
		c.Status = models.ConfirmationAccepted
		c.ConfirmedAt = &now
		return nil
	})
}

func (s *Service) Reject(ctx context.Context, id, actorID string) (*models.Confirmation, error) {
	const op = "reject"
	return s.mutate(ctx, op, id, func(ctx context.Context, c *models.Confirmation, now time.Time) error {
		if actorID != c.OwnerID {
			return apperr.Forbidden(op, "only the listing owner can reject")
		}
		if err := s.checkTransition(op, c, models.ConfirmationRejected, now); err != nil {
			return err
		}
		c.Status = models.ConfirmationRejected
		return nil
	})
}

// Cancel is open to either party from pending or accepted. Seats held by an
// accepted confirmation are released.
func (s *Service) Cancel(ctx context.Context, id, actorID string) (*models.Confirmation, error) {
	const op = "cancel"
	return s.mutate(ctx, op, id, func(ctx context.Context, c *models.Confirmation, now time.Time) error {
		if !c.Party(actorID) {
			return apperr.Forbidden(op, "user is not a party to confirmation %s", c.ID)
		}
		if !c.Status.CanTransitionTo(models.ConfirmationCancelled) {
			return apperr.State(op, "cannot cancel a %s confirmation", c.Status)
		}
		if c.Status == models.ConfirmationAccepted {
			if err := s.Store.ReleaseSeats(ctx, c.ListingID, c.SeatsRequested); err != nil {
				return err
			}
		}
		c.PreviousStatus = c.Status
		c.Status = models.ConfirmationCancelled
		c.CancelledAt = &now
		c.CancelledBy = actorID
		return nil
	})
}

// Reverse undoes a cancellation once, within the reversal window. Restoring
// an accepted confirmation reserves its seats again and fails with a
// capacity error if they were taken in the meantime.
func (s *Service) Reverse(ctx context.Context, id, actorID string) (*models.Confirmation, error) {
	const op = "reverse"
	return s.mutate(ctx, op, id, func(ctx context.Context, c *models.Confirmation, now time.Time) error {
		if !c.Party(actorID) {
			return apperr.Forbidden(op, "user is not a party to confirmation %s", c.ID)
		}
		if c.Status != models.ConfirmationCancelled {
			return apperr.State(op, "only a cancelled confirmation can be reversed, this one is %s", c.Status)
		}
		if c.Reversed {
			return apperr.State(op, "confirmation %s was already reversed", c.ID)
		}
		if c.CancelledAt == nil || !c.PreviousStatus.Open() {
			return apperr.State(op, "confirmation %s has no reversible cancellation", c.ID)
		}
		if now.Sub(*c.CancelledAt) > s.reversalWindow() {
			return apperr.State(op, "reversal window of %s has passed", s.reversalWindow())
		}
		open, err := s.Store.FindOpenConfirmation(ctx, c.ListingID, c.RequesterID)
		if err != nil {
			return err
		}
		if open != nil {
			return apperr.State(op, "requester already holds %s confirmation %s", open.Status, open.ID)
		}
		if c.PreviousStatus == models.ConfirmationAccepted {
			if err := s.reserve(ctx, op, c); err != nil {
				return err
			}
		}
		c.Status = c.PreviousStatus
		c.PreviousStatus = ""
		c.CancelledAt = nil
		c.CancelledBy = ""
		c.Reversed = true
		return nil
	})
}

// Expire moves one pending confirmation older than the pending TTL to
// expired. It reports false when the row was already moved on, so repeated
// sweeps are harmless.
func (s *Service) Expire(ctx context.Context, id string) (bool, error) {
	const op = "expire"
	_, err := s.mutate(ctx, op, id, func(ctx context.Context, c *models.Confirmation, now time.Time) error {
		if c.Status != models.ConfirmationPending || now.Sub(c.CreatedAt) < s.pendingTTL() {
			return errSkip
		}
		c.Status = models.ConfirmationExpired
		return nil
	})
	switch {
	case errors.Is(err, errSkip), errors.Is(err, apperr.ErrState):
		return false, nil
	case err != nil:
		return false, err
	default:
		return true, nil
	}
}

var errSkip = errors.New("skip")

// StaleBefore is the creation cutoff below which pending confirmations are
// due to expire.
func (s *Service) StaleBefore(now time.Time) time.Time {
	return now.Add(-s.pendingTTL())
}

func (s *Service) checkTransition(op string, c *models.Confirmation, next models.ConfirmationStatus, now time.Time) error {
	if !c.Status.CanTransitionTo(next) {
		return apperr.State(op, "cannot move confirmation from %s to %s", c.Status, next)
	}
	if c.Status == models.ConfirmationPending && now.Sub(c.CreatedAt) >= s.pendingTTL() {
		return apperr.State(op, "confirmation %s has expired", c.ID)
	}
	return nil
}

func (s *Service) reserve(ctx context.Context, op string, c *models.Confirmation) error {
	l, err := s.Store.GetListing(ctx, c.ListingID)
	if err != nil {
		return err
	}
	if l.Status != models.ListingOpen {
		return apperr.State(op, "listing %s is closed", l.ID)
	}
	if err := s.Store.ReserveSeats(ctx, c.ListingID, c.SeatsRequested); err != nil {
		if errors.Is(err, apperr.ErrCapacity) {
			observability.CapacityConflicts.Inc()
		}
		return err
	}
	return nil
}

// mutate loads the confirmation, applies fn and writes it back with a status
// compare-and-set, all in one transaction.
func (s *Service) mutate(ctx context.Context, op, id string, fn func(ctx context.Context, c *models.Confirmation, now time.Time) error) (*models.Confirmation, error) {
	var (
		out  *models.Confirmation
		from models.ConfirmationStatus
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.Store.GetConfirmation(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		from = c.Status
		if err := fn(ctx, c, now); err != nil {
			return err
		}
		c.UpdatedAt = now
		if err := s.Store.UpdateConfirmation(ctx, c, from); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		if !errors.Is(err, errSkip) {
			s.logger().Debug("confirmation_transition_refused", zap.String("op", op), zap.String("confirmation_id", id), zap.Error(err))
		}
		return nil, err
	}
	s.transitioned(out, from)
	return out, nil
}

func (s *Service) transitioned(c *models.Confirmation, from models.ConfirmationStatus) {
	observability.ConfirmationTransitions.WithLabelValues(string(c.Status)).Inc()
	s.logger().Info("confirmation_transition",
		zap.String("confirmation_id", c.ID),
		zap.String("listing_id", c.ListingID),
		zap.String("from", string(from)),
		zap.String("to", string(c.Status)),
		zap.Int("seats", c.SeatsRequested),
	)
}
