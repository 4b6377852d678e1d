// Package marketplace owns posting and reading listings, standing requests,
// subscriptions and a recipient's notifications. Posts are announced so that
// matching runs after the row is stored.
package marketplace

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/travel-matching/internal/apperr"
	"github.com/example/travel-matching/internal/models"
)

// Announcer is told about every stored post: the Kafka producer, or the
// inline matching pipeline when no broker is configured.
type Announcer interface {
	ListingPosted(ctx context.Context, l models.Listing) error
	RequestPosted(ctx context.Context, r models.StandingRequest) error
}

type Store interface {
	CreateListing(ctx context.Context, l *models.Listing) error
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	CloseListing(ctx context.Context, id string, at time.Time) (bool, error)

	CreateRequest(ctx context.Context, r *models.StandingRequest) error
	GetRequest(ctx context.Context, id string) (*models.StandingRequest, error)
	CreateSubscription(ctx context.Context, s *models.Subscription) error

	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]models.NotificationRecord, error)
	MarkNotificationRead(ctx context.Context, id, recipientID string) error
	DeleteNotification(ctx context.Context, id, recipientID string) error
}

type Service struct {
	Store      Store
	Announcer  Announcer
	RequestTTL time.Duration
	Now        func() time.Time
	Logger     *zap.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

// CreateListing stores a new open listing with every seat available and
// announces it. An announce failure is logged; the listing stays posted.
func (s *Service) CreateListing(ctx context.Context, ownerID string, l models.Listing) (*models.Listing, error) {
	const op = "create_listing"
	now := s.now()
	l.ID = uuid.NewString()
	l.OwnerID = ownerID
	l.Status = models.ListingOpen
	l.SeatsAvailable = l.TotalSeats
	l.CreatedAt, l.UpdatedAt = now, now
	l.ClosedAt = nil
	if err := l.Validate(); err != nil {
		return nil, apperr.Validation(op, "%v", err)
	}
	if l.Departed(now) {
		return nil, apperr.Validation(op, "departure must not be in the past")
	}
	if err := s.Store.CreateListing(ctx, &l); err != nil {
		return nil, err
	}
	if s.Announcer != nil {
		if err := s.Announcer.ListingPosted(ctx, l); err != nil {
			s.logger().Error("announce_listing_failed", zap.String("listing_id", l.ID), zap.Error(err))
		}
	}
	return &l, nil
}

func (s *Service) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	return s.Store.GetListing(ctx, id)
}

// CloseListing lets the owner close an open listing by hand.
func (s *Service) CloseListing(ctx context.Context, id, actorID string) (*models.Listing, error) {
	const op = "close_listing"
	l, err := s.Store.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.OwnerID != actorID {
		return nil, apperr.Forbidden(op, "only the owner can close listing %s", id)
	}
	closed, err := s.Store.CloseListing(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	if !closed {
		return nil, apperr.State(op, "listing %s is already closed", id)
	}
	return s.Store.GetListing(ctx, id)
}

// CreateRequest stores an active standing request, defaulting its expiry,
// and announces it.
func (s *Service) CreateRequest(ctx context.Context, ownerID string, r models.StandingRequest) (*models.StandingRequest, error) {
	const op = "create_request"
	now := s.now()
	r.ID = uuid.NewString()
	r.OwnerID = ownerID
	r.Active = true
	r.CreatedAt = now
	if r.ExpiresAt.IsZero() {
		ttl := s.RequestTTL
		if ttl <= 0 {
			ttl = models.DefaultRequestTTL
		}
		r.ExpiresAt = now.Add(ttl)
	}
	if err := r.Validate(); err != nil {
		return nil, apperr.Validation(op, "%v", err)
	}
	if !r.ExpiresAt.After(now) {
		return nil, apperr.Validation(op, "expiry must be in the future")
	}
	if err := s.Store.CreateRequest(ctx, &r); err != nil {
		return nil, err
	}
	if s.Announcer != nil {
		if err := s.Announcer.RequestPosted(ctx, r); err != nil {
			s.logger().Error("announce_request_failed", zap.String("request_id", r.ID), zap.Error(err))
		}
	}
	return &r, nil
}

func (s *Service) GetRequest(ctx context.Context, id string) (*models.StandingRequest, error) {
	return s.Store.GetRequest(ctx, id)
}

// CreateSubscription stores an active alert subscription. Alerts are
// forward looking, so nothing is matched on creation.
func (s *Service) CreateSubscription(ctx context.Context, ownerID string, sub models.Subscription) (*models.Subscription, error) {
	sub.ID = uuid.NewString()
	sub.OwnerID = ownerID
	sub.Active = true
	sub.CreatedAt = s.now()
	if err := sub.Validate(); err != nil {
		return nil, apperr.Validation("create_subscription", "%v", err)
	}
	if err := s.Store.CreateSubscription(ctx, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Service) Notifications(ctx context.Context, recipientID string, unreadOnly bool) ([]models.NotificationRecord, error) {
	return s.Store.ListNotifications(ctx, recipientID, unreadOnly)
}

func (s *Service) MarkRead(ctx context.Context, id, recipientID string) error {
	return s.Store.MarkNotificationRead(ctx, id, recipientID)
}

func (s *Service) DeleteNotification(ctx context.Context, id, recipientID string) error {
	return s.Store.DeleteNotification(ctx, id, recipientID)
}
