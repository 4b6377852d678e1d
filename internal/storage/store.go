// Package storage persists listings, requests, confirmations and
// notifications. Seat counters are only ever changed through ReserveSeats and
// ReleaseSeats, which are conditional updates rather than read-then-write.
package storage

import (
	"context"
	"time"

	"github.com/example/travel-matching/internal/models"
)

// ListingFilter narrows ListOpenListings. Zero values mean no constraint.
type ListingFilter struct {
	Kind           models.ListingKind
	DepartingAfter time.Time
}

type ListingStore interface {
	CreateListing(ctx context.Context, l *models.Listing) error
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	ListOpenListings(ctx context.Context, f ListingFilter) ([]models.Listing, error)
	// ReserveSeats decrements seats_available by n only if at least n seats
	// are left on an open listing; otherwise it returns a capacity error.
	ReserveSeats(ctx context.Context, listingID string, n int) error
	// ReleaseSeats increments seats_available by n, never beyond total_seats.
	ReleaseSeats(ctx context.Context, listingID string, n int) error
	// CloseListing moves an open listing to closed; false if it was not open.
	CloseListing(ctx context.Context, id string, at time.Time) (bool, error)
	ListDepartedOpen(ctx context.Context, departedBefore time.Time, limit int) ([]string, error)
}

type RequestStore interface {
	CreateRequest(ctx context.Context, r *models.StandingRequest) error
	GetRequest(ctx context.Context, id string) (*models.StandingRequest, error)
	ListActiveRequests(ctx context.Context, kind models.ListingKind, now time.Time) ([]models.StandingRequest, error)
	DeactivateExpiredRequests(ctx context.Context, now time.Time) (int, error)

	CreateSubscription(ctx context.Context, s *models.Subscription) error
	ListActiveSubscriptions(ctx context.Context, kind models.ListingKind, role models.SubscriptionRole) ([]models.Subscription, error)
}

type ConfirmationStore interface {
	CreateConfirmation(ctx context.Context, c *models.Confirmation) error
	GetConfirmation(ctx context.Context, id string) (*models.Confirmation, error)
	// FindOpenConfirmation returns the pending or accepted confirmation of
	// requesterID on listingID, or nil when there is none.
	FindOpenConfirmation(ctx context.Context, listingID, requesterID string) (*models.Confirmation, error)
	// UpdateConfirmation writes c only if the stored status still equals
	// expected; otherwise it returns a state error.
	UpdateConfirmation(ctx context.Context, c *models.Confirmation, expected models.ConfirmationStatus) error
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]string, error)
	AcceptedSeats(ctx context.Context, listingID string) (int, error)
}

type NotificationStore interface {
	// InsertNotification stores rec unless a record with the same dedup key
	// exists. It reports whether a row was created.
	InsertNotification(ctx context.Context, rec *models.NotificationRecord) (bool, error)
	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]models.NotificationRecord, error)
	MarkNotificationRead(ctx context.Context, id, recipientID string) error
	DeleteNotification(ctx context.Context, id, recipientID string) error
}

// Store is the full persistence collaborator.
type Store interface {
	ListingStore
	RequestStore
	ConfirmationStore
	NotificationStore

	// WithinTx runs fn atomically. Nested calls join the outer transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
