package models

import "time"

type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "pending"
	ConfirmationAccepted  ConfirmationStatus = "accepted"
	ConfirmationRejected  ConfirmationStatus = "rejected"
	ConfirmationCancelled ConfirmationStatus = "cancelled"
	ConfirmationExpired   ConfirmationStatus = "expired"
)

// Valid reports whether status is one of the known confirmation statuses.
func (s ConfirmationStatus) Valid() bool {
	switch s {
	case ConfirmationPending, ConfirmationAccepted, ConfirmationRejected, ConfirmationCancelled, ConfirmationExpired:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether next is reachable from s. The
// cancelled -> previous hop is a reversal and is checked separately.
func (s ConfirmationStatus) CanTransitionTo(next ConfirmationStatus) bool {
	switch s {
	case ConfirmationPending:
		return next == ConfirmationAccepted || next == ConfirmationRejected ||
			next == ConfirmationExpired || next == ConfirmationCancelled
	case ConfirmationAccepted:
		return next == ConfirmationCancelled
	case ConfirmationCancelled, ConfirmationRejected, ConfirmationExpired:
		return false
	default:
		return false
	}
}

// Open reports whether the confirmation still holds or awaits a seat.
func (s ConfirmationStatus) Open() bool {
	return s == ConfirmationPending || s == ConfirmationAccepted
}

// Confirmation links one listing to one requester.
type Confirmation struct {
	ID             string             `json:"id"`
	ListingKind    ListingKind        `json:"listing_kind"`
	ListingID      string             `json:"listing_id"`
	OwnerID        string             `json:"owner_id"`
	RequesterID    string             `json:"requester_id"`
	Status         ConfirmationStatus `json:"status"`
	SeatsRequested int                `json:"seats_requested"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	ConfirmedAt    *time.Time         `json:"confirmed_at,omitempty"`
	CancelledAt    *time.Time         `json:"cancelled_at,omitempty"`
	CancelledBy    string             `json:"cancelled_by,omitempty"`
	PreviousStatus ConfirmationStatus `json:"previous_status,omitempty"`
	Reversed       bool               `json:"reversed"`
}

// Party reports whether userID is the owner or the requester.
func (c *Confirmation) Party(userID string) bool {
	return userID != "" && (userID == c.OwnerID || userID == c.RequesterID)
}
