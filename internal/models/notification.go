package models

import "time"

type NotificationType string

const (
	NotificationRideMatch        NotificationType = "ride_match"
	NotificationTripMatch        NotificationType = "trip_match"
	NotificationRideRequestAlert NotificationType = "ride_request_alert"
	NotificationTripRequestAlert NotificationType = "trip_request_alert"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type RelatedKind string

const (
	RelatedListing RelatedKind = "listing"
	RelatedRequest RelatedKind = "request"
)

// NotificationRecord is a persisted alert for one recipient.
type NotificationRecord struct {
	ID            string           `json:"id"`
	RecipientID   string           `json:"recipient_id"`
	Type          NotificationType `json:"type"`
	Priority      Priority         `json:"priority"`
	Read          bool             `json:"read"`
	RelatedUserID string           `json:"related_user_id"`
	RelatedKind   RelatedKind      `json:"related_kind"`
	RelatedID     string           `json:"related_id"`
	DedupKey      string           `json:"-"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Match is a recipient that should be alerted about a related listing or
// request. Matches are produced by the matcher and consumed by the
// dispatcher.
type Match struct {
	RecipientID   string
	RelatedUserID string
	RelatedKind   RelatedKind
	RelatedID     string
	Type          NotificationType
	Priority      Priority
}

// DedupKey identifies the alert independently of its priority or origin.
func (m Match) DedupKey() string {
	return m.RecipientID + "|" + m.RelatedID + "|" + string(m.Type)
}
