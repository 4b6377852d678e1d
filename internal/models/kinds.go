package models

import "fmt"

// ListingKind tags the Listing variant. Standing requests and subscriptions
// carry the kind of listing they are looking for.
type ListingKind string

const (
	KindTrip    ListingKind = "trip"
	KindCarRide ListingKind = "car_ride"
)

func ParseListingKind(s string) (ListingKind, error) {
	k := ListingKind(s)
	switch k {
	case KindTrip, KindCarRide:
		return k, nil
	default:
		return "", fmt.Errorf("unknown listing kind %q", s)
	}
}

// MatchType is the notification type raised when a listing of this kind
// matches a searcher.
func (k ListingKind) MatchType() (NotificationType, error) {
	switch k {
	case KindTrip:
		return NotificationTripMatch, nil
	case KindCarRide:
		return NotificationRideMatch, nil
	default:
		return "", fmt.Errorf("no match notification for listing kind %q", k)
	}
}

// RequestAlertType is the notification type raised to listing owners when a
// request for this kind is posted.
func (k ListingKind) RequestAlertType() (NotificationType, error) {
	switch k {
	case KindTrip:
		return NotificationTripRequestAlert, nil
	case KindCarRide:
		return NotificationRideRequestAlert, nil
	default:
		return "", fmt.Errorf("no request alert for listing kind %q", k)
	}
}
