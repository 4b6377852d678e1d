package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type ListingStatus string

const (
	ListingOpen   ListingStatus = "open"
	ListingClosed ListingStatus = "closed"
)

// MaxWaypoints bounds the intermediate stops of a listing.
const MaxWaypoints = 3

// Listing is a posted trip or car ride offering seats on a one-way route.
type Listing struct {
	ID             string        `json:"id"`
	Kind           ListingKind   `json:"kind"`
	OwnerID        string        `json:"owner_id"`
	Origin         Location      `json:"origin"`
	Destination    Location      `json:"destination"`
	Waypoints      []Location    `json:"waypoints,omitempty"`
	DepartureAt    time.Time     `json:"departure_at"`
	Price          float64       `json:"price"`
	Currency       string        `json:"currency"`
	TotalSeats     int           `json:"total_seats"`
	SeatsAvailable int           `json:"seats_available"`
	Status         ListingStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	ClosedAt       *time.Time    `json:"closed_at,omitempty"`
}

// Validate checks the listing before it is stored.
func (l *Listing) Validate() error {
	var errs []error
	if _, err := ParseListingKind(string(l.Kind)); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(l.OwnerID) == "" {
		errs = append(errs, errors.New("owner id is required"))
	}
	if err := l.Origin.validate("origin"); err != nil {
		errs = append(errs, err)
	}
	if err := l.Destination.validate("destination"); err != nil {
		errs = append(errs, err)
	}
	if len(l.Waypoints) > MaxWaypoints {
		errs = append(errs, fmt.Errorf("at most %d waypoints allowed", MaxWaypoints))
	}
	for i, wp := range l.Waypoints {
		if err := wp.validate(fmt.Sprintf("waypoint %d", i+1)); err != nil {
			errs = append(errs, err)
		}
	}
	if l.DepartureAt.IsZero() {
		errs = append(errs, errors.New("departure time is required"))
	}
	if l.Price < 0 {
		errs = append(errs, errors.New("price must be >= 0"))
	}
	if l.TotalSeats < 1 {
		errs = append(errs, errors.New("total seats must be >= 1"))
	}
	if l.SeatsAvailable < 0 || l.SeatsAvailable > l.TotalSeats {
		errs = append(errs, errors.New("seats available must be within [0, total seats]"))
	}
	return errors.Join(errs...)
}

// Departed reports whether the departure is strictly before now.
func (l *Listing) Departed(now time.Time) bool {
	return l.DepartureAt.Before(now)
}
