package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultRequestTTL is how long a standing request stays active by default.
const DefaultRequestTTL = 30 * 24 * time.Hour

// Criteria is the route and date shape shared by standing requests and
// notification subscriptions.
type Criteria struct {
	Kind        ListingKind  `json:"kind"`
	Origin      Location     `json:"origin"`
	Destination Location     `json:"destination"`
	Dates       DateCriteria `json:"dates"`
	TimeOfDay   TimeOfDay    `json:"time_of_day,omitempty"`
	Radius      *float64     `json:"radius,omitempty"`
	Unit        Unit         `json:"unit,omitempty"`
}

// RadiusMiles returns the radius converted to miles; ok is false when no
// radius was supplied.
func (c Criteria) RadiusMiles() (miles float64, ok bool) {
	if c.Radius == nil {
		return 0, false
	}
	m, err := c.Unit.ToMiles(*c.Radius)
	if err != nil {
		return 0, false
	}
	return m, true
}

func (c Criteria) validate() []error {
	var errs []error
	if _, err := ParseListingKind(string(c.Kind)); err != nil {
		errs = append(errs, err)
	}
	if err := c.Origin.validate("origin"); err != nil {
		errs = append(errs, err)
	}
	if err := c.Destination.validate("destination"); err != nil {
		errs = append(errs, err)
	}
	if err := c.Dates.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.TimeOfDay.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Radius != nil && *c.Radius < 0 {
		errs = append(errs, errors.New("radius must be >= 0"))
	}
	if _, err := c.Unit.ToMiles(0); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// StandingRequest is a durable statement of travel need matched against
// listings posted later.
type StandingRequest struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Criteria
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (r *StandingRequest) Validate() error {
	errs := r.Criteria.validate()
	if strings.TrimSpace(r.OwnerID) == "" {
		errs = append(errs, errors.New("owner id is required"))
	}
	return errors.Join(errs...)
}

// Live reports whether the request can still be matched at now.
func (r *StandingRequest) Live(now time.Time) bool {
	return r.Active && (r.ExpiresAt.IsZero() || now.Before(r.ExpiresAt))
}

type SubscriptionRole string

const (
	// RoleSeeker subscribers are alerted when a matching listing is posted.
	RoleSeeker SubscriptionRole = "seeker"
	// RoleProvider subscribers are alerted when a matching request is posted.
	RoleProvider SubscriptionRole = "provider"
)

// Subscription drives alerts only; it is independent of any active request.
type Subscription struct {
	ID      string           `json:"id"`
	OwnerID string           `json:"owner_id"`
	Role    SubscriptionRole `json:"role"`
	Criteria
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Subscription) Validate() error {
	errs := s.Criteria.validate()
	if strings.TrimSpace(s.OwnerID) == "" {
		errs = append(errs, errors.New("owner id is required"))
	}
	switch s.Role {
	case RoleSeeker, RoleProvider:
	default:
		errs = append(errs, fmt.Errorf("unknown subscription role %q", s.Role))
	}
	return errors.Join(errs...)
}
