// Package matcher finds the counterparts of a newly posted listing or
// standing request. Both directions evaluate the same predicate, so the set
// of notifications raised for a listing/request pair does not depend on
// which side was posted first.
package matcher

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/travel-matching/internal/apperr"
	"github.com/example/travel-matching/internal/location"
	"github.com/example/travel-matching/internal/models"
	"github.com/example/travel-matching/internal/observability"
	"github.com/example/travel-matching/internal/storage"
)

// Store is the read side the matcher scans.
type Store interface {
	ListOpenListings(ctx context.Context, f storage.ListingFilter) ([]models.Listing, error)
	ListActiveRequests(ctx context.Context, kind models.ListingKind, now time.Time) ([]models.StandingRequest, error)
	ListActiveSubscriptions(ctx context.Context, kind models.ListingKind, role models.SubscriptionRole) ([]models.Subscription, error)
}

type Service struct {
	Store  Store
	Now    func() time.Time
	Logger *zap.Logger
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

// ListingResult is what a posted listing matched.
type ListingResult struct {
	Requests      []models.StandingRequest
	Subscriptions []models.Subscription
	Matches       []models.Match
}

// RequestResult is what a posted standing request matched.
type RequestResult struct {
	Listings      []models.Listing
	Subscriptions []models.Subscription
	Matches       []models.Match
}

// OnListingPosted scans live standing requests and seeker subscriptions for
// the listing. Every match is returned; there is no cap.
func (s *Service) OnListingPosted(ctx context.Context, l models.Listing) (ListingResult, error) {
	now := s.now()
	var (
		requests []models.StandingRequest
		subs     []models.Subscription
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		requests, err = s.Store.ListActiveRequests(gctx, l.Kind, now)
		return err
	})
	g.Go(func() error {
		var err error
		subs, err = s.Store.ListActiveSubscriptions(gctx, l.Kind, models.RoleSeeker)
		return err
	})
	if err := g.Wait(); err != nil {
		return ListingResult{}, err
	}
	types, err := typesFor(l.Kind)
	if err != nil {
		return ListingResult{}, err
	}

	var res ListingResult
	for _, r := range requests {
		if RequestMatchesListing(r, l, now) {
			res.Requests = append(res.Requests, r)
			res.Matches = append(res.Matches, pairMatches(r, l, types)...)
		}
	}
	for _, sub := range subs {
		if SubscriptionMatchesListing(sub, l, now) {
			res.Subscriptions = append(res.Subscriptions, sub)
			res.Matches = append(res.Matches, models.Match{
				RecipientID:   sub.OwnerID,
				RelatedUserID: l.OwnerID,
				RelatedKind:   models.RelatedListing,
				RelatedID:     l.ID,
				Type:          types.match,
				Priority:      models.PriorityMedium,
			})
		}
	}

	observability.MatchesFound.WithLabelValues("listing_posted").Add(float64(len(res.Matches)))
	s.logger().Debug("listing_matched",
		zap.String("listing_id", l.ID),
		zap.Int("requests", len(res.Requests)),
		zap.Int("subscriptions", len(res.Subscriptions)),
	)
	return res, nil
}

// OnRequestPosted scans open listings and provider subscriptions for the
// request.
func (s *Service) OnRequestPosted(ctx context.Context, r models.StandingRequest) (RequestResult, error) {
	now := s.now()
	var (
		listings []models.Listing
		subs     []models.Subscription
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		listings, err = s.Store.ListOpenListings(gctx, storage.ListingFilter{Kind: r.Kind, DepartingAfter: now})
		return err
	})
	g.Go(func() error {
		var err error
		subs, err = s.Store.ListActiveSubscriptions(gctx, r.Kind, models.RoleProvider)
		return err
	})
	if err := g.Wait(); err != nil {
		return RequestResult{}, err
	}
	types, err := typesFor(r.Kind)
	if err != nil {
		return RequestResult{}, err
	}

	var res RequestResult
	if r.Live(now) {
		for _, l := range listings {
			if RequestMatchesListing(r, l, now) {
				res.Listings = append(res.Listings, l)
				res.Matches = append(res.Matches, pairMatches(r, l, types)...)
			}
		}
		for _, sub := range subs {
			if SubscriptionMatchesRequest(sub, r) {
				res.Subscriptions = append(res.Subscriptions, sub)
				res.Matches = append(res.Matches, models.Match{
					RecipientID:   sub.OwnerID,
					RelatedUserID: r.OwnerID,
					RelatedKind:   models.RelatedRequest,
					RelatedID:     r.ID,
					Type:          types.alert,
					Priority:      models.PriorityMedium,
				})
			}
		}
	}

	observability.MatchesFound.WithLabelValues("request_posted").Add(float64(len(res.Matches)))
	s.logger().Debug("request_matched",
		zap.String("request_id", r.ID),
		zap.Int("listings", len(res.Listings)),
		zap.Int("subscriptions", len(res.Subscriptions)),
	)
	return res, nil
}

type notificationTypes struct {
	match models.NotificationType
	alert models.NotificationType
}

func typesFor(k models.ListingKind) (notificationTypes, error) {
	match, err := k.MatchType()
	if err != nil {
		return notificationTypes{}, apperr.Validation("match", "%v", err)
	}
	alert, err := k.RequestAlertType()
	if err != nil {
		return notificationTypes{}, apperr.Validation("match", "%v", err)
	}
	return notificationTypes{match: match, alert: alert}, nil
}

// pairMatches alerts both sides of a direct request/listing match: the
// requester about the listing and the listing owner about the request.
func pairMatches(r models.StandingRequest, l models.Listing, types notificationTypes) []models.Match {
	return []models.Match{
		{
			RecipientID:   r.OwnerID,
			RelatedUserID: l.OwnerID,
			RelatedKind:   models.RelatedListing,
			RelatedID:     l.ID,
			Type:          types.match,
			Priority:      models.PriorityHigh,
		},
		{
			RecipientID:   l.OwnerID,
			RelatedUserID: r.OwnerID,
			RelatedKind:   models.RelatedRequest,
			RelatedID:     r.ID,
			Type:          types.alert,
			Priority:      models.PriorityHigh,
		},
	}
}

// RequestMatchesListing is the single predicate behind both scan directions.
func RequestMatchesListing(r models.StandingRequest, l models.Listing, now time.Time) bool {
	if r.OwnerID == l.OwnerID || !r.Live(now) {
		return false
	}
	return criteriaMatchesListing(r.Criteria, l, now)
}

// SubscriptionMatchesListing reports whether a seeker subscription should be
// alerted about l.
func SubscriptionMatchesListing(s models.Subscription, l models.Listing, now time.Time) bool {
	if !s.Active || s.Role != models.RoleSeeker || s.OwnerID == l.OwnerID {
		return false
	}
	return criteriaMatchesListing(s.Criteria, l, now)
}

// SubscriptionMatchesRequest reports whether a provider subscription should
// be alerted about r: same kind, overlapping dates, and both route ends
// matching under the subscription's radius.
func SubscriptionMatchesRequest(s models.Subscription, r models.StandingRequest) bool {
	if !s.Active || s.Role != models.RoleProvider || s.OwnerID == r.OwnerID || s.Kind != r.Kind {
		return false
	}
	if !s.Dates.Overlaps(r.Dates) {
		return false
	}
	radius := radiusOf(s.Criteria)
	return location.Matches(r.Origin, nil, s.Origin, location.Flexible, radius) &&
		location.Matches(r.Destination, nil, s.Destination, location.Flexible, radius)
}

func criteriaMatchesListing(c models.Criteria, l models.Listing, now time.Time) bool {
	if c.Kind != l.Kind || l.Status != models.ListingOpen || l.Departed(now) {
		return false
	}
	if !c.Dates.Contains(l.DepartureAt) || !c.TimeOfDay.Allows(l.DepartureAt) {
		return false
	}
	radius := radiusOf(c)
	return location.Matches(l.Origin, l.Waypoints, c.Origin, location.Flexible, radius) &&
		location.Matches(l.Destination, l.Waypoints, c.Destination, location.Flexible, radius)
}

func radiusOf(c models.Criteria) *float64 {
	if miles, ok := c.RadiusMiles(); ok {
		return &miles
	}
	return nil
}
