package matcher

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/travel-matching/internal/apperr"
	"github.com/example/travel-matching/internal/models"
	"github.com/example/travel-matching/internal/storage"
)

var now = time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

var (
	paris = models.Location{Name: "Paris, France", Coord: &models.Coord{Lat: 48.8566, Lon: 2.3522}}
	lyon  = models.Location{Name: "Lyon", Coord: &models.Coord{Lat: 45.7640, Lon: 4.8357}}
)

func listing(id, owner string, dep time.Time) models.Listing {
	return models.Listing{
		ID: id, Kind: models.KindCarRide, OwnerID: owner,
		Origin: paris, Destination: lyon,
		Waypoints:   []models.Location{{Name: "Dijon"}},
		DepartureAt: dep, TotalSeats: 3, SeatsAvailable: 3,
		Status: models.ListingOpen, CreatedAt: now, UpdatedAt: now,
	}
}

func request(id, owner string, c models.Criteria) models.StandingRequest {
	return models.StandingRequest{ID: id, OwnerID: owner, Criteria: c, Active: true, CreatedAt: now, ExpiresAt: now.Add(models.DefaultRequestTTL)}
}

func parisLyon(dates models.DateCriteria) models.Criteria {
	return models.Criteria{Kind: models.KindCarRide, Origin: models.Location{Name: "paris"}, Destination: models.Location{Name: "Lyon"}, Dates: dates}
}

func keys(ms []models.Match) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.DedupKey()+"|"+string(m.Priority))
	}
	sort.Strings(out)
	return out
}

func newService(t *testing.T) (*Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	return &Service{Store: store, Now: func() time.Time { return now }}, store
}

func TestMatchingIsSymmetric(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	l := listing("L", "owner", time.Date(2026, 11, 3, 8, 0, 0, 0, time.UTC))
	r := request("R", "seeker", parisLyon(models.DateSetOf("2026-11-02", "2026-11-03")))
	require.NoError(t, store.CreateListing(ctx, &l))
	require.NoError(t, store.CreateRequest(ctx, &r))

	fromListing, err := svc.OnListingPosted(ctx, l)
	require.NoError(t, err)
	require.Len(t, fromListing.Requests, 1)
	assert.Equal(t, "R", fromListing.Requests[0].ID)

	fromRequest, err := svc.OnRequestPosted(ctx, r)
	require.NoError(t, err)
	require.Len(t, fromRequest.Listings, 1)
	assert.Equal(t, "L", fromRequest.Listings[0].ID)

	assert.Equal(t, keys(fromListing.Matches), keys(fromRequest.Matches))
	assert.Equal(t, []string{
		"owner|R|ride_request_alert|high",
		"seeker|L|ride_match|high",
	}, keys(fromListing.Matches))
}

func TestRequestMatchesListingRules(t *testing.T) {
	dep := time.Date(2026, 11, 3, 8, 0, 0, 0, time.UTC)
	l := listing("L", "owner", dep)

	cases := []struct {
		name string
		mod  func(r *models.StandingRequest, l *models.Listing)
		want bool
	}{
		{"plain match", func(*models.StandingRequest, *models.Listing) {}, true},
		{"month criteria", func(r *models.StandingRequest, _ *models.Listing) { r.Dates = models.MonthOf("2026-11") }, true},
		{"other day", func(r *models.StandingRequest, _ *models.Listing) { r.Dates = models.ExactDate("2026-11-04") }, false},
		{"own listing", func(r *models.StandingRequest, _ *models.Listing) { r.OwnerID = "owner" }, false},
		{"inactive", func(r *models.StandingRequest, _ *models.Listing) { r.Active = false }, false},
		{"expired", func(r *models.StandingRequest, _ *models.Listing) { r.ExpiresAt = now }, false},
		{"other kind", func(r *models.StandingRequest, _ *models.Listing) { r.Kind = models.KindTrip }, false},
		{"morning only", func(r *models.StandingRequest, _ *models.Listing) { r.TimeOfDay = models.Morning }, true},
		{"evening only", func(r *models.StandingRequest, _ *models.Listing) { r.TimeOfDay = models.Evening }, false},
		{"closed listing", func(_ *models.StandingRequest, l *models.Listing) { l.Status = models.ListingClosed }, false},
		{"departed listing", func(_ *models.StandingRequest, l *models.Listing) { l.DepartureAt = now.Add(-time.Minute) }, false},
		{"waypoint as destination", func(r *models.StandingRequest, _ *models.Listing) { r.Destination = models.Location{Name: "dijon"} }, true},
		{"unrelated destination", func(r *models.StandingRequest, _ *models.Listing) { r.Destination = models.Location{Name: "Marseille"} }, false},
		{"abbreviation inside another word", func(r *models.StandingRequest, l *models.Listing) {
			l.Origin = models.Location{Name: "Chicago"}
			r.Origin = models.Location{Name: "California"}
		}, false},
		{"state abbreviation expands", func(r *models.StandingRequest, l *models.Listing) {
			l.Origin = models.Location{Name: "San Jose, CA"}
			r.Origin = models.Location{Name: "California"}
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := request("R", "seeker", parisLyon(models.ExactDate("2026-11-03")))
			cand := l
			tc.mod(&r, &cand)
			assert.Equal(t, tc.want, RequestMatchesListing(r, cand, now))
		})
	}
}

func TestRadiusInKilometresAppliesToBothEnds(t *testing.T) {
	dep := time.Date(2026, 11, 3, 8, 0, 0, 0, time.UTC)
	l := listing("L", "owner", dep)
	// Roughly 10 miles (16 km) north of each end, with names that never
	// match as text.
	c := models.Criteria{
		Kind:        models.KindCarRide,
		Origin:      models.Location{Name: "somewhere", Coord: &models.Coord{Lat: 48.8566 + 10.0/69.0, Lon: 2.3522}},
		Destination: models.Location{Name: "elsewhere", Coord: &models.Coord{Lat: 45.7640 + 10.0/69.0, Lon: 4.8357}},
		Dates:       models.ExactDate("2026-11-03"),
		Unit:        models.UnitKilometers,
	}

	c.Radius = ptr(20)
	assert.True(t, RequestMatchesListing(request("R", "seeker", c), l, now))

	c.Radius = ptr(12)
	assert.False(t, RequestMatchesListing(request("R", "seeker", c), l, now))

	c.Radius = nil
	assert.False(t, RequestMatchesListing(request("R", "seeker", c), l, now))
}

func TestSubscriptionAlerts(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	seeker := models.Subscription{ID: "S1", OwnerID: "watcher", Role: models.RoleSeeker, Active: true, CreatedAt: now,
		Criteria: parisLyon(models.MonthOf("2026-11"))}
	provider := models.Subscription{ID: "S2", OwnerID: "driver", Role: models.RoleProvider, Active: true, CreatedAt: now,
		Criteria: parisLyon(models.ExactDate("2026-11-03"))}
	inactive := seeker
	inactive.ID, inactive.OwnerID, inactive.Active = "S3", "sleeper", false
	for _, s := range []models.Subscription{seeker, provider, inactive} {
		s := s
		require.NoError(t, store.CreateSubscription(ctx, &s))
	}

	l := listing("L", "owner", time.Date(2026, 11, 3, 8, 0, 0, 0, time.UTC))
	res, err := svc.OnListingPosted(ctx, l)
	require.NoError(t, err)
	require.Len(t, res.Subscriptions, 1)
	assert.Equal(t, []string{"watcher|L|ride_match|medium"}, keys(res.Matches))

	r := request("R", "seeker", parisLyon(models.DateSetOf("2026-11-03", "2026-11-04")))
	rres, err := svc.OnRequestPosted(ctx, r)
	require.NoError(t, err)
	assert.Empty(t, rres.Listings)
	assert.Equal(t, []string{"driver|R|ride_request_alert|medium"}, keys(rres.Matches))
}

func TestSubscriptionMatchesRequestNeedsOverlap(t *testing.T) {
	sub := models.Subscription{OwnerID: "driver", Role: models.RoleProvider, Active: true, Criteria: parisLyon(models.ExactDate("2026-11-05"))}
	r := request("R", "seeker", parisLyon(models.MonthOf("2026-12")))
	assert.False(t, SubscriptionMatchesRequest(sub, r))

	r.Dates = models.MonthOf("2026-11")
	assert.True(t, SubscriptionMatchesRequest(sub, r))

	sub.OwnerID = "seeker"
	assert.False(t, SubscriptionMatchesRequest(sub, r))
}

type failingStore struct{ *storage.MemoryStore }

func (failingStore) ListActiveSubscriptions(context.Context, models.ListingKind, models.SubscriptionRole) ([]models.Subscription, error) {
	return nil, errors.New("db down")
}

func TestScanErrorPropagates(t *testing.T) {
	svc := &Service{Store: failingStore{storage.NewMemoryStore()}, Now: func() time.Time { return now }}
	_, err := svc.OnListingPosted(context.Background(), listing("L", "owner", now.Add(time.Hour)))
	assert.EqualError(t, err, "db down")
}

func TestUnknownKindIsRejectedNotPanicked(t *testing.T) {
	svc, _ := newService(t)
	l := listing("L", "owner", now.Add(time.Hour))
	l.Kind = "boat"

	_, err := svc.OnListingPosted(context.Background(), l)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	r := request("R", "rider", parisLyon(models.ExactDate("2026-11-03")))
	r.Kind = "boat"
	_, err = svc.OnRequestPosted(context.Background(), r)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
