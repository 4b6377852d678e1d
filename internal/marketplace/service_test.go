package marketplace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/travel-matching/internal/apperr"
	"github.com/example/travel-matching/internal/models"
	"github.com/example/travel-matching/internal/storage"
)

var now = time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC)

type recordingAnnouncer struct {
	listings []models.Listing
	requests []models.StandingRequest
	err      error
}

func (a *recordingAnnouncer) ListingPosted(_ context.Context, l models.Listing) error {
	a.listings = append(a.listings, l)
	return a.err
}

func (a *recordingAnnouncer) RequestPosted(_ context.Context, r models.StandingRequest) error {
	a.requests = append(a.requests, r)
	return a.err
}

func newService() (*Service, *recordingAnnouncer, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	ann := &recordingAnnouncer{}
	return &Service{Store: store, Announcer: ann, Now: func() time.Time { return now }}, ann, store
}

func draftListing() models.Listing {
	return models.Listing{
		Kind:        models.KindCarRide,
		Origin:      models.Location{Name: "Paris, France"},
		Destination: models.Location{Name: "Lyon"},
		DepartureAt: now.Add(24 * time.Hour),
		Price:       25, Currency: "EUR", TotalSeats: 3,
	}
}

func TestCreateListingDefaultsAndAnnounces(t *testing.T) {
	svc, ann, _ := newService()
	l, err := svc.CreateListing(context.Background(), "owner", draftListing())
	require.NoError(t, err)
	assert.NotEmpty(t, l.ID)
	assert.Equal(t, "owner", l.OwnerID)
	assert.Equal(t, models.ListingOpen, l.Status)
	assert.Equal(t, 3, l.SeatsAvailable)
	require.Len(t, ann.listings, 1)
	assert.Equal(t, l.ID, ann.listings[0].ID)
}

func TestCreateListingValidation(t *testing.T) {
	svc, ann, _ := newService()
	cases := map[string]func(l *models.Listing){
		"no seats":         func(l *models.Listing) { l.TotalSeats = 0 },
		"too many stops":   func(l *models.Listing) { l.Waypoints = make([]models.Location, 4) },
		"past departure":   func(l *models.Listing) { l.DepartureAt = now.Add(-time.Minute) },
		"missing origin":   func(l *models.Listing) { l.Origin = models.Location{} },
		"negative price":   func(l *models.Listing) { l.Price = -1 },
		"unknown kind":     func(l *models.Listing) { l.Kind = "boat" },
		"bad coordinates":  func(l *models.Listing) { l.Destination.Coord = &models.Coord{Lat: 91} },
	}
	for name, mod := range cases {
		t.Run(name, func(t *testing.T) {
			l := draftListing()
			mod(&l)
			_, err := svc.CreateListing(context.Background(), "owner", l)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
	assert.Empty(t, ann.listings)
}

func TestAnnounceFailureKeepsListing(t *testing.T) {
	svc, ann, store := newService()
	ann.err = errors.New("broker down")

	l, err := svc.CreateListing(context.Background(), "owner", draftListing())
	require.NoError(t, err)
	_, err = store.GetListing(context.Background(), l.ID)
	assert.NoError(t, err)
}

func TestCloseListingOwnerOnly(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	l, err := svc.CreateListing(ctx, "owner", draftListing())
	require.NoError(t, err)

	_, err = svc.CloseListing(ctx, l.ID, "someone")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	closed, err := svc.CloseListing(ctx, l.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, models.ListingClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	_, err = svc.CloseListing(ctx, l.ID, "owner")
	assert.ErrorIs(t, err, apperr.ErrState)
}

func TestCreateRequestDefaultsExpiry(t *testing.T) {
	svc, ann, _ := newService()
	r, err := svc.CreateRequest(context.Background(), "seeker", models.StandingRequest{Criteria: models.Criteria{
		Kind: models.KindTrip, Origin: models.Location{Name: "JFK"}, Destination: models.Location{Name: "Boston, MA"},
		Dates: models.DateSetOf("2026-11-02", "2026-11-03"),
	}})
	require.NoError(t, err)
	assert.True(t, r.Active)
	assert.Equal(t, now.Add(models.DefaultRequestTTL), r.ExpiresAt)
	assert.Len(t, ann.requests, 1)

	_, err = svc.CreateRequest(context.Background(), "seeker", models.StandingRequest{Criteria: models.Criteria{
		Kind: models.KindTrip, Origin: models.Location{Name: "JFK"}, Destination: models.Location{Name: "Boston"},
		Dates: models.MonthOf("November"),
	}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateSubscriptionNeedsRole(t *testing.T) {
	svc, _, _ := newService()
	crit := models.Criteria{Kind: models.KindTrip, Origin: models.Location{Name: "JFK"}, Destination: models.Location{Name: "Boston"}, Dates: models.MonthOf("2026-11")}

	_, err := svc.CreateSubscription(context.Background(), "u1", models.Subscription{Criteria: crit})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	sub, err := svc.CreateSubscription(context.Background(), "u1", models.Subscription{Role: models.RoleSeeker, Criteria: crit})
	require.NoError(t, err)
	assert.True(t, sub.Active)
}
