package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/travel-matching/internal/apperr"
	"github.com/example/travel-matching/internal/location"
	"github.com/example/travel-matching/internal/models"
	"github.com/example/travel-matching/internal/storage"
)

var now = time.Date(2026, 11, 1, 8, 0, 0, 0, time.UTC)

func engine() *Engine { return &Engine{Now: func() time.Time { return now }} }

func listing(id, from, to string, dep time.Time) models.Listing {
	return models.Listing{
		ID: id, Kind: models.KindTrip, OwnerID: "o-" + id,
		Origin: models.Location{Name: from}, Destination: models.Location{Name: to},
		DepartureAt: dep, TotalSeats: 2, SeatsAvailable: 2, Status: models.ListingOpen,
	}
}

func ids(ls []models.Listing) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.ID)
	}
	return out
}

func loc(name string) *models.Location { return &models.Location{Name: name} }

func dates(d models.DateCriteria) *models.DateCriteria { return &d }

func radius(v float64) *float64 { return &v }

func TestFilterByRoute(t *testing.T) {
	corpus := []models.Listing{
		listing("a", "Paris, France", "Lyon", now.Add(48*time.Hour)),
		listing("b", "Berlin", "Lyon", now.Add(24*time.Hour)),
		listing("c", "Paris", "Marseille", now.Add(72*time.Hour)),
	}

	tests := []struct {
		name string
		c    Criteria
		want []string
	}{
		{"no criteria returns everything by departure", Criteria{}, []string{"b", "a", "c"}},
		{"origin only", Criteria{Origin: loc("paris")}, []string{"a", "c"}},
		{"destination only", Criteria{Destination: loc("Lyon")}, []string{"b", "a"}},
		{"both ends", Criteria{Origin: loc("Paris"), Destination: loc("Lyon")}, []string{"a"}},
		{"no match", Criteria{Origin: loc("Madrid")}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine().Filter(context.Background(), corpus, tt.c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFilterStrictUsesPrimarySegment(t *testing.T) {
	corpus := []models.Listing{
		listing("full", "Paris, France", "Lyon", now.Add(time.Hour)),
		listing("orly", "Paris Orly", "Lyon", now.Add(2*time.Hour)),
		listing("suburb", "Parisville", "Lyon", now.Add(3*time.Hour)),
	}

	strict, err := engine().Filter(context.Background(), corpus, Criteria{Origin: loc("Paris"), Mode: location.Strict})
	require.NoError(t, err)
	assert.Equal(t, []string{"full"}, ids(strict))

	flexible, err := engine().Filter(context.Background(), corpus, Criteria{Origin: loc("Paris"), Mode: location.Flexible})
	require.NoError(t, err)
	assert.Equal(t, []string{"full", "orly"}, ids(flexible), "flexible matches whole words only")
}

func TestFilterByRadius(t *testing.T) {
	newark := listing("ewr", "Newark Liberty", "Boston", now.Add(time.Hour))
	newark.Origin.Coord = &models.Coord{Lat: 40.7357, Lon: -74.1724}
	noCoord := listing("bare", "Somewhere", "Boston", now.Add(2*time.Hour))

	search := &models.Location{Name: "Lower Manhattan", Coord: &models.Coord{Lat: 40.7128, Lon: -74.0060}}
	corpus := []models.Listing{newark, noCoord}

	got, err := engine().Filter(context.Background(), corpus, Criteria{Origin: search, Radius: radius(15)})
	require.NoError(t, err)
	assert.Equal(t, []string{"ewr"}, ids(got))

	got, err = engine().Filter(context.Background(), corpus, Criteria{Origin: search, Radius: radius(5)})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = engine().Filter(context.Background(), corpus, Criteria{Origin: search, Radius: radius(20), Unit: models.UnitKilometers})
	require.NoError(t, err)
	assert.Equal(t, []string{"ewr"}, ids(got))

	got, err = engine().Filter(context.Background(), corpus, Criteria{Origin: search})
	require.NoError(t, err)
	assert.Empty(t, got, "coordinates are ignored without a radius")
}

func TestFilterByDate(t *testing.T) {
	corpus := []models.Listing{
		listing("nov2", "A", "B", time.Date(2026, 11, 2, 23, 30, 0, 0, time.UTC)),
		listing("nov20", "A", "B", time.Date(2026, 11, 20, 9, 0, 0, 0, time.UTC)),
		listing("dec1", "A", "B", time.Date(2026, 12, 1, 9, 0, 0, 0, time.UTC)),
		listing("gone", "A", "B", now.Add(-time.Minute)),
	}

	got, err := engine().Filter(context.Background(), corpus, Criteria{Dates: dates(models.ExactDate("2026-11-02"))})
	require.NoError(t, err)
	assert.Equal(t, []string{"nov2"}, ids(got))

	got, err = engine().Filter(context.Background(), corpus, Criteria{Dates: dates(models.MonthOf("2026-11"))})
	require.NoError(t, err)
	assert.Equal(t, []string{"nov2", "nov20"}, ids(got))

	got, err = engine().Filter(context.Background(), corpus, Criteria{Dates: dates(models.ExactDate("2026-11-01"))})
	require.NoError(t, err)
	assert.Empty(t, got, "departed listings are never returned")
}

func TestFilterDateReadInDepartureZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	l := listing("jst", "Tokyo", "Osaka", time.Date(2026, 11, 3, 7, 0, 0, 0, tokyo))

	got, err := engine().Filter(context.Background(), []models.Listing{l}, Criteria{Dates: dates(models.ExactDate("2026-11-03"))})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFilterValidation(t *testing.T) {
	bad := []Criteria{
		{Kind: "boat"},
		{Origin: &models.Location{}},
		{Dates: dates(models.DateSetOf("2026-11-02", "2026-11-03"))},
		{Dates: dates(models.MonthOf("Nov"))},
		{Mode: "fuzzy"},
		{Radius: radius(-1)},
		{Unit: "furlong"},
	}
	for _, c := range bad {
		_, err := engine().Filter(context.Background(), nil, c)
		assert.ErrorIs(t, err, apperr.ErrValidation, "%+v", c)
	}
}

func TestFilterHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine().Filter(ctx, []models.Listing{listing("a", "A", "B", now.Add(time.Hour))}, Criteria{})
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeSource struct {
	listings []models.Listing
	filter   storage.ListingFilter
	err      error
}

func (f *fakeSource) ListOpenListings(_ context.Context, filter storage.ListingFilter) ([]models.Listing, error) {
	f.filter = filter
	return f.listings, f.err
}

func TestServiceSearch(t *testing.T) {
	src := &fakeSource{listings: []models.Listing{
		listing("a", "Paris", "Lyon", now.Add(time.Hour)),
		listing("b", "Paris", "Nice", now.Add(2*time.Hour)),
	}}
	svc := &Service{Store: src, Engine: engine()}

	got, err := svc.Search(context.Background(), Criteria{Kind: models.KindTrip, Destination: loc("nice")})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(got))
	assert.Equal(t, models.KindTrip, src.filter.Kind)
	assert.Equal(t, now, src.filter.DepartingAfter)
}

func TestServiceSearchErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	svc := &Service{Store: src, Engine: engine()}

	_, err := svc.Search(context.Background(), Criteria{})
	assert.ErrorContains(t, err, "db down")

	_, err = svc.Search(context.Background(), Criteria{Mode: "fuzzy"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
