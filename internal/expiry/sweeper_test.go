package expiry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/travel-matching/internal/confirmation"
	"github.com/example/travel-matching/internal/models"
	"github.com/example/travel-matching/internal/storage"
)

var now = time.Date(2026, 11, 10, 12, 0, 0, 0, time.UTC)

func clockAt(t time.Time) func() time.Time { return func() time.Time { return t } }

func seed(t *testing.T) *storage.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()

	for id, dep := range map[string]time.Time{
		"departed-long-ago": now.Add(-25 * time.Hour),
		"departed-recently": now.Add(-time.Hour),
		"upcoming":          now.Add(48 * time.Hour),
	} {
		require.NoError(t, store.CreateListing(ctx, &models.Listing{
			ID: id, Kind: models.KindTrip, OwnerID: "owner",
			Origin: models.Location{Name: "JFK"}, Destination: models.Location{Name: "Boston"},
			DepartureAt: dep, TotalSeats: 4, SeatsAvailable: 4, Status: models.ListingOpen,
		}))
	}
	for id, c := range map[string]struct {
		age    time.Duration
		status models.ConfirmationStatus
	}{
		"stale":          {25 * time.Hour, models.ConfirmationPending},
		"fresh":          {time.Hour, models.ConfirmationPending},
		"old-accepted":   {48 * time.Hour, models.ConfirmationAccepted},
		"exactly-at-ttl": {24 * time.Hour, models.ConfirmationPending},
	} {
		require.NoError(t, store.CreateConfirmation(ctx, &models.Confirmation{
			ID: id, ListingID: "upcoming", OwnerID: "owner", RequesterID: id,
			Status: c.status, SeatsRequested: 1, CreatedAt: now.Add(-c.age),
		}))
	}
	for id, exp := range map[string]time.Time{"req-expired": now.Add(-time.Minute), "req-live": now.Add(time.Hour)} {
		require.NoError(t, store.CreateRequest(ctx, &models.StandingRequest{
			ID: id, OwnerID: "seeker", Criteria: models.Criteria{Kind: models.KindTrip}, Active: true, ExpiresAt: exp,
		}))
	}
	return store
}

func newSweeper(store *storage.MemoryStore, batch int) *Sweeper {
	return &Sweeper{
		Store:         store,
		Confirmations: &confirmation.Service{Store: store, Now: clockAt(now)},
		BatchSize:     batch,
		Now:           clockAt(now),
	}
}

func status(t *testing.T, store *storage.MemoryStore, id string) models.ConfirmationStatus {
	t.Helper()
	c, err := store.GetConfirmation(context.Background(), id)
	require.NoError(t, err)
	return c.Status
}

func TestSweepAppliesDueTransitions(t *testing.T) {
	store := seed(t)
	rep := newSweeper(store, 10).RunExpirySweep(context.Background())

	assert.Equal(t, SweepReport{Expired: 2, ClosedListings: 1, DeactivatedRequests: 1}, rep)
	assert.Equal(t, models.ConfirmationExpired, status(t, store, "stale"))
	assert.Equal(t, models.ConfirmationExpired, status(t, store, "exactly-at-ttl"))
	assert.Equal(t, models.ConfirmationPending, status(t, store, "fresh"))
	assert.Equal(t, models.ConfirmationAccepted, status(t, store, "old-accepted"))

	l, _ := store.GetListing(context.Background(), "departed-long-ago")
	assert.Equal(t, models.ListingClosed, l.Status)
	l, _ = store.GetListing(context.Background(), "departed-recently")
	assert.Equal(t, models.ListingOpen, l.Status)

	r, _ := store.GetRequest(context.Background(), "req-live")
	assert.True(t, r.Active)
}

func TestSweepIsIdempotent(t *testing.T) {
	store := seed(t)
	s := newSweeper(store, 10)

	s.RunExpirySweep(context.Background())
	snapshot := map[string]models.ConfirmationStatus{}
	for _, id := range []string{"stale", "fresh", "old-accepted", "exactly-at-ttl"} {
		snapshot[id] = status(t, store, id)
	}

	again := s.RunExpirySweep(context.Background())
	assert.Equal(t, SweepReport{}, again)
	for id, want := range snapshot {
		assert.Equal(t, want, status(t, store, id), id)
	}
}

func TestSweepDrainsInBatches(t *testing.T) {
	store := storage.NewMemoryStore()
	for i := 0; i < 7; i++ {
		require.NoError(t, store.CreateConfirmation(context.Background(), &models.Confirmation{
			ID: fmt.Sprintf("c%d", i), Status: models.ConfirmationPending, CreatedAt: now.Add(-30 * time.Hour),
		}))
	}
	rep := newSweeper(store, 2).RunExpirySweep(context.Background())
	assert.Equal(t, 7, rep.Expired)
}

type flakyExpirer struct {
	*confirmation.Service
	failID string
}

func (f flakyExpirer) Expire(ctx context.Context, id string) (bool, error) {
	if id == f.failID {
		return false, errors.New("deadlock detected")
	}
	return f.Service.Expire(ctx, id)
}

func TestSweepToleratesRowFailures(t *testing.T) {
	store := seed(t)
	s := newSweeper(store, 1)
	s.Confirmations = flakyExpirer{Service: &confirmation.Service{Store: store, Now: clockAt(now)}, failID: "exactly-at-ttl"}

	rep := s.RunExpirySweep(context.Background())
	assert.Equal(t, 1, rep.Failures)
	assert.Equal(t, 1, rep.ClosedListings)
	assert.Equal(t, models.ConfirmationExpired, status(t, store, "stale"))
	assert.Equal(t, models.ConfirmationPending, status(t, store, "exactly-at-ttl"))
}

func TestSchedulerSweepsOnStart(t *testing.T) {
	store := seed(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := (&Scheduler{Sweeper: newSweeper(store, 10), Interval: time.Hour}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ConfirmationExpired, status(t, store, "stale"))
}
