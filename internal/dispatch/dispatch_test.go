package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/travel-matching/internal/models"
	"github.com/example/travel-matching/internal/storage"
)

type recordingPusher struct {
	mu   sync.Mutex
	got  []models.NotificationRecord
	err  error
	wait bool
}

func (p *recordingPusher) Push(ctx context.Context, recipientID string, rec models.NotificationRecord) error {
	if p.wait {
		<-ctx.Done()
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, rec)
	return p.err
}

func match(recipient, related string, prio models.Priority) models.Match {
	return models.Match{
		RecipientID: recipient, RelatedUserID: "owner", RelatedKind: models.RelatedListing,
		RelatedID: related, Type: models.NotificationTripMatch, Priority: prio,
	}
}

func TestDispatchDeduplicatesAcrossCalls(t *testing.T) {
	store := storage.NewMemoryStore()
	pusher := &recordingPusher{}
	d := &Dispatcher{Store: store, Pusher: pusher}
	ctx := context.Background()

	n, err := d.Dispatch(ctx, []models.Match{match("u1", "L1", models.PriorityHigh), match("u2", "L1", models.PriorityHigh)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = d.Dispatch(ctx, []models.Match{match("u1", "L1", models.PriorityHigh), match("u1", "L2", models.PriorityHigh)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, pusher.got, 3)
}

func TestDispatchPrefersHigherPriorityForSameKey(t *testing.T) {
	store := storage.NewMemoryStore()
	d := &Dispatcher{Store: store}

	n, err := d.Dispatch(context.Background(), []models.Match{
		match("u1", "L1", models.PriorityMedium),
		match("u1", "L1", models.PriorityHigh),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	recs, err := store.ListNotifications(context.Background(), "u1", false)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.PriorityHigh, recs[0].Priority)
	assert.Equal(t, "u1|L1|trip_match", recs[0].DedupKey)
}

func TestDispatchConcurrentTriggersCreateOneRecord(t *testing.T) {
	store := storage.NewMemoryStore()
	d := &Dispatcher{Store: store}

	var total int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := d.Dispatch(context.Background(), []models.Match{match("u1", "L1", models.PriorityHigh)})
			assert.NoError(t, err)
			atomic.AddInt64(&total, int64(n))
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), total)
}

func TestPushFailureKeepsRecord(t *testing.T) {
	store := storage.NewMemoryStore()
	d := &Dispatcher{Store: store, Pusher: &recordingPusher{err: errors.New("gateway down")}}

	n, err := d.Dispatch(context.Background(), []models.Match{match("u1", "L1", models.PriorityHigh)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	recs, _ := store.ListNotifications(context.Background(), "u1", false)
	assert.Len(t, recs, 1)
}

func TestPushIsBoundedByTimeout(t *testing.T) {
	d := &Dispatcher{Store: storage.NewMemoryStore(), Pusher: &recordingPusher{wait: true}, PushTimeout: 20 * time.Millisecond}

	start := time.Now()
	n, err := d.Dispatch(context.Background(), []models.Match{match("u1", "L1", models.PriorityHigh)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Less(t, time.Since(start), time.Second)
}

type brokenStore struct{}

func (brokenStore) InsertNotification(context.Context, *models.NotificationRecord) (bool, error) {
	return false, errors.New("insert failed")
}

func TestStoreFailureIsReturnedAndBatchContinues(t *testing.T) {
	pusher := &recordingPusher{}
	d := &Dispatcher{Store: brokenStore{}, Pusher: pusher}

	n, err := d.Dispatch(context.Background(), []models.Match{match("u1", "L1", models.PriorityHigh), match("u2", "L1", models.PriorityHigh)})
	assert.Equal(t, 0, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "u1|L1|trip_match")
	assert.Contains(t, err.Error(), "u2|L1|trip_match")
	assert.Empty(t, pusher.got)
}
