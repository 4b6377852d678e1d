package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/travel-matching/internal/apperr"
	"github.com/example/travel-matching/internal/models"
)

// MemoryStore is an in-process Store used by tests and local runs. All
// operations take one lock; WithinTx holds it for the whole callback and
// restores a snapshot when the callback fails.
type MemoryStore struct {
	mu            sync.Mutex
	listings      map[string]models.Listing
	requests      map[string]models.StandingRequest
	subscriptions map[string]models.Subscription
	confirmations map[string]models.Confirmation
	notifications map[string]models.NotificationRecord
	dedup         map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings:      make(map[string]models.Listing),
		requests:      make(map[string]models.StandingRequest),
		subscriptions: make(map[string]models.Subscription),
		confirmations: make(map[string]models.Confirmation),
		notifications: make(map[string]models.NotificationRecord),
		dedup:         make(map[string]string),
	}
}

type memTxKey struct{}

// lock acquires the store lock unless ctx already runs inside WithinTx.
func (m *MemoryStore) lock(ctx context.Context) func() {
	if owner, _ := ctx.Value(memTxKey{}).(*MemoryStore); owner == m {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

type memSnapshot struct {
	listings      map[string]models.Listing
	requests      map[string]models.StandingRequest
	subscriptions map[string]models.Subscription
	confirmations map[string]models.Confirmation
	notifications map[string]models.NotificationRecord
	dedup         map[string]string
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *MemoryStore) snapshot() memSnapshot {
	return memSnapshot{
		listings:      copyMap(m.listings),
		requests:      copyMap(m.requests),
		subscriptions: copyMap(m.subscriptions),
		confirmations: copyMap(m.confirmations),
		notifications: copyMap(m.notifications),
		dedup:         copyMap(m.dedup),
	}
}

func (m *MemoryStore) restore(s memSnapshot) {
	m.listings = s.listings
	m.requests = s.requests
	m.subscriptions = s.subscriptions
	m.confirmations = s.confirmations
	m.notifications = s.notifications
	m.dedup = s.dedup
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if owner, _ := ctx.Value(memTxKey{}).(*MemoryStore); owner == m {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	defer func() {
		if p := recover(); p != nil {
			m.restore(snap)
			panic(p)
		}
		if err != nil {
			m.restore(snap)
		}
	}()
	return fn(context.WithValue(ctx, memTxKey{}, m))
}

func cloneListing(l models.Listing) models.Listing {
	if l.Waypoints != nil {
		l.Waypoints = append([]models.Location(nil), l.Waypoints...)
	}
	return l
}

// ---- listings

func (m *MemoryStore) CreateListing(ctx context.Context, l *models.Listing) error {
	defer m.lock(ctx)()
	if _, ok := m.listings[l.ID]; ok {
		return apperr.State("create_listing", "listing %s already exists", l.ID)
	}
	m.listings[l.ID] = cloneListing(*l)
	return nil
}

func (m *MemoryStore) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	defer m.lock(ctx)()
	l, ok := m.listings[id]
	if !ok {
		return nil, apperr.NotFound("get_listing", "listing %s not found", id)
	}
	out := cloneListing(l)
	return &out, nil
}

func (m *MemoryStore) ListOpenListings(ctx context.Context, f ListingFilter) ([]models.Listing, error) {
	defer m.lock(ctx)()
	out := make([]models.Listing, 0, len(m.listings))
	for _, l := range m.listings {
		if l.Status != models.ListingOpen {
			continue
		}
		if f.Kind != "" && l.Kind != f.Kind {
			continue
		}
		if !f.DepartingAfter.IsZero() && l.DepartureAt.Before(f.DepartingAfter) {
			continue
		}
		out = append(out, cloneListing(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureAt.Before(out[j].DepartureAt) })
	return out, nil
}

func (m *MemoryStore) ReserveSeats(ctx context.Context, listingID string, n int) error {
	defer m.lock(ctx)()
	l, ok := m.listings[listingID]
	if !ok {
		return apperr.NotFound("reserve_seats", "listing %s not found", listingID)
	}
	if l.Status != models.ListingOpen || l.SeatsAvailable < n {
		return apperr.Capacity("reserve_seats", "listing %s has %d seats left, %d requested", listingID, l.SeatsAvailable, n)
	}
	l.SeatsAvailable -= n
	m.listings[listingID] = l
	return nil
}

func (m *MemoryStore) ReleaseSeats(ctx context.Context, listingID string, n int) error {
	defer m.lock(ctx)()
	l, ok := m.listings[listingID]
	if !ok {
		return apperr.NotFound("release_seats", "listing %s not found", listingID)
	}
	if l.SeatsAvailable+n > l.TotalSeats {
		return apperr.State("release_seats", "releasing %d seats would exceed %d total on listing %s", n, l.TotalSeats, listingID)
	}
	l.SeatsAvailable += n
	m.listings[listingID] = l
	return nil
}

func (m *MemoryStore) CloseListing(ctx context.Context, id string, at time.Time) (bool, error) {
	defer m.lock(ctx)()
	l, ok := m.listings[id]
	if !ok {
		return false, apperr.NotFound("close_listing", "listing %s not found", id)
	}
	if l.Status != models.ListingOpen {
		return false, nil
	}
	l.Status = models.ListingClosed
	l.ClosedAt = &at
	l.UpdatedAt = at
	m.listings[id] = l
	return true, nil
}

func (m *MemoryStore) ListDepartedOpen(ctx context.Context, departedBefore time.Time, limit int) ([]string, error) {
	defer m.lock(ctx)()
	var due []models.Listing
	for _, l := range m.listings {
		if l.Status == models.ListingOpen && l.DepartureAt.Before(departedBefore) {
			due = append(due, l)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DepartureAt.Before(due[j].DepartureAt) })
	return firstIDs(due, limit, func(l models.Listing) string { return l.ID }), nil
}

func firstIDs[T any](items []T, limit int, id func(T) string) []string {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, id(it))
	}
	return out
}

// ---- requests and subscriptions

func (m *MemoryStore) CreateRequest(ctx context.Context, r *models.StandingRequest) error {
	defer m.lock(ctx)()
	if _, ok := m.requests[r.ID]; ok {
		return apperr.State("create_request", "request %s already exists", r.ID)
	}
	m.requests[r.ID] = *r
	return nil
}

func (m *MemoryStore) GetRequest(ctx context.Context, id string) (*models.StandingRequest, error) {
	defer m.lock(ctx)()
	r, ok := m.requests[id]
	if !ok {
		return nil, apperr.NotFound("get_request", "request %s not found", id)
	}
	return &r, nil
}

func (m *MemoryStore) ListActiveRequests(ctx context.Context, kind models.ListingKind, now time.Time) ([]models.StandingRequest, error) {
	defer m.lock(ctx)()
	out := make([]models.StandingRequest, 0)
	for _, r := range m.requests {
		if r.Kind == kind && r.Live(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) DeactivateExpiredRequests(ctx context.Context, now time.Time) (int, error) {
	defer m.lock(ctx)()
	n := 0
	for id, r := range m.requests {
		if r.Active && !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt) {
			r.Active = false
			m.requests[id] = r
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreateSubscription(ctx context.Context, s *models.Subscription) error {
	defer m.lock(ctx)()
	if _, ok := m.subscriptions[s.ID]; ok {
		return apperr.State("create_subscription", "subscription %s already exists", s.ID)
	}
	m.subscriptions[s.ID] = *s
	return nil
}

func (m *MemoryStore) ListActiveSubscriptions(ctx context.Context, kind models.ListingKind, role models.SubscriptionRole) ([]models.Subscription, error) {
	defer m.lock(ctx)()
	out := make([]models.Subscription, 0)
	for _, s := range m.subscriptions {
		if s.Active && s.Kind == kind && s.Role == role {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---- confirmations

func (m *MemoryStore) CreateConfirmation(ctx context.Context, c *models.Confirmation) error {
	defer m.lock(ctx)()
	if _, ok := m.confirmations[c.ID]; ok {
		return apperr.State("create_confirmation", "confirmation %s already exists", c.ID)
	}
	m.confirmations[c.ID] = *c
	return nil
}

func (m *MemoryStore) GetConfirmation(ctx context.Context, id string) (*models.Confirmation, error) {
	defer m.lock(ctx)()
	c, ok := m.confirmations[id]
	if !ok {
		return nil, apperr.NotFound("get_confirmation", "confirmation %s not found", id)
	}
	return &c, nil
}

func (m *MemoryStore) FindOpenConfirmation(ctx context.Context, listingID, requesterID string) (*models.Confirmation, error) {
	defer m.lock(ctx)()
	for _, c := range m.confirmations {
		if c.ListingID == listingID && c.RequesterID == requesterID && c.Status.Open() {
			out := c
			return &out, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) UpdateConfirmation(ctx context.Context, c *models.Confirmation, expected models.ConfirmationStatus) error {
	defer m.lock(ctx)()
	cur, ok := m.confirmations[c.ID]
	if !ok {
		return apperr.NotFound("update_confirmation", "confirmation %s not found", c.ID)
	}
	if cur.Status != expected {
		return apperr.State("update_confirmation", "confirmation %s is %s, expected %s", c.ID, cur.Status, expected)
	}
	m.confirmations[c.ID] = *c
	return nil
}

func (m *MemoryStore) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]string, error) {
	defer m.lock(ctx)()
	var due []models.Confirmation
	for _, c := range m.confirmations {
		if c.Status == models.ConfirmationPending && !c.CreatedAt.After(createdBefore) {
			due = append(due, c)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	return firstIDs(due, limit, func(c models.Confirmation) string { return c.ID }), nil
}

func (m *MemoryStore) AcceptedSeats(ctx context.Context, listingID string) (int, error) {
	defer m.lock(ctx)()
	n := 0
	for _, c := range m.confirmations {
		if c.ListingID == listingID && c.Status == models.ConfirmationAccepted {
			n += c.SeatsRequested
		}
	}
	return n, nil
}

// ---- notifications

func (m *MemoryStore) InsertNotification(ctx context.Context, rec *models.NotificationRecord) (bool, error) {
	defer m.lock(ctx)()
	if rec.DedupKey != "" {
		if _, dup := m.dedup[rec.DedupKey]; dup {
			return false, nil
		}
		m.dedup[rec.DedupKey] = rec.ID
	}
	m.notifications[rec.ID] = *rec
	return true, nil
}

func (m *MemoryStore) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]models.NotificationRecord, error) {
	defer m.lock(ctx)()
	out := make([]models.NotificationRecord, 0)
	for _, n := range m.notifications {
		if n.RecipientID != recipientID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) MarkNotificationRead(ctx context.Context, id, recipientID string) error {
	defer m.lock(ctx)()
	n, ok := m.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return apperr.NotFound("mark_read", "notification %s not found", id)
	}
	n.Read = true
	m.notifications[id] = n
	return nil
}

// DeleteNotification removes the record but keeps its dedup key so the same
// alert is not raised again.
func (m *MemoryStore) DeleteNotification(ctx context.Context, id, recipientID string) error {
	defer m.lock(ctx)()
	n, ok := m.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return apperr.NotFound("delete_notification", "notification %s not found", id)
	}
	delete(m.notifications, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)
