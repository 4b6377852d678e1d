package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/example/travel-matching/internal/apperr"
	"github.com/example/travel-matching/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing handle.
func NewPostgresStoreWithDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Migrate applies the embedded schema files in name order. Every statement
// is idempotent.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := p.db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

type pgTxKey struct{}

func (p *PostgresStore) q(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(pgTxKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return p.db
}

func (p *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(pgTxKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()
	if err := fn(context.WithValue(ctx, pgTxKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ---- row mapping

type locationCols struct {
	Name string
	Lat  *float64
	Lon  *float64
}

func toCols(l models.Location) locationCols {
	c := locationCols{Name: l.Name}
	if l.Coord != nil {
		lat, lon := l.Coord.Lat, l.Coord.Lon
		c.Lat, c.Lon = &lat, &lon
	}
	return c
}

func fromCols(name string, lat, lon *float64) models.Location {
	l := models.Location{Name: name}
	if lat != nil && lon != nil {
		l.Coord = &models.Coord{Lat: *lat, Lon: *lon}
	}
	return l
}

type listingRow struct {
	ID              string     `db:"id"`
	Kind            string     `db:"kind"`
	OwnerID         string     `db:"owner_id"`
	OriginName      string     `db:"origin_name"`
	OriginLat       *float64   `db:"origin_lat"`
	OriginLon       *float64   `db:"origin_lon"`
	DestName        string     `db:"dest_name"`
	DestLat         *float64   `db:"dest_lat"`
	DestLon         *float64   `db:"dest_lon"`
	Waypoints       string     `db:"waypoints"`
	DepartureAt     time.Time  `db:"departure_at"`
	DepartureOffset int        `db:"departure_offset"`
	Price           float64    `db:"price"`
	Currency        string     `db:"currency"`
	TotalSeats      int        `db:"total_seats"`
	SeatsAvailable  int        `db:"seats_available"`
	Status          string     `db:"status"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
	ClosedAt        *time.Time `db:"closed_at"`
}

const listingColumns = `id, kind, owner_id, origin_name, origin_lat, origin_lon, dest_name, dest_lat, dest_lon,
	waypoints, departure_at, departure_offset, price, currency, total_seats, seats_available, status,
	created_at, updated_at, closed_at`

func (r listingRow) model() (models.Listing, error) {
	l := models.Listing{
		ID:             r.ID,
		Kind:           models.ListingKind(r.Kind),
		OwnerID:        r.OwnerID,
		Origin:         fromCols(r.OriginName, r.OriginLat, r.OriginLon),
		Destination:    fromCols(r.DestName, r.DestLat, r.DestLon),
		DepartureAt:    r.DepartureAt.In(time.FixedZone("", r.DepartureOffset)),
		Price:          r.Price,
		Currency:       r.Currency,
		TotalSeats:     r.TotalSeats,
		SeatsAvailable: r.SeatsAvailable,
		Status:         models.ListingStatus(r.Status),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		ClosedAt:       r.ClosedAt,
	}
	if r.Waypoints != "" && r.Waypoints != "[]" {
		if err := json.Unmarshal([]byte(r.Waypoints), &l.Waypoints); err != nil {
			return l, fmt.Errorf("decode waypoints of %s: %w", r.ID, err)
		}
	}
	return l, nil
}

// criteriaRow holds the columns shared by standing_requests and
// subscriptions.
type criteriaRow struct {
	Kind       string         `db:"kind"`
	OriginName string         `db:"origin_name"`
	OriginLat  *float64       `db:"origin_lat"`
	OriginLon  *float64       `db:"origin_lon"`
	DestName   string         `db:"dest_name"`
	DestLat    *float64       `db:"dest_lat"`
	DestLon    *float64       `db:"dest_lon"`
	DateKind   string         `db:"date_kind"`
	Dates      pq.StringArray `db:"dates"`
	Month      string         `db:"month"`
	TimeOfDay  string         `db:"time_of_day"`
	Radius     *float64       `db:"radius"`
	Unit       string         `db:"unit"`
}

const criteriaColumns = `kind, origin_name, origin_lat, origin_lon, dest_name, dest_lat, dest_lon,
	date_kind, dates, month, time_of_day, radius, unit`

func (r criteriaRow) model() models.Criteria {
	return models.Criteria{
		Kind:        models.ListingKind(r.Kind),
		Origin:      fromCols(r.OriginName, r.OriginLat, r.OriginLon),
		Destination: fromCols(r.DestName, r.DestLat, r.DestLon),
		Dates: models.DateCriteria{
			Kind:  models.DateKind(r.DateKind),
			Dates: []string(r.Dates),
			Month: r.Month,
		},
		TimeOfDay: models.TimeOfDay(r.TimeOfDay),
		Radius:    r.Radius,
		Unit:      models.Unit(r.Unit),
	}
}

func criteriaArgs(c models.Criteria) []any {
	o, d := toCols(c.Origin), toCols(c.Destination)
	dates := c.Dates.Dates
	if dates == nil {
		dates = []string{}
	}
	return []any{
		string(c.Kind), o.Name, o.Lat, o.Lon, d.Name, d.Lat, d.Lon,
		string(c.Dates.Kind), pq.StringArray(dates), c.Dates.Month, string(c.TimeOfDay), c.Radius, string(c.Unit),
	}
}

type requestRow struct {
	ID        string    `db:"id"`
	OwnerID   string    `db:"owner_id"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
	criteriaRow
}

type subscriptionRow struct {
	ID        string    `db:"id"`
	OwnerID   string    `db:"owner_id"`
	Role      string    `db:"role"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
	criteriaRow
}

type confirmationRow struct {
	ID             string     `db:"id"`
	ListingKind    string     `db:"listing_kind"`
	ListingID      string     `db:"listing_id"`
	OwnerID        string     `db:"owner_id"`
	RequesterID    string     `db:"requester_id"`
	Status         string     `db:"status"`
	SeatsRequested int        `db:"seats_requested"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
	ConfirmedAt    *time.Time `db:"confirmed_at"`
	CancelledAt    *time.Time `db:"cancelled_at"`
	CancelledBy    string     `db:"cancelled_by"`
	PreviousStatus string     `db:"previous_status"`
	Reversed       bool       `db:"reversed"`
}

const confirmationColumns = `id, listing_kind, listing_id, owner_id, requester_id, status, seats_requested,
	created_at, updated_at, confirmed_at, cancelled_at, cancelled_by, previous_status, reversed`

func (r confirmationRow) model() *models.Confirmation {
	return &models.Confirmation{
		ID:             r.ID,
		ListingKind:    models.ListingKind(r.ListingKind),
		ListingID:      r.ListingID,
		OwnerID:        r.OwnerID,
		RequesterID:    r.RequesterID,
		Status:         models.ConfirmationStatus(r.Status),
		SeatsRequested: r.SeatsRequested,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		ConfirmedAt:    r.ConfirmedAt,
		CancelledAt:    r.CancelledAt,
		CancelledBy:    r.CancelledBy,
		PreviousStatus: models.ConfirmationStatus(r.PreviousStatus),
		Reversed:       r.Reversed,
	}
}

type notificationRow struct {
	ID            string    `db:"id"`
	RecipientID   string    `db:"recipient_id"`
	Type          string    `db:"type"`
	Priority      string    `db:"priority"`
	Read          bool      `db:"read"`
	RelatedUserID string    `db:"related_user_id"`
	RelatedKind   string    `db:"related_kind"`
	RelatedID     string    `db:"related_id"`
	DedupKey      string    `db:"dedup_key"`
	CreatedAt     time.Time `db:"created_at"`
}

const notificationColumns = `id, recipient_id, type, priority, read, related_user_id, related_kind, related_id, dedup_key, created_at`

func (r notificationRow) model() models.NotificationRecord {
	return models.NotificationRecord{
		ID:            r.ID,
		RecipientID:   r.RecipientID,
		Type:          models.NotificationType(r.Type),
		Priority:      models.Priority(r.Priority),
		Read:          r.Read,
		RelatedUserID: r.RelatedUserID,
		RelatedKind:   models.RelatedKind(r.RelatedKind),
		RelatedID:     r.RelatedID,
		DedupKey:      r.DedupKey,
		CreatedAt:     r.CreatedAt,
	}
}

// isUniqueViolation reports a unique_violation (23505), raised when a second
// open confirmation for the same listing and requester races past the lookup.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func affected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ---- listings

func (p *PostgresStore) CreateListing(ctx context.Context, l *models.Listing) error {
	wps := l.Waypoints
	if wps == nil {
		wps = []models.Location{}
	}
	wpJSON, err := json.Marshal(wps)
	if err != nil {
		return err
	}
	_, offset := l.DepartureAt.Zone()
	o, d := toCols(l.Origin), toCols(l.Destination)
	_, err = p.q(ctx).ExecContext(ctx, `INSERT INTO listings (`+listingColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		l.ID, string(l.Kind), l.OwnerID, o.Name, o.Lat, o.Lon, d.Name, d.Lat, d.Lon,
		string(wpJSON), l.DepartureAt, offset, l.Price, l.Currency, l.TotalSeats, l.SeatsAvailable, string(l.Status),
		l.CreatedAt, l.UpdatedAt, l.ClosedAt)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	var row listingRow
	err := sqlx.GetContext(ctx, p.q(ctx), &row, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("get_listing", "listing %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	l, err := row.model()
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (p *PostgresStore) ListOpenListings(ctx context.Context, f ListingFilter) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE status = 'open'`
	var args []any
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if !f.DepartingAfter.IsZero() {
		args = append(args, f.DepartingAfter)
		query += fmt.Sprintf(" AND departure_at >= $%d", len(args))
	}
	query += " ORDER BY departure_at"

	var rows []listingRow
	if err := sqlx.SelectContext(ctx, p.q(ctx), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list open listings: %w", err)
	}
	out := make([]models.Listing, 0, len(rows))
	for _, r := range rows {
		l, err := r.model()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (p *PostgresStore) ReserveSeats(ctx context.Context, listingID string, n int) error {
	res, err := p.q(ctx).ExecContext(ctx, `UPDATE listings
		SET seats_available = seats_available - $2, updated_at = now()
		WHERE id = $1 AND status = 'open' AND seats_available >= $2`, listingID, n)
	if err != nil {
		return fmt.Errorf("reserve seats: %w", err)
	}
	rows, err := affected(res)
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.Capacity("reserve_seats", "listing %s cannot provide %d seats", listingID, n)
	}
	return nil
}

func (p *PostgresStore) ReleaseSeats(ctx context.Context, listingID string, n int) error {
	res, err := p.q(ctx).ExecContext(ctx, `UPDATE listings
		SET seats_available = seats_available + $2, updated_at = now()
		WHERE id = $1 AND seats_available + $2 <= total_seats`, listingID, n)
	if err != nil {
		return fmt.Errorf("release seats: %w", err)
	}
	rows, err := affected(res)
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.State("release_seats", "releasing %d seats on listing %s would exceed total", n, listingID)
	}
	return nil
}

func (p *PostgresStore) CloseListing(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := p.q(ctx).ExecContext(ctx, `UPDATE listings SET status = 'closed', closed_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'open'`, id, at)
	if err != nil {
		return false, fmt.Errorf("close listing: %w", err)
	}
	rows, err := affected(res)
	return rows == 1, err
}

func (p *PostgresStore) ListDepartedOpen(ctx context.Context, departedBefore time.Time, limit int) ([]string, error) {
	var ids []string
	err := sqlx.SelectContext(ctx, p.q(ctx), &ids, `SELECT id FROM listings
		WHERE status = 'open' AND departure_at < $1 ORDER BY departure_at LIMIT $2`, departedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list departed listings: %w", err)
	}
	return ids, nil
}

// ---- requests and subscriptions

func (p *PostgresStore) CreateRequest(ctx context.Context, r *models.StandingRequest) error {
	args := append([]any{r.ID, r.OwnerID, r.Active, r.CreatedAt, r.ExpiresAt}, criteriaArgs(r.Criteria)...)
	_, err := p.q(ctx).ExecContext(ctx, `INSERT INTO standing_requests (id, owner_id, active, created_at, expires_at, `+criteriaColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`, args...)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetRequest(ctx context.Context, id string) (*models.StandingRequest, error) {
	var row requestRow
	err := sqlx.GetContext(ctx, p.q(ctx), &row, `SELECT id, owner_id, active, created_at, expires_at, `+criteriaColumns+`
		FROM standing_requests WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("get_request", "request %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	r := row.request()
	return &r, nil
}

func (r requestRow) request() models.StandingRequest {
	return models.StandingRequest{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Criteria:  r.criteriaRow.model(),
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
}

func (p *PostgresStore) ListActiveRequests(ctx context.Context, kind models.ListingKind, now time.Time) ([]models.StandingRequest, error) {
	var rows []requestRow
	err := sqlx.SelectContext(ctx, p.q(ctx), &rows, `SELECT id, owner_id, active, created_at, expires_at, `+criteriaColumns+`
		FROM standing_requests WHERE active AND kind = $1 AND expires_at > $2 ORDER BY created_at`, string(kind), now)
	if err != nil {
		return nil, fmt.Errorf("list active requests: %w", err)
	}
	out := make([]models.StandingRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.request())
	}
	return out, nil
}

func (p *PostgresStore) DeactivateExpiredRequests(ctx context.Context, now time.Time) (int, error) {
	res, err := p.q(ctx).ExecContext(ctx, `UPDATE standing_requests SET active = FALSE WHERE active AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate requests: %w", err)
	}
	n, err := affected(res)
	return int(n), err
}

func (p *PostgresStore) CreateSubscription(ctx context.Context, s *models.Subscription) error {
	args := append([]any{s.ID, s.OwnerID, string(s.Role), s.Active, s.CreatedAt}, criteriaArgs(s.Criteria)...)
	_, err := p.q(ctx).ExecContext(ctx, `INSERT INTO subscriptions (id, owner_id, role, active, created_at, `+criteriaColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`, args...)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (p *PostgresStore) ListActiveSubscriptions(ctx context.Context, kind models.ListingKind, role models.SubscriptionRole) ([]models.Subscription, error) {
	var rows []subscriptionRow
	err := sqlx.SelectContext(ctx, p.q(ctx), &rows, `SELECT id, owner_id, role, active, created_at, `+criteriaColumns+`
		FROM subscriptions WHERE active AND kind = $1 AND role = $2 ORDER BY created_at`, string(kind), string(role))
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	out := make([]models.Subscription, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Subscription{
			ID:        r.ID,
			OwnerID:   r.OwnerID,
			Role:      models.SubscriptionRole(r.Role),
			Criteria:  r.criteriaRow.model(),
			Active:    r.Active,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

// ---- confirmations

func (p *PostgresStore) CreateConfirmation(ctx context.Context, c *models.Confirmation) error {
	_, err := p.q(ctx).ExecContext(ctx, `INSERT INTO confirmations (`+confirmationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		c.ID, string(c.ListingKind), c.ListingID, c.OwnerID, c.RequesterID, string(c.Status), c.SeatsRequested,
		c.CreatedAt, c.UpdatedAt, c.ConfirmedAt, c.CancelledAt, c.CancelledBy, string(c.PreviousStatus), c.Reversed)
	if isUniqueViolation(err) {
		return apperr.State("create_confirmation", "requester %s already has an open request on listing %s", c.RequesterID, c.ListingID)
	}
	if err != nil {
		return fmt.Errorf("insert confirmation: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetConfirmation(ctx context.Context, id string) (*models.Confirmation, error) {
	var row confirmationRow
	err := sqlx.GetContext(ctx, p.q(ctx), &row, `SELECT `+confirmationColumns+` FROM confirmations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("get_confirmation", "confirmation %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get confirmation: %w", err)
	}
	return row.model(), nil
}

func (p *PostgresStore) FindOpenConfirmation(ctx context.Context, listingID, requesterID string) (*models.Confirmation, error) {
	var row confirmationRow
	err := sqlx.GetContext(ctx, p.q(ctx), &row, `SELECT `+confirmationColumns+` FROM confirmations
		WHERE listing_id = $1 AND requester_id = $2 AND status IN ('pending', 'accepted') LIMIT 1`, listingID, requesterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open confirmation: %w", err)
	}
	return row.model(), nil
}

func (p *PostgresStore) UpdateConfirmation(ctx context.Context, c *models.Confirmation, expected models.ConfirmationStatus) error {
	res, err := p.q(ctx).ExecContext(ctx, `UPDATE confirmations
		SET status = $3, updated_at = $4, confirmed_at = $5, cancelled_at = $6, cancelled_by = $7,
			previous_status = $8, reversed = $9
		WHERE id = $1 AND status = $2`,
		c.ID, string(expected), string(c.Status), c.UpdatedAt, c.ConfirmedAt, c.CancelledAt, c.CancelledBy,
		string(c.PreviousStatus), c.Reversed)
	if isUniqueViolation(err) {
		return apperr.State("update_confirmation", "requester %s already has an open request on listing %s", c.RequesterID, c.ListingID)
	}
	if err != nil {
		return fmt.Errorf("update confirmation: %w", err)
	}
	rows, err := affected(res)
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.State("update_confirmation", "confirmation %s is no longer %s", c.ID, expected)
	}
	return nil
}

func (p *PostgresStore) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]string, error) {
	var ids []string
	err := sqlx.SelectContext(ctx, p.q(ctx), &ids, `SELECT id FROM confirmations
		WHERE status = 'pending' AND created_at <= $1 ORDER BY created_at LIMIT $2`, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending: %w", err)
	}
	return ids, nil
}

func (p *PostgresStore) AcceptedSeats(ctx context.Context, listingID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, p.q(ctx), &n, `SELECT COALESCE(SUM(seats_requested), 0) FROM confirmations
		WHERE listing_id = $1 AND status = 'accepted'`, listingID)
	if err != nil {
		return 0, fmt.Errorf("sum accepted seats: %w", err)
	}
	return n, nil
}

// ---- notifications

func (p *PostgresStore) InsertNotification(ctx context.Context, rec *models.NotificationRecord) (bool, error) {
	res, err := p.q(ctx).ExecContext(ctx, `INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) ON CONFLICT (dedup_key) DO NOTHING`,
		rec.ID, rec.RecipientID, string(rec.Type), string(rec.Priority), rec.Read, rec.RelatedUserID,
		string(rec.RelatedKind), rec.RelatedID, rec.DedupKey, rec.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	rows, err := affected(res)
	return rows == 1, err
}

func (p *PostgresStore) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]models.NotificationRecord, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id = $1 AND NOT deleted`
	if unreadOnly {
		query += ` AND NOT read`
	}
	query += ` ORDER BY created_at DESC`
	var rows []notificationRow
	if err := sqlx.SelectContext(ctx, p.q(ctx), &rows, query, recipientID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]models.NotificationRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (p *PostgresStore) MarkNotificationRead(ctx context.Context, id, recipientID string) error {
	res, err := p.q(ctx).ExecContext(ctx, `UPDATE notifications SET read = TRUE
		WHERE id = $1 AND recipient_id = $2 AND NOT deleted`, id, recipientID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	rows, err := affected(res)
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.NotFound("mark_read", "notification %s not found", id)
	}
	return nil
}

// DeleteNotification hides the record. The row stays so its dedup key keeps
// suppressing the same alert.
func (p *PostgresStore) DeleteNotification(ctx context.Context, id, recipientID string) error {
	res, err := p.q(ctx).ExecContext(ctx, `UPDATE notifications SET deleted = TRUE
		WHERE id = $1 AND recipient_id = $2 AND NOT deleted`, id, recipientID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	rows, err := affected(res)
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.NotFound("delete_notification", "notification %s not found", id)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
