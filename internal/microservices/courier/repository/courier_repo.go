package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"delivery-marketplace/internal/connections/database"
	"delivery-marketplace/internal/geo"
	"delivery-marketplace/internal/microservices/courier/domain"
)

type CourierRepositoryInterface interface {
	Create(ctx context.Context, userID int64) (domain.Courier, error)
	Get(ctx context.Context, id int64) (domain.Courier, error)
	GetByUserID(ctx context.Context, userID int64) (domain.Courier, error)

	// SaveDocuments resets verification to pending unless the courier is already approved.
	SaveDocuments(ctx context.Context, id int64, docs domain.Documents) (bool, error)
	// TransitionVerification applies from->to only if the stored status equals from.
	TransitionVerification(ctx context.Context, id int64, from, to domain.Verification) (bool, error)
	// SetAvailability applies from->to only if the stored availability equals from.
	SetAvailability(ctx context.Context, id int64, from, to domain.Availability) (bool, error)
	UpdateLocation(ctx context.Context, id int64, p geo.Point, at time.Time) error

	CountActiveDeliveries(ctx context.Context, id int64) (int, error)
	ListDispatchable(ctx context.Context) ([]domain.Courier, error)
	// ListByVerification returns the oldest registrations first.
	ListByVerification(ctx context.Context, v domain.Verification, limit, offset int) ([]domain.Courier, error)

	DeliveryHistory(ctx context.Context, id int64, f domain.HistoryFilter) ([]domain.DeliveryRecord, error)
	RatingBuckets(ctx context.Context, id int64) ([]domain.RatingBucket, error)
}

type CourierRepository struct {
	db *sql.DB
}

func NewCourierRepository(db *sql.DB) CourierRepositoryInterface {
	return &CourierRepository{db: db}
}

const courierColumns = `
	id, user_id, verification_status, availability, latitude, longitude, location_updated_at,
	total_points, total_earnings, completed_count, rating_count, average_rating,
	COALESCE(document_url,''), COALESCE(selfie_url,''), telegram_chat_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourier(row rowScanner) (domain.Courier, error) {
	var (
		c        domain.Courier
		lat, lng sql.NullFloat64
		locAt    sql.NullTime
		chatID   sql.NullInt64
	)
	err := row.Scan(
		&c.ID, &c.UserID, &c.Verification, &c.Availability, &lat, &lng, &locAt,
		&c.TotalPoints, &c.TotalEarnings, &c.CompletedCount, &c.RatingCount, &c.AverageRating,
		&c.DocumentURL, &c.SelfieURL, &chatID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Courier{}, err
	}
	if lat.Valid && lng.Valid {
		c.Location = &geo.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	if locAt.Valid {
		t := locAt.Time
		c.LocationUpdatedAt = &t
	}
	if chatID.Valid {
		id := chatID.Int64
		c.TelegramChatID = &id
	}
	return c, nil
}

func (r *CourierRepository) Create(ctx context.Context, userID int64) (domain.Courier, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO couriers (user_id, verification_status, availability)
		VALUES ($1, 'pending', 'offline')
		RETURNING `+courierColumns, userID)
	c, err := scanCourier(row)
	if err != nil {
		return domain.Courier{}, database.Translate(err, fmt.Sprintf("courier for user %d", userID))
	}
	return c, nil
}

func (r *CourierRepository) Get(ctx context.Context, id int64) (domain.Courier, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+courierColumns+` FROM couriers WHERE id = $1`, id)
	c, err := scanCourier(row)
	if err != nil {
		return domain.Courier{}, database.Translate(err, fmt.Sprintf("courier %d", id))
	}
	return c, nil
}

func (r *CourierRepository) GetByUserID(ctx context.Context, userID int64) (domain.Courier, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+courierColumns+` FROM couriers WHERE user_id = $1`, userID)
	c, err := scanCourier(row)
	if err != nil {
		return domain.Courier{}, database.Translate(err, fmt.Sprintf("courier for user %d", userID))
	}
	return c, nil
}

func (r *CourierRepository) SaveDocuments(ctx context.Context, id int64, docs domain.Documents) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE couriers
		SET document_url = $2, selfie_url = $3,
		    telegram_chat_id = COALESCE($4, telegram_chat_id),
		    verification_status = 'pending', updated_at = now()
		WHERE id = $1 AND verification_status <> 'approved'
	`, id, docs.DocumentURL, docs.SelfieURL, docs.TelegramChatID)
	return affected(res, err)
}

func (r *CourierRepository) TransitionVerification(ctx context.Context, id int64, from, to domain.Verification) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE couriers
		SET verification_status = $3,
		    verified_at = CASE WHEN $3 = 'approved' THEN now() ELSE verified_at END,
		    updated_at = now()
		WHERE id = $1 AND verification_status = $2
	`, id, from, to)
	return affected(res, err)
}

func (r *CourierRepository) SetAvailability(ctx context.Context, id int64, from, to domain.Availability) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE couriers SET availability = $3, updated_at = now()
		WHERE id = $1 AND availability = $2
	`, id, from, to)
	return affected(res, err)
}

func (r *CourierRepository) UpdateLocation(ctx context.Context, id int64, p geo.Point, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE couriers
		SET latitude = $2, longitude = $3, location_updated_at = $4, updated_at = now()
		WHERE id = $1 AND (location_updated_at IS NULL OR location_updated_at <= $4)
	`, id, p.Lat, p.Lng, at)
	ok, err := affected(res, err)
	if err != nil {
		return err
	}
	if !ok {
		// either unknown courier or a newer fix already stored
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *CourierRepository) CountActiveDeliveries(ctx context.Context, id int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM deliveries
		WHERE courier_id = $1 AND status IN ('assigned','en_route')
	`, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active deliveries: %w", err)
	}
	return n, nil
}

func (r *CourierRepository) ListDispatchable(ctx context.Context) ([]domain.Courier, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+courierColumns+`
		FROM couriers
		WHERE availability = 'online'
		  AND verification_status = 'approved'
		  AND latitude IS NOT NULL AND longitude IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("list dispatchable couriers: %w", err)
	}
	defer rows.Close()

	var out []domain.Courier
	for rows.Next() {
		c, err := scanCourier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan courier: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CourierRepository) ListByVerification(ctx context.Context, v domain.Verification, limit, offset int) ([]domain.Courier, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+courierColumns+`
		FROM couriers
		WHERE verification_status = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`, v, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list couriers by verification: %w", err)
	}
	defer rows.Close()

	var out []domain.Courier
	for rows.Next() {
		c, err := scanCourier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan courier: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CourierRepository) DeliveryHistory(ctx context.Context, id int64, f domain.HistoryFilter) ([]domain.DeliveryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, status, pickup_address, dropoff_address, distance_km,
		       fee, bonus, points_awarded, courier_rating,
		       assigned_at, picked_up_at, delivered_at, cancelled_at, COALESCE(cancel_reason,'')
		FROM deliveries
		WHERE courier_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY assigned_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, id, f.Status, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list delivery history: %w", err)
	}
	defer rows.Close()

	var out []domain.DeliveryRecord
	for rows.Next() {
		var (
			d                              domain.DeliveryRecord
			rating                         sql.NullInt64
			pickedUp, delivered, cancelled sql.NullTime
		)
		err := rows.Scan(&d.DeliveryID, &d.OrderID, &d.Status, &d.PickupAddress, &d.DropoffAddress, &d.DistanceKm,
			&d.Fee, &d.Bonus, &d.PointsAwarded, &rating,
			&d.AssignedAt, &pickedUp, &delivered, &cancelled, &d.CancelReason)
		if err != nil {
			return nil, fmt.Errorf("scan delivery record: %w", err)
		}
		if rating.Valid {
			n := int(rating.Int64)
			d.Rating = &n
		}
		d.PickedUpAt = timePtr(pickedUp)
		d.DeliveredAt = timePtr(delivered)
		d.CancelledAt = timePtr(cancelled)
		out = append(out, d)
	}
	return out, rows.Err()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (r *CourierRepository) RatingBuckets(ctx context.Context, id int64) ([]domain.RatingBucket, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT courier_rating, COUNT(*), COALESCE(SUM(points_awarded), 0)
		FROM deliveries
		WHERE courier_id = $1 AND courier_rating IS NOT NULL
		GROUP BY courier_rating
		ORDER BY courier_rating
	`, id)
	if err != nil {
		return nil, fmt.Errorf("rating buckets: %w", err)
	}
	defer rows.Close()

	var out []domain.RatingBucket
	for rows.Next() {
		var b domain.RatingBucket
		if err := rows.Scan(&b.Stars, &b.Count, &b.Points); err != nil {
			return nil, fmt.Errorf("scan rating bucket: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, database.Translate(err, "courier")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
