package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/connections/database"
	"delivery-marketplace/internal/microservices/delivery/domain"
)

// Every Mark* method is a conditional update on the expected prior status. A
// false result means another caller got there first (or the courier does not
// own the delivery); nothing was written in that case.
type DeliveryRepositoryInterface interface {
	CreateAssigned(ctx context.Context, d domain.NewDelivery, actor string) (domain.Delivery, error)
	Get(ctx context.Context, id int64) (domain.Delivery, error)
	GetByOrder(ctx context.Context, orderID int64) (domain.Delivery, error)
	MarkPickedUp(ctx context.Context, id, courierID int64, etaMinutes int, actor string) (domain.Delivery, bool, error)
	MarkDelivered(ctx context.Context, id, courierID int64, reward domain.Reward, actor string) (domain.Delivery, bool, error)
	MarkCancelled(ctx context.Context, id int64, from domain.Status, reason, actor string) (domain.Delivery, bool, error)
	Timeline(ctx context.Context, id int64, limit, offset int) ([]domain.TimelineEntry, error)
}

type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) DeliveryRepositoryInterface {
	return &DeliveryRepository{db: db}
}

const deliveryColumns = `
	id, order_id, courier_id, pickup_address, pickup_latitude, pickup_longitude,
	dropoff_address, dropoff_latitude, dropoff_longitude, status, fee, bonus, points_awarded,
	courier_rating, eta_minutes, distance_km, assigned_at, picked_up_at, delivered_at,
	cancelled_at, COALESCE(cancel_reason,''), updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row rowScanner) (domain.Delivery, error) {
	var (
		d                           domain.Delivery
		rating, eta                 sql.NullInt32
		pickedUp, delivered, cancel sql.NullTime
	)
	err := row.Scan(
		&d.ID, &d.OrderID, &d.CourierID, &d.PickupAddress, &d.Pickup.Lat, &d.Pickup.Lng,
		&d.DropoffAddress, &d.Dropoff.Lat, &d.Dropoff.Lng, &d.Status, &d.Fee, &d.Bonus, &d.PointsAwarded,
		&rating, &eta, &d.DistanceKm, &d.AssignedAt, &pickedUp, &delivered,
		&cancel, &d.CancelReason, &d.UpdatedAt,
	)
	if err != nil {
		return domain.Delivery{}, err
	}
	if rating.Valid {
		v := int(rating.Int32)
		d.CourierRating = &v
	}
	if eta.Valid {
		v := int(eta.Int32)
		d.EtaMinutes = &v
	}
	d.PickedUpAt = timePtr(pickedUp)
	d.DeliveredAt = timePtr(delivered)
	d.CancelledAt = timePtr(cancel)
	return d, nil
}

func (r *DeliveryRepository) CreateAssigned(ctx context.Context, in domain.NewDelivery, actor string) (domain.Delivery, error) {
	var out domain.Delivery
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		// 1. The unique order_id index decides who wins a concurrent assignment.
		row := tx.QueryRowContext(ctx, `
			INSERT INTO deliveries
				(order_id, courier_id, pickup_address, pickup_latitude, pickup_longitude,
				 dropoff_address, dropoff_latitude, dropoff_longitude, status, fee, eta_minutes, distance_km)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'assigned', $9, $10, $11)
			RETURNING `+deliveryColumns,
			in.OrderID, in.CourierID, in.PickupAddress, in.Pickup.Lat, in.Pickup.Lng,
			in.DropoffAddress, in.Dropoff.Lat, in.Dropoff.Lng, in.Fee, in.EtaMinutes, in.DistanceKm,
		)
		d, err := scanDelivery(row)
		if err != nil {
			err = database.Translate(err, fmt.Sprintf("delivery for order %d", in.OrderID))
			if errors.Is(err, apperr.ErrConflict) {
				return apperr.Conflict("order %d already has a delivery", in.OrderID)
			}
			return err
		}

		// 2. Courier online -> busy, guarded by the prior value.
		res, err := tx.ExecContext(ctx, `
			UPDATE couriers SET availability = 'busy', updated_at = now()
			WHERE id = $1 AND availability = 'online' AND verification_status = 'approved'
		`, in.CourierID)
		if ok, err := applied(res, err); err != nil {
			return err
		} else if !ok {
			return apperr.Conflict("courier %d is no longer available", in.CourierID)
		}

		// 3. Order status
		if err := setOrderStatus(ctx, tx, in.OrderID, "courier_assigned"); err != nil {
			return err
		}
		if err := appendEvent(ctx, tx, d, actor, ""); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return domain.Delivery{}, err
	}
	return out, nil
}

func (r *DeliveryRepository) Get(ctx context.Context, id int64) (domain.Delivery, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id)
	d, err := scanDelivery(row)
	if err != nil {
		return domain.Delivery{}, database.Translate(err, fmt.Sprintf("delivery %d", id))
	}
	return d, nil
}

func (r *DeliveryRepository) GetByOrder(ctx context.Context, orderID int64) (domain.Delivery, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE order_id = $1`, orderID)
	d, err := scanDelivery(row)
	if err != nil {
		return domain.Delivery{}, database.Translate(err, fmt.Sprintf("delivery for order %d", orderID))
	}
	return d, nil
}

func (r *DeliveryRepository) MarkPickedUp(ctx context.Context, id, courierID int64, etaMinutes int, actor string) (domain.Delivery, bool, error) {
	var (
		out domain.Delivery
		ok  bool
	)
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE deliveries
			SET status = 'en_route', picked_up_at = now(), eta_minutes = $3, updated_at = now()
			WHERE id = $1 AND courier_id = $2 AND status = 'assigned'
			RETURNING `+deliveryColumns, id, courierID, etaMinutes)
		d, err := scanDelivery(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("mark picked up: %w", err)
		}
		if err := setOrderStatus(ctx, tx, d.OrderID, "en_route"); err != nil {
			return err
		}
		if err := appendEvent(ctx, tx, d, actor, fmt.Sprintf("eta %d min", etaMinutes)); err != nil {
			return err
		}
		out, ok = d, true
		return nil
	})
	return out, ok, err
}

func (r *DeliveryRepository) MarkDelivered(ctx context.Context, id, courierID int64, reward domain.Reward, actor string) (domain.Delivery, bool, error) {
	var (
		out domain.Delivery
		ok  bool
	)
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE deliveries
			SET status = 'delivered', delivered_at = now(), bonus = $3, points_awarded = $4,
			    courier_rating = $5, updated_at = now()
			WHERE id = $1 AND courier_id = $2 AND status = 'en_route'
			RETURNING `+deliveryColumns, id, courierID, reward.Bonus, reward.Points, reward.Rating)
		d, err := scanDelivery(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return database.Translate(err, fmt.Sprintf("delivery %d", id))
		}

		// Courier totals move with the delivery row or not at all. SET expressions
		// read the pre-update row, so average_rating uses the old rating_count.
		_, err = tx.ExecContext(ctx, `
			UPDATE couriers
			SET total_points    = total_points + $2,
			    total_earnings  = total_earnings + $3,
			    completed_count = completed_count + 1,
			    average_rating  = CASE WHEN $4::int IS NULL THEN average_rating
			                      ELSE ROUND((average_rating * rating_count + $4::int) / (rating_count + 1), 2) END,
			    rating_count    = rating_count + CASE WHEN $4::int IS NULL THEN 0 ELSE 1 END,
			    availability    = CASE WHEN availability = 'busy' THEN 'online' ELSE availability END,
			    updated_at      = now()
			WHERE id = $1
		`, courierID, reward.Points, d.Fee.Add(reward.Bonus), reward.Rating)
		if err != nil {
			return fmt.Errorf("credit courier %d: %w", courierID, err)
		}
		if err := setOrderStatus(ctx, tx, d.OrderID, "delivered"); err != nil {
			return err
		}
		if err := appendEvent(ctx, tx, d, actor, fmt.Sprintf("points %d", reward.Points)); err != nil {
			return err
		}
		out, ok = d, true
		return nil
	})
	return out, ok, err
}

func (r *DeliveryRepository) MarkCancelled(ctx context.Context, id int64, from domain.Status, reason, actor string) (domain.Delivery, bool, error) {
	var (
		out domain.Delivery
		ok  bool
	)
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE deliveries
			SET status = 'cancelled', cancelled_at = now(), cancel_reason = NULLIF($3,''), updated_at = now()
			WHERE id = $1 AND status = $2
			RETURNING `+deliveryColumns, id, from, reason)
		d, err := scanDelivery(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("mark cancelled: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE couriers SET availability = 'online', updated_at = now()
			WHERE id = $1 AND availability = 'busy'
		`, d.CourierID); err != nil {
			return fmt.Errorf("release courier %d: %w", d.CourierID, err)
		}
		if err := setOrderStatus(ctx, tx, d.OrderID, "cancelled"); err != nil {
			return err
		}
		if err := appendEvent(ctx, tx, d, actor, reason); err != nil {
			return err
		}
		out, ok = d, true
		return nil
	})
	return out, ok, err
}

func (r *DeliveryRepository) Timeline(ctx context.Context, id int64, limit, offset int) ([]domain.TimelineEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, delivery_id, order_id, status, actor, note, created_at
		FROM delivery_events
		WHERE delivery_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	var out []domain.TimelineEntry
	for rows.Next() {
		var e domain.TimelineEntry
		if err := rows.Scan(&e.ID, &e.DeliveryID, &e.OrderID, &e.Status, &e.Actor, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan timeline: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func setOrderStatus(ctx context.Context, tx *sql.Tx, orderID int64, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, orderID, status)
	if ok, err := applied(res, err); err != nil {
		return err
	} else if !ok {
		return apperr.NotFound("order %d not found", orderID)
	}
	return nil
}

func appendEvent(ctx context.Context, tx *sql.Tx, d domain.Delivery, actor, note string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO delivery_events (delivery_id, order_id, status, actor, note)
		VALUES ($1, $2, $3, $4, $5)
	`, d.ID, d.OrderID, d.Status, actor, note)
	if err != nil {
		return fmt.Errorf("append delivery event: %w", err)
	}
	return nil
}

func applied(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, database.Translate(err, "delivery")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
