package database

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          BIGSERIAL PRIMARY KEY,
		email       TEXT NOT NULL UNIQUE,
		full_name   TEXT NOT NULL DEFAULT '',
		phone       TEXT,
		role        TEXT NOT NULL CHECK (role IN ('buyer','courier','admin')),
		address     TEXT,
		latitude    DOUBLE PRECISION,
		longitude   DOUBLE PRECISION,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id              BIGSERIAL PRIMARY KEY,
		name            TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		unit            TEXT NOT NULL DEFAULT '',
		image_url       TEXT,
		price           NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		stock_quantity  INTEGER NOT NULL CHECK (stock_quantity >= 0),
		available       BOOLEAN NOT NULL DEFAULT true,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS products_available_idx ON products(created_at) WHERE available`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                 BIGSERIAL PRIMARY KEY,
		buyer_id           BIGINT NOT NULL REFERENCES users(id),
		status             TEXT NOT NULL CHECK (status IN ('pending','paid','delivery_paid','courier_assigned','en_route','delivered','cancelled')),
		total_amount       NUMERIC(12,2) NOT NULL,
		delivery_fee       NUMERIC(12,2) NOT NULL DEFAULT 0,
		payment_reference  TEXT,
		phone_number       TEXT,
		delivery_address   TEXT NOT NULL DEFAULT '',
		dropoff_lat        DOUBLE PRECISION,
		dropoff_lng        DOUBLE PRECISION,
		dropoff_source     TEXT,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS orders_buyer_idx ON orders(buyer_id)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id            BIGSERIAL PRIMARY KEY,
		order_id      BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id    BIGINT NOT NULL REFERENCES products(id),
		product_name  TEXT NOT NULL,
		quantity      INTEGER NOT NULL CHECK (quantity > 0),
		unit_price    NUMERIC(12,2) NOT NULL,
		total_price   NUMERIC(12,2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS couriers (
		id                   BIGSERIAL PRIMARY KEY,
		user_id              BIGINT NOT NULL UNIQUE REFERENCES users(id),
		verification_status  TEXT NOT NULL DEFAULT 'pending' CHECK (verification_status IN ('pending','approved','rejected')),
		availability         TEXT NOT NULL DEFAULT 'offline' CHECK (availability IN ('online','offline','busy')),
		latitude             DOUBLE PRECISION,
		longitude            DOUBLE PRECISION,
		location_updated_at  TIMESTAMPTZ,
		total_points         INTEGER NOT NULL DEFAULT 0,
		total_earnings       NUMERIC(14,2) NOT NULL DEFAULT 0,
		completed_count      INTEGER NOT NULL DEFAULT 0,
		rating_count         INTEGER NOT NULL DEFAULT 0,
		average_rating       NUMERIC(3,2) NOT NULL DEFAULT 0,
		document_url         TEXT,
		selfie_url           TEXT,
		telegram_chat_id     BIGINT,
		verified_at          TIMESTAMPTZ,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS couriers_availability_idx ON couriers(availability) WHERE latitude IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS deliveries (
		id                 BIGSERIAL PRIMARY KEY,
		order_id           BIGINT NOT NULL UNIQUE REFERENCES orders(id),
		courier_id         BIGINT NOT NULL REFERENCES couriers(id),
		pickup_address     TEXT NOT NULL DEFAULT '',
		pickup_latitude    DOUBLE PRECISION NOT NULL,
		pickup_longitude   DOUBLE PRECISION NOT NULL,
		dropoff_address    TEXT NOT NULL DEFAULT '',
		dropoff_latitude   DOUBLE PRECISION NOT NULL,
		dropoff_longitude  DOUBLE PRECISION NOT NULL,
		status             TEXT NOT NULL CHECK (status IN ('assigned','en_route','delivered','cancelled')),
		fee                NUMERIC(12,2) NOT NULL DEFAULT 0,
		bonus              NUMERIC(12,2) NOT NULL DEFAULT 0,
		points_awarded     INTEGER NOT NULL DEFAULT 0,
		courier_rating     SMALLINT CHECK (courier_rating BETWEEN 1 AND 5),
		eta_minutes        INTEGER,
		distance_km        DOUBLE PRECISION NOT NULL DEFAULT 0,
		assigned_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		picked_up_at       TIMESTAMPTZ,
		delivered_at       TIMESTAMPTZ,
		cancelled_at       TIMESTAMPTZ,
		cancel_reason      TEXT,
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS deliveries_courier_idx ON deliveries(courier_id, status)`,
	`CREATE TABLE IF NOT EXISTS delivery_events (
		id           BIGSERIAL PRIMARY KEY,
		delivery_id  BIGINT NOT NULL REFERENCES deliveries(id),
		order_id     BIGINT NOT NULL,
		status       TEXT NOT NULL,
		actor        TEXT NOT NULL,
		note         TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id                 BIGSERIAL PRIMARY KEY,
		order_id           BIGINT REFERENCES orders(id),
		user_id            BIGINT NOT NULL,
		amount             NUMERIC(12,2) NOT NULL CHECK (amount > 0),
		currency           TEXT NOT NULL,
		status             TEXT NOT NULL CHECK (status IN ('pending','completed','cancelled')),
		payment_type       TEXT NOT NULL CHECK (payment_type IN ('order','delivery')),
		tx_ref             TEXT NOT NULL UNIQUE,
		gateway_id         TEXT,
		payment_reference  TEXT,
		link               TEXT,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS payments_pending_idx ON payments(created_at) WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id          BIGSERIAL PRIMARY KEY,
		event_id    TEXT NOT NULL UNIQUE,
		topic       TEXT NOT NULL,
		type        TEXT NOT NULL,
		message     TEXT NOT NULL,
		payload     JSONB NOT NULL,
		is_read     BOOLEAN NOT NULL DEFAULT false,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

const migrateLockKey = 727401

// Migrate applies the idempotent schema. Concurrent callers are serialized on
// an advisory lock held for the transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	return WithTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrateLockKey); err != nil {
			return fmt.Errorf("migrate lock: %w", err)
		}
		for i, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate step %d: %w", i, err)
			}
		}
		return nil
	})
}
