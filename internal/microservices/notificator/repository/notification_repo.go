package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"delivery-marketplace/internal/common/events"
	"delivery-marketplace/internal/connections/database"
)

type Notification struct {
	ID     int64        `json:"id"`
	Event  events.Event `json:"event"`
	IsRead bool         `json:"is_read"`
}

type NotificationRepositoryInterface interface {
	// Save stores ev once per event id. false means it was already stored.
	Save(ctx context.Context, ev events.Event, payload []byte) (bool, error)
	CourierChatID(ctx context.Context, courierID int64) (int64, bool, error)
	ListByTopics(ctx context.Context, topics []string, limit, offset int) ([]Notification, error)
	MarkRead(ctx context.Context, id int64, topics []string) (bool, error)
}

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) NotificationRepositoryInterface {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Save(ctx context.Context, ev events.Event, payload []byte) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (event_id, topic, type, message, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
	`, ev.ID, ev.Topic, ev.Type, ev.Message, payload, ev.OccurredAt)
	if err != nil {
		return false, database.Translate(err, "notification")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *NotificationRepository) CourierChatID(ctx context.Context, courierID int64) (int64, bool, error) {
	var chatID sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT telegram_chat_id FROM couriers WHERE id = $1`, courierID).Scan(&chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, database.Translate(err, fmt.Sprintf("courier %d", courierID))
	}
	return chatID.Int64, chatID.Valid, nil
}

func (r *NotificationRepository) ListByTopics(ctx context.Context, topics []string, limit, offset int) ([]Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, payload, is_read
		FROM notifications
		WHERE topic = ANY($1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, topics, limit, offset)
	if err != nil {
		return nil, database.Translate(err, "notifications")
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var (
			n       Notification
			payload []byte
		)
		if err := rows.Scan(&n.ID, &payload, &n.IsRead); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &n.Event); err != nil {
			return nil, fmt.Errorf("decode notification %d: %w", n.ID, err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id int64, topics []string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = true WHERE id = $1 AND topic = ANY($2)`, id, topics)
	if err != nil {
		return false, database.Translate(err, "notification")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
