package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/connections/database"
	"delivery-marketplace/internal/microservices/payment/domain"
)

type PaymentRepositoryInterface interface {
	Insert(ctx context.Context, p domain.Payment) (domain.Payment, error)
	GetByTxRef(ctx context.Context, txRef string) (domain.Payment, error)
	// ApplyOutcome moves a pending payment to a terminal status and updates the
	// linked order in the same transaction. When the payment is no longer
	// pending nothing is written and the stored row is returned with false.
	ApplyOutcome(ctx context.Context, o domain.Outcome) (domain.Payment, bool, error)
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Payment, error)
	Payer(ctx context.Context, userID int64) (domain.Payer, error)
}

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) PaymentRepositoryInterface {
	return &PaymentRepository{db: db}
}

const paymentColumns = `
	id, order_id, user_id, amount, currency, status, payment_type, tx_ref,
	COALESCE(gateway_id,''), COALESCE(payment_reference,''), COALESCE(link,''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (domain.Payment, error) {
	var (
		p       domain.Payment
		orderID sql.NullInt64
	)
	err := row.Scan(
		&p.ID, &orderID, &p.UserID, &p.Amount, &p.Currency, &p.Status, &p.Type, &p.TxRef,
		&p.GatewayID, &p.PaymentReference, &p.Link, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Payment{}, err
	}
	if orderID.Valid {
		id := orderID.Int64
		p.OrderID = &id
	}
	return p, nil
}

func (r *PaymentRepository) Insert(ctx context.Context, p domain.Payment) (domain.Payment, error) {
	var orderID sql.NullInt64
	if p.OrderID != nil {
		orderID = sql.NullInt64{Int64: *p.OrderID, Valid: true}
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO payments (order_id, user_id, amount, currency, status, payment_type, tx_ref,
			gateway_id, payment_reference, link)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8,''), NULLIF($9,''), NULLIF($10,''))
		RETURNING `+paymentColumns,
		orderID, p.UserID, p.Amount, p.Currency, p.Status, p.Type, p.TxRef,
		p.GatewayID, p.PaymentReference, p.Link,
	)
	out, err := scanPayment(row)
	if err != nil {
		return domain.Payment{}, database.Translate(err, "payment")
	}
	return out, nil
}

func (r *PaymentRepository) GetByTxRef(ctx context.Context, txRef string) (domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE tx_ref = $1`, txRef)
	p, err := scanPayment(row)
	if err != nil {
		return domain.Payment{}, database.Translate(err, fmt.Sprintf("payment %s", txRef))
	}
	return p, nil
}

// orderStatusGuard lists the order statuses a payment outcome may overwrite.
// Orders already past dispatch keep their status.
var orderStatusGuard = map[domain.Status][]string{
	domain.StatusCompleted: {"pending", "paid"},
	domain.StatusCancelled: {"pending", "paid", "delivery_paid"},
}

func (r *PaymentRepository) ApplyOutcome(ctx context.Context, o domain.Outcome) (domain.Payment, bool, error) {
	if !o.Status.IsTerminal() {
		return domain.Payment{}, false, apperr.InvalidArgument("outcome %q is not terminal", o.Status)
	}

	var (
		out     domain.Payment
		changed bool
	)
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE payments
			SET status = $2, gateway_id = COALESCE(NULLIF($3,''), gateway_id), updated_at = now()
			WHERE tx_ref = $1 AND status = 'pending'
			RETURNING `+paymentColumns,
			o.TxRef, o.Status, o.GatewayID,
		)
		p, err := scanPayment(row)
		if errors.Is(err, sql.ErrNoRows) {
			p, err = scanPayment(tx.QueryRowContext(ctx,
				`SELECT `+paymentColumns+` FROM payments WHERE tx_ref = $1`, o.TxRef))
			if err != nil {
				return database.Translate(err, fmt.Sprintf("payment %s", o.TxRef))
			}
			out = p
			return nil
		}
		if err != nil {
			return database.Translate(err, "payment")
		}
		out, changed = p, true

		if p.OrderID == nil {
			return nil
		}
		target, ok := domain.OrderStatusFor(p.Type, p.Status)
		if !ok {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE orders SET status = $2, payment_reference = COALESCE(payment_reference, $3), updated_at = now()
			WHERE id = $1 AND status = ANY($4)
		`, *p.OrderID, target, p.TxRef, orderStatusGuard[p.Status])
		return database.Translate(err, "order")
	})
	if err != nil {
		return domain.Payment{}, false, err
	}
	return out, changed, nil
}

func (r *PaymentRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`, olderThan, limit)
	if err != nil {
		return nil, database.Translate(err, "payments")
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PaymentRepository) Payer(ctx context.Context, userID int64) (domain.Payer, error) {
	p := domain.Payer{UserID: userID}
	err := r.db.QueryRowContext(ctx, `SELECT email, full_name FROM users WHERE id = $1`, userID).
		Scan(&p.Email, &p.Name)
	if err != nil {
		return domain.Payer{}, database.Translate(err, fmt.Sprintf("user %d", userID))
	}
	return p, nil
}
