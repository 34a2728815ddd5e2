package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/connections/database"
	"delivery-marketplace/internal/geo"
	"delivery-marketplace/internal/microservices/order/domain"
)

type OrderRepositoryInterface interface {
	// CreateOrderTx deducts stock, inserts the order and its items in one transaction.
	CreateOrderTx(ctx context.Context, o domain.NewOrder) (domain.Order, error)
	Get(ctx context.Context, id int64) (domain.Order, error)
	Items(ctx context.Context, orderID int64) ([]domain.Item, error)
	ListByBuyer(ctx context.Context, buyerID int64) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, status domain.Status) (domain.Order, error)
	BuyerProfile(ctx context.Context, userID int64) (domain.BuyerProfile, error)
}

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderRepositoryInterface {
	return &OrderRepository{db: db}
}

const orderColumns = `
	id, buyer_id, status, total_amount, delivery_fee, COALESCE(payment_reference,''),
	COALESCE(phone_number,''), delivery_address, dropoff_lat, dropoff_lng,
	COALESCE(dropoff_source,''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o        domain.Order
		lat, lng sql.NullFloat64
	)
	err := row.Scan(
		&o.ID, &o.BuyerID, &o.Status, &o.TotalAmount, &o.DeliveryFee, &o.PaymentReference,
		&o.PhoneNumber, &o.DeliveryAddress, &lat, &lng, &o.DropoffSource, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	if lat.Valid && lng.Valid {
		o.Dropoff = &geo.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	return o, nil
}

func (r *OrderRepository) CreateOrderTx(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	var out domain.Order
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		// 1. Guarded stock decrement, product ids in ascending order so that
		// concurrent orders lock rows in the same sequence.
		items := make([]domain.Item, 0, len(in.Items))
		for _, req := range mergeItems(in.Items) {
			var (
				name  string
				price decimal.Decimal
			)
			err := tx.QueryRowContext(ctx, `
				UPDATE products
				SET stock_quantity = stock_quantity - $2, updated_at = now()
				WHERE id = $1 AND available AND stock_quantity >= $2
				RETURNING name, price
			`, req.ProductID, req.Quantity).Scan(&name, &price)
			if errors.Is(err, sql.ErrNoRows) {
				return stockFailure(ctx, tx, req)
			}
			if err != nil {
				return fmt.Errorf("deduct stock for product %d: %w", req.ProductID, err)
			}
			items = append(items, domain.Item{
				ProductID:   req.ProductID,
				ProductName: name,
				Quantity:    req.Quantity,
				UnitPrice:   price,
				TotalPrice:  domain.LineTotal(req.Quantity, price),
			})
		}

		// 2. Insert order
		total := domain.ComputeTotal(items, in.DeliveryFee)
		row := tx.QueryRowContext(ctx, `
			INSERT INTO orders
				(buyer_id, status, total_amount, delivery_fee, payment_reference, phone_number,
				 delivery_address, dropoff_lat, dropoff_lng, dropoff_source)
			VALUES ($1, 'pending', $2, $3, NULLIF($4,''), NULLIF($5,''), $6, $7, $8, $9)
			RETURNING `+orderColumns,
			in.BuyerID, total, in.DeliveryFee, in.PaymentReference, in.PhoneNumber,
			in.DeliveryAddress, in.Dropoff.Lat, in.Dropoff.Lng, in.DropoffSource,
		)
		o, err := scanOrder(row)
		if err != nil {
			return database.Translate(err, "order")
		}

		// 3. Insert order items
		for i := range items {
			items[i].OrderID = o.ID
			err := tx.QueryRowContext(ctx, `
				INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, total_price)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id
			`, o.ID, items[i].ProductID, items[i].ProductName, items[i].Quantity,
				items[i].UnitPrice, items[i].TotalPrice).Scan(&items[i].ID)
			if err != nil {
				return database.Translate(err, fmt.Sprintf("order item for product %d", items[i].ProductID))
			}
		}
		o.Items = items
		out = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return out, nil
}

// stockFailure tells a missing or archived product apart from a short one
// after the guarded update matched nothing.
func stockFailure(ctx context.Context, tx *sql.Tx, req domain.ItemInput) error {
	var (
		stock  int
		onSale bool
	)
	err := tx.QueryRowContext(ctx, `SELECT stock_quantity, available FROM products WHERE id = $1`, req.ProductID).Scan(&stock, &onSale)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("product %d not found", req.ProductID)
	}
	if err != nil {
		return fmt.Errorf("read stock for product %d: %w", req.ProductID, err)
	}
	if !onSale {
		return apperr.NotFound("product %d is no longer available", req.ProductID)
	}
	return &apperr.InsufficientStockError{ProductID: req.ProductID, Available: stock, Requested: req.Quantity}
}

// mergeItems folds repeated product ids together and sorts by product id.
func mergeItems(in []domain.ItemInput) []domain.ItemInput {
	byID := make(map[int64]int, len(in))
	for _, it := range in {
		byID[it.ProductID] += it.Quantity
	}
	out := make([]domain.ItemInput, 0, len(byID))
	for id, q := range byID {
		out = append(out, domain.ItemInput{ProductID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func (r *OrderRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, database.Translate(err, fmt.Sprintf("order %d", id))
	}
	if o.Items, err = r.Items(ctx, id); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *OrderRepository) Items(ctx context.Context, orderID int64) ([]domain.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, total_price
		FROM order_items WHERE order_id = $1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID int64) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC, id DESC
	`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status domain.Status) (domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns, id, status)
	o, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, database.Translate(err, fmt.Sprintf("order %d", id))
	}
	return o, nil
}

func (r *OrderRepository) BuyerProfile(ctx context.Context, userID int64) (domain.BuyerProfile, error) {
	var (
		p        = domain.BuyerProfile{UserID: userID}
		lat, lng sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(address,''), latitude, longitude FROM users WHERE id = $1
	`, userID).Scan(&p.Address, &lat, &lng)
	if err != nil {
		return domain.BuyerProfile{}, database.Translate(err, fmt.Sprintf("user %d", userID))
	}
	if lat.Valid && lng.Valid {
		p.Location = &geo.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	return p, nil
}
