package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"delivery-marketplace/internal/geo"
)

type Status string

const (
	StatusPending         Status = "pending"
	StatusPaid            Status = "paid"
	StatusDeliveryPaid    Status = "delivery_paid"
	StatusCourierAssigned Status = "courier_assigned"
	StatusEnRoute         Status = "en_route"
	StatusDelivered       Status = "delivered"
	StatusCancelled       Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusDeliveryPaid, StatusCourierAssigned,
		StatusEnRoute, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type Order struct {
	ID               int64           `json:"id"`
	BuyerID          int64           `json:"buyer_id"`
	Status           Status          `json:"status"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	DeliveryFee      decimal.Decimal `json:"delivery_fee"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	PhoneNumber      string          `json:"phone_number,omitempty"`
	DeliveryAddress  string          `json:"delivery_address"`
	Dropoff          *geo.Point      `json:"dropoff,omitempty"`
	DropoffSource    geo.Source      `json:"dropoff_source,omitempty"`
	Items            []Item          `json:"items,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Item is an immutable line item. UnitPrice is captured from the product at creation.
type Item struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type ItemInput struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type CreateOrderRequest struct {
	Items            []ItemInput      `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress  string           `json:"delivery_address" validate:"max=500"`
	Dropoff          *geo.Point       `json:"dropoff,omitempty" validate:"omitempty"`
	DeliveryFee      *decimal.Decimal `json:"delivery_fee,omitempty"`
	PhoneNumber      string           `json:"phone_number" validate:"omitempty,max=32"`
	PaymentReference string           `json:"payment_reference" validate:"omitempty,max=128"`
}

// NewOrder is what the store persists in one transaction.
type NewOrder struct {
	BuyerID          int64
	Items            []ItemInput
	DeliveryFee      decimal.Decimal
	DeliveryAddress  string
	Dropoff          geo.Point
	DropoffSource    geo.Source
	PhoneNumber      string
	PaymentReference string
}

// BuyerProfile is the registered address used as the last dropoff fallback.
type BuyerProfile struct {
	UserID   int64
	Address  string
	Location *geo.Point
}

// ComputeTotal returns sum(item totals) + fee.
func ComputeTotal(items []Item, fee decimal.Decimal) decimal.Decimal {
	total := fee
	for _, it := range items {
		total = total.Add(it.TotalPrice)
	}
	return total
}

// LineTotal is quantity x unit price.
func LineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}
