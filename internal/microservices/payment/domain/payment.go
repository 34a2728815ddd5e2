package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"delivery-marketplace/internal/common/apperr"
	orderdomain "delivery-marketplace/internal/microservices/order/domain"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsTerminal() bool { return s == StatusCompleted || s == StatusCancelled }

type Type string

const (
	TypeOrder    Type = "order"
	TypeDelivery Type = "delivery"
)

func (t Type) IsValid() bool { return t == TypeOrder || t == TypeDelivery }

type Payment struct {
	ID               int64           `json:"id"`
	OrderID          *int64          `json:"order_id,omitempty"`
	UserID           int64           `json:"user_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           Status          `json:"status"`
	Type             Type            `json:"payment_type"`
	TxRef            string          `json:"tx_ref"`
	GatewayID        string          `json:"gateway_id,omitempty"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	Link             string          `json:"link,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// MapGatewayStatus folds the gateway vocabulary into the internal tri-state.
// The webhook and the verify path both go through it.
func MapGatewayStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "successful", "completed", "success":
		return StatusCompleted, nil
	case "failed", "cancelled", "canceled":
		return StatusCancelled, nil
	case "pending", "new", "processing":
		return StatusPending, nil
	}
	return "", apperr.InvalidArgument("unknown gateway status %q", s)
}

// OrderStatusFor is the order status a terminal payment outcome implies.
func OrderStatusFor(t Type, s Status) (orderdomain.Status, bool) {
	switch {
	case s == StatusCompleted && t == TypeOrder:
		return orderdomain.StatusPaid, true
	case s == StatusCompleted && t == TypeDelivery:
		return orderdomain.StatusDeliveryPaid, true
	case s == StatusCancelled:
		return orderdomain.StatusCancelled, true
	}
	return "", false
}

// NewTxRef builds "<type>-<order id|adhoc>-<uuid>".
func NewTxRef(t Type, orderID *int64) string {
	scope := "adhoc"
	if orderID != nil {
		scope = fmt.Sprintf("%d", *orderID)
	}
	return fmt.Sprintf("%s-%s-%s", t, scope, uuid.NewString())
}

type Payer struct {
	UserID int64
	Email  string
	Name   string
}

type LinkRequest struct {
	OrderID     *int64           `json:"order_id,omitempty" validate:"omitempty,gt=0"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	PaymentType Type             `json:"payment_type" validate:"required,oneof=order delivery"`
	Name        string           `json:"name" validate:"max=200"`
}

type LinkResult struct {
	Payment Payment `json:"payment"`
	Link    string  `json:"link"`
}

type WebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID       int64           `json:"id"`
		TxRef    string          `json:"tx_ref"`
		Status   string          `json:"status"`
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	} `json:"data"`
}

// Outcome is what the gateway reported for one transaction.
type Outcome struct {
	TxRef     string
	Status    Status
	GatewayID string
	Amount    decimal.Decimal
	Currency  string
}
