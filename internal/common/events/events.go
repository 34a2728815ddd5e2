// Package events defines the notification fan-out contract shared by the services.
package events

import (
	"context"
	"fmt"
	"time"
)

type Type string

const (
	CourierVerificationSubmitted Type = "courier.verification_submitted"
	CourierVerificationDecided   Type = "courier.verification_decided"
	OrderCreated                 Type = "order.created"
	OrderStatusChanged           Type = "order.status_changed"
	DeliveryAssigned             Type = "delivery.assigned"
	DeliveryPickedUp             Type = "delivery.picked_up"
	DeliveryDelivered            Type = "delivery.delivered"
	DeliveryCancelled            Type = "delivery.cancelled"
	PaymentUpdated               Type = "payment.updated"
)

const AdminsTopic = "admins"

type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Topic      string    `json:"topic"`
	OrderID    int64     `json:"order_id,omitempty"`
	DeliveryID int64     `json:"delivery_id,omitempty"`
	CourierID  int64     `json:"courier_id,omitempty"`
	UserID     int64     `json:"user_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

func UserTopic(userID int64) string       { return fmt.Sprintf("user_%d", userID) }
func CourierTopic(courierID int64) string { return fmt.Sprintf("courier_%d", courierID) }

// Sink is fire-and-forget: implementations must not block state transitions
// and never report delivery failures to the caller.
type Sink interface {
	Publish(ctx context.Context, ev Event)
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
