// Package service matches orders to couriers. Both flows end in the delivery
// service's AssignCourier; this layer only adds the payment gate and the
// caller checks.
package service

import (
	"context"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/geo"
	deliverydomain "delivery-marketplace/internal/microservices/delivery/domain"
	deliveryservice "delivery-marketplace/internal/microservices/delivery/service"
	orderdomain "delivery-marketplace/internal/microservices/order/domain"
)

// Policy is deployment configuration, see DISPATCH_REQUIRE_DELIVERY_PAID.
type Policy struct {
	RequireDeliveryPaid bool
}

type OrderReader interface {
	Get(ctx context.Context, id int64) (orderdomain.Order, error)
}

type Assigner interface {
	AssignCourier(ctx context.Context, req deliveryservice.AssignRequest) (deliverydomain.Assignment, error)
}

type AssignInput struct {
	CourierID     int64      `json:"courier_id" validate:"gte=0"`
	Pickup        *geo.Point `json:"pickup,omitempty" validate:"omitempty"`
	PickupAddress string     `json:"pickup_address" validate:"max=500"`
}

type DispatchServiceInterface interface {
	AssignByAdmin(ctx context.Context, orderID int64, in AssignInput) (deliverydomain.Assignment, error)
	AutoAssign(ctx context.Context, orderID, buyerID int64, in AssignInput) (deliverydomain.Assignment, error)
}

type DispatchService struct {
	policy   Policy
	orders   OrderReader
	assigner Assigner
	lg       *logger.Logger
}

func NewDispatchService(policy Policy, orders OrderReader, assigner Assigner, lg *logger.Logger) *DispatchService {
	return &DispatchService{policy: policy, orders: orders, assigner: assigner, lg: lg}
}

// AssignByAdmin assigns the given courier, or the nearest one when CourierID is zero.
func (s *DispatchService) AssignByAdmin(ctx context.Context, orderID int64, in AssignInput) (deliverydomain.Assignment, error) {
	if _, err := s.gate(ctx, orderID); err != nil {
		return deliverydomain.Assignment{}, err
	}
	return s.assign(ctx, orderID, in, deliverydomain.Actor{Admin: true}, "admin")
}

// AutoAssign is the buyer-facing flow. It always picks the nearest courier.
// buyerID zero means an admin is calling on the buyer's behalf.
func (s *DispatchService) AutoAssign(ctx context.Context, orderID, buyerID int64, in AssignInput) (deliverydomain.Assignment, error) {
	o, err := s.gate(ctx, orderID)
	if err != nil {
		return deliverydomain.Assignment{}, err
	}
	if buyerID != 0 && o.BuyerID != buyerID {
		return deliverydomain.Assignment{}, apperr.Forbidden("order %d belongs to another buyer", orderID)
	}
	in.CourierID = 0
	return s.assign(ctx, orderID, in, deliverydomain.Actor{Admin: buyerID == 0}, "auto")
}

func (s *DispatchService) gate(ctx context.Context, orderID int64) (orderdomain.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return orderdomain.Order{}, err
	}
	if s.policy.RequireDeliveryPaid && o.Status != orderdomain.StatusDeliveryPaid {
		return orderdomain.Order{}, apperr.InvalidState("order %d delivery fee not paid (status %s)", orderID, o.Status)
	}
	return o, nil
}

func (s *DispatchService) assign(ctx context.Context, orderID int64, in AssignInput, actor deliverydomain.Actor, flow string) (deliverydomain.Assignment, error) {
	a, err := s.assigner.AssignCourier(ctx, deliveryservice.AssignRequest{
		OrderID:       orderID,
		CourierID:     in.CourierID,
		Pickup:        in.Pickup,
		PickupAddress: in.PickupAddress,
		Actor:         actor,
	})
	if err != nil {
		s.lg.Warn("dispatch_failed", map[string]any{"order_id": orderID, "flow": flow, "reason": err.Error()})
		return deliverydomain.Assignment{}, err
	}
	s.lg.Info("dispatched", map[string]any{
		"order_id": orderID, "flow": flow, "delivery_id": a.Delivery.ID, "courier_id": a.Delivery.CourierID,
		"gated": s.policy.RequireDeliveryPaid,
	})
	return a, nil
}
