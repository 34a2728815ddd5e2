package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/common/events"
	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/geo"
	"delivery-marketplace/internal/microservices/order/domain"
	"delivery-marketplace/internal/microservices/order/repository"
)

type OrderServiceInterface interface {
	CreateOrder(ctx context.Context, buyerID int64, req domain.CreateOrderRequest) (domain.Order, error)
	Get(ctx context.Context, id int64) (domain.Order, error)
	Items(ctx context.Context, orderID int64) ([]domain.Item, error)
	ListByBuyer(ctx context.Context, buyerID int64) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, status domain.Status) (domain.Order, error)
}

type OrderService struct {
	repo     repository.OrderRepositoryInterface
	resolver *geo.Resolver
	sink     events.Sink
	lg       *logger.Logger
}

func NewOrderService(repo repository.OrderRepositoryInterface, geocoder geo.Geocoder, sink events.Sink, lg *logger.Logger) *OrderService {
	s := &OrderService{repo: repo, sink: sink, lg: lg}
	s.resolver = geo.NewResolver(geocoder, func(c geo.Candidate, err error) {
		lg.Warn("dropoff_candidate_skipped", map[string]any{"source": c.Source, "address": c.Address, "reason": err.Error()})
	})
	return s
}

func (s *OrderService) CreateOrder(ctx context.Context, buyerID int64, req domain.CreateOrderRequest) (domain.Order, error) {
	if len(req.Items) == 0 {
		return domain.Order{}, apperr.InvalidArgument("at least one item is required")
	}
	for _, it := range req.Items {
		if it.ProductID <= 0 || it.Quantity <= 0 {
			return domain.Order{}, apperr.InvalidArgument("invalid item: product %d quantity %d", it.ProductID, it.Quantity)
		}
	}
	fee := decimal.Zero
	if req.DeliveryFee != nil {
		if req.DeliveryFee.IsNegative() {
			return domain.Order{}, apperr.InvalidArgument("delivery fee must not be negative")
		}
		fee = *req.DeliveryFee
	}

	profile, err := s.repo.BuyerProfile(ctx, buyerID)
	if err != nil {
		return domain.Order{}, err
	}
	// explicit coordinates, then the geocoded delivery address, then the buyer's registered address
	res, err := s.resolver.Resolve(ctx,
		geo.Candidate{Source: geo.SourceExplicit, Point: req.Dropoff, Address: req.DeliveryAddress},
		geo.Candidate{Source: geo.SourceProfile, Point: profile.Location, Address: profile.Address},
	)
	if err != nil {
		return domain.Order{}, fmt.Errorf("resolve dropoff: %w", err)
	}
	if res.Source == geo.SourceProfile {
		res.Address = pickAddress(profile.Address, res.Address)
	}

	o, err := s.repo.CreateOrderTx(ctx, domain.NewOrder{
		BuyerID:          buyerID,
		Items:            req.Items,
		DeliveryFee:      fee,
		DeliveryAddress:  res.Address,
		Dropoff:          res.Point,
		DropoffSource:    res.Source,
		PhoneNumber:      strings.TrimSpace(req.PhoneNumber),
		PaymentReference: strings.TrimSpace(req.PaymentReference),
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.lg.Info("order_created", map[string]any{
		"order_id": o.ID, "buyer_id": buyerID, "total_amount": o.TotalAmount.String(), "dropoff_source": res.Source,
	})
	msg := fmt.Sprintf("Order #%d placed, total %s", o.ID, o.TotalAmount.StringFixed(2))
	for _, topic := range []string{events.UserTopic(buyerID), events.AdminsTopic} {
		s.sink.Publish(ctx, events.Event{
			Type:    events.OrderCreated,
			Topic:   topic,
			OrderID: o.ID,
			UserID:  buyerID,
			Status:  string(o.Status),
			Message: msg,
		})
	}
	return o, nil
}

func (s *OrderService) Get(ctx context.Context, id int64) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *OrderService) Items(ctx context.Context, orderID int64) ([]domain.Item, error) {
	return s.repo.Items(ctx, orderID)
}

func (s *OrderService) ListByBuyer(ctx context.Context, buyerID int64) ([]domain.Order, error) {
	return s.repo.ListByBuyer(ctx, buyerID)
}

// UpdateStatus is the unconstrained admin override. Delivery transitions go
// through the delivery service instead.
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, status domain.Status) (domain.Order, error) {
	if !status.IsValid() {
		return domain.Order{}, apperr.InvalidArgument("unknown order status %q", status)
	}
	o, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return domain.Order{}, err
	}
	s.lg.Info("order_status_updated", map[string]any{"order_id": id, "status": status})
	s.sink.Publish(ctx, events.Event{
		Type:    events.OrderStatusChanged,
		Topic:   events.UserTopic(o.BuyerID),
		OrderID: id,
		UserID:  o.BuyerID,
		Status:  string(status),
		Message: fmt.Sprintf("Order #%d is now %s", id, status),
	})
	return o, nil
}

func pickAddress(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}
