package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/common/events"
	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/connections/maps"
	"delivery-marketplace/internal/geo"
	courierdomain "delivery-marketplace/internal/microservices/courier/domain"
	"delivery-marketplace/internal/microservices/delivery/domain"
	"delivery-marketplace/internal/microservices/delivery/repository"
	orderdomain "delivery-marketplace/internal/microservices/order/domain"
)

type OrderReader interface {
	Get(ctx context.Context, id int64) (orderdomain.Order, error)
}

type CourierFinder interface {
	Get(ctx context.Context, id int64) (courierdomain.Courier, error)
	GetByUserID(ctx context.Context, userID int64) (courierdomain.Courier, error)
	FindNearestAvailable(ctx context.Context, p geo.Point, limit int) ([]courierdomain.Candidate, error)
}

type Router interface {
	Route(ctx context.Context, origin, destination geo.Point) (maps.Route, error)
}

type AssignRequest struct {
	OrderID       int64
	CourierID     int64 // 0 means nearest available to the dropoff
	Pickup        *geo.Point
	PickupAddress string
	Actor         domain.Actor
}

type DeliveryServiceInterface interface {
	AssignCourier(ctx context.Context, req AssignRequest) (domain.Assignment, error)
	Pickup(ctx context.Context, deliveryID, courierID int64) (domain.PickupResult, error)
	Deliver(ctx context.Context, deliveryID, courierID int64, rating *int) (domain.Completion, error)
	Cancel(ctx context.Context, deliveryID int64, actor domain.Actor, reason string) (domain.Delivery, error)
	Get(ctx context.Context, id int64) (domain.Delivery, error)
	Timeline(ctx context.Context, id int64, limit, offset int) ([]domain.TimelineEntry, error)
	CourierIDForUser(ctx context.Context, userID int64) (int64, error)
	Quote(pickup, dropoff geo.Point, at time.Time) (geo.Quote, error)
}

type DeliveryService struct {
	repo     repository.DeliveryRepositoryInterface
	orders   OrderReader
	couriers CourierFinder
	router   Router
	resolver *geo.Resolver
	pricing  geo.Pricing
	sink     events.Sink
	lg       *logger.Logger
	now      func() time.Time
}

// NewDeliveryService wires the lifecycle. geocoder and router may be nil; the
// service then relies on explicit coordinates and haversine estimates.
func NewDeliveryService(
	repo repository.DeliveryRepositoryInterface,
	orders OrderReader,
	couriers CourierFinder,
	geocoder geo.Geocoder,
	router Router,
	pricing geo.Pricing,
	sink events.Sink,
	lg *logger.Logger,
) *DeliveryService {
	s := &DeliveryService{
		repo: repo, orders: orders, couriers: couriers, router: router,
		pricing: pricing, sink: sink, lg: lg, now: time.Now,
	}
	s.resolver = geo.NewResolver(geocoder, func(c geo.Candidate, err error) {
		lg.Warn("pickup_candidate_skipped", map[string]any{"source": c.Source, "address": c.Address, "reason": err.Error()})
	})
	return s
}

func (s *DeliveryService) AssignCourier(ctx context.Context, req AssignRequest) (domain.Assignment, error) {
	if _, err := domain.Next("", domain.EventAssign); err != nil {
		return domain.Assignment{}, err
	}
	order, err := s.orders.Get(ctx, req.OrderID)
	if err != nil {
		return domain.Assignment{}, err
	}
	switch order.Status {
	case orderdomain.StatusDelivered, orderdomain.StatusCancelled:
		return domain.Assignment{}, apperr.InvalidState("order %d is %s", order.ID, order.Status)
	}
	if order.Dropoff == nil {
		return domain.Assignment{}, apperr.InvalidState("order %d has no dropoff location", order.ID)
	}

	// Optimistic pre-check. The unique index in CreateAssigned is authoritative.
	if _, err := s.repo.GetByOrder(ctx, order.ID); err == nil {
		return domain.Assignment{}, apperr.Conflict("order %d already has a delivery", order.ID)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return domain.Assignment{}, err
	}

	courier, courierDist, err := s.pickCourier(ctx, req.CourierID, *order.Dropoff)
	if err != nil {
		return domain.Assignment{}, s.assignedMeanwhile(ctx, order.ID, err)
	}

	pickup, err := s.resolver.Resolve(ctx,
		geo.Candidate{Source: geo.SourceExplicit, Point: req.Pickup},
		geo.Candidate{Source: geo.SourceCourierLocation, Point: courier.Location},
		geo.Candidate{Source: geo.SourceGeocoded, Address: req.PickupAddress},
	)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("resolve pickup: %w", err)
	}
	if pickup.Address == "" {
		pickup.Address = strings.TrimSpace(req.PickupAddress)
	}

	distance := geo.RoundKm(geo.HaversineKm(pickup.Point, *order.Dropoff))
	fee := order.DeliveryFee
	if !fee.IsPositive() {
		fee = s.pricing.EstimateFee(distance, s.now())
	}

	d, err := s.repo.CreateAssigned(ctx, domain.NewDelivery{
		OrderID:        order.ID,
		CourierID:      courier.ID,
		PickupAddress:  pickup.Address,
		Pickup:         pickup.Point,
		DropoffAddress: order.DeliveryAddress,
		Dropoff:        *order.Dropoff,
		Fee:            fee,
		EtaMinutes:     s.pricing.EstimateEtaMinutes(distance),
		DistanceKm:     distance,
	}, req.Actor.String())
	if err != nil {
		return domain.Assignment{}, s.assignedMeanwhile(ctx, order.ID, err)
	}

	s.lg.Info("courier_assigned", map[string]any{
		"delivery_id": d.ID, "order_id": order.ID, "courier_id": courier.ID,
		"distance_km": distance, "fee": fee.String(), "pickup_source": pickup.Source,
	})
	s.publish(ctx, events.DeliveryAssigned, d, order.BuyerID,
		fmt.Sprintf("Courier assigned to order #%d", order.ID),
		fmt.Sprintf("New delivery #%d: pick up at %s", d.ID, d.PickupAddress))

	items := make([]domain.ItemSnapshot, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, domain.ItemSnapshot{ProductID: it.ProductID, ProductName: it.ProductName, Quantity: it.Quantity})
	}
	return domain.Assignment{Delivery: d, Items: items, PickupSource: pickup.Source, CourierDistKm: courierDist}, nil
}

func (s *DeliveryService) pickCourier(ctx context.Context, courierID int64, dropoff geo.Point) (courierdomain.Courier, float64, error) {
	if courierID > 0 {
		c, err := s.couriers.Get(ctx, courierID)
		if err != nil {
			return courierdomain.Courier{}, 0, err
		}
		if c.Verification != courierdomain.VerificationApproved {
			return courierdomain.Courier{}, 0, apperr.InvalidState("courier %d is not approved", c.ID)
		}
		if c.Availability != courierdomain.AvailabilityOnline {
			return courierdomain.Courier{}, 0, apperr.Conflict("courier %d is %s", c.ID, c.Availability)
		}
		var dist float64
		if c.Location != nil {
			dist = geo.RoundKm(geo.HaversineKm(*c.Location, dropoff))
		}
		return c, dist, nil
	}
	candidates, err := s.couriers.FindNearestAvailable(ctx, dropoff, 1)
	if err != nil {
		return courierdomain.Courier{}, 0, err
	}
	if len(candidates) == 0 {
		return courierdomain.Courier{}, 0, apperr.NotFound("no courier available")
	}
	return candidates[0].Courier, geo.RoundKm(candidates[0].DistanceKm), nil
}

// Pickup moves assigned -> en_route. Routing failures fall back to the haversine estimate.
func (s *DeliveryService) Pickup(ctx context.Context, deliveryID, courierID int64) (domain.PickupResult, error) {
	d, err := s.owned(ctx, deliveryID, courierID)
	if err != nil {
		return domain.PickupResult{}, err
	}
	if _, err := domain.Next(d.Status, domain.EventPickup); err != nil {
		return domain.PickupResult{}, err
	}

	res := domain.PickupResult{EtaSource: "estimate"}
	eta := s.pricing.EstimateEtaMinutes(d.DistanceKm)
	if s.router != nil {
		route, err := s.router.Route(ctx, d.Pickup, d.Dropoff)
		switch {
		case err != nil:
			s.lg.Warn("route_unavailable", map[string]any{"delivery_id": d.ID, "reason": err.Error()})
		case route.ETASeconds > 0:
			eta = (route.ETASeconds + 59) / 60
			res.EtaSource = "route"
			res.Polyline = route.Polyline
		}
	}

	updated, ok, err := s.repo.MarkPickedUp(ctx, d.ID, courierID, eta, domain.Actor{CourierID: courierID}.String())
	if err != nil {
		return domain.PickupResult{}, err
	}
	if !ok {
		return domain.PickupResult{}, s.lostRace(ctx, d.ID, domain.EventPickup)
	}
	res.Delivery = updated

	s.lg.Info("delivery_picked_up", map[string]any{"delivery_id": d.ID, "courier_id": courierID, "eta_minutes": eta, "eta_source": res.EtaSource})
	s.publishToBuyer(ctx, events.DeliveryPickedUp, updated, fmt.Sprintf("Your order #%d is on the way, ETA %d min", updated.OrderID, eta))
	return res, nil
}

// Deliver moves en_route -> delivered and credits the courier in the same transaction.
func (s *DeliveryService) Deliver(ctx context.Context, deliveryID, courierID int64, rating *int) (domain.Completion, error) {
	d, err := s.owned(ctx, deliveryID, courierID)
	if err != nil {
		return domain.Completion{}, err
	}
	reward, err := domain.ComputeReward(d.DistanceKm, rating)
	if err != nil {
		return domain.Completion{}, err
	}
	if _, err := domain.Next(d.Status, domain.EventDeliver); err != nil {
		return domain.Completion{}, err
	}

	updated, ok, err := s.repo.MarkDelivered(ctx, d.ID, courierID, reward, domain.Actor{CourierID: courierID}.String())
	if err != nil {
		return domain.Completion{}, err
	}
	if !ok {
		return domain.Completion{}, s.lostRace(ctx, d.ID, domain.EventDeliver)
	}

	s.lg.Info("delivery_completed", map[string]any{
		"delivery_id": d.ID, "courier_id": courierID, "points": reward.Points,
		"bonus": reward.Bonus.String(), "earned": updated.Fee.Add(reward.Bonus).String(),
	})
	s.publish(ctx, events.DeliveryDelivered, updated, 0,
		fmt.Sprintf("Order #%d delivered", updated.OrderID),
		fmt.Sprintf("Delivery #%d completed: +%d points", updated.ID, reward.Points))
	return domain.Completion{Delivery: updated, Reward: reward}, nil
}

// Cancel is allowed from assigned or en_route. Couriers may only cancel their own deliveries.
func (s *DeliveryService) Cancel(ctx context.Context, deliveryID int64, actor domain.Actor, reason string) (domain.Delivery, error) {
	d, err := s.repo.Get(ctx, deliveryID)
	if err != nil {
		return domain.Delivery{}, err
	}
	if !actor.Admin && d.CourierID != actor.CourierID {
		return domain.Delivery{}, apperr.Forbidden("delivery %d is not assigned to courier %d", d.ID, actor.CourierID)
	}
	if _, err := domain.Next(d.Status, domain.EventCancel); err != nil {
		return domain.Delivery{}, err
	}

	reason = strings.TrimSpace(reason)
	updated, ok, err := s.repo.MarkCancelled(ctx, d.ID, d.Status, reason, actor.String())
	if err != nil {
		return domain.Delivery{}, err
	}
	if !ok {
		return domain.Delivery{}, s.lostRace(ctx, d.ID, domain.EventCancel)
	}

	s.lg.Info("delivery_cancelled", map[string]any{"delivery_id": d.ID, "from": d.Status, "actor": actor.String(), "reason": reason})
	s.publish(ctx, events.DeliveryCancelled, updated, 0,
		fmt.Sprintf("Delivery for order #%d was cancelled", updated.OrderID),
		fmt.Sprintf("Delivery #%d cancelled", updated.ID))
	return updated, nil
}

func (s *DeliveryService) Get(ctx context.Context, id int64) (domain.Delivery, error) {
	return s.repo.Get(ctx, id)
}

func (s *DeliveryService) Timeline(ctx context.Context, id int64, limit, offset int) ([]domain.TimelineEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Timeline(ctx, id, limit, offset)
}

func (s *DeliveryService) CourierIDForUser(ctx context.Context, userID int64) (int64, error) {
	c, err := s.couriers.GetByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return c.ID, nil
}

func (s *DeliveryService) Quote(pickup, dropoff geo.Point, at time.Time) (geo.Quote, error) {
	if err := pickup.Validate(); err != nil {
		return geo.Quote{}, err
	}
	if err := dropoff.Validate(); err != nil {
		return geo.Quote{}, err
	}
	if at.IsZero() {
		at = s.now()
	}
	return s.pricing.Quote(pickup, dropoff, at), nil
}

// owned loads a delivery and checks ownership before anything else, so a
// foreign courier always gets Forbidden whatever the status.
func (s *DeliveryService) owned(ctx context.Context, deliveryID, courierID int64) (domain.Delivery, error) {
	d, err := s.repo.Get(ctx, deliveryID)
	if err != nil {
		return domain.Delivery{}, err
	}
	if d.CourierID != courierID {
		return domain.Delivery{}, apperr.Forbidden("delivery %d is not assigned to courier %d", deliveryID, courierID)
	}
	return d, nil
}

// assignedMeanwhile reports Conflict when a concurrent caller created the
// delivery for orderID after the pre-check, whatever err the loser ran into.
func (s *DeliveryService) assignedMeanwhile(ctx context.Context, orderID int64, err error) error {
	if _, gerr := s.repo.GetByOrder(ctx, orderID); gerr == nil {
		return apperr.Conflict("order %d already has a delivery", orderID)
	}
	return err
}

// lostRace reports the state a concurrent caller left behind.
func (s *DeliveryService) lostRace(ctx context.Context, id int64, ev domain.Event) error {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := domain.Next(d.Status, ev); err != nil {
		return err
	}
	return apperr.InvalidState("delivery %d changed concurrently", id)
}

func (s *DeliveryService) publishToBuyer(ctx context.Context, t events.Type, d domain.Delivery, msg string) {
	buyerID := int64(0)
	if o, err := s.orders.Get(ctx, d.OrderID); err == nil {
		buyerID = o.BuyerID
	}
	if buyerID == 0 {
		return
	}
	s.sink.Publish(ctx, events.Event{
		Type: t, Topic: events.UserTopic(buyerID), OrderID: d.OrderID, DeliveryID: d.ID,
		CourierID: d.CourierID, UserID: buyerID, Status: string(d.Status), Message: msg,
	})
}

// publish notifies the buyer and the courier. buyerID is looked up when zero.
func (s *DeliveryService) publish(ctx context.Context, t events.Type, d domain.Delivery, buyerID int64, buyerMsg, courierMsg string) {
	if buyerID == 0 {
		s.publishToBuyer(ctx, t, d, buyerMsg)
	} else {
		s.sink.Publish(ctx, events.Event{
			Type: t, Topic: events.UserTopic(buyerID), OrderID: d.OrderID, DeliveryID: d.ID,
			CourierID: d.CourierID, UserID: buyerID, Status: string(d.Status), Message: buyerMsg,
		})
	}
	s.sink.Publish(ctx, events.Event{
		Type: t, Topic: events.CourierTopic(d.CourierID), OrderID: d.OrderID, DeliveryID: d.ID,
		CourierID: d.CourierID, Status: string(d.Status), Message: courierMsg,
	})
}
