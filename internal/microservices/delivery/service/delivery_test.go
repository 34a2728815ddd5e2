package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/common/events"
	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/connections/maps"
	"delivery-marketplace/internal/geo"
	courierdomain "delivery-marketplace/internal/microservices/courier/domain"
	"delivery-marketplace/internal/microservices/delivery/domain"
	orderdomain "delivery-marketplace/internal/microservices/order/domain"
)

// world is an in-memory store shared by the fake repositories. Its methods
// apply the same guards as the SQL statements.
type world struct {
	mu          sync.Mutex
	orders      map[int64]orderdomain.Order
	couriers    map[int64]courierdomain.Courier
	deliveries  map[int64]domain.Delivery
	byOrder     map[int64]int64
	events      []domain.TimelineEntry
	transitions map[domain.Status]int
	nextID      int64
}

func newWorld() *world {
	return &world{
		orders:      map[int64]orderdomain.Order{},
		couriers:    map[int64]courierdomain.Courier{},
		deliveries:  map[int64]domain.Delivery{},
		byOrder:     map[int64]int64{},
		transitions: map[domain.Status]int{},
	}
}

func (w *world) appendEvent(d domain.Delivery, actor string) {
	w.events = append(w.events, domain.TimelineEntry{ID: int64(len(w.events) + 1), DeliveryID: d.ID, OrderID: d.OrderID, Status: d.Status, Actor: actor})
	w.transitions[d.Status]++
}

func (w *world) setOrder(id int64, s orderdomain.Status) {
	o := w.orders[id]
	o.Status = s
	w.orders[id] = o
}

// deliveryRepo

func (w *world) CreateAssigned(_ context.Context, in domain.NewDelivery, actor string) (domain.Delivery, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.byOrder[in.OrderID]; ok {
		return domain.Delivery{}, apperr.Conflict("order %d already has a delivery", in.OrderID)
	}
	c := w.couriers[in.CourierID]
	if c.Availability != courierdomain.AvailabilityOnline || c.Verification != courierdomain.VerificationApproved {
		return domain.Delivery{}, apperr.Conflict("courier %d is no longer available", in.CourierID)
	}
	c.Availability = courierdomain.AvailabilityBusy
	w.couriers[c.ID] = c

	w.nextID++
	eta := in.EtaMinutes
	d := domain.Delivery{
		ID: w.nextID, OrderID: in.OrderID, CourierID: in.CourierID,
		PickupAddress: in.PickupAddress, Pickup: in.Pickup, DropoffAddress: in.DropoffAddress, Dropoff: in.Dropoff,
		Status: domain.StatusAssigned, Fee: in.Fee, EtaMinutes: &eta, DistanceKm: in.DistanceKm, AssignedAt: time.Now(),
	}
	w.deliveries[d.ID] = d
	w.byOrder[in.OrderID] = d.ID
	w.setOrder(in.OrderID, orderdomain.StatusCourierAssigned)
	w.appendEvent(d, actor)
	return d, nil
}

func (w *world) Get(_ context.Context, id int64) (domain.Delivery, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.deliveries[id]
	if !ok {
		return domain.Delivery{}, apperr.NotFound("delivery %d not found", id)
	}
	return d, nil
}

func (w *world) GetByOrder(ctx context.Context, orderID int64) (domain.Delivery, error) {
	w.mu.Lock()
	id, ok := w.byOrder[orderID]
	w.mu.Unlock()
	if !ok {
		return domain.Delivery{}, apperr.NotFound("delivery for order %d not found", orderID)
	}
	return w.Get(ctx, id)
}

func (w *world) MarkPickedUp(_ context.Context, id, courierID int64, eta int, actor string) (domain.Delivery, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d := w.deliveries[id]
	if d.CourierID != courierID || d.Status != domain.StatusAssigned {
		return domain.Delivery{}, false, nil
	}
	now := time.Now()
	d.Status, d.PickedUpAt, d.EtaMinutes = domain.StatusEnRoute, &now, &eta
	w.deliveries[id] = d
	w.setOrder(d.OrderID, orderdomain.StatusEnRoute)
	w.appendEvent(d, actor)
	return d, true, nil
}

func (w *world) MarkDelivered(_ context.Context, id, courierID int64, r domain.Reward, actor string) (domain.Delivery, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d := w.deliveries[id]
	if d.CourierID != courierID || d.Status != domain.StatusEnRoute {
		return domain.Delivery{}, false, nil
	}
	now := time.Now()
	d.Status, d.DeliveredAt, d.Bonus, d.PointsAwarded, d.CourierRating = domain.StatusDelivered, &now, r.Bonus, r.Points, r.Rating
	w.deliveries[id] = d

	c := w.couriers[courierID]
	c.TotalPoints += r.Points
	c.TotalEarnings = c.TotalEarnings.Add(d.Fee).Add(r.Bonus)
	c.CompletedCount++
	if c.Availability == courierdomain.AvailabilityBusy {
		c.Availability = courierdomain.AvailabilityOnline
	}
	w.couriers[courierID] = c
	w.setOrder(d.OrderID, orderdomain.StatusDelivered)
	w.appendEvent(d, actor)
	return d, true, nil
}

func (w *world) MarkCancelled(_ context.Context, id int64, from domain.Status, reason, actor string) (domain.Delivery, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d := w.deliveries[id]
	if d.Status != from {
		return domain.Delivery{}, false, nil
	}
	now := time.Now()
	d.Status, d.CancelledAt, d.CancelReason = domain.StatusCancelled, &now, reason
	w.deliveries[id] = d
	c := w.couriers[d.CourierID]
	if c.Availability == courierdomain.AvailabilityBusy {
		c.Availability = courierdomain.AvailabilityOnline
		w.couriers[c.ID] = c
	}
	w.setOrder(d.OrderID, orderdomain.StatusCancelled)
	w.appendEvent(d, actor)
	return d, true, nil
}

func (w *world) Timeline(_ context.Context, id int64, limit, offset int) ([]domain.TimelineEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []domain.TimelineEntry
	for _, e := range w.events {
		if e.DeliveryID == id {
			out = append(out, e)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// order reader and courier finder views over the same world

type orderView struct{ w *world }

func (v orderView) Get(_ context.Context, id int64) (orderdomain.Order, error) {
	v.w.mu.Lock()
	defer v.w.mu.Unlock()
	o, ok := v.w.orders[id]
	if !ok {
		return orderdomain.Order{}, apperr.NotFound("order %d not found", id)
	}
	return o, nil
}

type courierView struct{ w *world }

func (v courierView) Get(_ context.Context, id int64) (courierdomain.Courier, error) {
	v.w.mu.Lock()
	defer v.w.mu.Unlock()
	c, ok := v.w.couriers[id]
	if !ok {
		return courierdomain.Courier{}, apperr.NotFound("courier %d not found", id)
	}
	return c, nil
}

func (v courierView) GetByUserID(_ context.Context, userID int64) (courierdomain.Courier, error) {
	v.w.mu.Lock()
	defer v.w.mu.Unlock()
	for _, c := range v.w.couriers {
		if c.UserID == userID {
			return c, nil
		}
	}
	return courierdomain.Courier{}, apperr.NotFound("courier for user %d not found", userID)
}

func (v courierView) FindNearestAvailable(_ context.Context, p geo.Point, limit int) ([]courierdomain.Candidate, error) {
	v.w.mu.Lock()
	defer v.w.mu.Unlock()
	var out []courierdomain.Candidate
	for _, c := range v.w.couriers {
		if c.Availability == courierdomain.AvailabilityOnline && c.Verification == courierdomain.VerificationApproved && c.Location != nil {
			out = append(out, courierdomain.Candidate{Courier: c, DistanceKm: geo.HaversineKm(p, *c.Location)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].Courier.ID < out[j].Courier.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubRouter struct {
	route maps.Route
	err   error
}

func (r stubRouter) Route(context.Context, geo.Point, geo.Point) (maps.Route, error) {
	return r.route, r.err
}

const (
	buyerID = int64(100)
	orderID = int64(1)
)

var dropoff = geo.Point{Lat: 0, Lng: 0.05}

func seed(w *world) {
	w.orders[orderID] = orderdomain.Order{
		ID: orderID, BuyerID: buyerID, Status: orderdomain.StatusPending,
		TotalAmount: decimal.NewFromInt(350), DeliveryAddress: "Dropoff Ave", Dropoff: &dropoff,
		Items: []orderdomain.Item{
			{ProductID: 1, ProductName: "Rice", Quantity: 3},
			{ProductID: 2, ProductName: "Beans", Quantity: 1},
		},
	}
	at := func(lat, lng float64) *geo.Point { return &geo.Point{Lat: lat, Lng: lng} }
	w.couriers[1] = courierdomain.Courier{ID: 1, UserID: 11, Verification: courierdomain.VerificationApproved, Availability: courierdomain.AvailabilityOnline, Location: at(0, 0)}
	w.couriers[2] = courierdomain.Courier{ID: 2, UserID: 12, Verification: courierdomain.VerificationApproved, Availability: courierdomain.AvailabilityOnline, Location: at(0, 0.2)}
	w.couriers[3] = courierdomain.Courier{ID: 3, UserID: 13, Verification: courierdomain.VerificationPending, Availability: courierdomain.AvailabilityOffline}
}

func newService(w *world, router Router) (*DeliveryService, *events.Recorder) {
	rec := &events.Recorder{}
	s := NewDeliveryService(w, orderView{w}, courierView{w}, nil, router, geo.DefaultPricing(), rec, logger.NewWithWriter("delivery-test", io.Discard))
	s.now = func() time.Time { return time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC) }
	return s, rec
}

func ptr(n int) *int { return &n }

func TestFullLifecycle(t *testing.T) {
	w := newWorld()
	seed(w)
	svc, rec := newService(w, nil)
	ctx := context.Background()

	a, err := svc.AssignCourier(ctx, AssignRequest{OrderID: orderID, CourierID: 1, Actor: domain.Actor{Admin: true}})
	require.NoError(t, err)
	d := a.Delivery
	assert.Equal(t, domain.StatusAssigned, d.Status)
	assert.Equal(t, geo.SourceCourierLocation, a.PickupSource)
	assert.Equal(t, 5.56, d.DistanceKm)
	assert.Equal(t, "3157", d.Fee.String())
	assert.Len(t, a.Items, 2)
	assert.Equal(t, courierdomain.AvailabilityBusy, w.couriers[1].Availability)
	assert.Equal(t, orderdomain.StatusCourierAssigned, w.orders[orderID].Status)

	p, err := svc.Pickup(ctx, d.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnRoute, p.Delivery.Status)
	assert.Equal(t, "estimate", p.EtaSource)
	require.NotNil(t, p.Delivery.EtaMinutes)
	assert.Equal(t, 12, *p.Delivery.EtaMinutes)
	assert.Equal(t, orderdomain.StatusEnRoute, w.orders[orderID].Status)

	c, err := svc.Deliver(ctx, d.ID, 1, ptr(5))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, c.Delivery.Status)
	assert.Equal(t, "5", c.Reward.Bonus.String())
	assert.Equal(t, 17, c.Reward.Points)

	courier := w.couriers[1]
	assert.Equal(t, 17, courier.TotalPoints)
	assert.Equal(t, "3162", courier.TotalEarnings.String())
	assert.Equal(t, 1, courier.CompletedCount)
	assert.Equal(t, courierdomain.AvailabilityOnline, courier.Availability)
	assert.Equal(t, orderdomain.StatusDelivered, w.orders[orderID].Status)

	tl, err := svc.Timeline(ctx, d.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, tl, 3)
	assert.Equal(t, []domain.Status{domain.StatusAssigned, domain.StatusEnRoute, domain.StatusDelivered},
		[]domain.Status{tl[0].Status, tl[1].Status, tl[2].Status})

	assert.Equal(t, 2, rec.Count(events.DeliveryAssigned))
	assert.Equal(t, 1, rec.Count(events.DeliveryPickedUp))
	assert.Equal(t, 2, rec.Count(events.DeliveryDelivered))

	_, err = svc.Deliver(ctx, d.ID, 1, ptr(5))
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = svc.Cancel(ctx, d.ID, domain.Actor{Admin: true}, "late")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, 17, w.couriers[1].TotalPoints)
}

func TestAssignNearestCourier(t *testing.T) {
	w := newWorld()
	seed(w)
	svc, _ := newService(w, nil)

	a, err := svc.AssignCourier(context.Background(), AssignRequest{OrderID: orderID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Delivery.CourierID)
}

func TestAssignErrors(t *testing.T) {
	ctx := context.Background()

	w := newWorld()
	seed(w)
	svc, _ := newService(w, nil)

	_, err := svc.AssignCourier(ctx, AssignRequest{OrderID: 404})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.AssignCourier(ctx, AssignRequest{OrderID: orderID, CourierID: 3})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	c := w.couriers[1]
	c.Availability = courierdomain.AvailabilityOffline
	w.couriers[1] = c
	c = w.couriers[2]
	c.Availability = courierdomain.AvailabilityOffline
	w.couriers[2] = c

	_, err = svc.AssignCourier(ctx, AssignRequest{OrderID: orderID})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.AssignCourier(ctx, AssignRequest{OrderID: orderID, CourierID: 1})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestAssignUsesOrderFeeAndExplicitPickup(t *testing.T) {
	w := newWorld()
	seed(w)
	o := w.orders[orderID]
	o.DeliveryFee = decimal.NewFromInt(2000)
	w.orders[orderID] = o
	svc, _ := newService(w, nil)

	a, err := svc.AssignCourier(context.Background(), AssignRequest{
		OrderID: orderID, CourierID: 2, Pickup: &geo.Point{Lat: 0, Lng: 0.1}, PickupAddress: "Shop 4",
	})
	require.NoError(t, err)
	assert.Equal(t, geo.SourceExplicit, a.PickupSource)
	assert.Equal(t, "Shop 4", a.Delivery.PickupAddress)
	assert.Equal(t, "2000", a.Delivery.Fee.String())
}

func TestConcurrentAssignOneWinner(t *testing.T) {
	w := newWorld()
	seed(w)
	svc, _ := newService(w, nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		won, lost int
	)
	for _, courierID := range []int64{1, 2, 1, 2, 0, 0} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := svc.AssignCourier(context.Background(), AssignRequest{OrderID: orderID, CourierID: id})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, apperr.ErrConflict):
				lost++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(courierID)
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.Equal(t, 5, lost)
	assert.Len(t, w.deliveries, 1)
	assert.Equal(t, 1, w.transitions[domain.StatusAssigned])
}

// racingFinder lets a competing assignment commit while the courier search runs.
type racingFinder struct {
	courierView
	once sync.Once
	race func()
}

func (f *racingFinder) FindNearestAvailable(ctx context.Context, p geo.Point, limit int) ([]courierdomain.Candidate, error) {
	f.once.Do(f.race)
	return f.courierView.FindNearestAvailable(ctx, p, limit)
}

func TestAssignLoserSeesConflictNotEmptyPool(t *testing.T) {
	w := newWorld()
	seed(w)
	c := w.couriers[2]
	c.Availability = courierdomain.AvailabilityOffline
	w.couriers[2] = c

	rival, _ := newService(w, nil)
	finder := &racingFinder{courierView: courierView{w}}
	finder.race = func() {
		_, err := rival.AssignCourier(context.Background(), AssignRequest{OrderID: orderID})
		require.NoError(t, err)
	}
	svc := NewDeliveryService(w, orderView{w}, finder, nil, nil, geo.DefaultPricing(), &events.Recorder{}, logger.NewWithWriter("delivery-test", io.Discard))

	_, err := svc.AssignCourier(context.Background(), AssignRequest{OrderID: orderID})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)
	assert.Len(t, w.deliveries, 1)
}

func TestAssignRejectsBadPickup(t *testing.T) {
	w := newWorld()
	seed(w)
	svc, _ := newService(w, nil)

	_, err := svc.AssignCourier(context.Background(), AssignRequest{
		OrderID: orderID, CourierID: 1, Pickup: &geo.Point{Lat: 200, Lng: 0}, PickupAddress: "Shop 4",
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	assert.Empty(t, w.deliveries)
	assert.Equal(t, courierdomain.AvailabilityOnline, w.couriers[1].Availability)
}

func TestOwnershipEnforced(t *testing.T) {
	w := newWorld()
	seed(w)
	svc, _ := newService(w, nil)
	ctx := context.Background()

	a, err := svc.AssignCourier(ctx, AssignRequest{OrderID: orderID, CourierID: 1})
	require.NoError(t, err)
	id := a.Delivery.ID

	_, err = svc.Pickup(ctx, id, 2)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = svc.Deliver(ctx, id, 2, nil)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = svc.Cancel(ctx, id, domain.Actor{CourierID: 2}, "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.Deliver(ctx, id, 1, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = svc.Pickup(ctx, id, 1)
	require.NoError(t, err)
	_, err = svc.Deliver(ctx, id, 1, ptr(9))
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = svc.Pickup(ctx, id, 2)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.Deliver(ctx, id, 1, nil)
	require.NoError(t, err)
	_, err = svc.Pickup(ctx, id, 2)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestConcurrentDeliverAppliesOnce(t *testing.T) {
	w := newWorld()
	seed(w)
	svc, _ := newService(w, nil)
	ctx := context.Background()

	a, err := svc.AssignCourier(ctx, AssignRequest{OrderID: orderID, CourierID: 1})
	require.NoError(t, err)
	_, err = svc.Pickup(ctx, a.Delivery.ID, 1)
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Deliver(ctx, a.Delivery.ID, 1, ptr(4))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if !errors.Is(err, apperr.ErrInvalidState) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, w.transitions[domain.StatusDelivered])
	assert.Equal(t, 1, w.couriers[1].CompletedCount)
	assert.Equal(t, 17, w.couriers[1].TotalPoints)
}

func TestCancelReleasesCourier(t *testing.T) {
	w := newWorld()
	seed(w)
	svc, rec := newService(w, nil)
	ctx := context.Background()

	a, err := svc.AssignCourier(ctx, AssignRequest{OrderID: orderID, CourierID: 1})
	require.NoError(t, err)
	_, err = svc.Pickup(ctx, a.Delivery.ID, 1)
	require.NoError(t, err)

	d, err := svc.Cancel(ctx, a.Delivery.ID, domain.Actor{CourierID: 1}, " flat tyre ")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, d.Status)
	assert.Equal(t, "flat tyre", d.CancelReason)
	assert.Equal(t, courierdomain.AvailabilityOnline, w.couriers[1].Availability)
	assert.Equal(t, orderdomain.StatusCancelled, w.orders[orderID].Status)
	assert.Equal(t, 2, rec.Count(events.DeliveryCancelled))

	_, err = svc.Cancel(ctx, a.Delivery.ID, domain.Actor{Admin: true}, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = svc.Pickup(ctx, a.Delivery.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestAdminCancelFromAssigned(t *testing.T) {
	w := newWorld()
	seed(w)
	svc, _ := newService(w, nil)
	ctx := context.Background()

	a, err := svc.AssignCourier(ctx, AssignRequest{OrderID: orderID, CourierID: 2})
	require.NoError(t, err)
	d, err := svc.Cancel(ctx, a.Delivery.ID, domain.Actor{Admin: true}, "buyer request")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, d.Status)
	assert.Equal(t, courierdomain.AvailabilityOnline, w.couriers[2].Availability)
	assert.Equal(t, "admin", w.events[len(w.events)-1].Actor)
}

func TestPickupUsesRoute(t *testing.T) {
	w := newWorld()
	seed(w)
	svc, _ := newService(w, stubRouter{route: maps.Route{ETASeconds: 601, Polyline: []geo.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.05}}}})
	ctx := context.Background()

	a, err := svc.AssignCourier(ctx, AssignRequest{OrderID: orderID, CourierID: 1})
	require.NoError(t, err)
	p, err := svc.Pickup(ctx, a.Delivery.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "route", p.EtaSource)
	assert.Equal(t, 11, *p.Delivery.EtaMinutes)
	assert.Len(t, p.Polyline, 2)
}

func TestPickupFallsBackWhenRoutingFails(t *testing.T) {
	w := newWorld()
	seed(w)
	svc, _ := newService(w, stubRouter{err: apperr.Upstream("directions", errors.New("OVER_QUERY_LIMIT"))})
	ctx := context.Background()

	a, err := svc.AssignCourier(ctx, AssignRequest{OrderID: orderID, CourierID: 1})
	require.NoError(t, err)
	p, err := svc.Pickup(ctx, a.Delivery.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "estimate", p.EtaSource)
	assert.Equal(t, 12, *p.Delivery.EtaMinutes)
}

func TestQuote(t *testing.T) {
	svc, _ := newService(newWorld(), nil)
	q, err := svc.Quote(geo.Point{}, dropoff, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "3157", q.Fee.String())

	_, err = svc.Quote(geo.Point{Lat: 95}, dropoff, time.Time{})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}
