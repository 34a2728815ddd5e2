package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/geo"
)

type Status string

const (
	StatusAssigned  Status = "assigned"
	StatusEnRoute   Status = "en_route"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s Status) IsActive() bool {
	return s == StatusAssigned || s == StatusEnRoute
}

type Event string

const (
	EventAssign  Event = "assign"
	EventPickup  Event = "pickup"
	EventDeliver Event = "deliver"
	EventCancel  Event = "cancel"
)

// transitions is the whole lifecycle. The empty status is "no delivery yet".
var transitions = map[Status]map[Event]Status{
	"":             {EventAssign: StatusAssigned},
	StatusAssigned: {EventPickup: StatusEnRoute, EventCancel: StatusCancelled},
	StatusEnRoute:  {EventDeliver: StatusDelivered, EventCancel: StatusCancelled},
}

// Next returns the status reached by applying ev in from, or InvalidState.
func Next(from Status, ev Event) (Status, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	if from == "" {
		return "", apperr.InvalidState("cannot %s a delivery that does not exist", ev)
	}
	return "", apperr.InvalidState("cannot %s a delivery in status %s", ev, from)
}

type Delivery struct {
	ID             int64           `json:"id"`
	OrderID        int64           `json:"order_id"`
	CourierID      int64           `json:"courier_id"`
	PickupAddress  string          `json:"pickup_address"`
	Pickup         geo.Point       `json:"pickup"`
	DropoffAddress string          `json:"dropoff_address"`
	Dropoff        geo.Point       `json:"dropoff"`
	Status         Status          `json:"status"`
	Fee            decimal.Decimal `json:"fee"`
	Bonus          decimal.Decimal `json:"bonus"`
	PointsAwarded  int             `json:"points_awarded"`
	CourierRating  *int            `json:"courier_rating,omitempty"`
	EtaMinutes     *int            `json:"eta_minutes,omitempty"`
	DistanceKm     float64         `json:"distance_km"`
	AssignedAt     time.Time       `json:"assigned_at"`
	PickedUpAt     *time.Time      `json:"picked_up_at,omitempty"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	CancelReason   string          `json:"cancel_reason,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewDelivery carries everything computed before the assignment transaction.
type NewDelivery struct {
	OrderID        int64
	CourierID      int64
	PickupAddress  string
	Pickup         geo.Point
	DropoffAddress string
	Dropoff        geo.Point
	Fee            decimal.Decimal
	EtaMinutes     int
	DistanceKm     float64
}

// ItemSnapshot is the courier's "what to carry" view of an order line.
type ItemSnapshot struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

type Assignment struct {
	Delivery      Delivery       `json:"delivery"`
	Items         []ItemSnapshot `json:"items"`
	PickupSource  geo.Source     `json:"pickup_source"`
	CourierDistKm float64        `json:"courier_distance_km,omitempty"`
}

type PickupResult struct {
	Delivery  Delivery    `json:"delivery"`
	EtaSource string      `json:"eta_source"`
	Polyline  []geo.Point `json:"polyline,omitempty"`
}

// Reward is what a completed delivery pays the courier on top of the fee.
type Reward struct {
	Bonus  decimal.Decimal `json:"bonus"`
	Points int             `json:"points"`
	Rating *int            `json:"rating,omitempty"`
}

type Completion struct {
	Delivery Delivery `json:"delivery"`
	Reward   Reward   `json:"reward"`
}

const (
	bonusRatingThreshold = 4
	ratingBonus          = 5
)

// ComputeReward applies bonus = 5 when rating >= 4 and points = ceil(distance*2 + bonus).
// A nil rating means the buyer skipped rating.
func ComputeReward(distanceKm float64, rating *int) (Reward, error) {
	bonus := 0
	if rating != nil {
		if *rating < 1 || *rating > 5 {
			return Reward{}, apperr.InvalidArgument("rating must be between 1 and 5, got %d", *rating)
		}
		if *rating >= bonusRatingThreshold {
			bonus = ratingBonus
		}
	}
	return Reward{
		Bonus:  decimal.NewFromInt(int64(bonus)),
		Points: int(math.Ceil(distanceKm*2 + float64(bonus))),
		Rating: rating,
	}, nil
}

type TimelineEntry struct {
	ID         int64     `json:"id"`
	DeliveryID int64     `json:"delivery_id"`
	OrderID    int64     `json:"order_id"`
	Status     Status    `json:"status"`
	Actor      string    `json:"actor"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Actor identifies who drives a transition. CourierID is zero for admins and the system.
type Actor struct {
	CourierID int64
	Admin     bool
}

func (a Actor) String() string {
	switch {
	case a.Admin:
		return "admin"
	case a.CourierID > 0:
		return "courier"
	}
	return "system"
}
