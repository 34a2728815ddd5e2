package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"delivery-marketplace/internal/geo"
)

type Verification string

const (
	VerificationPending  Verification = "pending"
	VerificationApproved Verification = "approved"
	VerificationRejected Verification = "rejected"
)

func (v Verification) IsDecision() bool {
	return v == VerificationApproved || v == VerificationRejected
}

type Availability string

const (
	AvailabilityOnline  Availability = "online"
	AvailabilityOffline Availability = "offline"
	AvailabilityBusy    Availability = "busy"
)

func (a Availability) IsValid() bool {
	switch a {
	case AvailabilityOnline, AvailabilityOffline, AvailabilityBusy:
		return true
	}
	return false
}

type Courier struct {
	ID                int64           `json:"id"`
	UserID            int64           `json:"user_id"`
	Verification      Verification    `json:"verification_status"`
	Availability      Availability    `json:"availability"`
	Location          *geo.Point      `json:"location,omitempty"`
	LocationUpdatedAt *time.Time      `json:"location_updated_at,omitempty"`
	TotalPoints       int             `json:"total_points"`
	TotalEarnings     decimal.Decimal `json:"total_earnings"`
	CompletedCount    int             `json:"completed_count"`
	RatingCount       int             `json:"rating_count"`
	AverageRating     decimal.Decimal `json:"average_rating"`
	DocumentURL       string          `json:"document_url,omitempty"`
	SelfieURL         string          `json:"selfie_url,omitempty"`
	TelegramChatID    *int64          `json:"-"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type Documents struct {
	DocumentURL    string `json:"document_url" validate:"required,url"`
	SelfieURL      string `json:"selfie_url" validate:"required,url"`
	TelegramChatID *int64 `json:"telegram_chat_id,omitempty"`
}

// Candidate is a courier ranked by distance to a point.
type Candidate struct {
	Courier    Courier `json:"courier"`
	DistanceKm float64 `json:"distance_km"`
}

type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

func TierFor(points int) Tier {
	switch {
	case points >= 1000:
		return TierPlatinum
	case points >= 500:
		return TierGold
	case points >= 200:
		return TierSilver
	default:
		return TierBronze
	}
}

type Dashboard struct {
	CourierID        int64           `json:"courier_id"`
	Availability     Availability    `json:"availability"`
	TotalPoints      int             `json:"total_points"`
	TotalEarnings    decimal.Decimal `json:"total_earnings"`
	CompletedCount   int             `json:"completed_count"`
	AverageRating    decimal.Decimal `json:"average_rating"`
	Tier             Tier            `json:"tier"`
	ActiveDeliveries int             `json:"active_deliveries"`
}

func (v Verification) IsValid() bool {
	return v == VerificationPending || v.IsDecision()
}

// DeliveryRecord is one entry of a courier's delivery history.
type DeliveryRecord struct {
	DeliveryID     int64           `json:"delivery_id"`
	OrderID        int64           `json:"order_id"`
	Status         string          `json:"status"`
	PickupAddress  string          `json:"pickup_address,omitempty"`
	DropoffAddress string          `json:"dropoff_address,omitempty"`
	DistanceKm     float64         `json:"distance_km"`
	Fee            decimal.Decimal `json:"fee"`
	Bonus          decimal.Decimal `json:"bonus"`
	PointsAwarded  int             `json:"points_awarded"`
	Rating         *int            `json:"rating,omitempty"`
	AssignedAt     time.Time       `json:"assigned_at"`
	PickedUpAt     *time.Time      `json:"picked_up_at,omitempty"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	CancelReason   string          `json:"cancel_reason,omitempty"`
}

type HistoryFilter struct {
	Status string
	Limit  int
	Offset int
}

// RatingsSummary aggregates the buyer ratings left on a courier's deliveries.
// Breakdown always carries the keys 1 through 5.
type RatingsSummary struct {
	CourierID   int64           `json:"courier_id"`
	Count       int             `json:"count"`
	Average     decimal.Decimal `json:"average"`
	Breakdown   map[int]int     `json:"breakdown"`
	BonusPoints int             `json:"bonus_points"`
	Tier        Tier            `json:"tier"`
}

// RatingBucket is the number of deliveries rated Stars and the points they earned.
type RatingBucket struct {
	Stars  int
	Count  int
	Points int
}
