// Package geo holds the distance, fee and ETA arithmetic used for dispatch and pricing.
package geo

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"delivery-marketplace/internal/common/apperr"
)

const earthRadiusKm = 6371.0

type Point struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return apperr.InvalidArgument("latitude %v out of range [-90,90]", p.Lat)
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return apperr.InvalidArgument("longitude %v out of range [-180,180]", p.Lng)
	}
	return nil
}

// HaversineKm returns the great-circle distance between a and b.
func HaversineKm(a, b Point) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// RoundKm rounds a distance to two decimals, the precision stored on deliveries.
func RoundKm(km float64) float64 { return math.Round(km*100) / 100 }

func TrafficMultiplier(distanceKm float64) float64 {
	switch {
	case distanceKm <= 10:
		return 1.3
	case distanceKm <= 25:
		return 1.6
	default:
		return 1.8
	}
}

// TimeMultiplier: hours 07-10 and 17-20 inclusive are rush hours, 21-04 is late night.
func TimeMultiplier(hour int) float64 {
	switch {
	case (hour >= 7 && hour <= 10) || (hour >= 17 && hour <= 20):
		return 1.3
	case hour >= 21 || hour < 5:
		return 1.2
	default:
		return 1.0
	}
}

type Pricing struct {
	BaseFuelCost    float64
	PerKmRate       float64
	AverageSpeedKmh float64
}

func DefaultPricing() Pricing {
	return Pricing{BaseFuelCost: 900 * 1.5, PerKmRate: 250, AverageSpeedKmh: 30}
}

// EstimateFee prices a trip of distanceKm started at the wall-clock hour of at.
func (p Pricing) EstimateFee(distanceKm float64, at time.Time) decimal.Decimal {
	return p.FeeForHour(distanceKm, at.Hour())
}

func (p Pricing) FeeForHour(distanceKm float64, hour int) decimal.Decimal {
	raw := p.BaseFuelCost + distanceKm*p.PerKmRate*TrafficMultiplier(distanceKm)*TimeMultiplier(hour)
	return decimal.NewFromFloat(math.Round(raw))
}

func (p Pricing) EstimateEtaMinutes(distanceKm float64) int {
	return EtaMinutes(distanceKm, p.AverageSpeedKmh)
}

func EtaMinutes(distanceKm, speedKmh float64) int {
	if speedKmh <= 0 || distanceKm <= 0 {
		return 0
	}
	return int(math.Ceil(distanceKm / speedKmh * 60))
}

type Quote struct {
	DistanceKm        float64         `json:"distance_km"`
	Fee               decimal.Decimal `json:"fee"`
	EtaMinutes        int             `json:"eta_minutes"`
	TrafficMultiplier float64         `json:"traffic_multiplier"`
	TimeMultiplier    float64         `json:"time_multiplier"`
}

func (p Pricing) Quote(pickup, dropoff Point, at time.Time) Quote {
	d := RoundKm(HaversineKm(pickup, dropoff))
	return Quote{
		DistanceKm:        d,
		Fee:               p.EstimateFee(d, at),
		EtaMinutes:        p.EstimateEtaMinutes(d),
		TrafficMultiplier: TrafficMultiplier(d),
		TimeMultiplier:    TimeMultiplier(at.Hour()),
	}
}
