package geo

import (
	"context"
	"strings"

	"delivery-marketplace/internal/common/apperr"
)

type Source string

const (
	SourceExplicit        Source = "explicit"
	SourceGeocoded        Source = "geocoded"
	SourceProfile         Source = "profile"
	SourceCourierLocation Source = "courier_location"
)

type Geocoder interface {
	Geocode(ctx context.Context, address string) (Point, error)
}

// Candidate is one step of a fallback chain. A candidate with a Point is used
// as is; one with only an Address is geocoded. An explicit Point out of range
// fails the whole resolution with InvalidArgument.
type Candidate struct {
	Source  Source
	Point   *Point
	Address string
}

type Resolution struct {
	Point   Point  `json:"point"`
	Address string `json:"address"`
	Source  Source `json:"source"`
}

// ResolveFunc lets callers log geocoder failures without failing the chain.
type ResolveFunc func(c Candidate, err error)

type Resolver struct {
	geocoder Geocoder
	onMiss   ResolveFunc
}

func NewResolver(g Geocoder, onMiss ResolveFunc) *Resolver {
	return &Resolver{geocoder: g, onMiss: onMiss}
}

// Resolve walks candidates in order and returns the first usable location.
// The returned address is the first non-empty address seen in the chain up to
// and including the winning candidate.
func (r *Resolver) Resolve(ctx context.Context, candidates ...Candidate) (Resolution, error) {
	var address string
	for _, c := range candidates {
		if address == "" {
			address = strings.TrimSpace(c.Address)
		}
		if c.Point != nil {
			if err := c.Point.Validate(); err != nil {
				// caller supplied coordinates are rejected, stored ones are skipped
				if c.Source == SourceExplicit {
					return Resolution{}, err
				}
				r.miss(c, err)
				continue
			}
			return Resolution{Point: *c.Point, Address: pick(c.Address, address), Source: c.Source}, nil
		}
		if strings.TrimSpace(c.Address) == "" || r.geocoder == nil {
			continue
		}
		p, err := r.geocoder.Geocode(ctx, c.Address)
		if err == nil {
			err = p.Validate()
		}
		if err != nil {
			r.miss(c, err)
			continue
		}
		return Resolution{Point: p, Address: strings.TrimSpace(c.Address), Source: SourceGeocoded}, nil
	}
	return Resolution{}, apperr.InvalidArgument("no usable location")
}

func (r *Resolver) miss(c Candidate, err error) {
	if r.onMiss != nil {
		r.onMiss(c, err)
	}
}

func pick(a, b string) string {
	if s := strings.TrimSpace(a); s != "" {
		return s
	}
	return b
}
