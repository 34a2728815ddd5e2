// Package maps talks to the Google Geocoding and Directions APIs.
package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/geo"
)

type Route struct {
	ETASeconds     int         `json:"eta_seconds"`
	DistanceMeters int         `json:"distance_meters"`
	Polyline       []geo.Point `json:"polyline"`
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

func New(baseURL, apiKey string, rps float64, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		lim = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: hc, limiter: lim}
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c *Client) Geocode(ctx context.Context, address string) (geo.Point, error) {
	if strings.TrimSpace(address) == "" {
		return geo.Point{}, apperr.InvalidArgument("address is required for geocoding")
	}
	q := url.Values{"address": {address}, "key": {c.apiKey}}
	var resp struct {
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
		Results      []struct {
			Geometry struct {
				Location latLng `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := c.get(ctx, "/maps/api/geocode/json", q, &resp); err != nil {
		return geo.Point{}, err
	}
	switch resp.Status {
	case "OK":
		if len(resp.Results) == 0 {
			return geo.Point{}, apperr.NotFound("no geocoding results for %q", address)
		}
		loc := resp.Results[0].Geometry.Location
		return geo.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
	case "ZERO_RESULTS":
		return geo.Point{}, apperr.NotFound("no geocoding results for %q", address)
	default:
		return geo.Point{}, apperr.Upstream("geocode", fmt.Errorf("%s %s", resp.Status, resp.ErrorMessage))
	}
}

func (c *Client) Route(ctx context.Context, origin, destination geo.Point) (Route, error) {
	q := url.Values{
		"origin":      {fmt.Sprintf("%f,%f", origin.Lat, origin.Lng)},
		"destination": {fmt.Sprintf("%f,%f", destination.Lat, destination.Lng)},
		"key":         {c.apiKey},
	}
	var resp struct {
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
		Routes       []struct {
			OverviewPolyline struct {
				Points string `json:"points"`
			} `json:"overview_polyline"`
			Legs []struct {
				Duration struct {
					Value int `json:"value"`
				} `json:"duration"`
				Distance struct {
					Value int `json:"value"`
				} `json:"distance"`
			} `json:"legs"`
		} `json:"routes"`
	}
	if err := c.get(ctx, "/maps/api/directions/json", q, &resp); err != nil {
		return Route{}, err
	}
	if resp.Status != "OK" || len(resp.Routes) == 0 || len(resp.Routes[0].Legs) == 0 {
		return Route{}, apperr.Upstream("directions", fmt.Errorf("%s %s", resp.Status, resp.ErrorMessage))
	}
	r := resp.Routes[0]
	out := Route{Polyline: DecodePolyline(r.OverviewPolyline.Points)}
	for _, leg := range r.Legs {
		out.ETASeconds += leg.Duration.Value
		out.DistanceMeters += leg.Distance.Value
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperr.Upstream("maps", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Upstream("maps", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apperr.Upstream("maps", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Upstream("maps", fmt.Errorf("decode body: %w", err))
	}
	return nil
}

// DecodePolyline decodes Google's encoded polyline format (precision 1e5).
// Malformed trailing input is ignored.
func DecodePolyline(encoded string) []geo.Point {
	var (
		points   []geo.Point
		lat, lng int
		i        int
	)
	next := func() (int, bool) {
		result, shift := 0, 0
		for i < len(encoded) {
			b := int(encoded[i]) - 63
			i++
			result |= (b & 0x1f) << shift
			shift += 5
			if b < 0x20 {
				if result&1 != 0 {
					return ^(result >> 1), true
				}
				return result >> 1, true
			}
		}
		return 0, false
	}
	for i < len(encoded) {
		dLat, ok := next()
		if !ok {
			break
		}
		dLng, ok := next()
		if !ok {
			break
		}
		lat += dLat
		lng += dLng
		points = append(points, geo.Point{Lat: float64(lat) / 1e5, Lng: float64(lng) / 1e5})
	}
	return points
}
