// README: Google Maps geocoding and directions client; satisfies location.Geocoder.
package maps

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"googlemaps.github.io/maps"

	"fulfil/internal/modules/location"
	"fulfil/internal/types"
)

// Client handles interactions with Google Maps API.
type Client struct {
	client  *maps.Client
	timeout time.Duration
}

var _ location.Geocoder = (*Client)(nil)

// NewClient creates a new Client with the given API key. Requests are bounded by timeout.
func NewClient(apiKey string, timeout time.Duration) (*Client, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Client{client: client, timeout: timeout}, nil
}

// Geocode resolves an address and returns the first match, biased to Singapore.
func (c *Client) Geocode(ctx context.Context, address string) (types.Point, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	results, err := c.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: address,
		Region:  "sg",
	})
	if err != nil {
		return types.Point{}, fmt.Errorf("maps geocode: %w", err)
	}
	if len(results) == 0 {
		return types.Point{}, fmt.Errorf("%w: %q", location.ErrAddressNotFound, address)
	}
	loc := results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// RouteDistanceKm returns the driving distance of the first route leg.
func (c *Client) RouteDistanceKm(ctx context.Context, from, to types.Point) (float64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	routes, _, err := c.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      latLng(from),
		Destination: latLng(to),
		Mode:        maps.TravelModeDriving,
		Region:      "sg",
	})
	if err != nil {
		return 0, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, location.ErrRouteNotFound
	}
	return float64(routes[0].Legs[0].Distance.Meters) / 1000.0, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func latLng(p types.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}
