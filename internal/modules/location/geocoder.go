// README: Geocoding collaborator contract shared by the OneMap and Google Maps clients.
package location

import (
	"context"
	"errors"

	"fulfil/internal/types"
)

var (
	ErrAddressNotFound = errors.New("address not found")
	ErrRouteNotFound   = errors.New("route not found")
)

// Geocoder turns free-text addresses into coordinates and measures road distance.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
	RouteDistanceKm(ctx context.Context, from, to types.Point) (float64, error)
}
