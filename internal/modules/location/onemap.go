// README: OneMap search and routing client (bearer token, first search hit wins).
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fulfil/internal/types"
)

type OneMapClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewOneMapClient(baseURL, token string, timeout time.Duration) *OneMapClient {
	return &OneMapClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type oneMapSearchResponse struct {
	Found   int `json:"found"`
	Results []struct {
		SearchVal string `json:"SEARCHVAL"`
		Latitude  string `json:"LATITUDE"`
		Longitude string `json:"LONGITUDE"`
	} `json:"results"`
}

type oneMapRouteResponse struct {
	Status       int `json:"status"`
	RouteSummary *struct {
		TotalDistance float64 `json:"total_distance"`
		TotalTime     float64 `json:"total_time"`
	} `json:"route_summary"`
}

func (c *OneMapClient) Geocode(ctx context.Context, address string) (types.Point, error) {
	q := url.Values{}
	q.Set("searchVal", address)
	q.Set("returnGeom", "Y")
	q.Set("getAddrDetails", "N")
	q.Set("pageNum", "1")

	var resp oneMapSearchResponse
	if err := c.get(ctx, "/api/common/elastic/search", q, &resp); err != nil {
		return types.Point{}, err
	}
	if len(resp.Results) == 0 {
		return types.Point{}, fmt.Errorf("%w: %q", ErrAddressNotFound, address)
	}
	first := resp.Results[0]
	lat, err := strconv.ParseFloat(first.Latitude, 64)
	if err != nil {
		return types.Point{}, fmt.Errorf("onemap latitude %q: %w", first.Latitude, err)
	}
	lng, err := strconv.ParseFloat(first.Longitude, 64)
	if err != nil {
		return types.Point{}, fmt.Errorf("onemap longitude %q: %w", first.Longitude, err)
	}
	return types.Point{Lat: lat, Lng: lng}, nil
}

func (c *OneMapClient) RouteDistanceKm(ctx context.Context, from, to types.Point) (float64, error) {
	q := url.Values{}
	q.Set("start", formatPoint(from))
	q.Set("end", formatPoint(to))
	q.Set("routeType", "drive")

	var resp oneMapRouteResponse
	if err := c.get(ctx, "/api/public/routingsvc/route", q, &resp); err != nil {
		return 0, err
	}
	if resp.RouteSummary == nil {
		return 0, ErrRouteNotFound
	}
	return resp.RouteSummary.TotalDistance / 1000.0, nil
}

func (c *OneMapClient) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("onemap %s: %w", path, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("onemap %s: unexpected status %d", path, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("onemap %s decode: %w", path, err)
	}
	return nil
}

func formatPoint(p types.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}
