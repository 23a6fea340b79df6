// Package osrm implements domain.Router over an OSRM /route/v1 endpoint.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/couchcryptid/cad-navigation-service/internal/observability"
	"github.com/paulmach/orb"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Profile string
	Timeout time.Duration
}

// Client implements domain.Router using the OSRM HTTP API.
type Client struct {
	baseURL    string
	profile    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an OSRM routing client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if opts.Profile == "" {
		opts.Profile = "driving"
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		profile:    opts.Profile,
		httpClient: &http.Client{Timeout: opts.Timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// Route requests a single route between origin and destination. OSRM is
// asked not to compute alternatives.
func (c *Client) Route(ctx context.Context, origin, destination domain.Coordinate) ([]domain.Route, error) {
	u := fmt.Sprintf("%s/route/v1/%s/%.6f,%.6f;%.6f,%.6f",
		c.baseURL, url.PathEscape(c.profile), origin.Lng, origin.Lat, destination.Lng, destination.Lat)
	params := url.Values{
		"overview":     {"full"},
		"geometries":   {"geojson"},
		"steps":        {"true"},
		"alternatives": {"false"},
	}

	start := time.Now()
	routes, err := c.doRequest(ctx, u+"?"+params.Encode())
	c.metrics.RouteAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	c.logger.Debug("route computed", "routes", len(routes), "distance_m", routes[0].DistanceMeters, "steps", len(routes[0].Instructions))
	return routes, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.Route, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrRouteFailure, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request: %v", domain.ErrRouteFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrRouteFailure, err)
	}

	routes, err := Decode(body)
	if resp.StatusCode != http.StatusOK {
		if err == nil {
			err = domain.ErrRouteFailure
		}
		return nil, fmt.Errorf("%w: osrm status %d", err, resp.StatusCode)
	}
	return routes, err
}

// Decode parses a /route/v1 response body. A response whose code is not "Ok"
// or that carries no route is reported as ErrRouteFailure.
func Decode(body []byte) ([]domain.Route, error) {
	var parsed routeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrRouteFailure, err)
	}
	if parsed.Code != "Ok" {
		return nil, fmt.Errorf("%w: %s %s", domain.ErrRouteFailure, parsed.Code, parsed.Message)
	}
	if len(parsed.Routes) == 0 {
		return nil, fmt.Errorf("%w: no routes", domain.ErrRouteFailure)
	}

	routes := make([]domain.Route, 0, len(parsed.Routes))
	for _, r := range parsed.Routes {
		routes = append(routes, r.toDomain())
	}
	return routes, nil
}

// OSRM API response types.

type routeResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Routes  []route `json:"routes"`
}

type route struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Geometry struct {
		Coordinates [][]float64 `json:"coordinates"` // [lon, lat]
	} `json:"geometry"`
	Legs []struct {
		Steps []step `json:"steps"`
	} `json:"legs"`
}

type step struct {
	Distance float64  `json:"distance"`
	Duration float64  `json:"duration"`
	Name     string   `json:"name"`
	Ref      string   `json:"ref"`
	Maneuver maneuver `json:"maneuver"`
}

type maneuver struct {
	Type         string    `json:"type"`
	Modifier     string    `json:"modifier"`
	Location     []float64 `json:"location"` // [lon, lat]
	BearingAfter float64   `json:"bearing_after"`
	Exit         int       `json:"exit"`
}

func (r route) toDomain() domain.Route {
	out := domain.Route{
		Path:            make(orb.LineString, 0, len(r.Geometry.Coordinates)),
		DistanceMeters:  r.Distance,
		DurationSeconds: r.Duration,
	}
	for _, pair := range r.Geometry.Coordinates {
		if len(pair) >= 2 {
			out.Path = append(out.Path, orb.Point{pair[0], pair[1]})
		}
	}
	for _, leg := range r.Legs {
		for _, s := range leg.Steps {
			out.Instructions = append(out.Instructions, s.toDomain())
		}
	}
	return out
}

func (s step) toDomain() domain.RawInstruction {
	text, typ := describe(s)
	raw := domain.RawInstruction{
		Text:     text,
		Distance: s.Distance,
		Time:     s.Duration,
		Type:     typ,
	}
	if len(s.Maneuver.Location) >= 2 {
		p := domain.CoordinateFromPoint(orb.Point{s.Maneuver.Location[0], s.Maneuver.Location[1]})
		raw.Point = &p
	}
	return raw
}
