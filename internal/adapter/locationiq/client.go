// Package locationiq implements domain.Geocoder over the LocationIQ search API,
// which answers with a Nominatim-style JSON array.
package locationiq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/couchcryptid/cad-navigation-service/internal/observability"
)

// DefaultBaseURL is the LocationIQ forward-search endpoint.
const DefaultBaseURL = "https://us1.locationiq.com/v1/search"

const provider = "locationiq"

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// Qualifier is appended to every query, e.g. "Ontario, Canada".
	Qualifier string
	// Region must appear in a candidate's display name for it to be kept.
	Region string
	Limit  int
}

// Client implements domain.Geocoder using the LocationIQ API.
type Client struct {
	token      string
	baseURL    string
	qualifier  string
	region     string
	limit      int
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a LocationIQ geocoding client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Limit <= 0 {
		opts.Limit = 5
	}
	return &Client{
		token:      opts.Token,
		baseURL:    opts.BaseURL,
		qualifier:  opts.Qualifier,
		region:     opts.Region,
		limit:      opts.Limit,
		httpClient: &http.Client{Timeout: opts.Timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// Resolve geocodes text inside the configured region.
func (c *Client) Resolve(ctx context.Context, text string) ([]domain.Location, error) {
	query := strings.TrimSpace(text)
	if c.qualifier != "" {
		query = fmt.Sprintf("%s, %s", query, c.qualifier)
	}
	params := url.Values{
		"key":    {c.token},
		"q":      {query},
		"format": {"json"},
		"limit":  {strconv.Itoa(c.limit)},
	}

	start := time.Now()
	places, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	c.metrics.GeocodeAPIDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(provider, "error").Inc()
		return nil, err
	}

	locations := make([]domain.Location, 0, len(places))
	for _, p := range places {
		loc, err := p.location()
		if err != nil {
			c.logger.Debug("skipping unparseable place", "place_id", p.PlaceID, "error", err)
			continue
		}
		locations = append(locations, loc)
	}
	if len(locations) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues(provider, "error").Inc()
		return nil, fmt.Errorf("%w: no usable candidates", domain.ErrGeocodeFailure)
	}

	kept := domain.FilterRegion(locations, c.region)
	if len(kept) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues(provider, "empty").Inc()
		c.logger.Debug("geocode candidates outside region", "query", text, "candidates", len(locations), "region", c.region)
		return nil, domain.ErrNoMatch
	}
	c.metrics.GeocodeRequests.WithLabelValues(provider, "success").Inc()
	return kept, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrGeocodeFailure, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request: %v", domain.ErrGeocodeFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: locationiq status %d: %s", domain.ErrGeocodeFailure, resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrGeocodeFailure, err)
	}
	return places, nil
}

// LocationIQ API response types. Coordinates arrive as strings.

type place struct {
	PlaceID     string `json:"place_id"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

func (p place) location() (domain.Location, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.Location{}, fmt.Errorf("lat: %w", err)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.Location{}, fmt.Errorf("lon: %w", err)
	}
	loc := domain.Location{
		ID:      provider + ":" + p.PlaceID,
		Name:    shortName(p.DisplayName),
		Lat:     lat,
		Lng:     lng,
		Address: p.DisplayName,
		Source:  provider,
	}
	if !loc.Coordinate().Valid() {
		return domain.Location{}, fmt.Errorf("coordinate out of range: %s,%s", p.Lat, p.Lon)
	}
	return loc, nil
}

// shortName is the first component of a comma-separated display name.
func shortName(displayName string) string {
	name, _, _ := strings.Cut(displayName, ",")
	return strings.TrimSpace(name)
}
