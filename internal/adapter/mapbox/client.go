// Package mapbox implements domain.Geocoder over the Mapbox forward geocoding API.
package mapbox

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

// DefaultBaseURL is the Mapbox places endpoint.
const DefaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

const provider = "mapbox"

// Options configures a Client.
type Options struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	Qualifier string
	Region    string
	Limit     int
}

// Client implements domain.Geocoder using the Mapbox Geocoding API.
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

// NewClient creates a Mapbox geocoding client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Limit <= 0 {
		opts.Limit = 5
	}
	return &Client{
		token:     opts.Token,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		qualifier: opts.Qualifier,
		region:    opts.Region,
		limit:     opts.Limit,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Resolve geocodes text inside the configured region.
func (c *Client) Resolve(ctx context.Context, text string) ([]domain.Location, error) {
	query := strings.TrimSpace(text)
	if c.qualifier != "" {
		query = fmt.Sprintf("%s, %s", query, c.qualifier)
	}

	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {strconv.Itoa(c.limit)},
		"types":        {"address,poi,place,locality,neighborhood"},
		"language":     {"fr"},
	}

	start := time.Now()
	features, err := c.doRequest(ctx, u+"?"+params.Encode())
	c.metrics.GeocodeAPIDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(provider, "error").Inc()
		return nil, err
	}

	locations := make([]domain.Location, 0, len(features))
	for _, f := range features {
		// Mapbox uses lon,lat order.
		if len(f.Center) != 2 {
			continue
		}
		loc := domain.Location{
			ID:      provider + ":" + f.ID,
			Name:    f.Text,
			Lat:     f.Center[1],
			Lng:     f.Center[0],
			Address: f.PlaceName,
			Source:  provider,
		}
		if loc.Name == "" {
			loc.Name = f.PlaceName
		}
		if !loc.Coordinate().Valid() {
			continue
		}
		locations = append(locations, loc)
	}
	if len(locations) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues(provider, "error").Inc()
		return nil, fmt.Errorf("%w: no usable features", domain.ErrGeocodeFailure)
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

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]feature, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrGeocodeFailure, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: forward geocode request: %v", domain.ErrGeocodeFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: mapbox API error: status %d: %s", domain.ErrGeocodeFailure, resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrGeocodeFailure, err)
	}
	return mapboxResp.Features, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID        string    `json:"id"`
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}
