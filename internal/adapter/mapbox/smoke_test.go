//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/cad-navigation-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return NewClient(Options{
		Token:     token,
		Timeout:   10 * time.Second,
		Qualifier: "Ontario, Canada",
		Region:    "Ontario",
	}, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_Resolve(t *testing.T) {
	c := smokeClient(t)

	got, err := c.Resolve(context.Background(), "Niagara Falls")
	require.NoError(t, err)
	require.NotEmpty(t, got)

	assert.InDelta(t, 43.09, got[0].Lat, 0.1, "lat should be near Niagara Falls")
	assert.InDelta(t, -79.08, got[0].Lng, 0.1, "lng should be near Niagara Falls")
	assert.Contains(t, got[0].Address, "Ontario")
}
