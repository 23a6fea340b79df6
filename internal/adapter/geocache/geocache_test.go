package geocache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/couchcryptid/cad-navigation-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type countingGeocoder struct {
	mu     sync.Mutex
	calls  int
	result []domain.Location
	err    error
}

func (m *countingGeocoder) Resolve(_ context.Context, _ string) ([]domain.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.result, m.err
}

func (m *countingGeocoder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type memStore struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

var welland = domain.Location{ID: "locationiq:1", Name: "Welland", Lat: 42.9922, Lng: -79.2483, Address: "Welland, Ontario, Canada", Source: "locationiq"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- LRU ---

func TestLRU_CacheHit(t *testing.T) {
	inner := &countingGeocoder{result: []domain.Location{welland}}
	metrics := observability.NewMetricsForTesting()
	cached := NewLRU(inner, 10, metrics)

	r1, err := cached.Resolve(context.Background(), "Welland")
	require.NoError(t, err)
	r2, err := cached.Resolve(context.Background(), "  welland ")
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.count(), "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("lru", "hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("lru", "miss")), 0)
}

func TestLRU_EmptyNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewLRU(inner, 10, observability.NewMetricsForTesting())

	_, _ = cached.Resolve(context.Background(), "nowhere")
	_, _ = cached.Resolve(context.Background(), "nowhere")
	assert.Equal(t, 2, inner.count())
}

func TestLRU_ErrorNotCached(t *testing.T) {
	inner := &countingGeocoder{err: domain.ErrGeocodeFailure}
	cached := NewLRU(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.Resolve(context.Background(), "Welland")
	require.ErrorIs(t, err, domain.ErrGeocodeFailure)
	_, err = cached.Resolve(context.Background(), "Welland")
	require.ErrorIs(t, err, domain.ErrGeocodeFailure)
	assert.Equal(t, 2, inner.count())
	assert.Equal(t, 0, cached.Len())
}

func TestLRU_Eviction(t *testing.T) {
	inner := &countingGeocoder{result: []domain.Location{welland}}
	cached := NewLRU(inner, 2, observability.NewMetricsForTesting())
	ctx := context.Background()

	_, _ = cached.Resolve(ctx, "a")
	_, _ = cached.Resolve(ctx, "b")
	_, _ = cached.Resolve(ctx, "a") // a becomes most recent
	_, _ = cached.Resolve(ctx, "c") // evicts b
	assert.Equal(t, 3, inner.count())
	assert.Equal(t, 2, cached.Len())

	_, _ = cached.Resolve(ctx, "a")
	assert.Equal(t, 3, inner.count(), "a should still be cached")

	_, _ = cached.Resolve(ctx, "b")
	assert.Equal(t, 4, inner.count(), "b should have been evicted")
}

func TestLRU_ReturnsCopies(t *testing.T) {
	inner := &countingGeocoder{result: []domain.Location{welland}}
	cached := NewLRU(inner, 2, observability.NewMetricsForTesting())

	r1, _ := cached.Resolve(context.Background(), "Welland")
	r1[0].Name = "mutated"
	r2, _ := cached.Resolve(context.Background(), "Welland")
	assert.Equal(t, "Welland", r2[0].Name)
}

func TestLRU_Concurrent(t *testing.T) {
	inner := &countingGeocoder{result: []domain.Location{welland}}
	cached := NewLRU(inner, 5, observability.NewMetricsForTesting())

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cached.Resolve(context.Background(), string(rune('a'+i%8)))
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, cached.Len(), 5)
}

// --- Redis ---

func TestRedis_MissThenHit(t *testing.T) {
	inner := &countingGeocoder{result: []domain.Location{welland}}
	store := newMemStore()
	metrics := observability.NewMetricsForTesting()
	cached := newRedis(inner, store, time.Hour, metrics, discardLogger())

	r1, err := cached.Resolve(context.Background(), "Welland")
	require.NoError(t, err)
	r2, err := cached.Resolve(context.Background(), "WELLAND")
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.count())
	assert.Equal(t, time.Hour, store.ttls["cadnav:geo:welland"])
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("redis", "hit")), 0)
}

func TestRedis_StoreErrorsFallThrough(t *testing.T) {
	inner := &countingGeocoder{result: []domain.Location{welland}}
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")
	cached := newRedis(inner, store, time.Hour, observability.NewMetricsForTesting(), discardLogger())

	got, err := cached.Resolve(context.Background(), "Welland")
	require.NoError(t, err)
	assert.Equal(t, []domain.Location{welland}, got)
	assert.Equal(t, 1, inner.count())
}

func TestRedis_CorruptEntryIgnored(t *testing.T) {
	inner := &countingGeocoder{result: []domain.Location{welland}}
	store := newMemStore()
	store.data["cadnav:geo:welland"] = []byte("{garbage")
	cached := newRedis(inner, store, time.Hour, observability.NewMetricsForTesting(), discardLogger())

	got, err := cached.Resolve(context.Background(), "Welland")
	require.NoError(t, err)
	assert.Equal(t, []domain.Location{welland}, got)
	assert.Equal(t, 1, inner.count())
}

func TestRedis_ErrorNotCached(t *testing.T) {
	inner := &countingGeocoder{err: domain.ErrNoMatch}
	store := newMemStore()
	cached := newRedis(inner, store, time.Hour, observability.NewMetricsForTesting(), discardLogger())

	_, err := cached.Resolve(context.Background(), "Buffalo")
	require.ErrorIs(t, err, domain.ErrNoMatch)
	assert.Empty(t, store.data)
}
