package tracker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/couchcryptid/cad-navigation-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	home    = domain.Coordinate{Lat: 43.0716, Lng: -79.1010}
	stanley = domain.Coordinate{Lat: 43.0850, Lng: -79.0794}
	falls   = domain.Coordinate{Lat: 43.0962, Lng: -79.0377}
)

// --- fakes ---

type fakeMap struct {
	mu      sync.Mutex
	views   []domain.Coordinate
	markers []domain.Coordinate
	notices []domain.Notice
}

func (m *fakeMap) SetView(c domain.Coordinate, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views = append(m.views, c)
}

func (m *fakeMap) SetMarker(_ domain.MarkerRole, c domain.Coordinate, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers = append(m.markers, c)
}

func (m *fakeMap) Notify(n domain.Notice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, n)
}

func (m *fakeMap) RemoveMarker(domain.MarkerRole)   {}
func (m *fakeMap) ShowRoute([]domain.Coordinate)    {}
func (m *fakeMap) ClearRoute()                      {}
func (m *fakeMap) FitBounds(_, _ domain.Coordinate) {}

func (m *fakeMap) counts() (views, markers, notices int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.views), len(m.markers), len(m.notices)
}

type reading struct {
	c   domain.Coordinate
	err error
}

type scriptedSource struct {
	mu       sync.Mutex
	readings []reading
	calls    int
}

func (s *scriptedSource) CurrentPosition(_ context.Context, _ time.Duration) (domain.Coordinate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.readings[min(s.calls, len(s.readings)-1)]
	s.calls++
	return r.c, r.err
}

func (s *scriptedSource) waitCalls(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.calls >= n
	}, 2*time.Second, 5*time.Millisecond)
}

func newTracker(source domain.PositionSource, view *fakeMap, autoCenter bool, opts ...Option) (*Tracker, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	return New(source, view, Options{
		Fallback:     home,
		PollInterval: time.Second,
		MaxAge:       5 * time.Second,
		AutoCenter:   autoCenter,
		Zoom:         15,
	}, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...), metrics
}

// --- tests ---

func TestTracker_FixedMode(t *testing.T) {
	view := &fakeMap{}
	tr, _ := newTracker(nil, view, true)
	assert.False(t, tr.Live())

	_, ok := tr.Current()
	assert.False(t, ok)

	tr.Start(context.Background())
	tr.Start(context.Background())
	defer tr.Stop()

	c, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, home, c)

	views, markers, notices := view.counts()
	assert.Equal(t, 1, views)
	assert.Equal(t, 1, markers)
	assert.Equal(t, 0, notices)
}

func TestTracker_IdenticalUpdatesAreNoOps(t *testing.T) {
	view := &fakeMap{}
	tr, metrics := newTracker(nil, view, true)

	assert.True(t, tr.Update(stanley))
	assert.False(t, tr.Update(domain.Coordinate{Lat: 43.0850, Lng: -79.0794}))

	views, markers, _ := view.counts()
	assert.Equal(t, 1, views, "no additional recenter")
	assert.Equal(t, 1, markers)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PositionUpdates.WithLabelValues("recorded")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PositionUpdates.WithLabelValues("duplicate")), 0)

	assert.True(t, tr.Update(falls))
	views, _, _ = view.counts()
	assert.Equal(t, 2, views)
}

func TestTracker_AutoCenterOnlyAffectsCamera(t *testing.T) {
	view := &fakeMap{}
	tr, _ := newTracker(nil, view, false)
	assert.False(t, tr.AutoCenter())

	tr.Update(stanley)
	tr.Update(falls)

	c, _ := tr.Current()
	assert.Equal(t, falls, c, "updates are recorded regardless")
	views, markers, _ := view.counts()
	assert.Equal(t, 0, views)
	assert.Equal(t, 2, markers)

	tr.SetAutoCenter(true)
	tr.SetAutoCenter(true)
	views, _, _ = view.counts()
	assert.Equal(t, 1, views, "enabling recenters once")

	tr.SetAutoCenter(false)
	tr.Update(stanley)
	views, _, _ = view.counts()
	assert.Equal(t, 1, views)
}

func TestTracker_LivePolling(t *testing.T) {
	clock := clockwork.NewFakeClock()
	source := &scriptedSource{readings: []reading{{c: stanley}, {c: stanley}, {c: falls}}}
	view := &fakeMap{}
	tr, _ := newTracker(source, view, true, WithClock(clock))
	require.True(t, tr.Live())

	tr.Start(context.Background())
	defer tr.Stop()

	c, _ := tr.Current()
	assert.Equal(t, stanley, c, "initial poll is synchronous")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(time.Second) // duplicate reading
	source.waitCalls(t, 2)
	clock.Advance(time.Second) // new reading
	assert.Eventually(t, func() bool {
		c, _ := tr.Current()
		return c == falls
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		views, _, _ := view.counts()
		return views == 2
	}, time.Second, 10*time.Millisecond)
}

func TestTracker_FallbackBeforeFirstFix(t *testing.T) {
	clock := clockwork.NewFakeClock()
	source := &scriptedSource{readings: []reading{
		{err: domain.ErrPositionUnavailable},
		{err: domain.ErrPositionUnavailable},
		{c: falls},
	}}
	view := &fakeMap{}
	tr, metrics := newTracker(source, view, true, WithClock(clock))

	tr.Start(context.Background())
	defer tr.Stop()

	c, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, home, c)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PositionUpdates.WithLabelValues("fallback")), 0)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	source.waitCalls(t, 2)
	clock.Advance(time.Second)

	assert.Eventually(t, func() bool {
		c, _ := tr.Current()
		return c == falls
	}, 2*time.Second, 10*time.Millisecond)

	_, _, notices := view.counts()
	assert.Equal(t, 0, notices, "failures while the source connects are silent")
}

func TestTracker_FallbackNoticeAfterWarmUp(t *testing.T) {
	clock := clockwork.NewFakeClock()
	readings := make([]reading, 0, 8)
	for range 7 {
		readings = append(readings, reading{err: domain.ErrPositionUnavailable})
	}
	source := &scriptedSource{readings: append(readings, reading{c: falls})}
	view := &fakeMap{}
	tr, _ := newTracker(source, view, true, WithClock(clock))

	tr.Start(context.Background())
	defer tr.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	// Polls at 1s..4s fall inside MaxAge; the one at 5s is the first to notify.
	for call := 2; call <= 5; call++ {
		clock.Advance(time.Second)
		source.waitCalls(t, call)
	}
	_, _, notices := view.counts()
	assert.Equal(t, 0, notices)

	for call := 6; call <= 8; call++ {
		clock.Advance(time.Second)
		source.waitCalls(t, call)
	}
	assert.Eventually(t, func() bool {
		c, _ := tr.Current()
		return c == falls
	}, 2*time.Second, 10*time.Millisecond)

	_, _, notices = view.counts()
	assert.Equal(t, 1, notices, "fallback notice is shown once")
}

func TestTracker_KeepsLastFixAfterFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	source := &scriptedSource{readings: []reading{{c: stanley}, {err: domain.ErrPositionUnavailable}}}
	view := &fakeMap{}
	tr, _ := newTracker(source, view, true, WithClock(clock))

	tr.Start(context.Background())
	defer tr.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)

	source.waitCalls(t, 2)

	c, _ := tr.Current()
	assert.Equal(t, stanley, c)
	_, _, notices := view.counts()
	assert.Equal(t, 0, notices)
}

func TestTracker_InvalidReadingFallsBack(t *testing.T) {
	source := &scriptedSource{readings: []reading{{c: domain.Coordinate{Lat: 120}}}}
	tr, _ := newTracker(source, &fakeMap{}, true)

	tr.Start(context.Background())
	defer tr.Stop()

	c, _ := tr.Current()
	assert.Equal(t, home, c)
}

func TestTracker_Subscribe(t *testing.T) {
	tr, _ := newTracker(nil, &fakeMap{}, false)

	var got []domain.Coordinate
	unsubscribe := tr.Subscribe(func(c domain.Coordinate) { got = append(got, c) })

	tr.Update(stanley)
	tr.Update(stanley)
	tr.Update(falls)
	unsubscribe()
	tr.Update(home)

	assert.Equal(t, []domain.Coordinate{stanley, falls}, got)
}

func TestTracker_StopIsIdempotent(t *testing.T) {
	source := &scriptedSource{readings: []reading{{c: stanley}}}
	tr, _ := newTracker(source, &fakeMap{}, true, WithClock(clockwork.NewFakeClock()))

	tr.Stop()
	tr.Start(context.Background())
	tr.Stop()
	tr.Stop()
}

func TestTracker_ConcurrentUpdatesEmitInRecordOrder(t *testing.T) {
	view := &fakeMap{}
	tr, _ := newTracker(nil, view, false)

	var subscribed []domain.Coordinate
	var subMu sync.Mutex
	tr.Subscribe(func(c domain.Coordinate) {
		subMu.Lock()
		subscribed = append(subscribed, c)
		subMu.Unlock()
	})

	var wg sync.WaitGroup
	for g := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 250 {
				tr.Update(domain.Coordinate{Lat: 43 + float64(g)/10, Lng: -79 + float64(i)/1000})
			}
		}()
	}
	wg.Wait()

	c, ok := tr.Current()
	require.True(t, ok)
	view.mu.Lock()
	defer view.mu.Unlock()
	subMu.Lock()
	defer subMu.Unlock()
	require.NotEmpty(t, view.markers)
	assert.Equal(t, c, view.markers[len(view.markers)-1])
	assert.Equal(t, view.markers, subscribed)
}
