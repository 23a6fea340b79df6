package navigation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/couchcryptid/cad-navigation-service/internal/gazetteer"
	"github.com/couchcryptid/cad-navigation-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	ctrl      *Controller
	router    *fakeRouter
	position  *fakePosition
	narrator  *recordingNarrator
	view      *fakeMap
	publisher *recordingPublisher
	metrics   *observability.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	entries, err := gazetteer.Load("")
	require.NoError(t, err)
	ix := gazetteer.NewIndex(entries, gazetteer.Options{})

	h := &harness{
		router:    &fakeRouter{routes: []domain.Route{niagaraRoute()}},
		position:  &fakePosition{pos: coord(43.0716, -79.1010), auto: true},
		narrator:  &recordingNarrator{},
		view:      newFakeMap(),
		publisher: &recordingPublisher{},
		metrics:   observability.NewMetricsForTesting(),
	}
	logger := discardLogger()
	h.ctrl = NewController(Deps{
		Resolver:  NewResolver(ix, nil, 0, h.metrics, logger),
		Engine:    NewRouteEngine(h.router, time.Second, h.metrics, logger),
		Position:  h.position,
		Narrator:  h.narrator,
		View:      h.view,
		Publisher: h.publisher,
	}, Options{ProximityMeters: 30, Zoom: 15}, h.metrics, logger)
	return h
}

func TestController_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	locs, err := h.ctrl.Search(ctx, "Niagara Falls")
	require.NoError(t, err)
	ids := make([]string, len(locs))
	for i, l := range locs {
		ids[i] = l.ID
	}
	assert.Contains(t, ids, "niagara-falls")

	dest, err := h.ctrl.SelectByID(ctx, "niagara-falls")
	require.NoError(t, err)
	assert.InDelta(t, 43.0962, dest.Lat, 1e-9)
	assert.InDelta(t, -79.0377, dest.Lng, 1e-9)
	assert.Equal(t, PhaseDestinationSelected, h.ctrl.Snapshot().Phase)

	session, err := h.ctrl.Go(ctx)
	require.NoError(t, err)
	assert.True(t, session.Active)
	assert.Equal(t, 0, session.Cursor)
	require.Len(t, session.Instructions, 4)

	turn := session.Instructions[1]
	assert.Equal(t, domain.ManeuverRight, turn.ManeuverType)
	assert.Equal(t, "Tournez à droite", turn.Text)
	assert.Contains(t, turn.Summary, "3.2 kilomètres")
	assert.Equal(t, "Dans 3.2 kilomètres, tournez à droite", domain.UtteranceText(turn))

	spoken, n := h.narrator.last()
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, spoken.SequenceIndex, "first instruction is spoken on start")

	assert.True(t, h.view.routeShown())
	assert.Equal(t, *coord(43.0962, -79.0377), h.view.markers[domain.MarkerDestination])
	assert.Equal(t, *coord(43.0716, -79.1010), h.router.origin)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.NavigationActive), 1e-9)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, PhaseNavigating, snap.Phase)
	require.NotNil(t, snap.Current)
	assert.Equal(t, 0, snap.Current.SequenceIndex)

	assert.Equal(t, []domain.NavigationEventType{
		domain.EventDestinationSelected,
		domain.EventRoutesFound,
	}, h.publisher.types())
}

func TestController_NewDestinationClearsSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ctrl.SelectByID(ctx, "niagara-falls")
	require.NoError(t, err)
	_, err = h.ctrl.Go(ctx)
	require.NoError(t, err)
	stopsBefore := h.narrator.stops

	_, err = h.ctrl.SelectByID(ctx, "welland")
	require.NoError(t, err)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, PhaseDestinationSelected, snap.Phase)
	assert.False(t, snap.Session.Active)
	assert.NotNil(t, snap.Session.Instructions)
	assert.Empty(t, snap.Session.Instructions)
	assert.Nil(t, snap.Current)
	require.NotNil(t, snap.Destination)
	assert.Equal(t, "welland", snap.Destination.ID)
	assert.False(t, h.view.routeShown(), "route overlay removed")
	assert.Greater(t, h.narrator.stops, stopsBefore, "narration cancelled")
	assert.InDelta(t, 0, testutil.ToFloat64(h.metrics.NavigationActive), 1e-9)
}

func TestController_GoRequiresDestination(t *testing.T) {
	h := newHarness(t)

	_, err := h.ctrl.Go(context.Background())
	require.ErrorIs(t, err, domain.ErrNoDestination)
	assert.Equal(t, NoticeNoDestination, h.view.lastNotice())
	assert.Equal(t, 0, h.router.calls)
}

func TestController_GoRequiresPosition(t *testing.T) {
	h := newHarness(t)
	h.position.pos = nil

	_, err := h.ctrl.SelectByID(context.Background(), "niagara-falls")
	require.NoError(t, err)
	_, err = h.ctrl.Go(context.Background())
	require.ErrorIs(t, err, domain.ErrPositionUnavailable)
	assert.Equal(t, NoticeNoPosition, h.view.lastNotice())
	assert.Equal(t, PhaseDestinationSelected, h.ctrl.Snapshot().Phase)
}

func TestController_RouteFailureStaysSelected(t *testing.T) {
	h := newHarness(t)
	h.router.routes = nil
	h.router.err = domain.ErrRouteFailure

	_, err := h.ctrl.SelectByID(context.Background(), "niagara-falls")
	require.NoError(t, err)
	_, err = h.ctrl.Go(context.Background())
	require.ErrorIs(t, err, domain.ErrRouteFailure)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, PhaseDestinationSelected, snap.Phase)
	assert.False(t, snap.Session.Active)
	assert.Equal(t, NoticeRouteFailed, h.view.lastNotice())
	assert.False(t, h.view.routeShown())
	_, spoken := h.narrator.last()
	assert.Equal(t, 0, spoken)
	assert.Contains(t, h.publisher.types(), domain.EventRouteFailed)
}

func TestController_StopKeepsDestination(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ctrl.SelectByID(ctx, "niagara-falls")
	require.NoError(t, err)
	_, err = h.ctrl.Go(ctx)
	require.NoError(t, err)

	h.ctrl.Stop(ctx)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, PhaseDestinationSelected, snap.Phase)
	require.NotNil(t, snap.Destination)
	assert.Equal(t, "niagara-falls", snap.Destination.ID)
	assert.Empty(t, snap.Session.Instructions)
	assert.False(t, h.view.routeShown())
	assert.Contains(t, h.publisher.types(), domain.EventNavigationStopped)

	_, err = h.ctrl.Next(ctx)
	require.ErrorIs(t, err, domain.ErrNoSession)
	_, err = h.ctrl.Repeat()
	require.ErrorIs(t, err, domain.ErrNoSession)
}

func TestController_LateRouteAfterStopIsDropped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.router.gate = make(chan struct{})
	h.router.entered = make(chan struct{})

	_, err := h.ctrl.SelectByID(ctx, "niagara-falls")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var goErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, goErr = h.ctrl.Go(ctx)
	}()

	<-h.router.entered
	h.ctrl.Stop(ctx)
	close(h.router.gate)
	wg.Wait()

	require.ErrorIs(t, goErr, ErrSuperseded)
	snap := h.ctrl.Snapshot()
	assert.Equal(t, PhaseDestinationSelected, snap.Phase)
	assert.False(t, snap.Session.Active)
	assert.False(t, h.view.routeShown())
	assert.Equal(t, 0, h.view.shown)
	_, spoken := h.narrator.last()
	assert.Equal(t, 0, spoken)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.RouteRequests.WithLabelValues("stale")), 1e-9)
}

func TestController_NextAndRepeat(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ctrl.SelectByID(ctx, "niagara-falls")
	require.NoError(t, err)
	_, err = h.ctrl.Go(ctx)
	require.NoError(t, err)

	in, err := h.ctrl.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, in.SequenceIndex)

	in, err = h.ctrl.Repeat()
	require.NoError(t, err)
	assert.Equal(t, 1, in.SequenceIndex)
	spoken, n := h.narrator.last()
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, spoken.SequenceIndex)

	for range 5 {
		in, err = h.ctrl.Next(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, in.SequenceIndex, "cursor stops at the last instruction")
	assert.Equal(t, 3, h.ctrl.Snapshot().Session.Cursor)
	_, n = h.narrator.last()
	assert.Equal(t, 5, n, "nothing spoken past the end")
}

func TestController_ProximityAdvances(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ctrl.SelectByID(ctx, "niagara-falls")
	require.NoError(t, err)
	_, err = h.ctrl.Go(ctx)
	require.NoError(t, err)

	// Far from the next maneuver point.
	h.ctrl.OnPosition(domain.Coordinate{Lat: 43.0800, Lng: -79.0900})
	assert.Equal(t, 0, h.ctrl.Snapshot().Session.Cursor)

	// About 10 m from the right turn.
	h.ctrl.OnPosition(domain.Coordinate{Lat: 43.0716, Lng: -79.0981})
	assert.Equal(t, 1, h.ctrl.Snapshot().Session.Cursor)
	spoken, _ := h.narrator.last()
	assert.Equal(t, domain.ManeuverRight, spoken.ManeuverType)

	// Reaching a later point only advances one step at a time.
	h.ctrl.OnPosition(falls)
	assert.Equal(t, 1, h.ctrl.Snapshot().Session.Cursor)
	h.ctrl.OnPosition(domain.Coordinate{Lat: 43.0900, Lng: -79.0700})
	h.ctrl.OnPosition(falls)
	assert.Equal(t, 3, h.ctrl.Snapshot().Session.Cursor)
	h.ctrl.OnPosition(falls)
	assert.Equal(t, 3, h.ctrl.Snapshot().Session.Cursor)

	assert.Contains(t, h.publisher.types(), domain.EventInstructionAdvanced)
}

func TestController_ProximityWithoutSession(t *testing.T) {
	h := newHarness(t)
	h.ctrl.OnPosition(falls)
	_, n := h.narrator.last()
	assert.Equal(t, 0, n)
}

func TestController_SpeechUnavailableDoesNotBlockNavigation(t *testing.T) {
	h := newHarness(t)
	h.narrator.err = domain.ErrSpeechUnavailable

	_, err := h.ctrl.SelectByID(context.Background(), "niagara-falls")
	require.NoError(t, err)
	session, err := h.ctrl.Go(context.Background())
	require.NoError(t, err)
	assert.True(t, session.Active)
	assert.Len(t, session.Instructions, 4)
}

func TestController_SearchNoResultsNotice(t *testing.T) {
	h := newHarness(t)

	_, err := h.ctrl.Search(context.Background(), "xxxxxxx")
	require.ErrorIs(t, err, domain.ErrNoMatch)
	assert.Equal(t, NoticeNoResults, h.view.lastNotice())
}

func TestController_ManualDestination(t *testing.T) {
	h := newHarness(t)

	loc, err := h.ctrl.SelectDestination(context.Background(), domain.Location{Lat: 43.1, Lng: -79.2, Source: "manual"})
	require.NoError(t, err)
	assert.Equal(t, "43.10000, -79.20000", loc.Name)

	_, err = h.ctrl.SelectDestination(context.Background(), domain.Location{Lat: 123, Lng: 0})
	require.ErrorIs(t, err, domain.ErrNoMatch)
}

func TestController_ClearDestination(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ctrl.SelectByID(ctx, "niagara-falls")
	require.NoError(t, err)
	_, err = h.ctrl.Go(ctx)
	require.NoError(t, err)

	h.ctrl.ClearDestination(ctx)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, PhaseNoDestination, snap.Phase)
	assert.Nil(t, snap.Destination)
	_, ok := h.view.markers[domain.MarkerDestination]
	assert.False(t, ok)
	assert.Contains(t, h.publisher.types(), domain.EventDestinationCleared)
}

func TestController_OnChangeAndAutoCenter(t *testing.T) {
	h := newHarness(t)

	var snaps []Snapshot
	h.ctrl.OnChange(func(s Snapshot) { snaps = append(snaps, s) })

	h.ctrl.SetAutoCenter(false)
	require.Len(t, snaps, 1)
	assert.False(t, snaps[0].AutoCenter)

	_, err := h.ctrl.SelectByID(context.Background(), "welland")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, PhaseDestinationSelected, snaps[1].Phase)
}
