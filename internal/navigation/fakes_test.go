package navigation

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/paulmach/orb"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeIndex struct {
	strict map[string][]domain.Location
	loose  map[string][]domain.Location
	byID   map[string]domain.Location
}

func (f *fakeIndex) Search(q string) []domain.Location      { return f.strict[q] }
func (f *fakeIndex) SearchLoose(q string) []domain.Location { return f.loose[q] }
func (f *fakeIndex) Get(id string) (domain.Location, bool) {
	loc, ok := f.byID[id]
	return loc, ok
}

type fakeGeocoder struct {
	mu    sync.Mutex
	locs  []domain.Location
	err   error
	calls int
}

func (g *fakeGeocoder) Resolve(_ context.Context, _ string) ([]domain.Location, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.locs, g.err
}

// fakeRouter returns routes or err. When gate is set, Route blocks until the
// gate is closed and signals entered first.
type fakeRouter struct {
	mu      sync.Mutex
	routes  []domain.Route
	err     error
	gate    chan struct{}
	entered chan struct{}
	calls   int
	origin  domain.Coordinate
	dest    domain.Coordinate
}

func (r *fakeRouter) Route(ctx context.Context, origin, dest domain.Coordinate) ([]domain.Route, error) {
	r.mu.Lock()
	r.calls++
	r.origin, r.dest = origin, dest
	gate, entered := r.gate, r.entered
	r.mu.Unlock()
	if gate != nil {
		if entered != nil {
			close(entered)
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.routes, r.err
}

type fakePosition struct {
	mu   sync.Mutex
	pos  *domain.Coordinate
	auto bool
}

func (p *fakePosition) Current() (domain.Coordinate, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos == nil {
		return domain.Coordinate{}, false
	}
	return *p.pos, true
}

func (p *fakePosition) AutoCenter() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.auto
}

func (p *fakePosition) SetAutoCenter(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.auto = enabled
}

type recordingNarrator struct {
	mu     sync.Mutex
	spoken []domain.NavigationInstruction
	stops  int
	err    error
}

func (n *recordingNarrator) Speak(in domain.NavigationInstruction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.spoken = append(n.spoken, in)
	return nil
}

func (n *recordingNarrator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stops++
}

func (n *recordingNarrator) last() (domain.NavigationInstruction, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.spoken) == 0 {
		return domain.NavigationInstruction{}, 0
	}
	return n.spoken[len(n.spoken)-1], len(n.spoken)
}

type fakeMap struct {
	mu      sync.Mutex
	markers map[domain.MarkerRole]domain.Coordinate
	route   []domain.Coordinate
	shown   int
	views   int
	fits    int
	notices []domain.Notice
}

func newFakeMap() *fakeMap {
	return &fakeMap{markers: make(map[domain.MarkerRole]domain.Coordinate)}
}

func (m *fakeMap) SetView(domain.Coordinate, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views++
}

func (m *fakeMap) SetMarker(role domain.MarkerRole, at domain.Coordinate, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers[role] = at
}

func (m *fakeMap) RemoveMarker(role domain.MarkerRole) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.markers, role)
}

func (m *fakeMap) ShowRoute(path []domain.Coordinate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.route = path
	m.shown++
}

func (m *fakeMap) ClearRoute() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.route = nil
}

func (m *fakeMap) FitBounds(_, _ domain.Coordinate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fits++
}

func (m *fakeMap) Notify(n domain.Notice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, n)
}

func (m *fakeMap) routeShown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.route != nil
}

func (m *fakeMap) lastNotice() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.notices) == 0 {
		return ""
	}
	return m.notices[len(m.notices)-1].Message
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.NavigationEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.NavigationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []domain.NavigationEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.NavigationEventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

func coord(lat, lng float64) *domain.Coordinate {
	return &domain.Coordinate{Lat: lat, Lng: lng}
}

// niagaraRoute is the route from the default position to Niagara Falls.
func niagaraRoute() domain.Route {
	return domain.Route{
		DistanceMeters:  6688.4,
		DurationSeconds: 540,
		Path: orb.LineString{
			{-79.1010, 43.0716},
			{-79.0980, 43.0716},
			{-79.0700, 43.0900},
			{-79.0377, 43.0962},
		},
		Instructions: []domain.RawInstruction{
			{Text: "Head east on Dorchester Road", Distance: 250.2, Time: 20, Type: "Head", Point: coord(43.0716, -79.1010)},
			{Text: "Turn right", Distance: 3219, Time: 240, Type: "Right", Point: coord(43.0716, -79.0980)},
			{Text: "Enter the roundabout and take the 2nd exit onto Stanley Avenue", Distance: 3219.2, Time: 280, Type: "Roundabout", Point: coord(43.0900, -79.0700)},
			{Text: "You have arrived at your destination", Distance: 0, Time: 0, Type: "DestinationReached", Point: coord(43.0962, -79.0377)},
		},
	}
}
