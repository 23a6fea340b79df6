package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/couchcryptid/cad-navigation-service/internal/observability"
)

// ErrSuperseded is returned by Go when the destination changed or navigation
// was stopped while the route was being computed.
var ErrSuperseded = errors.New("route request superseded")

// User-visible notices.
const (
	NoticeNoResults     = "Aucun résultat"
	NoticeNoDestination = "Aucune destination sélectionnée"
	NoticeNoPosition    = "Position actuelle inconnue"
	NoticeRouteFailed   = "Impossible de calculer l'itinéraire"
)

const publishTimeout = 5 * time.Second

// Positioner is the operator position as maintained by the tracker.
type Positioner interface {
	Current() (domain.Coordinate, bool)
	AutoCenter() bool
	SetAutoCenter(enabled bool)
}

// Narrator speaks instructions with last-call-wins semantics.
type Narrator interface {
	Speak(in domain.NavigationInstruction) error
	Stop()
}

// Options tunes a Controller.
type Options struct {
	// ProximityMeters is the radius around the next maneuver point that
	// advances the cursor.
	ProximityMeters float64
	// Zoom is used when centering on a destination with no known position.
	Zoom int
}

// Snapshot is the observable navigation state.
type Snapshot struct {
	Phase       Phase                         `json:"phase"`
	Destination *domain.Location              `json:"destination,omitempty"`
	Position    *domain.Coordinate            `json:"position,omitempty"`
	AutoCenter  bool                          `json:"autoCenter"`
	Session     Session                       `json:"session"`
	Current     *domain.NavigationInstruction `json:"current,omitempty"`
}

// Controller drives the navigation lifecycle:
//
//	NoDestination -> DestinationSelected -> Navigating -> DestinationSelected
//
// Selecting a destination always lands in DestinationSelected and discards
// any route, session and narration. Mutations are serialized; route
// computation runs outside the lock and its result is dropped if the state
// moved on in the meantime.
type Controller struct {
	mu sync.Mutex

	state     *State
	resolver  *Resolver
	engine    *RouteEngine
	position  Positioner
	narrator  Narrator
	view      domain.MapView
	publisher domain.EventPublisher
	opts      Options
	metrics   *observability.Metrics
	logger    *slog.Logger

	listenerMu sync.RWMutex
	onChange   func(Snapshot)
}

// Deps groups the Controller's collaborators. Publisher may be nil.
type Deps struct {
	State     *State
	Resolver  *Resolver
	Engine    *RouteEngine
	Position  Positioner
	Narrator  Narrator
	View      domain.MapView
	Publisher domain.EventPublisher
}

// NewController creates a Controller.
func NewController(deps Deps, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Controller {
	if deps.State == nil {
		deps.State = NewState()
	}
	return &Controller{
		state:     deps.State,
		resolver:  deps.Resolver,
		engine:    deps.Engine,
		position:  deps.Position,
		narrator:  deps.Narrator,
		view:      deps.View,
		publisher: deps.Publisher,
		opts:      opts,
		metrics:   metrics,
		logger:    logger.With("component", "controller"),
	}
}

// OnChange registers fn to receive a snapshot after every state change.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.onChange = fn
}

// Search resolves free text to candidate destinations.
func (c *Controller) Search(ctx context.Context, query string) ([]domain.Location, error) {
	locs, err := c.resolver.Resolve(ctx, query)
	if errors.Is(err, domain.ErrNoMatch) {
		c.view.Notify(domain.Notice{Level: domain.NoticeWarning, Message: NoticeNoResults})
	}
	return locs, err
}

// SelectByID selects a gazetteer location as the destination.
func (c *Controller) SelectByID(ctx context.Context, id string) (domain.Location, error) {
	loc, err := c.resolver.Lookup(id)
	if err != nil {
		return domain.Location{}, err
	}
	return c.SelectDestination(ctx, loc)
}

// SelectDestination makes loc the destination, tearing down any route,
// session and narration first.
func (c *Controller) SelectDestination(ctx context.Context, loc domain.Location) (domain.Location, error) {
	at := loc.Coordinate()
	if !at.Valid() {
		return domain.Location{}, fmt.Errorf("%w: invalid coordinate %v", domain.ErrNoMatch, at)
	}
	if loc.Name == "" {
		loc.Name = fmt.Sprintf("%.5f, %.5f", loc.Lat, loc.Lng)
	}

	c.mu.Lock()
	c.teardown()
	c.state.SelectDestination(loc)
	c.view.SetMarker(domain.MarkerDestination, at, loc.Name)
	if pos, ok := c.position.Current(); ok {
		c.view.FitBounds(pos, at)
	} else {
		c.view.SetView(at, c.opts.Zoom)
	}
	c.mu.Unlock()

	c.logger.Info("destination selected", "destination_id", loc.ID, "name", loc.Name)
	ev := domain.NewNavigationEvent(domain.EventDestinationSelected)
	ev.Destination = &loc
	c.publish(ctx, ev)
	c.changed()
	return loc, nil
}

// ClearDestination returns to NoDestination.
func (c *Controller) ClearDestination(ctx context.Context) {
	c.mu.Lock()
	c.teardown()
	c.state.ClearDestination()
	c.view.RemoveMarker(domain.MarkerDestination)
	c.mu.Unlock()

	c.publish(ctx, domain.NewNavigationEvent(domain.EventDestinationCleared))
	c.changed()
}

// Go computes a route from the current position to the destination and
// starts a session on the first instruction, which is spoken immediately.
func (c *Controller) Go(ctx context.Context) (Session, error) {
	c.mu.Lock()
	dest, ok := c.state.Destination()
	if !ok {
		c.mu.Unlock()
		c.view.Notify(domain.Notice{Level: domain.NoticeWarning, Message: NoticeNoDestination})
		return Session{}, domain.ErrNoDestination
	}
	origin, ok := c.position.Current()
	if !ok {
		c.mu.Unlock()
		c.view.Notify(domain.Notice{Level: domain.NoticeWarning, Message: NoticeNoPosition})
		return Session{}, domain.ErrPositionUnavailable
	}
	c.teardown()
	gen := c.state.BeginRoute()
	c.mu.Unlock()

	route, err := c.engine.Compute(ctx, origin, dest.Coordinate())

	c.mu.Lock()
	if c.state.Generation() != gen {
		c.mu.Unlock()
		c.metrics.RouteRequests.WithLabelValues("stale").Inc()
		c.logger.Info("dropping stale route result", "destination_id", dest.ID)
		return Session{}, ErrSuperseded
	}
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("route computation failed", "destination_id", dest.ID, "error", err)
		c.view.Notify(domain.Notice{Level: domain.NoticeError, Message: NoticeRouteFailed})
		ev := domain.NewNavigationEvent(domain.EventRouteFailed)
		ev.Destination = &dest
		ev.Origin = &origin
		ev.Reason = err.Error()
		c.publish(ctx, ev)
		c.changed()
		return Session{}, err
	}
	if !c.state.StartSession(gen, route) {
		c.mu.Unlock()
		return Session{}, fmt.Errorf("%w: empty instruction list", domain.ErrRouteFailure)
	}
	c.view.ShowRoute(route.Path)
	c.view.FitBounds(origin, dest.Coordinate())
	c.metrics.NavigationActive.Set(1)
	c.speak(route.Instructions[0])
	session := c.state.Session()
	c.mu.Unlock()

	c.logger.Info("navigation started",
		"destination_id", dest.ID,
		"instructions", len(route.Instructions),
		"distance_m", route.DistanceMeters,
	)
	ev := domain.NewNavigationEvent(domain.EventRoutesFound)
	ev.Destination = &dest
	ev.Origin = &origin
	ev.Instructions = len(route.Instructions)
	ev.DistanceMeters = route.DistanceMeters
	ev.DurationSeconds = route.DurationSeconds
	c.publish(ctx, ev)
	c.changed()
	return session, nil
}

// Stop ends navigation, keeping the destination selected. Any route
// computation still in flight is discarded when it completes.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	c.narrator.Stop()
	c.view.ClearRoute()
	wasActive := c.state.StopSession()
	c.metrics.NavigationActive.Set(0)
	dest, _ := c.state.Destination()
	c.mu.Unlock()

	if !wasActive {
		return
	}
	ev := domain.NewNavigationEvent(domain.EventNavigationStopped)
	ev.Destination = &dest
	c.publish(ctx, ev)
	c.changed()
}

// Next advances to and speaks the next instruction. At the last
// instruction the cursor stays put and nothing is spoken.
func (c *Controller) Next(ctx context.Context) (domain.NavigationInstruction, error) {
	c.mu.Lock()
	in, advanced, err := c.state.Advance()
	if err != nil {
		c.mu.Unlock()
		return domain.NavigationInstruction{}, err
	}
	if advanced {
		c.speak(in)
	}
	c.mu.Unlock()

	if advanced {
		c.advanced(ctx, in)
	}
	return in, nil
}

// Repeat speaks the current instruction again.
func (c *Controller) Repeat() (domain.NavigationInstruction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	in, err := c.state.Current()
	if err != nil {
		return domain.NavigationInstruction{}, err
	}
	c.speak(in)
	return in, nil
}

// OnPosition advances the cursor when pos reaches the next maneuver. It is
// meant to be subscribed to the position tracker.
func (c *Controller) OnPosition(pos domain.Coordinate) {
	c.mu.Lock()
	in, ok := c.state.AdvanceIfNear(pos, c.opts.ProximityMeters)
	if ok {
		c.speak(in)
	}
	c.mu.Unlock()

	if ok {
		c.logger.Debug("instruction reached", "sequence_index", in.SequenceIndex)
		c.advanced(context.Background(), in)
	}
}

// SetAutoCenter toggles camera recentering on position updates.
func (c *Controller) SetAutoCenter(enabled bool) {
	c.position.SetAutoCenter(enabled)
	c.changed()
}

// Snapshot returns the current navigation state.
func (c *Controller) Snapshot() Snapshot {
	snap := Snapshot{
		Phase:      c.state.Phase(),
		AutoCenter: c.position.AutoCenter(),
		Session:    c.state.Session(),
	}
	if dest, ok := c.state.Destination(); ok {
		snap.Destination = &dest
	}
	if pos, ok := c.position.Current(); ok {
		snap.Position = &pos
	}
	if in, ok := snap.Session.Current(); ok {
		snap.Current = &in
	}
	return snap
}

// teardown cancels narration and removes the route overlay. Callers hold mu.
func (c *Controller) teardown() {
	c.narrator.Stop()
	c.view.ClearRoute()
	c.metrics.NavigationActive.Set(0)
}

func (c *Controller) speak(in domain.NavigationInstruction) {
	if err := c.narrator.Speak(in); err != nil {
		c.logger.Debug("narration skipped", "sequence_index", in.SequenceIndex, "error", err)
	}
}

func (c *Controller) advanced(ctx context.Context, in domain.NavigationInstruction) {
	session := c.state.Session()
	ev := domain.NewNavigationEvent(domain.EventInstructionAdvanced)
	ev.Cursor = in.SequenceIndex
	ev.Instructions = len(session.Instructions)
	c.publish(ctx, ev)
	c.changed()
}

func (c *Controller) publish(ctx context.Context, ev domain.NavigationEvent) {
	if c.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := c.publisher.Publish(ctx, ev); err != nil {
		c.logger.Warn("publishing navigation event", "event_type", ev.Type, "error", err)
	}
}

func (c *Controller) changed() {
	c.listenerMu.RLock()
	fn := c.onChange
	c.listenerMu.RUnlock()
	if fn != nil {
		fn(c.Snapshot())
	}
}
