// Package navigation holds the navigation session lifecycle: destination
// resolution, route computation and the instruction cursor.
package navigation

import (
	"sync"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
)

// Phase is the lifecycle state of the navigation panel.
type Phase string

const (
	PhaseNoDestination       Phase = "no_destination"
	PhaseDestinationSelected Phase = "destination_selected"
	PhaseNavigating          Phase = "navigating"
)

// Session is a copy of the live turn-by-turn state.
type Session struct {
	Instructions    []domain.NavigationInstruction `json:"instructions"`
	Cursor          int                            `json:"cursor"`
	Active          bool                           `json:"active"`
	Path            []domain.Coordinate            `json:"-"`
	DistanceMeters  float64                        `json:"distanceMeters"`
	DurationSeconds float64                        `json:"durationSeconds"`
}

// Current returns the instruction under the cursor.
func (s Session) Current() (domain.NavigationInstruction, bool) {
	if !s.Active || s.Cursor >= len(s.Instructions) {
		return domain.NavigationInstruction{}, false
	}
	return s.Instructions[s.Cursor], true
}

// State is the shared navigation state handle. Every mutation that
// invalidates in-flight work bumps the generation; work started under an
// older generation must not be applied.
type State struct {
	mu          sync.RWMutex
	destination *domain.Location
	session     Session
	gen         uint64
}

// NewState returns an empty state in PhaseNoDestination.
func NewState() *State {
	return &State{session: emptySession()}
}

func emptySession() Session {
	return Session{Instructions: []domain.NavigationInstruction{}}
}

// Phase reports the current lifecycle phase.
func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase()
}

func (s *State) phase() Phase {
	switch {
	case s.destination == nil:
		return PhaseNoDestination
	case s.session.Active:
		return PhaseNavigating
	default:
		return PhaseDestinationSelected
	}
}

// Destination returns the selected destination.
func (s *State) Destination() (domain.Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destination == nil {
		return domain.Location{}, false
	}
	return *s.destination, true
}

// Session returns a copy of the session.
func (s *State) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySession(s.session)
}

// Generation returns the current generation.
func (s *State) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// SelectDestination replaces the destination and discards any session.
func (s *State) SelectDestination(loc domain.Location) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destination = &loc
	return s.reset()
}

// ClearDestination returns to PhaseNoDestination.
func (s *State) ClearDestination() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destination = nil
	return s.reset()
}

// BeginRoute discards any session ahead of a new route request and returns
// the generation the result must be applied under.
func (s *State) BeginRoute() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reset()
}

// StopSession discards the session, keeping the destination. It reports
// whether a session was active.
func (s *State) StopSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasActive := s.session.Active
	s.reset()
	return wasActive
}

func (s *State) reset() uint64 {
	s.session = emptySession()
	s.gen++
	return s.gen
}

// StartSession installs a computed route when gen is still current. A
// route with no instructions is not started.
func (s *State) StartSession(gen uint64, r PlannedRoute) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.destination == nil || len(r.Instructions) == 0 {
		return false
	}
	s.session = Session{
		Instructions:    append([]domain.NavigationInstruction(nil), r.Instructions...),
		Cursor:          0,
		Active:          true,
		Path:            append([]domain.Coordinate(nil), r.Path...),
		DistanceMeters:  r.DistanceMeters,
		DurationSeconds: r.DurationSeconds,
	}
	return true
}

// Current returns the instruction under the cursor.
func (s *State) Current() (domain.NavigationInstruction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.session.Current()
	if !ok {
		return domain.NavigationInstruction{}, domain.ErrNoSession
	}
	return in, nil
}

// Advance moves the cursor forward by one. At the last instruction the
// cursor stays put and advanced is false.
func (s *State) Advance() (in domain.NavigationInstruction, advanced bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.session.Active {
		return domain.NavigationInstruction{}, false, domain.ErrNoSession
	}
	if s.session.Cursor+1 >= len(s.session.Instructions) {
		return s.session.Instructions[s.session.Cursor], false, nil
	}
	s.session.Cursor++
	return s.session.Instructions[s.session.Cursor], true, nil
}

// AdvanceIfNear advances the cursor when pos lies within radius meters of
// the next instruction's maneuver point.
func (s *State) AdvanceIfNear(pos domain.Coordinate, radius float64) (domain.NavigationInstruction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.session.Active || s.session.Cursor+1 >= len(s.session.Instructions) {
		return domain.NavigationInstruction{}, false
	}
	next := s.session.Instructions[s.session.Cursor+1]
	if next.Point == nil || pos.DistanceTo(*next.Point) > radius {
		return domain.NavigationInstruction{}, false
	}
	s.session.Cursor++
	return next, true
}

func copySession(s Session) Session {
	s.Instructions = append([]domain.NavigationInstruction{}, s.Instructions...)
	s.Path = append([]domain.Coordinate(nil), s.Path...)
	return s
}
