package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
)

// Memory is an in-process Store. Nothing survives a restart.
type Memory struct {
	mu    sync.RWMutex
	clock clockwork.Clock

	accidents  []AccidentReport
	violations []ViolationReport
	wanted     []WantedPerson
	weather    map[string]Weather

	nextWeatherID int64
}

// NewMemory creates a Memory store seeded with the sample wanted persons and
// weather.
func NewMemory(clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	m := &Memory{clock: clock, weather: make(map[string]Weather)}
	ctx := context.Background()
	for _, p := range seedWantedPersons {
		_, _ = m.CreateWantedPerson(ctx, p)
	}
	for _, w := range seedWeather {
		_, _ = m.UpdateWeather(ctx, w)
	}
	return m
}

func (m *Memory) CreateAccidentReport(_ context.Context, r AccidentReport) (AccidentReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = int64(len(m.accidents) + 1)
	r.CreatedAt = m.clock.Now().UTC()
	r.Vehicles = append([]Vehicle{}, r.Vehicles...)
	m.accidents = append(m.accidents, r)
	return r, nil
}

func (m *Memory) ListAccidentReports(_ context.Context) ([]AccidentReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]AccidentReport{}, m.accidents...), nil
}

func (m *Memory) GetAccidentReport(_ context.Context, id int64) (AccidentReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id < 1 || id > int64(len(m.accidents)) {
		return AccidentReport{}, fmt.Errorf("%w: accident report %d", ErrNotFound, id)
	}
	return m.accidents[id-1], nil
}

func (m *Memory) CreateViolationReport(_ context.Context, r ViolationReport) (ViolationReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = int64(len(m.violations) + 1)
	r.CreatedAt = m.clock.Now().UTC()
	m.violations = append(m.violations, r)
	return r, nil
}

func (m *Memory) ListViolationReports(_ context.Context) ([]ViolationReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ViolationReport{}, m.violations...), nil
}

func (m *Memory) GetViolationReport(_ context.Context, id int64) (ViolationReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id < 1 || id > int64(len(m.violations)) {
		return ViolationReport{}, fmt.Errorf("%w: violation report %d", ErrNotFound, id)
	}
	return m.violations[id-1], nil
}

func (m *Memory) CreateWantedPerson(_ context.Context, p WantedPerson) (WantedPerson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.wanted {
		if existing.PersonID == p.PersonID {
			return WantedPerson{}, fmt.Errorf("%w: person %s", ErrDuplicate, p.PersonID)
		}
	}
	p.ID = int64(len(m.wanted) + 1)
	p.CreatedAt = m.clock.Now().UTC()
	m.wanted = append(m.wanted, p)
	return p, nil
}

func (m *Memory) ListWantedPersons(_ context.Context) ([]WantedPerson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]WantedPerson{}, m.wanted...), nil
}

func (m *Memory) GetWantedPerson(_ context.Context, id int64) (WantedPerson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id < 1 || id > int64(len(m.wanted)) {
		return WantedPerson{}, fmt.Errorf("%w: wanted person %d", ErrNotFound, id)
	}
	return m.wanted[id-1], nil
}

func (m *Memory) GetWantedPersonByPersonID(_ context.Context, personID string) (WantedPerson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.wanted {
		if p.PersonID == personID {
			return p, nil
		}
	}
	return WantedPerson{}, fmt.Errorf("%w: person %s", ErrNotFound, personID)
}

func (m *Memory) SearchWantedPersons(_ context.Context, query string) ([]WantedPerson, error) {
	q := strings.ToLower(query)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []WantedPerson{}
	for _, p := range m.wanted {
		if matchesWanted(p, q) {
			out = append(out, p)
		}
	}
	return out, nil
}

func matchesWanted(p WantedPerson, q string) bool {
	for _, f := range []string{p.Name, p.PersonID, p.Warrants, p.LastLocation} {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func (m *Memory) GetWeather(_ context.Context, location string) (Weather, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.weather[location]
	if !ok {
		return Weather{}, fmt.Errorf("%w: weather for %q", ErrNotFound, location)
	}
	return w, nil
}

func (m *Memory) UpdateWeather(_ context.Context, w Weather) (Weather, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.weather[w.Location]; ok {
		w.ID = existing.ID
	} else {
		m.nextWeatherID++
		w.ID = m.nextWeatherID
	}
	w.UpdatedAt = m.clock.Now().UTC()
	m.weather[w.Location] = w
	return w, nil
}

func (m *Memory) Ping(_ context.Context) error { return nil }

func (m *Memory) Close() {}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)
