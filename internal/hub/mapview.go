package hub

import (
	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/paulmach/orb"
)

// Marker is a labelled map marker.
type Marker struct {
	Role  domain.MarkerRole `json:"role"`
	At    domain.Coordinate `json:"at"`
	Label string            `json:"label,omitempty"`
}

// View is a camera position.
type View struct {
	Center domain.Coordinate `json:"center"`
	Zoom   int               `json:"zoom"`
}

// Bounds is a south-west / north-east rectangle.
type Bounds struct {
	SouthWest domain.Coordinate `json:"southWest"`
	NorthEast domain.Coordinate `json:"northEast"`
}

// Scene is the map state replayed to clients when they connect.
type Scene struct {
	View    *View                        `json:"view,omitempty"`
	Markers map[domain.MarkerRole]Marker `json:"markers"`
	Route   []domain.Coordinate          `json:"route,omitempty"`
	Bounds  *Bounds                      `json:"bounds,omitempty"`
}

func newScene() Scene {
	return Scene{Markers: make(map[domain.MarkerRole]Marker)}
}

// Scene returns a copy of the current map state.
func (h *Hub) Scene() Scene {
	h.sceneMu.Lock()
	defer h.sceneMu.Unlock()

	out := Scene{
		Markers: make(map[domain.MarkerRole]Marker, len(h.scene.Markers)),
		Route:   append([]domain.Coordinate(nil), h.scene.Route...),
	}
	for k, v := range h.scene.Markers {
		out.Markers[k] = v
	}
	if h.scene.View != nil {
		v := *h.scene.View
		out.View = &v
	}
	if h.scene.Bounds != nil {
		b := *h.scene.Bounds
		out.Bounds = &b
	}
	return out
}

// SetView moves the camera.
func (h *Hub) SetView(center domain.Coordinate, zoom int) {
	v := View{Center: center, Zoom: zoom}
	h.sceneMu.Lock()
	h.scene.View = &v
	h.sceneMu.Unlock()
	h.Broadcast(TypeView, v)
}

// SetMarker creates or moves the marker for role.
func (h *Hub) SetMarker(role domain.MarkerRole, at domain.Coordinate, label string) {
	m := Marker{Role: role, At: at, Label: label}
	h.sceneMu.Lock()
	h.scene.Markers[role] = m
	h.sceneMu.Unlock()
	h.Broadcast(TypeMarker, m)
}

// RemoveMarker deletes the marker for role.
func (h *Hub) RemoveMarker(role domain.MarkerRole) {
	h.sceneMu.Lock()
	delete(h.scene.Markers, role)
	h.sceneMu.Unlock()
	h.Broadcast(TypeMarkerRemove, map[string]domain.MarkerRole{"role": role})
}

// ShowRoute replaces the route polyline.
func (h *Hub) ShowRoute(path []domain.Coordinate) {
	route := append([]domain.Coordinate(nil), path...)
	h.sceneMu.Lock()
	h.scene.Route = route
	h.sceneMu.Unlock()
	h.Broadcast(TypeRoute, map[string][]domain.Coordinate{"path": route})
}

// ClearRoute removes the route polyline.
func (h *Hub) ClearRoute() {
	h.sceneMu.Lock()
	h.scene.Route = nil
	h.scene.Bounds = nil
	h.sceneMu.Unlock()
	h.Broadcast(TypeRouteClear, nil)
}

// FitBounds frames the rectangle spanned by a and b.
func (h *Hub) FitBounds(a, b domain.Coordinate) {
	bound := orb.MultiPoint{a.Point(), b.Point()}.Bound()
	bounds := Bounds{
		SouthWest: domain.CoordinateFromPoint(bound.Min),
		NorthEast: domain.CoordinateFromPoint(bound.Max),
	}
	h.sceneMu.Lock()
	h.scene.Bounds = &bounds
	h.sceneMu.Unlock()
	h.Broadcast(TypeFitBounds, bounds)
}

// Notify shows a notice on every client.
func (h *Hub) Notify(n domain.Notice) {
	h.Broadcast(TypeNotice, n)
}
