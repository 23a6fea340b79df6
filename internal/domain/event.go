package domain

import (
	"time"

	"github.com/google/uuid"
)

// NavigationEventType names a navigation lifecycle transition.
type NavigationEventType string

const (
	EventDestinationSelected NavigationEventType = "destination_selected"
	EventDestinationCleared  NavigationEventType = "destination_cleared"
	EventRoutesFound         NavigationEventType = "routes_found"
	EventRouteFailed         NavigationEventType = "route_failed"
	EventNavigationStopped   NavigationEventType = "navigation_stopped"
	EventInstructionAdvanced NavigationEventType = "instruction_advanced"
)

// NavigationEvent is the record published for each lifecycle transition.
type NavigationEvent struct {
	ID              string              `json:"id"`
	Type            NavigationEventType `json:"type"`
	Destination     *Location           `json:"destination,omitempty"`
	Origin          *Coordinate         `json:"origin,omitempty"`
	Instructions    int                 `json:"instructions,omitempty"`
	Cursor          int                 `json:"cursor,omitempty"`
	DistanceMeters  float64             `json:"distance_meters,omitempty"`
	DurationSeconds float64             `json:"duration_seconds,omitempty"`
	Reason          string              `json:"reason,omitempty"`
	At              time.Time           `json:"at"`
}

// NewNavigationEvent stamps a fresh event with a random ID and the package clock.
func NewNavigationEvent(t NavigationEventType) NavigationEvent {
	return NavigationEvent{
		ID:   uuid.NewString(),
		Type: t,
		At:   clock.Now().UTC(),
	}
}
