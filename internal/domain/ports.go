package domain

import (
	"context"
	"time"
)

// Geocoder resolves free text to candidate locations through a remote service.
type Geocoder interface {
	// Resolve returns candidates inside the operating region, most relevant first.
	// An empty result after region filtering is reported as ErrNoMatch.
	Resolve(ctx context.Context, text string) ([]Location, error)
}

// Router computes driving routes between two waypoints.
type Router interface {
	// Route returns one or more candidate routes, best first.
	Route(ctx context.Context, origin, destination Coordinate) ([]Route, error)
}

// PositionSource reports the operator's live position.
type PositionSource interface {
	// CurrentPosition returns a reading no older than maxAge, or ErrPositionUnavailable.
	CurrentPosition(ctx context.Context, maxAge time.Duration) (Coordinate, error)
}

// Utterance is a single piece of synthesized speech.
type Utterance struct {
	Text   string `json:"text"`
	Locale string `json:"locale"`
	Voice  string `json:"voice,omitempty"`
}

// Voice describes a synthesis voice offered by a Speaker.
type Voice struct {
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Default bool   `json:"default,omitempty"`
}

// Speaker is the speech-output collaborator.
type Speaker interface {
	// Speak blocks until the utterance completes or ctx is cancelled.
	Speak(ctx context.Context, u Utterance) error
	Voices() []Voice
}

// MarkerRole keys the markers the core manages on the map.
type MarkerRole string

const (
	MarkerUser        MarkerRole = "user"
	MarkerDestination MarkerRole = "destination"
)

// NoticeLevel is the severity of a user-visible notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-visible message.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// MapView is the map-rendering collaborator. The core only issues commands;
// it never renders geometry itself.
type MapView interface {
	SetView(center Coordinate, zoom int)
	SetMarker(role MarkerRole, at Coordinate, label string)
	RemoveMarker(role MarkerRole)
	ShowRoute(path []Coordinate)
	ClearRoute()
	FitBounds(a, b Coordinate)
	Notify(n Notice)
}

// EventPublisher records navigation lifecycle events for other dispatch systems.
type EventPublisher interface {
	Publish(ctx context.Context, event NavigationEvent) error
}
