package domain

import "errors"

var (
	// ErrNoMatch means a search produced no usable location.
	ErrNoMatch = errors.New("no matching location")

	// ErrGeocodeFailure covers transport, status and decoding failures of the geocoding service.
	ErrGeocodeFailure = errors.New("geocoding failed")

	// ErrRouteFailure covers routing service errors and empty route sets.
	ErrRouteFailure = errors.New("route computation failed")

	// ErrPositionUnavailable means the live position source was denied, timed out or is stale.
	ErrPositionUnavailable = errors.New("position unavailable")

	// ErrSpeechUnavailable means no speech output is configured.
	ErrSpeechUnavailable = errors.New("speech output unavailable")

	// ErrNoDestination is returned when navigation starts without a selected destination.
	ErrNoDestination = errors.New("no destination selected")

	// ErrNoSession is returned by cursor operations when no navigation session is active.
	ErrNoSession = errors.New("no active navigation session")
)
