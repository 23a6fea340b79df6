package domain

import (
	"strings"

	"github.com/paulmach/orb"
)

// ManeuverType classifies a turn-by-turn instruction.
type ManeuverType string

const (
	ManeuverStraight        ManeuverType = "Straight"
	ManeuverSlightRight     ManeuverType = "SlightRight"
	ManeuverRight           ManeuverType = "Right"
	ManeuverSharpRight      ManeuverType = "SharpRight"
	ManeuverSlightLeft      ManeuverType = "SlightLeft"
	ManeuverLeft            ManeuverType = "Left"
	ManeuverSharpLeft       ManeuverType = "SharpLeft"
	ManeuverRoundabout      ManeuverType = "Roundabout"
	ManeuverWaypointReached ManeuverType = "WaypointReached"
	ManeuverOther           ManeuverType = "Other"
)

// maneuverAliases maps lower-cased routing-machine type names onto the closed set.
var maneuverAliases = map[string]ManeuverType{
	"straight":           ManeuverStraight,
	"head":               ManeuverStraight,
	"continue":           ManeuverStraight,
	"slightright":        ManeuverSlightRight,
	"right":              ManeuverRight,
	"sharpright":         ManeuverSharpRight,
	"slightleft":         ManeuverSlightLeft,
	"left":               ManeuverLeft,
	"sharpleft":          ManeuverSharpLeft,
	"roundabout":         ManeuverRoundabout,
	"rotary":             ManeuverRoundabout,
	"waypointreached":    ManeuverWaypointReached,
	"destinationreached": ManeuverWaypointReached,
	"other":              ManeuverOther,
}

// ParseManeuverType maps a routing-machine type name to a ManeuverType.
// Unknown names yield ManeuverOther.
func ParseManeuverType(s string) ManeuverType {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	if t, ok := maneuverAliases[key]; ok {
		return t
	}
	return ManeuverOther
}

// RawInstruction is one step as reported by the routing service, before
// unit conversion and translation.
type RawInstruction struct {
	Text     string      `json:"text"`
	Distance float64     `json:"distance"` // meters, unless the source misreports miles
	Time     float64     `json:"time"`     // seconds
	Type     string      `json:"type"`
	Point    *Coordinate `json:"point,omitempty"` // maneuver location
}

// NavigationInstruction is a normalized, indexed instruction ready for
// display and narration.
type NavigationInstruction struct {
	Text            string       `json:"text"`
	Summary         string       `json:"summary"`
	DistanceMeters  float64      `json:"distanceMeters"`
	DurationSeconds float64      `json:"durationSeconds"`
	ManeuverType    ManeuverType `json:"maneuverType"`
	SequenceIndex   int          `json:"sequenceIndex"`
	Point           *Coordinate  `json:"point,omitempty"`
}

// Raw converts a normalized instruction back into routing-service form.
func (n NavigationInstruction) Raw() RawInstruction {
	return RawInstruction{
		Text:     n.Text,
		Distance: n.DistanceMeters,
		Time:     n.DurationSeconds,
		Type:     string(n.ManeuverType),
		Point:    n.Point,
	}
}

// Route is one candidate returned by a routing service.
type Route struct {
	Instructions    []RawInstruction
	Path            orb.LineString
	DistanceMeters  float64
	DurationSeconds float64
}
