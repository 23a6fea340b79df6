package osrm

import (
	"fmt"
	"math"
	"strings"
)

// modifierTypes maps OSRM maneuver modifiers to routing-machine type names.
var modifierTypes = map[string]string{
	"uturn":        "TurnAround",
	"sharp right":  "SharpRight",
	"right":        "Right",
	"slight right": "SlightRight",
	"straight":     "Straight",
	"slight left":  "SlightLeft",
	"left":         "Left",
	"sharp left":   "SharpLeft",
}

var compass = []string{"north", "northeast", "east", "southeast", "south", "southwest", "west", "northwest"}

// describe renders an English instruction and its type name for a step.
func describe(s step) (text, typ string) {
	m := s.Maneuver
	road := roadName(s)
	onto := ""
	if road != "" {
		onto = " onto " + road
	}

	switch m.Type {
	case "depart":
		text = "Head " + heading(m.BearingAfter)
		if road != "" {
			text += " on " + road
		}
		return text, "Head"
	case "arrive":
		return "You have arrived at your destination", "DestinationReached"
	case "roundabout", "rotary":
		text = "Enter the roundabout"
		if m.Exit > 0 {
			text += fmt.Sprintf(" and take the %s exit", ordinal(m.Exit))
		}
		return text + onto, "Roundabout"
	case "exit roundabout", "exit rotary":
		return "Exit the roundabout" + onto, "Roundabout"
	case "fork":
		side := "right"
		if strings.Contains(m.Modifier, "left") {
			side = "left"
		}
		return "Keep " + side + onto, modifierType(m.Modifier)
	case "merge":
		return "Merge" + onto, modifierType(m.Modifier)
	case "on ramp", "off ramp":
		return "Take the ramp" + onto, modifierType(m.Modifier)
	case "new name", "continue":
		if m.Modifier == "" || m.Modifier == "straight" {
			return "Continue" + onto, "Continue"
		}
	}
	return turnPhrase(m.Modifier) + onto, modifierType(m.Modifier)
}

func turnPhrase(modifier string) string {
	switch modifier {
	case "uturn":
		return "Make a U-turn"
	case "straight", "":
		return "Continue straight"
	default:
		return "Turn " + modifier
	}
}

func modifierType(modifier string) string {
	if t, ok := modifierTypes[modifier]; ok {
		return t
	}
	return "Straight"
}

func roadName(s step) string {
	switch {
	case s.Name != "" && s.Ref != "":
		return fmt.Sprintf("%s (%s)", s.Name, s.Ref)
	case s.Name != "":
		return s.Name
	default:
		return s.Ref
	}
}

func heading(bearing float64) string {
	b := math.Mod(bearing, 360)
	if b < 0 {
		b += 360
	}
	return compass[int(math.Round(b/45))%len(compass)]
}

func ordinal(n int) string {
	switch {
	case n%100 >= 11 && n%100 <= 13:
		return fmt.Sprintf("%dth", n)
	case n%10 == 1:
		return fmt.Sprintf("%dst", n)
	case n%10 == 2:
		return fmt.Sprintf("%dnd", n)
	case n%10 == 3:
		return fmt.Sprintf("%drd", n)
	default:
		return fmt.Sprintf("%dth", n)
	}
}
