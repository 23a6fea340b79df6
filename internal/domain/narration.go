package domain

import (
	"fmt"
	"strconv"
)

// ArrivalPhrase is spoken for WaypointReached instructions.
const ArrivalPhrase = "Vous êtes arrivé à destination"

// narrationTemplates take the distance in kilomètres, already formatted with one decimal.
var narrationTemplates = map[ManeuverType]string{
	ManeuverStraight:    "Continuez tout droit sur %s kilomètres",
	ManeuverSlightRight: "Dans %s kilomètres, tournez légèrement à droite",
	ManeuverRight:       "Dans %s kilomètres, tournez à droite",
	ManeuverSharpRight:  "Dans %s kilomètres, tournez fortement à droite",
	ManeuverSlightLeft:  "Dans %s kilomètres, tournez légèrement à gauche",
	ManeuverLeft:        "Dans %s kilomètres, tournez à gauche",
	ManeuverSharpLeft:   "Dans %s kilomètres, tournez fortement à gauche",
	ManeuverRoundabout:  "Dans %s kilomètres, prenez le rond-point",
}

// NarrationTemplate returns the template for t, if one exists.
func NarrationTemplate(t ManeuverType) (string, bool) {
	tpl, ok := narrationTemplates[t]
	return tpl, ok
}

// UtteranceText builds the sentence spoken for an instruction.
func UtteranceText(in NavigationInstruction) string {
	if in.ManeuverType == ManeuverWaypointReached {
		return ArrivalPhrase
	}

	km := strconv.FormatFloat(RoundKilometers(in.DistanceMeters), 'f', 1, 64)
	if tpl, ok := narrationTemplates[in.ManeuverType]; ok {
		return fmt.Sprintf(tpl, km)
	}
	return in.Text + " dans " + km + " kilomètres"
}
