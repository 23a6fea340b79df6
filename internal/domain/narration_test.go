package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUtteranceText(t *testing.T) {
	tests := []struct {
		name     string
		in       NavigationInstruction
		expected string
	}{
		{
			name:     "right",
			in:       NavigationInstruction{Text: "Tournez à droite", DistanceMeters: 3219, ManeuverType: ManeuverRight},
			expected: "Dans 3.2 kilomètres, tournez à droite",
		},
		{
			name:     "straight",
			in:       NavigationInstruction{Text: "Continuez", DistanceMeters: 12050, ManeuverType: ManeuverStraight},
			expected: "Continuez tout droit sur 12.1 kilomètres",
		},
		{
			name:     "roundabout short distance",
			in:       NavigationInstruction{DistanceMeters: 40, ManeuverType: ManeuverRoundabout},
			expected: "Dans 0.0 kilomètres, prenez le rond-point",
		},
		{
			name:     "arrival ignores distance",
			in:       NavigationInstruction{Text: "whatever", DistanceMeters: 500, ManeuverType: ManeuverWaypointReached},
			expected: ArrivalPhrase,
		},
		{
			name:     "other falls back to text",
			in:       NavigationInstruction{Text: "Faites demi-tour", DistanceMeters: 800, ManeuverType: ManeuverOther},
			expected: "Faites demi-tour dans 0.8 kilomètres",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, UtteranceText(tt.in))
		})
	}
}

func TestNarrationTemplate_EveryDirectionalType(t *testing.T) {
	for _, mt := range []ManeuverType{
		ManeuverStraight, ManeuverSlightRight, ManeuverRight, ManeuverSharpRight,
		ManeuverSlightLeft, ManeuverLeft, ManeuverSharpLeft, ManeuverRoundabout,
	} {
		tpl, ok := NarrationTemplate(mt)
		assert.True(t, ok, "missing template for %s", mt)
		assert.Contains(t, fmt.Sprintf(tpl, "1.0"), "1.0 kilomètres")
	}

	_, ok := NarrationTemplate(ManeuverWaypointReached)
	assert.False(t, ok)
	_, ok = NarrationTemplate(ManeuverOther)
	assert.False(t, ok)
}
