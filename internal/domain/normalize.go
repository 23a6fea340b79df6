package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	kmPerMile     = 1.60934
	metersPerFoot = 0.3048
	metersPerYard = 0.9144

	// Routing sources occasionally report step distances in miles. A value
	// under suspectDistance on a route longer than minRouteForSuspect is
	// rescaled by metersPerSuspectMile.
	suspectDistance      = 100
	minRouteForSuspect   = 1000
	metersPerSuspectMile = 1609
)

var (
	// imperialRe matches "<number> <imperial unit>", e.g. "2 miles", "500 ft", "0.5 mi".
	imperialRe = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(miles|mile|mi|feet|foot|ft|yards|yard|yds|yd)\b`)

	// metricRe detects a distance already expressed in the target locale.
	metricRe = regexp.MustCompile(`\d+(?:\.\d+)?\s*(?:kilomètres|mètres)`)
)

// phrase is one entry of the English to French maneuver table.
type phrase struct {
	from string
	to   string
}

// phraseTable is applied in order; longer phrases precede their prefixes.
var phraseTable = []phrase{
	{"You have arrived at your destination", "Vous êtes arrivé à destination"},
	{"You have arrived", "Vous êtes arrivé"},
	{"Destination reached", "Destination atteinte"},
	{"Waypoint reached", "Point de passage atteint"},
	{"Make a sharp right", "Tournez fortement à droite"},
	{"Make a sharp left", "Tournez fortement à gauche"},
	{"Turn sharp right", "Tournez fortement à droite"},
	{"Turn sharp left", "Tournez fortement à gauche"},
	{"Turn slight right", "Tournez légèrement à droite"},
	{"Turn slight left", "Tournez légèrement à gauche"},
	{"Slight right", "Légèrement à droite"},
	{"Slight left", "Légèrement à gauche"},
	{"Turn right", "Tournez à droite"},
	{"Turn left", "Tournez à gauche"},
	{"Keep right", "Restez à droite"},
	{"Keep left", "Restez à gauche"},
	{"Make a U-turn", "Faites demi-tour"},
	{"Continue straight", "Continuez tout droit"},
	{"Go straight", "Continuez tout droit"},
	{"Continue", "Continuez"},
	{"Head northeast", "Dirigez-vous vers le nord-est"},
	{"Head northwest", "Dirigez-vous vers le nord-ouest"},
	{"Head southeast", "Dirigez-vous vers le sud-est"},
	{"Head southwest", "Dirigez-vous vers le sud-ouest"},
	{"Head north", "Dirigez-vous vers le nord"},
	{"Head south", "Dirigez-vous vers le sud"},
	{"Head east", "Dirigez-vous vers l'est"},
	{"Head west", "Dirigez-vous vers l'ouest"},
	{"Enter the roundabout", "Entrez dans le rond-point"},
	{"Exit the roundabout", "Sortez du rond-point"},
	{"and take the 1st exit", "et prenez la 1re sortie"},
	{"and take the 2nd exit", "et prenez la 2e sortie"},
	{"and take the 3rd exit", "et prenez la 3e sortie"},
	{"and take the 4th exit", "et prenez la 4e sortie"},
	{"and take the 5th exit", "et prenez la 5e sortie"},
	{"Take the ramp", "Prenez la bretelle"},
	{"Merge", "Insérez-vous"},
	{"onto", "sur"},
	{"on", "sur"},
}

// nonWord matches a character outside any word. \b only knows ASCII, so an
// accented letter would otherwise end a word.
const nonWord = `[^\p{L}\p{N}_]`

type compiledPhrase struct {
	re *regexp.Regexp
	to string
}

var compiledPhrases = compilePhrases(phraseTable)

func compilePhrases(table []phrase) []compiledPhrase {
	out := make([]compiledPhrase, len(table))
	for i, p := range table {
		out[i] = compiledPhrase{
			re: regexp.MustCompile(`(?i)(^|` + nonWord + `)` + regexp.QuoteMeta(p.from) + `(` + nonWord + `|$)`),
			to: "${1}" + strings.ReplaceAll(p.to, "$", "$$") + "${2}",
		}
	}
	return out
}

// Normalize converts raw routing instructions into indexed French
// instructions with metric distances. totalMeters is the route length; when it
// is not positive the sum of the step distances is used.
func Normalize(raw []RawInstruction, totalMeters float64) []NavigationInstruction {
	if totalMeters <= 0 {
		for _, r := range raw {
			totalMeters += r.Distance
		}
	}

	out := make([]NavigationInstruction, len(raw))
	for i, r := range raw {
		text := Translate(ConvertUnits(r.Text))
		distance := plausibleDistance(r.Distance, totalMeters)
		out[i] = NavigationInstruction{
			Text:            text,
			Summary:         summarize(text, distance),
			DistanceMeters:  distance,
			DurationSeconds: r.Time,
			ManeuverType:    ParseManeuverType(r.Type),
			SequenceIndex:   i,
			Point:           r.Point,
		}
	}
	return out
}

// ConvertUnits rewrites miles, feet and yards found in text into kilomètres
// (one decimal) or mètres (nearest integer).
func ConvertUnits(text string) string {
	return imperialRe.ReplaceAllStringFunc(text, func(match string) string {
		sub := imperialRe.FindStringSubmatch(match)
		if len(sub) != 3 {
			return match
		}
		v, err := strconv.ParseFloat(sub[1], 64)
		if err != nil {
			return match
		}

		switch unit := strings.ToLower(sub[2]); unit {
		case "miles", "mile", "mi":
			return formatKilometers(v * kmPerMile)
		case "feet", "foot", "ft":
			return formatMeters(v * metersPerFoot)
		default:
			return formatMeters(v * metersPerYard)
		}
	})
}

// Translate applies the maneuver phrase table to text.
func Translate(text string) string {
	for _, p := range compiledPhrases {
		text = p.re.ReplaceAllString(text, p.to)
	}
	return text
}

// FormatDistance renders meters as "X.Y kilomètres" from 1 km upward and as
// "N mètres" below.
func FormatDistance(meters float64) string {
	if meters >= 1000 {
		return formatKilometers(meters / 1000)
	}
	return formatMeters(meters)
}

// RoundKilometers converts meters to kilometers rounded to one decimal.
func RoundKilometers(meters float64) float64 {
	return math.Round(meters/100) / 10
}

func plausibleDistance(distance, totalMeters float64) float64 {
	if distance < suspectDistance && totalMeters > minRouteForSuspect {
		return distance * metersPerSuspectMile
	}
	return distance
}

func summarize(text string, meters float64) string {
	if meters <= 0 || metricRe.MatchString(text) {
		return text
	}
	return text + " dans " + FormatDistance(meters)
}

func formatKilometers(km float64) string {
	return strconv.FormatFloat(math.Round(km*10)/10, 'f', 1, 64) + " kilomètres"
}

func formatMeters(m float64) string {
	return strconv.Itoa(int(math.Round(m))) + " mètres"
}
