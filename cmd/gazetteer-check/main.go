// Command gazetteer-check validates a gazetteer YAML file before it is
// deployed with GAZETTEER_FILE. It runs four phases and prints a PASS/FAIL
// summary followed by the detailed errors of every failing phase:
//
//   - schema: coordinates in range, name and address present
//   - uniqueness: ids and folded names are unique
//   - region bounds: every entry lies inside the operating bounding box
//   - searchability: every entry is found by its own name and aliases
//
// Usage:
//
//	go run ./cmd/gazetteer-check                      # embedded gazetteer
//	go run ./cmd/gazetteer-check -file places.yaml \
//	  -bounds 42.8,-79.7,43.75,-78.85
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/couchcryptid/cad-navigation-service/internal/gazetteer"
	"github.com/paulmach/orb"
)

// niagaraBounds covers the Niagara peninsula and the west end of Lake Ontario.
const niagaraBounds = "42.80,-79.70,43.75,-78.85"

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	file := flag.String("file", "", "gazetteer YAML file (default: embedded Niagara gazetteer)")
	bounds := flag.String("bounds", niagaraBounds, "operating region as minLat,minLng,maxLat,maxLng")
	flag.Parse()

	box, err := parseBounds(*bounds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(2)
	}
	os.Exit(run(os.Stdout, *file, box))
}

func run(w io.Writer, file string, box orb.Bound) int {
	fmt.Fprintln(w, "=== Gazetteer Validation ===")

	entries, err := gazetteer.Load(file)
	if err != nil {
		fmt.Fprintf(w, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateSchema(entries),
		validateUniqueness(entries),
		validateBounds(entries, box),
		validateSearchability(entries),
	}

	fmt.Fprintln(w)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-24s %s\n", p.name, status)
	}

	fmt.Fprintf(w, "\nEntries: %d\n", len(entries))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

func validateSchema(entries []gazetteer.Entry) *phase {
	p := &phase{name: "Schema"}
	for _, e := range entries {
		c := domain.Coordinate{Lat: e.Lat, Lng: e.Lng}
		if !c.Valid() {
			p.errorf("%s: coordinate %.6f,%.6f out of range", e.ID, e.Lat, e.Lng)
		}
		if e.Lat == 0 && e.Lng == 0 {
			p.errorf("%s: coordinate is 0,0", e.ID)
		}
		if strings.TrimSpace(e.Address) == "" {
			p.errorf("%s: address is empty", e.ID)
		}
		if gazetteer.Fold(e.Name) == "" {
			p.errorf("%s: name %q has no searchable characters", e.ID, e.Name)
		}
	}
	return p
}

func validateUniqueness(entries []gazetteer.Entry) *phase {
	p := &phase{name: "Uniqueness"}
	ids := make(map[string]int, len(entries))
	names := make(map[string]string, len(entries))
	for i, e := range entries {
		if first, ok := ids[e.ID]; ok {
			p.errorf("id %q repeated at entries %d and %d", e.ID, first, i)
		} else {
			ids[e.ID] = i
		}
		folded := gazetteer.Fold(e.Name)
		if other, ok := names[folded]; ok {
			p.errorf("%s: name %q collides with %s", e.ID, e.Name, other)
		} else {
			names[folded] = e.ID
		}
	}
	return p
}

func validateBounds(entries []gazetteer.Entry, box orb.Bound) *phase {
	p := &phase{name: "Region bounds"}
	for _, e := range entries {
		pt := domain.Coordinate{Lat: e.Lat, Lng: e.Lng}.Point()
		if !box.Contains(pt) {
			p.errorf("%s: %.5f,%.5f outside operating region", e.ID, e.Lat, e.Lng)
		}
	}
	return p
}

// validateSearchability builds the index exactly as the service does and
// checks that every name and alias finds its own entry.
func validateSearchability(entries []gazetteer.Entry) *phase {
	p := &phase{name: "Searchability"}
	ix := gazetteer.NewIndex(entries, gazetteer.Options{})
	for _, e := range entries {
		for _, q := range append([]string{e.Name}, e.Aliases...) {
			if len([]rune(q)) < gazetteer.MinQueryLength {
				p.errorf("%s: %q is shorter than %d characters", e.ID, q, gazetteer.MinQueryLength)
				continue
			}
			found := slices.ContainsFunc(ix.Search(q), func(l domain.Location) bool { return l.ID == e.ID })
			if !found {
				p.errorf("%s: search for %q does not return the entry", e.ID, q)
			}
		}
	}
	return p
}

func parseBounds(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, errors.New("bounds must be minLat,minLng,maxLat,maxLng")
	}
	var v [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bounds: %q is not a number", part)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, errors.New("bounds: minimum exceeds maximum")
	}
	return orb.Bound{Min: orb.Point{v[1], v[0]}, Max: orb.Point{v[3], v[2]}}, nil
}
