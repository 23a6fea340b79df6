// Command narrate reads an OSRM /route response saved to disk and prints the
// normalized instructions together with the sentence the narrator would
// speak for each one. It runs the same normalization as the service, so it
// is the quickest way to check a phrase table or narration template change
// against a real route.
//
// Usage:
//
//	go run ./cmd/narrate -route internal/adapter/osrm/testdata/route.json
//	go run ./cmd/narrate -route route.json -json > instructions.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/couchcryptid/cad-navigation-service/internal/adapter/osrm"
	"github.com/couchcryptid/cad-navigation-service/internal/domain"
)

// narratedInstruction is one line of -json output.
type narratedInstruction struct {
	domain.NavigationInstruction
	Utterance string `json:"utterance"`
}

func main() {
	routePath := flag.String("route", "", "path to an OSRM /route/v1 JSON response")
	asJSON := flag.Bool("json", false, "write JSON instead of a table")
	flag.Parse()

	if *routePath == "" {
		flag.Usage()
		os.Exit(1)
	}
	if err := run(os.Stdout, *routePath, *asJSON); err != nil {
		log.Fatal(err)
	}
}

func run(w io.Writer, routePath string, asJSON bool) error {
	body, err := os.ReadFile(routePath)
	if err != nil {
		return fmt.Errorf("reading route fixture: %w", err)
	}
	routes, err := osrm.Decode(body)
	if err != nil {
		return err
	}

	best := routes[0]
	instructions := domain.Normalize(best.Instructions, best.DistanceMeters)
	narrated := make([]narratedInstruction, len(instructions))
	for i, in := range instructions {
		narrated[i] = narratedInstruction{NavigationInstruction: in, Utterance: domain.UtteranceText(in)}
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(narrated)
	}

	fmt.Fprintf(w, "Route: %s, %d instructions\n\n", domain.FormatDistance(best.DistanceMeters), len(narrated))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tMANEUVER\tSUMMARY\tUTTERANCE")
	for _, n := range narrated {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", n.SequenceIndex, n.ManeuverType, n.Summary, n.Utterance)
	}
	return tw.Flush()
}
