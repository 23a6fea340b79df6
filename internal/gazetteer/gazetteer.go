// Package gazetteer provides the offline address index: a static list of
// named places and fuzzy free-text search over it.
package gazetteer

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed data/niagara.yaml
var defaultData []byte

// Entry is one named place in a gazetteer file.
type Entry struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Address string   `yaml:"address"`
	Lat     float64  `yaml:"lat"`
	Lng     float64  `yaml:"lng"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// Location converts the entry to a domain location.
func (e Entry) Location() domain.Location {
	return domain.Location{
		ID:      e.ID,
		Name:    e.Name,
		Lat:     e.Lat,
		Lng:     e.Lng,
		Address: e.Address,
		Source:  "gazetteer",
	}
}

type document struct {
	Locations []Entry `yaml:"locations"`
}

// Parse decodes a gazetteer YAML document.
func Parse(data []byte) ([]Entry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse gazetteer: %w", err)
	}
	if len(doc.Locations) == 0 {
		return nil, errors.New("parse gazetteer: no locations")
	}
	for i, e := range doc.Locations {
		if strings.TrimSpace(e.ID) == "" || strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("parse gazetteer: entry %d: id and name are required", i)
		}
	}
	return doc.Locations, nil
}

// Load reads a gazetteer file. An empty path selects the embedded Niagara gazetteer.
func Load(path string) ([]Entry, error) {
	if path == "" {
		return Parse(defaultData)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gazetteer: %w", err)
	}
	return Parse(data)
}
