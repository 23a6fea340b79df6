package domain

import "strings"

// FilterRegion keeps the locations whose name or address mentions region,
// compared case-insensitively. An empty region keeps everything.
func FilterRegion(locations []Location, region string) []Location {
	region = strings.ToLower(strings.TrimSpace(region))
	if region == "" {
		return locations
	}

	kept := make([]Location, 0, len(locations))
	for _, l := range locations {
		if strings.Contains(strings.ToLower(l.Address), region) ||
			strings.Contains(strings.ToLower(l.Name), region) {
			kept = append(kept, l)
		}
	}
	return kept
}
