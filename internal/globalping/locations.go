package globalping

import (
	"encoding/json"
	"fmt"
)

// Monitors store their probe locations as a JSON array. Two shapes exist in
// the wild: the current form wraps a nested location object picked from the
// location catalog, legacy rows are flat provider filters already. Both
// normalize to LocationFilter here so nothing downstream has to care.

type nestedLocation struct {
	ID   string `json:"id"`
	Type string `json:"type"` // continent | country | city
	Name string `json:"name"`
	Code string `json:"code"`
}

type storedLocation struct {
	Location    *nestedLocation `json:"location"`
	NetworkType string          `json:"networkType,omitempty"`
	ISP         string          `json:"isp,omitempty"`

	// legacy flat fields
	Continent string   `json:"continent,omitempty"`
	Country   string   `json:"country,omitempty"`
	City      string   `json:"city,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

func (s storedLocation) normalize() LocationFilter {
	if s.Location == nil {
		// Legacy record: the stored fields already are a provider filter.
		return LocationFilter{
			Continent: s.Continent,
			Country:   s.Country,
			City:      s.City,
			Tags:      s.Tags,
		}
	}

	var f LocationFilter
	switch s.Location.Type {
	case "continent":
		f.Continent = s.Location.Code
	case "country":
		f.Country = s.Location.Code
	case "city":
		f.City = s.Location.Name
	}
	if s.NetworkType == "residential" || s.NetworkType == "datacenter" {
		f.Tags = []string{s.NetworkType}
	}
	return f
}

// NormalizeLocations parses a monitor's stored location list into canonical
// provider filters.
func NormalizeLocations(raw string) ([]LocationFilter, error) {
	var stored []storedLocation
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("parse locations: %w", err)
	}
	out := make([]LocationFilter, 0, len(stored))
	for _, s := range stored {
		out = append(out, s.normalize())
	}
	return out, nil
}
