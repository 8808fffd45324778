package domain

import "strings"

// AreaType classifies the land use around an area's population center.
type AreaType string

const (
	AreaTypeUrban                  AreaType = "urban"
	AreaTypeWildland               AreaType = "wildland"
	AreaTypeWildlandUrbanInterface AreaType = "wildland_urban_interface"
)

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"latitude" yaml:"lat"`
	Lon float64 `json:"longitude" yaml:"lon"`
}

// GeographicArea is immutable reference data describing one predictable region.
type GeographicArea struct {
	Name        string     `json:"name" yaml:"name"`
	DisplayName string     `json:"display_name" yaml:"display_name"`
	Center      Coordinate `json:"center" yaml:"center"`
	Population  int        `json:"population" yaml:"population"`
	AreaType    AreaType   `json:"area_type" yaml:"area_type"`
}

// Key returns the case-folded name used for lookups.
func (a GeographicArea) Key() string {
	return NormalizeName(a.Name)
}

// NormalizeName folds an area name for case-insensitive exact matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ParseAreaType accepts the catalog spellings of an area type. Unknown values
// return false.
func ParseAreaType(s string) (AreaType, bool) {
	switch strings.ToLower(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(s))) {
	case "urban":
		return AreaTypeUrban, true
	case "wildland":
		return AreaTypeWildland, true
	case "wildland_urban_interface", "wui":
		return AreaTypeWildlandUrbanInterface, true
	}
	return "", false
}
