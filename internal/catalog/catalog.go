// Package catalog holds the registry of geographic areas the pipeline
// predicts for, split into a priority subset and the bulk remainder.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalogYAML []byte

// Catalog is immutable after construction. Slices returned by its methods
// are shared and must not be modified.
type Catalog struct {
	areas    []domain.GeographicArea
	priority []domain.GeographicArea
	bulk     []domain.GeographicArea
	byKey    map[string]int
}

type fileFormat struct {
	Priority []string   `yaml:"priority"`
	Areas    []fileArea `yaml:"areas"`
}

type fileArea struct {
	Name        string            `yaml:"name"`
	DisplayName string            `yaml:"display_name"`
	Center      domain.Coordinate `yaml:"center"`
	Population  int               `yaml:"population"`
	AreaType    string            `yaml:"area_type"`
}

// Default returns the embedded California catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalogYAML)
}

// Load reads a catalog from a YAML file. An empty path loads the default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	areas := make([]domain.GeographicArea, 0, len(f.Areas))
	var errs []error
	for i, a := range f.Areas {
		at, ok := domain.ParseAreaType(a.AreaType)
		if !ok {
			errs = append(errs, fmt.Errorf("area %d (%q): unknown area_type %q", i, a.Name, a.AreaType))
		}
		areas = append(areas, domain.GeographicArea{
			Name:        a.Name,
			DisplayName: a.DisplayName,
			Center:      a.Center,
			Population:  a.Population,
			AreaType:    at,
		})
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid catalog: %w", errors.Join(errs...))
	}
	return New(areas, f.Priority)
}

// New builds a catalog from areas and the ordered names of the priority
// subset. Priority names must refer to areas in the list.
func New(areas []domain.GeographicArea, priorityNames []string) (*Catalog, error) {
	if errs := Validate(areas, priorityNames); len(errs) > 0 {
		return nil, fmt.Errorf("invalid catalog: %w", errors.Join(errs...))
	}

	c := &Catalog{
		areas: append([]domain.GeographicArea(nil), areas...),
		byKey: make(map[string]int, len(areas)),
	}
	for i := range c.areas {
		c.byKey[c.areas[i].Key()] = i
	}

	isPriority := make(map[string]bool, len(priorityNames))
	for _, name := range priorityNames {
		key := domain.NormalizeName(name)
		if isPriority[key] {
			continue
		}
		isPriority[key] = true
		c.priority = append(c.priority, c.areas[c.byKey[key]])
	}
	for _, a := range c.areas {
		if !isPriority[a.Key()] {
			c.bulk = append(c.bulk, a)
		}
	}
	return c, nil
}

// Validate reports every integrity problem with a candidate catalog.
func Validate(areas []domain.GeographicArea, priorityNames []string) []error {
	var errs []error
	if len(areas) == 0 {
		errs = append(errs, errors.New("catalog has no areas"))
	}

	seen := make(map[string]bool, len(areas))
	for i, a := range areas {
		key := a.Key()
		switch {
		case key == "":
			errs = append(errs, fmt.Errorf("area %d: name is required", i))
		case seen[key]:
			errs = append(errs, fmt.Errorf("area %d: duplicate name %q", i, a.Name))
		}
		seen[key] = true

		if a.DisplayName == "" {
			errs = append(errs, fmt.Errorf("area %q: display_name is required", a.Name))
		}
		if a.Center.Lat < -90 || a.Center.Lat > 90 || a.Center.Lon < -180 || a.Center.Lon > 180 {
			errs = append(errs, fmt.Errorf("area %q: center %v out of range", a.Name, a.Center))
		}
		if a.Population < 0 {
			errs = append(errs, fmt.Errorf("area %q: negative population", a.Name))
		}
	}

	for _, name := range priorityNames {
		if !seen[domain.NormalizeName(name)] {
			errs = append(errs, fmt.Errorf("priority area %q is not in the catalog", name))
		}
	}
	return errs
}

// All returns every area in catalog order.
func (c *Catalog) All() []domain.GeographicArea { return c.areas }

// Priority returns the priority areas in priority order.
func (c *Catalog) Priority() []domain.GeographicArea { return c.priority }

// Bulk returns the non-priority areas in catalog order.
func (c *Catalog) Bulk() []domain.GeographicArea { return c.bulk }

// Lookup finds an area by case-insensitive exact name.
func (c *Catalog) Lookup(name string) (domain.GeographicArea, bool) {
	i, ok := c.byKey[domain.NormalizeName(name)]
	if !ok {
		return domain.GeographicArea{}, false
	}
	return c.areas[i], true
}

// Len returns the number of areas.
func (c *Catalog) Len() int { return len(c.areas) }
