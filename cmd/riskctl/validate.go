package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/wildfire-risk-service/internal/catalog"
	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/incident"
	"github.com/couchcryptid/wildfire-risk-service/internal/pipeline"
)

// incidentReachKm is the distance beyond which a fire cannot affect any
// area's prediction.
const incidentReachKm = 100.0

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// validateFiles checks a catalog file (the embedded default when empty),
// its batch plan at batchSize and an optional incident file, writes a report
// to w and returns the number of failed phases.
func validateFiles(w io.Writer, catalogPath, incidentsPath string, batchSize int) int {
	source := catalogPath
	if source == "" {
		source = "embedded default"
	}
	fmt.Fprintln(w, "=== Area Catalog Validation ===")
	fmt.Fprintf(w, "Catalog: %s\n", source)
	fmt.Fprintf(w, "Batch size: %d\n", batchSize)

	cat, schema := validateCatalogSchema(catalogPath)
	phases := []*phase{schema, validateBatchPlan(cat, batchSize)}
	if incidentsPath != "" {
		fmt.Fprintf(w, "Incidents: %s\n", incidentsPath)
		phases = append(phases, validateIncidents(cat, incidentsPath))
	}

	fmt.Fprintln(w)
	failed := 0
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			failed++
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	if cat != nil {
		fmt.Fprintf(w, "\nAreas: %d total, %d priority, %d bulk\n", cat.Len(), len(cat.Priority()), len(cat.Bulk()))
		if batchSize > 0 {
			priority, bulk := pipeline.PlanRun(cat, batchSize)
			fmt.Fprintf(w, "Batches: %d priority, %d bulk\n", len(priority), len(bulk))
		}
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if failed == 0 {
		fmt.Fprintln(w, "\nAll validations passed.")
	} else {
		fmt.Fprintln(w, "\nValidation FAILED.")
	}
	return failed
}

func validateCatalogSchema(path string) (*catalog.Catalog, *phase) {
	p := &phase{name: "Phase 1: Catalog Schema (YAML)"}
	cat, err := catalog.Load(path)
	if err != nil {
		// Joined errors render one per line.
		for _, line := range strings.Split(err.Error(), "\n") {
			p.errorf("%s", strings.TrimPrefix(line, "invalid catalog: "))
		}
		return nil, p
	}
	return cat, p
}

func validateBatchPlan(cat *catalog.Catalog, batchSize int) *phase {
	p := &phase{name: "Phase 2: Batch Plan (priority/bulk)"}
	if cat == nil {
		p.errorf("skipped: catalog did not load")
		return p
	}
	if batchSize <= 0 {
		p.errorf("batch size must be positive, got %d", batchSize)
		return p
	}
	if len(cat.Priority()) == 0 {
		p.errorf("no priority areas: the first results of every run would come from bulk batches")
	}

	priority, bulk := pipeline.PlanRun(cat, batchSize)
	seen := make(map[string]int, cat.Len())
	for _, batches := range [][][]domain.GeographicArea{priority, bulk} {
		for _, batch := range batches {
			for _, a := range batch {
				seen[a.Key()]++
			}
		}
	}
	for _, a := range cat.All() {
		switch n := seen[a.Key()]; n {
		case 1:
		case 0:
			p.errorf("area %q is not scheduled in any batch", a.Name)
		default:
			p.errorf("area %q is scheduled %d times", a.Name, n)
		}
	}
	return p
}

func validateIncidents(cat *catalog.Catalog, path string) *phase {
	p := &phase{name: "Phase 3: Incidents (reach vs catalog)"}
	src, err := incident.LoadFile(path)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	incidents, err := src.CurrentIncidents(context.Background())
	if err != nil {
		p.errorf("%v", err)
		return p
	}

	names := make(map[string]bool, len(incidents))
	for _, inc := range incidents {
		key := domain.NormalizeName(inc.Name)
		if names[key] {
			p.errorf("incident %q: duplicate name", inc.Name)
		}
		names[key] = true

		loc := inc.Location
		if loc.Lat < -90 || loc.Lat > 90 || loc.Lon < -180 || loc.Lon > 180 {
			p.errorf("incident %q: location %v out of range", inc.Name, loc)
			continue
		}
		if cat == nil || !inc.IsActive {
			continue
		}
		if !withinReach(cat.All(), loc) {
			p.errorf("incident %q: no catalog area within %.0f km", inc.Name, incidentReachKm)
		}
	}
	return p
}

func withinReach(areas []domain.GeographicArea, loc domain.Coordinate) bool {
	for _, a := range areas {
		if domain.HaversineKm(a.Center, loc) <= incidentReachKm {
			return true
		}
	}
	return false
}
