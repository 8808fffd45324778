package pipeline

import "github.com/couchcryptid/wildfire-risk-service/internal/domain"

// Plan splits areas into consecutive batches of at most size areas,
// preserving order. Every area lands in exactly one batch; only the last
// batch may be short. A size below 1 yields a single batch.
func Plan(areas []domain.GeographicArea, size int) [][]domain.GeographicArea {
	if len(areas) == 0 {
		return nil
	}
	if size < 1 {
		size = len(areas)
	}

	batches := make([][]domain.GeographicArea, 0, (len(areas)+size-1)/size)
	for start := 0; start < len(areas); start += size {
		end := min(start+size, len(areas))
		batches = append(batches, areas[start:end:end])
	}
	return batches
}

// PlanRun returns the priority batches followed by the bulk batches for a
// catalog. Priority batches always precede bulk batches.
func PlanRun(cat AreaCatalog, size int) (priority, bulk [][]domain.GeographicArea) {
	return Plan(cat.Priority(), size), Plan(cat.Bulk(), size)
}
