package catalog

import (
	"container/list"
	"math"
	"sync"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
)

// cellsPerDegree sets the cache key resolution (1e-4 degrees, about 11 m).
const cellsPerDegree = 1e4

// Locator resolves a coordinate to the nearest catalog area. Lookups are
// memoized per grid cell in a bounded LRU since client locations repeat.
type Locator struct {
	catalog *Catalog

	mu      sync.Mutex
	max     int
	order   *list.List // front = most recently used
	byCell  map[cell]*list.Element
	hits    int
	lookups int
}

type cell struct {
	lat, lon int32
}

type resolved struct {
	key  cell
	area int
}

func cellOf(c domain.Coordinate) cell {
	return cell{
		lat: int32(math.Round(c.Lat * cellsPerDegree)),
		lon: int32(math.Round(c.Lon * cellsPerDegree)),
	}
}

// NewLocator creates a locator over c remembering up to maxEntries cells.
func NewLocator(c *Catalog, maxEntries int) *Locator {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Locator{
		catalog: c,
		max:     maxEntries,
		order:   list.New(),
		byCell:  make(map[cell]*list.Element, maxEntries),
	}
}

// Nearest returns the catalog area closest to coord by straight-line
// distance.
func (l *Locator) Nearest(coord domain.Coordinate) (domain.GeographicArea, bool) {
	key := cellOf(coord)
	if idx, ok := l.lookup(key); ok {
		return l.catalog.areas[idx], true
	}

	idx := domain.NearestArea(l.catalog.areas, coord)
	if idx < 0 {
		return domain.GeographicArea{}, false
	}
	l.remember(key, idx)
	return l.catalog.areas[idx], true
}

func (l *Locator) lookup(key cell) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lookups++
	el, ok := l.byCell[key]
	if !ok {
		return 0, false
	}
	l.hits++
	l.order.MoveToFront(el)
	return el.Value.(resolved).area, true
}

func (l *Locator) remember(key cell, idx int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.byCell[key]; ok {
		el.Value = resolved{key: key, area: idx}
		l.order.MoveToFront(el)
		return
	}
	l.byCell[key] = l.order.PushFront(resolved{key: key, area: idx})

	for l.order.Len() > l.max {
		oldest := l.order.Back()
		l.order.Remove(oldest)
		delete(l.byCell, oldest.Value.(resolved).key)
	}
}

// cached reports the number of remembered cells.
func (l *Locator) cached() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}
