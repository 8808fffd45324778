package domain

import "math"

const earthRadiusKm = 6371.0

// PlanarDistance is the straight-line distance between two coordinates in
// degree space. It is only used to rank candidates, never reported.
func PlanarDistance(a, b Coordinate) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lon-b.Lon)
}

// HaversineKm returns the great-circle distance in kilometres.
func HaversineKm(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Asin(math.Sqrt(h))
}

// NearestArea returns the index of the area whose center is closest to c by
// PlanarDistance, or -1 when areas is empty. Ties keep the earlier area.
func NearestArea(areas []GeographicArea, c Coordinate) int {
	best := -1
	bestDist := math.Inf(1)
	for i := range areas {
		d := PlanarDistance(areas[i].Center, c)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}
