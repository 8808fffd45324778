package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRiskLevel(t *testing.T) {
	tests := []struct {
		in   string
		want RiskLevel
	}{
		{"EXTREME", RiskExtreme},
		{"Extreme", RiskExtreme},
		{"high", RiskHigh},
		{" Moderate ", RiskModerate},
		{"Low", RiskLow},
		{"catastrophic", RiskLow},
		{"", RiskLow},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRiskLevel(tt.in))
		})
	}
}

func TestRiskLevel_IsElevated(t *testing.T) {
	assert.False(t, RiskLow.IsElevated())
	assert.False(t, RiskModerate.IsElevated())
	assert.True(t, RiskHigh.IsElevated())
	assert.True(t, RiskExtreme.IsElevated())
}

func TestParseAreaType(t *testing.T) {
	at, ok := ParseAreaType("Wildland-Urban Interface")
	assert.True(t, ok)
	assert.Equal(t, AreaTypeWildlandUrbanInterface, at)

	at, ok = ParseAreaType("WUI")
	assert.True(t, ok)
	assert.Equal(t, AreaTypeWildlandUrbanInterface, at)

	at, ok = ParseAreaType("Urban")
	assert.True(t, ok)
	assert.Equal(t, AreaTypeUrban, at)

	_, ok = ParseAreaType("suburban")
	assert.False(t, ok)
}

func TestNearestArea(t *testing.T) {
	areas := []GeographicArea{
		{Name: "far", Center: Coordinate{Lat: 10, Lon: 10}},
		{Name: "near", Center: Coordinate{Lat: 0, Lon: 1}},
	}
	idx := NearestArea(areas, Coordinate{Lat: 0, Lon: 0})
	assert.Equal(t, 1, idx)
	assert.Equal(t, -1, NearestArea(nil, Coordinate{}))
}

func TestHaversineKm(t *testing.T) {
	// Los Angeles to San Francisco is roughly 559 km.
	la := Coordinate{Lat: 34.0522, Lon: -118.2437}
	sf := Coordinate{Lat: 37.7749, Lon: -122.4194}
	assert.InDelta(t, 559, HaversineKm(la, sf), 5)
	assert.InDelta(t, 0, HaversineKm(la, la), 1e-9)
}

func TestCloneIncidents_Independent(t *testing.T) {
	orig := []FireIncident{{Name: "Park Fire", AcresBurned: 100}}
	clone := CloneIncidents(orig)
	orig[0].AcresBurned = 200
	assert.InDelta(t, 100, clone[0].AcresBurned, 1e-9)
	assert.NotNil(t, CloneIncidents(nil))
}
