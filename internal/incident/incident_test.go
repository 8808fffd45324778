package incident

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_SnapshotIsolation(t *testing.T) {
	s := NewStatic([]domain.FireIncident{{Name: "Park Fire", AcresBurned: 10}})

	snap, err := s.CurrentIncidents(context.Background())
	require.NoError(t, err)

	s.Replace([]domain.FireIncident{{Name: "Park Fire", AcresBurned: 99}, {Name: "Line Fire"}})
	snap[0].Name = "mutated"

	assert.InDelta(t, 10, snap[0].AcresBurned, 1e-9)
	next, err := s.CurrentIncidents(context.Background())
	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.Equal(t, "Park Fire", next[0].Name)
	assert.InDelta(t, 99, next[0].AcresBurned, 1e-9)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incidents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
incidents:
  - name: Park Fire
    location: {lat: 39.81, lon: -121.73}
    acres_burned: 429603
    percent_contained: 100
    is_active: false
    started_at: 2024-07-24T15:00:00Z
  - name: Line Fire
    location: {lat: 34.15, lon: -117.19}
    acres_burned: 43978
    percent_contained: 56
    is_active: true
    started_at: 2024-09-05T18:00:00Z
`), 0o600))

	s, err := LoadFile(path)
	require.NoError(t, err)

	incidents, err := s.CurrentIncidents(context.Background())
	require.NoError(t, err)
	require.Len(t, incidents, 2)
	assert.Equal(t, "Line Fire", incidents[1].Name)
	assert.True(t, incidents[1].IsActive)
	assert.InDelta(t, -117.19, incidents[1].Location.Lon, 1e-9)
	assert.Equal(t, time.Date(2024, time.September, 5, 18, 0, 0, 0, time.UTC), incidents[1].StartedAt.UTC())
}

func TestLoadFile_Empty(t *testing.T) {
	s, err := LoadFile("")
	require.NoError(t, err)
	incidents, err := s.CurrentIncidents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, incidents)
}

func TestLoadFile_InvalidContainment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incidents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
incidents:
  - {name: Bad Fire, percent_contained: 140}
`), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "percent_contained")
}
