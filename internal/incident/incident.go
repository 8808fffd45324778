// Package incident supplies snapshots of current fire incidents.
package incident

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// Source returns the current incident snapshot. The returned slice is owned
// by the caller and is never modified by the source afterwards.
type Source interface {
	CurrentIncidents(ctx context.Context) ([]domain.FireIncident, error)
}

// Static is a Source backed by an in-memory list that can be replaced
// wholesale.
type Static struct {
	mu        sync.RWMutex
	incidents []domain.FireIncident
}

// NewStatic creates a Static source holding a copy of incidents.
func NewStatic(incidents []domain.FireIncident) *Static {
	return &Static{incidents: domain.CloneIncidents(incidents)}
}

// CurrentIncidents returns a copy of the held incidents.
func (s *Static) CurrentIncidents(_ context.Context) ([]domain.FireIncident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneIncidents(s.incidents), nil
}

// Replace swaps the held incidents atomically.
func (s *Static) Replace(incidents []domain.FireIncident) {
	cp := domain.CloneIncidents(incidents)
	s.mu.Lock()
	s.incidents = cp
	s.mu.Unlock()
}

type fileFormat struct {
	Incidents []domain.FireIncident `yaml:"incidents"`
}

// LoadFile reads a YAML incident list into a Static source. An empty path
// yields an empty source.
func LoadFile(path string) (*Static, error) {
	if path == "" {
		return NewStatic(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read incidents: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse incidents: %w", err)
	}
	for i, inc := range f.Incidents {
		if err := inc.Validate(); err != nil {
			return nil, fmt.Errorf("incident %d: %w", i, err)
		}
	}
	return NewStatic(f.Incidents), nil
}
