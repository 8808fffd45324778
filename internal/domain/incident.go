package domain

import (
	"errors"
	"fmt"
	"time"
)

// FireIncident is one fire reported by the incident feed.
type FireIncident struct {
	Name             string     `json:"name" yaml:"name"`
	Location         Coordinate `json:"location" yaml:"location"`
	AcresBurned      float64    `json:"acres_burned" yaml:"acres_burned"`
	PercentContained float64    `json:"percent_contained" yaml:"percent_contained"`
	IsActive         bool       `json:"is_active" yaml:"is_active"`
	StartedAt        time.Time  `json:"started_at" yaml:"started_at"`
}

// CloneIncidents returns a copy of the slice so a snapshot handed to one
// batch cannot observe later feed updates.
func CloneIncidents(in []FireIncident) []FireIncident {
	if in == nil {
		return []FireIncident{}
	}
	out := make([]FireIncident, len(in))
	copy(out, in)
	return out
}

// Validate reports whether the incident is usable as model input.
func (i FireIncident) Validate() error {
	if i.Name == "" {
		return errors.New("name is required")
	}
	if i.PercentContained < 0 || i.PercentContained > 100 {
		return fmt.Errorf("incident %q: percent_contained must be within 0-100", i.Name)
	}
	return nil
}
