package domain

import (
	"strings"
	"time"
)

// RiskLevel is the internal four-step risk scale.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskExtreme  RiskLevel = "extreme"
)

// ParseRiskLevel maps the remote vocabulary onto RiskLevel. Unrecognized
// values fall back to RiskLow.
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow
	case "moderate":
		return RiskModerate
	case "high":
		return RiskHigh
	case "extreme":
		return RiskExtreme
	default:
		return RiskLow
	}
}

// IsElevated reports whether the level is high or extreme.
func (l RiskLevel) IsElevated() bool {
	return l == RiskHigh || l == RiskExtreme
}

// FactorImpact describes the direction a factor pushes the risk score.
type FactorImpact string

const (
	ImpactIncreases FactorImpact = "increases"
	ImpactDecreases FactorImpact = "decreases"
)

// RiskFactor is one ranked contributor to a prediction.
type RiskFactor struct {
	Name        string       `json:"name"`
	Impact      FactorImpact `json:"impact"`
	Description string       `json:"description"`
	Weight      float64      `json:"weight"`
}

// NearbyFire is a fire the remote service reported close to an area.
type NearbyFire struct {
	Name             string  `json:"name"`
	DistanceKm       float64 `json:"distance_km"`
	AcresBurned      float64 `json:"acres_burned"`
	PercentContained float64 `json:"percent_contained"`
	ThreatLevel      string  `json:"threat_level"`
	IsThreat         bool    `json:"is_threat"`
}

// AreaFireRiskPrediction is the reconciled, internal risk assessment for one
// catalog area. Area points at the catalog entry rather than a copy.
type AreaFireRiskPrediction struct {
	Area             *GeographicArea `json:"area"`
	RiskLevel        RiskLevel       `json:"risk_level"`
	RiskScore        float64         `json:"risk_score"`
	Confidence       float64         `json:"confidence"`
	Factors          []RiskFactor    `json:"factors"`
	NearbyFires      []NearbyFire    `json:"nearby_fires"`
	WeatherImpact    string          `json:"weather_impact"`
	EvacuationRoutes []string        `json:"evacuation_routes"`
	ShelterCount     int             `json:"shelter_count"`
	LastUpdated      time.Time       `json:"last_updated"`
}

// AreaName returns the owning area's name, or "" for a detached prediction.
func (p AreaFireRiskPrediction) AreaName() string {
	if p.Area == nil {
		return ""
	}
	return p.Area.Name
}
