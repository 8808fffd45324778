// Package mockpredictor is a deterministic stand-in for the remote fire-risk
// prediction service. It speaks the same JSON contract and derives scores
// from area baselines and incident proximity, so runs are reproducible
// without the real model.
package mockpredictor

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// isoLayout matches the service's zone-less timestamps.
const isoLayout = "2006-01-02T15:04:05.000000"

const (
	nearbyRadiusKm   = 100
	highThreatKm     = 10
	moderateThreatKm = 30
	maxNearbyFires   = 5
)

var baseRisk = map[string]float64{
	"paradise": 0.95, "malibu": 0.85, "calistoga": 0.85, "redding": 0.85,
	"angeles_national_forest": 0.85, "ventana_wilderness": 0.85,
	"topanga": 0.80, "altadena": 0.80, "santa_rosa": 0.80, "big_sur": 0.80,
	"grass_valley": 0.80, "oroville": 0.80, "julian": 0.75, "napa": 0.75,
	"riverside": 0.60, "woodland_hills": 0.55, "sacramento": 0.45,
	"los_angeles": 0.40, "fresno": 0.40, "san_diego": 0.30,
	"san_jose": 0.25, "san_francisco": 0.25, "huntington_beach": 0.25,
}

var areaTypeRisk = map[domain.AreaType]float64{
	domain.AreaTypeWildland:               0.70,
	domain.AreaTypeWildlandUrbanInterface: 0.60,
	domain.AreaTypeUrban:                  0.35,
}

// Area is one entry of a /predict request.
type Area struct {
	Name        string             `json:"name"`
	DisplayName string             `json:"display_name"`
	Center      map[string]float64 `json:"center"`
	Population  int                `json:"population"`
	AreaType    string             `json:"area_type"`
}

// Incident is one fire incident of a /predict request.
type Incident struct {
	Name             string  `json:"name"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	AcresBurned      float64 `json:"acres_burned"`
	PercentContained float64 `json:"percent_contained"`
	IsActive         bool    `json:"is_active"`
	Started          string  `json:"started"`
}

// NearbyFire is an active incident within range of an area.
type NearbyFire struct {
	Name             string  `json:"name"`
	DistanceKm       float64 `json:"distance_km"`
	AcresBurned      float64 `json:"acres_burned"`
	PercentContained float64 `json:"percent_contained"`
	ThreatLevel      string  `json:"threat_level"`
}

// RiskFactor is one contributor to a score.
type RiskFactor struct {
	Factor       string  `json:"factor"`
	Contribution float64 `json:"contribution"`
	Value        float64 `json:"value"`
}

// Prediction is one entry of a /predict response.
type Prediction struct {
	AreaName                 string       `json:"area_name"`
	RiskLevel                string       `json:"risk_level"`
	RiskScore                float64      `json:"risk_score"`
	RiskPercentage           int          `json:"risk_percentage"`
	Confidence               float64      `json:"confidence"`
	WeatherImpact            string       `json:"weather_impact"`
	NearbyFires              []NearbyFire `json:"nearby_fires"`
	TopRiskFactors           []RiskFactor `json:"top_risk_factors"`
	EvacuationRecommendation string       `json:"evacuation_recommendation"`
	LastUpdated              string       `json:"last_updated"`
}

// Model scores areas.
type Model struct {
	clock clockwork.Clock
}

// NewModel returns a Model stamping predictions with clock.
func NewModel(clock clockwork.Clock) *Model {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Model{clock: clock}
}

// Predict scores every area against the active incidents. The response
// echoes each area's display name.
func (m *Model) Predict(areas []Area, incidents []Incident) []Prediction {
	now := m.clock.Now().Format(isoLayout)
	out := make([]Prediction, 0, len(areas))
	for _, a := range areas {
		out = append(out, m.predictArea(a, incidents, now))
	}
	return out
}

func (m *Model) predictArea(a Area, incidents []Incident, now string) Prediction {
	center := domain.Coordinate{Lat: a.Center["latitude"], Lon: a.Center["longitude"]}
	fires := nearbyFires(center, incidents)

	base := baselineRisk(a)
	proximity := 0.0
	for _, f := range fires {
		weight := 0.03
		switch f.ThreatLevel {
		case "High":
			weight = 0.20
		case "Moderate":
			weight = 0.10
		}
		proximity += weight * (1 - f.PercentContained/100)
	}
	density := 0.0
	if a.Population > 500_000 {
		density = -0.05
	}

	score := clamp(base+proximity+density, 0.01, 0.99)
	pct := int(score * 100)
	confidence := round(0.6+0.35*math.Abs(score-0.5)*2, 3)
	level := riskLevel(float64(pct), confidence)

	name := a.DisplayName
	if name == "" {
		name = a.Name
	}

	return Prediction{
		AreaName:                 name,
		RiskLevel:                level,
		RiskScore:                round(score, 4),
		RiskPercentage:           pct,
		Confidence:               confidence,
		WeatherImpact:            "Moderate conditions: 78F, 35% humidity, 8 mph winds",
		NearbyFires:              fires,
		TopRiskFactors:           topFactors(base, proximity, density, len(fires), a.Population),
		EvacuationRecommendation: evacuationRecommendation(level, name),
		LastUpdated:              now,
	}
}

func baselineRisk(a Area) float64 {
	if r, ok := baseRisk[domain.NormalizeName(strings.ReplaceAll(a.Name, " ", "_"))]; ok {
		return r
	}
	if t, ok := domain.ParseAreaType(a.AreaType); ok {
		return areaTypeRisk[t]
	}
	return 0.5
}

// riskLevel applies the service's thresholds. Scores above 75% need high
// confidence to count as extreme.
func riskLevel(pct, confidence float64) string {
	switch {
	case pct > 75 && confidence > 0.75:
		return "Extreme"
	case pct >= 50:
		return "High"
	case pct >= 25:
		return "Moderate"
	default:
		return "Low"
	}
}

func nearbyFires(center domain.Coordinate, incidents []Incident) []NearbyFire {
	fires := []NearbyFire{}
	for _, inc := range incidents {
		if !inc.IsActive {
			continue
		}
		d := domain.HaversineKm(center, domain.Coordinate{Lat: inc.Latitude, Lon: inc.Longitude})
		if d > nearbyRadiusKm {
			continue
		}
		threat := "Low"
		switch {
		case d < highThreatKm:
			threat = "High"
		case d < moderateThreatKm:
			threat = "Moderate"
		}
		fires = append(fires, NearbyFire{
			Name:             inc.Name,
			DistanceKm:       round(d, 1),
			AcresBurned:      inc.AcresBurned,
			PercentContained: inc.PercentContained,
			ThreatLevel:      threat,
		})
	}
	sort.SliceStable(fires, func(i, j int) bool { return fires[i].DistanceKm < fires[j].DistanceKm })
	if len(fires) > maxNearbyFires {
		fires = fires[:maxNearbyFires]
	}
	return fires
}

func topFactors(base, proximity, density float64, nearby, population int) []RiskFactor {
	factors := []RiskFactor{
		{Factor: "Area Risk Baseline", Contribution: round(base-0.5, 4), Value: round(base*100, 1)},
		{Factor: "Fire Proximity", Contribution: round(proximity, 4), Value: float64(nearby)},
		{Factor: "Population Density", Contribution: density, Value: float64(population)},
	}
	sort.SliceStable(factors, func(i, j int) bool {
		return math.Abs(factors[i].Contribution) > math.Abs(factors[j].Contribution)
	})
	return factors
}

func evacuationRecommendation(level, area string) string {
	switch level {
	case "Extreme":
		return fmt.Sprintf("IMMEDIATE ACTION: Prepare for evacuation from %s. Monitor emergency alerts and be ready to leave immediately.", area)
	case "High":
		return fmt.Sprintf("HIGH ALERT: Stay vigilant in %s. Have evacuation plan ready and monitor local emergency services.", area)
	case "Moderate":
		return fmt.Sprintf("PREPARE: Review evacuation routes for %s. Stay informed about fire conditions in the area.", area)
	default:
		return fmt.Sprintf("NORMAL: Current fire risk in %s is low. Continue normal activities while staying aware.", area)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
