package predict

import (
	"time"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
)

// Prediction service request and response types.

type predictRequest struct {
	Areas         []wireArea     `json:"areas"`
	FireIncidents []wireIncident `json:"fire_incidents"`
}

type wireArea struct {
	Name        string             `json:"name"`
	DisplayName string             `json:"display_name"`
	Center      map[string]float64 `json:"center"` // keys: latitude, longitude
	Population  int                `json:"population"`
	AreaType    string             `json:"area_type"`
}

type wireIncident struct {
	Name             string  `json:"name"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	AcresBurned      float64 `json:"acres_burned"`
	PercentContained float64 `json:"percent_contained"`
	IsActive         bool    `json:"is_active"`
	Started          string  `json:"started"`
}

type predictResponse struct {
	Predictions      []wirePrediction `json:"predictions"`
	ModelInfo        wireModelInfo    `json:"model_info"`
	ProcessingTimeMs float64          `json:"processing_time_ms"`
	WeatherSource    string           `json:"weather_source"`
}

type wirePrediction struct {
	AreaName                 string           `json:"area_name"`
	RiskLevel                string           `json:"risk_level"`
	RiskScore                float64          `json:"risk_score"`
	RiskPercentage           int              `json:"risk_percentage"`
	Confidence               float64          `json:"confidence"`
	WeatherImpact            string           `json:"weather_impact"`
	NearbyFires              []wireNearbyFire `json:"nearby_fires"`
	TopRiskFactors           []wireRiskFactor `json:"top_risk_factors"`
	EvacuationRecommendation string           `json:"evacuation_recommendation"`
	LastUpdated              string           `json:"last_updated"`
}

type wireNearbyFire struct {
	Name             string  `json:"name"`
	DistanceKm       float64 `json:"distance_km"`
	AcresBurned      float64 `json:"acres_burned"`
	PercentContained float64 `json:"percent_contained"`
	ThreatLevel      string  `json:"threat_level"`
}

type wireRiskFactor struct {
	Factor       string  `json:"factor"`
	Contribution float64 `json:"contribution"`
	Value        float64 `json:"value"`
}

type wireModelInfo struct {
	Type       string `json:"type"`
	Accuracy   string `json:"accuracy"`
	Components string `json:"components"`
	Features   string `json:"features"`
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	APIStatus      string `json:"api_status"`
	ModelStatus    string `json:"model_status"`
	ModelType      string `json:"model_type"`
	ModelAccuracy  any    `json:"model_accuracy"`
	FeaturesCount  int    `json:"features_count"`
	WeatherService string `json:"weather_service"`
	LastUpdated    string `json:"last_updated"`
}

func newPredictRequest(areas []domain.GeographicArea, incidents []domain.FireIncident) predictRequest {
	req := predictRequest{
		Areas:         make([]wireArea, len(areas)),
		FireIncidents: make([]wireIncident, len(incidents)),
	}
	for i, a := range areas {
		req.Areas[i] = wireArea{
			Name:        a.Name,
			DisplayName: a.DisplayName,
			Center:      map[string]float64{"latitude": a.Center.Lat, "longitude": a.Center.Lon},
			Population:  a.Population,
			AreaType:    string(a.AreaType),
		}
	}
	for i, f := range incidents {
		req.FireIncidents[i] = wireIncident{
			Name:             f.Name,
			Latitude:         f.Location.Lat,
			Longitude:        f.Location.Lon,
			AcresBurned:      f.AcresBurned,
			PercentContained: f.PercentContained,
			IsActive:         f.IsActive,
			Started:          f.StartedAt.UTC().Format(time.RFC3339),
		}
	}
	return req
}

func (p wirePrediction) toDomain() domain.RemotePrediction {
	out := domain.RemotePrediction{
		AreaName:                 p.AreaName,
		RiskLevel:                p.RiskLevel,
		RiskScore:                p.RiskScore,
		RiskPercentage:           p.RiskPercentage,
		Confidence:               p.Confidence,
		WeatherImpact:            p.WeatherImpact,
		EvacuationRecommendation: p.EvacuationRecommendation,
		LastUpdated:              p.LastUpdated,
		NearbyFires:              make([]domain.RemoteNearbyFire, len(p.NearbyFires)),
		TopRiskFactors:           make([]domain.RemoteRiskFactor, len(p.TopRiskFactors)),
	}
	for i, f := range p.NearbyFires {
		out.NearbyFires[i] = domain.RemoteNearbyFire(f)
	}
	for i, f := range p.TopRiskFactors {
		out.TopRiskFactors[i] = domain.RemoteRiskFactor(f)
	}
	return out
}
