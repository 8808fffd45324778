package domain

import "time"

// RemotePrediction is one prediction as reported by the remote service,
// before reconciliation against the catalog.
type RemotePrediction struct {
	AreaName                 string
	RiskLevel                string
	RiskScore                float64
	RiskPercentage           int
	Confidence               float64
	WeatherImpact            string
	NearbyFires              []RemoteNearbyFire
	TopRiskFactors           []RemoteRiskFactor
	EvacuationRecommendation string
	LastUpdated              string
}

// RemoteNearbyFire is a nearby-fire entry of a RemotePrediction.
type RemoteNearbyFire struct {
	Name             string
	DistanceKm       float64
	AcresBurned      float64
	PercentContained float64
	ThreatLevel      string
}

// RemoteRiskFactor is a ranked factor of a RemotePrediction.
type RemoteRiskFactor struct {
	Factor       string
	Contribution float64
	Value        float64
}

// ModelInfo is the model metadata that accompanies every prediction response.
type ModelInfo struct {
	Type             string    `json:"type"`
	Accuracy         string    `json:"accuracy"`
	Components       string    `json:"components"`
	Features         string    `json:"features"`
	ProcessingTimeMs float64   `json:"processing_time_ms"`
	WeatherSource    string    `json:"weather_source"`
	ObservedAt       time.Time `json:"observed_at"`
}

// ModelDetails is the model description the remote service publishes
// separately from prediction responses.
type ModelDetails struct {
	ModelType       string             `json:"model_type"`
	Accuracy        string             `json:"accuracy"`
	Precision       string             `json:"precision"`
	Recall          string             `json:"recall"`
	FeaturesCount   int                `json:"features_count"`
	WeatherProvider string             `json:"weather_provider"`
	ModelComponents []string           `json:"model_components"`
	EnsembleWeights map[string]float64 `json:"ensemble_weights"`
	Status          string             `json:"status"`
	LastUpdated     string             `json:"last_updated"`
}

// WeatherConditions are the current fire weather readings the remote
// service reports for a coordinate.
type WeatherConditions struct {
	TemperatureF     float64 `json:"temperature_f"`
	TemperatureC     float64 `json:"temperature_c"`
	Humidity         float64 `json:"humidity"`
	WindSpeedMph     float64 `json:"wind_speed_mph"`
	WindSpeedKmh     float64 `json:"wind_speed_kmh"`
	WindDirection    float64 `json:"wind_direction"`
	Pressure         float64 `json:"pressure"`
	Precipitation    float64 `json:"precipitation"`
	DroughtCode      float64 `json:"drought_code"`
	FireWeatherIndex float64 `json:"fire_weather_index"`
	RedFlagWarning   bool    `json:"red_flag_warning"`
	LastUpdated      string  `json:"last_updated"`
}
