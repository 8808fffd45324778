package mockpredictor

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

const modelType = "Mock Ensemble (deterministic)"

// Config controls fault injection.
type Config struct {
	// FailEvery makes every Nth /predict request fail with FailStatus.
	// Zero disables injected failures.
	FailEvery  int
	FailStatus int
	// Latency delays every /predict response.
	Latency time.Duration
}

type predictRequest struct {
	Areas         []Area     `json:"areas"`
	FireIncidents []Incident `json:"fire_incidents"`
}

type predictResponse struct {
	Predictions      []Prediction `json:"predictions"`
	ModelInfo        modelInfo    `json:"model_info"`
	ProcessingTimeMs float64      `json:"processing_time_ms"`
	WeatherSource    string       `json:"weather_source"`
}

type modelInfo struct {
	Type       string `json:"type"`
	Accuracy   string `json:"accuracy"`
	Components string `json:"components"`
	Features   string `json:"features"`
}

// Handler serves the prediction service API.
type Handler struct {
	model    *Model
	cfg      Config
	logger   *slog.Logger
	requests atomic.Int64
	router   chi.Router
}

// NewHandler creates the mock service routes.
func NewHandler(model *Model, cfg Config, logger *slog.Logger) *Handler {
	if cfg.FailStatus == 0 {
		cfg.FailStatus = http.StatusServiceUnavailable
	}
	h := &Handler{model: model, cfg: cfg, logger: logger}

	r := chi.NewRouter()
	r.Post("/predict", h.predict)
	r.Get("/model/info", h.modelInfo)
	r.Get("/health", h.health)
	r.Get("/weather/{lat}/{lon}", h.weather)
	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) predict(w http.ResponseWriter, r *http.Request) {
	start := h.model.clock.Now()
	n := h.requests.Add(1)

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sharedobs.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid request body: " + err.Error()})
		return
	}

	if h.cfg.Latency > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-h.model.clock.After(h.cfg.Latency):
		}
	}

	if h.cfg.FailEvery > 0 && n%int64(h.cfg.FailEvery) == 0 {
		h.logger.Info("injecting failure", "request", n, "status", h.cfg.FailStatus)
		sharedobs.WriteJSON(w, h.cfg.FailStatus, map[string]string{"detail": http.StatusText(h.cfg.FailStatus)})
		return
	}

	preds := h.model.Predict(req.Areas, req.FireIncidents)
	h.logger.Debug("predict", "request", n, "areas", len(req.Areas), "incidents", len(req.FireIncidents))

	sharedobs.WriteJSON(w, http.StatusOK, predictResponse{
		Predictions: preds,
		ModelInfo: modelInfo{
			Type:       modelType,
			Accuracy:   "94.0%",
			Components: "baseline, fire proximity, population density",
			Features:   "3",
		},
		ProcessingTimeMs: float64(h.model.clock.Since(start).Microseconds()) / 1000,
		WeatherSource:    "none",
	})
}

func (h *Handler) modelInfo(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"model_type":       modelType,
		"accuracy":         "94.0%",
		"precision":        "94.0%",
		"recall":           "94.0%",
		"features_count":   3,
		"weather_provider": "none",
		"model_components": []string{"Area Baseline", "Fire Proximity"},
		"ensemble_weights": map[string]float64{"Area Baseline": 0.7, "Fire Proximity": 0.3},
		"status":           "Mock",
		"last_updated":     h.model.clock.Now().Format(isoLayout),
	})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"api_status":      "healthy",
		"model_status":    "loaded",
		"model_type":      modelType,
		"model_accuracy":  "94.0%",
		"features_count":  3,
		"weather_service": "none",
		"last_updated":    h.model.clock.Now().Format(isoLayout),
	})
}

func (h *Handler) weather(w http.ResponseWriter, r *http.Request) {
	lat, latErr := strconv.ParseFloat(chi.URLParam(r, "lat"), 64)
	lon, lonErr := strconv.ParseFloat(chi.URLParam(r, "lon"), 64)
	if latErr != nil || lonErr != nil {
		sharedobs.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "latitude and longitude must be numbers"})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, h.model.Weather(domain.Coordinate{Lat: lat, Lon: lon}))
}
