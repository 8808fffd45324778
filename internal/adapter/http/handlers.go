package http

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/wildfire-risk-service/internal/adapter/predict"
	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

type statusResponse struct {
	RunID       string     `json:"run_id,omitempty"`
	State       string     `json:"state"`
	Phase       string     `json:"phase,omitempty"`
	Progress    float64    `json:"progress"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Predictions int        `json:"predictions"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

type listResponse struct {
	Count       int                             `json:"count"`
	Predictions []domain.AreaFireRiskPrediction `json:"predictions"`
}

// modelResponse pairs the metadata of the latest prediction response with
// the latest model details. Either may be absent.
type modelResponse struct {
	Response *domain.ModelInfo    `json:"response,omitempty"`
	Details  *domain.ModelDetails `json:"details,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.service.Snapshot()
	resp := statusResponse{
		RunID:       snap.RunID,
		State:       snap.State.String(),
		Progress:    snap.Progress,
		Status:      snap.Status,
		Error:       snap.Err,
		Predictions: len(s.service.Predictions()),
		StartedAt:   timePtr(snap.StartedAt),
		FinishedAt:  timePtr(snap.FinishedAt),
	}
	if snap.Running() {
		resp.Phase = snap.Phase.String()
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) listPredictions(w http.ResponseWriter, _ *http.Request) {
	writeList(w, s.service.Predictions())
}

func (s *Server) listHighRisk(w http.ResponseWriter, _ *http.Request) {
	writeList(w, s.service.HighRisk())
}

func (s *Server) getPrediction(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_NAME", "area name is not valid")
		return
	}
	p, ok := s.service.Prediction(name)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no prediction for area "+strconv.Quote(name))
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) getNearest(w http.ResponseWriter, r *http.Request) {
	coord, ok := parseCoordinate(r.URL.Query())
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_COORDINATE", "lat and lon must be valid decimal degrees")
		return
	}

	p, found, err := s.service.Nearest(r.Context(), coord)
	if err != nil {
		s.logger.Warn("nearest lookup failed", "error", err, "lat", coord.Lat, "lon", coord.Lon)
		writeError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", predict.UserMessage(err))
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no prediction available near the given location")
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) postRun(w http.ResponseWriter, _ *http.Request) {
	if !s.service.Trigger() {
		writeError(w, http.StatusConflict, "RUN_PENDING", "a run is already queued")
		return
	}
	sharedobs.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) getModel(w http.ResponseWriter, r *http.Request) {
	if s.model == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "model information is not available")
		return
	}
	info, infoOK, err := s.model.LatestModelInfo(r.Context())
	if err != nil {
		s.logger.Error("load model info failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "model information could not be loaded")
		return
	}
	details, detailsOK, err := s.model.LatestModelDetails(r.Context())
	if err != nil {
		s.logger.Error("load model details failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "model information could not be loaded")
		return
	}
	if !infoOK && !detailsOK {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "model information is not available")
		return
	}

	var resp modelResponse
	if infoOK {
		resp.Response = &info
	}
	if detailsOK {
		resp.Details = &details
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

func parseCoordinate(q url.Values) (domain.Coordinate, bool) {
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return domain.Coordinate{}, false
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil || math.IsNaN(lon) || lon < -180 || lon > 180 {
		return domain.Coordinate{}, false
	}
	return domain.Coordinate{Lat: lat, Lon: lon}, true
}

func writeList(w http.ResponseWriter, preds []domain.AreaFireRiskPrediction) {
	if preds == nil {
		preds = []domain.AreaFireRiskPrediction{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, listResponse{Count: len(preds), Predictions: preds})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	sharedobs.WriteJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
