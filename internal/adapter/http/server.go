package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RiskService is the query and control surface of the aggregation
// coordinator.
type RiskService interface {
	sharedobs.ReadinessChecker
	Snapshot() pipeline.Snapshot
	Predictions() []domain.AreaFireRiskPrediction
	Prediction(name string) (domain.AreaFireRiskPrediction, bool)
	HighRisk() []domain.AreaFireRiskPrediction
	Nearest(ctx context.Context, coord domain.Coordinate) (domain.AreaFireRiskPrediction, bool, error)
	Trigger() bool
}

// ModelInfoSource returns the most recently observed model metadata.
type ModelInfoSource interface {
	LatestModelInfo(ctx context.Context) (domain.ModelInfo, bool, error)
	LatestModelDetails(ctx context.Context) (domain.ModelDetails, bool, error)
}

// Server exposes health, readiness, metrics and the prediction query API.
type Server struct {
	httpServer *http.Server
	service    RiskService
	model      ModelInfoSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server. Readiness requires the service and every
// extra checker to report ready.
func NewServer(addr string, svc RiskService, model ModelInfoSource, logger *slog.Logger, extra ...sharedobs.ReadinessChecker) *Server {
	s := &Server{
		service: svc,
		model:   model,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(readiness(append([]sharedobs.ReadinessChecker{svc}, extra...))))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Get("/model", s.getModel)
		r.Post("/runs", s.postRun)

		r.Route("/predictions", func(r chi.Router) {
			r.Get("/", s.listPredictions)
			r.Get("/high-risk", s.listHighRisk)
			r.Get("/nearest", s.getNearest)
			r.Get("/{name}", s.getPrediction)
		})
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// readiness joins the errors of every failing checker.
type readiness []sharedobs.ReadinessChecker

func (rs readiness) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, c := range rs {
		if err := c.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
