package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	httpadapter "github.com/couchcryptid/wildfire-risk-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/wildfire-risk-service/internal/adapter/kafka"
	"github.com/couchcryptid/wildfire-risk-service/internal/adapter/predict"
	"github.com/couchcryptid/wildfire-risk-service/internal/adapter/redisstore"
	"github.com/couchcryptid/wildfire-risk-service/internal/catalog"
	"github.com/couchcryptid/wildfire-risk-service/internal/config"
	"github.com/couchcryptid/wildfire-risk-service/internal/incident"
	"github.com/couchcryptid/wildfire-risk-service/internal/observability"
	"github.com/couchcryptid/wildfire-risk-service/internal/pipeline"
)

const locatorCacheSize = 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Error("failed to load area catalog", "error", err)
		os.Exit(1)
	}
	logger.Info("area catalog loaded", "areas", cat.Len(), "priority", len(cat.Priority()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var readiness []sharedobs.ReadinessChecker

	// Model metadata cache (Redis when REDIS_URL is set).
	var store predict.MetadataStore = predict.NewMemoryStore()
	var redisStore *redisstore.Store
	if cfg.RedisURL != "" {
		rdb, err := redisstore.Connect(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect redis", "error", err)
			os.Exit(1)
		}
		redisStore = redisstore.New(rdb, redisstore.DefaultTTL)
		store = redisStore
		readiness = append(readiness, redisStore)
		logger.Info("redis model metadata store enabled")
	}

	// Incident source (Kafka feed when enabled, otherwise a static file).
	var incidents incident.Source
	var feed *kafkaadapter.IncidentFeed
	var observers []pipeline.Observer
	var writer *kafkaadapter.PredictionWriter
	coordOpts := []pipeline.Option{
		pipeline.WithBatchSize(cfg.PredictionBatchSize),
		pipeline.WithBatchDelay(cfg.PredictionBatchDelay),
		pipeline.WithUniformWeights(cfg.ReconcileUniformWeights),
	}
	if cfg.KafkaEnabled {
		feed = kafkaadapter.NewIncidentFeed(cfg, logger)
		incidents = feed
		// No run before the topic replay completes.
		coordOpts = append(coordOpts, pipeline.WithStartGate(feed))
		readiness = append(readiness, feed)
		writer = kafkaadapter.NewPredictionWriter(cfg, logger)
		observers = append(observers, writer)
		logger.Info("kafka enabled", "brokers", cfg.KafkaBrokers,
			"incidents_topic", cfg.KafkaIncidentsTopic, "predictions_topic", cfg.KafkaPredictionsTopic)
	} else {
		static, err := incident.LoadFile(cfg.IncidentsPath)
		if err != nil {
			logger.Error("failed to load incidents", "error", err)
			os.Exit(1)
		}
		incidents = static
		logger.Info("kafka disabled, using static incidents", "path", cfg.IncidentsPath)
	}

	client := predict.NewClient(cfg.PredictionBaseURL, cfg.PredictionTimeout, store, logger, metrics,
		predict.WithRequestsPerMinute(cfg.PredictionRequestsPerMinute),
	)

	coord := pipeline.New(cat, incidents, client, logger, metrics, append(coordOpts,
		pipeline.WithObservers(observers...),
		pipeline.WithLocator(catalog.NewLocator(cat, locatorCacheSize)),
		pipeline.WithModelInfo(client),
	)...)

	srv := httpadapter.NewServer(cfg.HTTPAddr, coord, client, logger, readiness...)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start incident feed.
	if feed != nil {
		go func() {
			if err := feed.Run(ctx); err != nil {
				logger.Error("incident feed error", "error", err)
			}
		}()
	}

	// Start aggregation loop.
	go func() {
		if err := coord.Start(ctx, cfg.RunInterval); err != nil {
			logger.Error("coordinator error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if feed != nil {
		if err := feed.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
