package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Remote prediction service.
	PredictionBaseURL    string
	PredictionTimeout    time.Duration
	PredictionBatchSize  int
	PredictionBatchDelay time.Duration

	// PredictionRequestsPerMinute caps remote calls; zero means unlimited.
	PredictionRequestsPerMinute int

	RunInterval             time.Duration
	ReconcileUniformWeights bool

	CatalogPath   string
	IncidentsPath string

	KafkaEnabled          bool
	KafkaBrokers          []string
	KafkaPredictionsTopic string
	KafkaIncidentsTopic   string
	KafkaClientID         string

	RedisURL string
}

const maxPredictionBatchSize = 100

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	predictionTimeout, err := parsePositiveDuration("PREDICTION_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	batchDelay, err := time.ParseDuration(sharedcfg.EnvOrDefault("PREDICTION_BATCH_DELAY", "500ms"))
	if err != nil || batchDelay < 0 {
		return nil, errors.New("invalid PREDICTION_BATCH_DELAY")
	}

	requestsPerMinute, err := strconv.Atoi(sharedcfg.EnvOrDefault("PREDICTION_REQUESTS_PER_MINUTE", "0"))
	if err != nil || requestsPerMinute < 0 {
		return nil, errors.New("invalid PREDICTION_REQUESTS_PER_MINUTE")
	}

	runInterval, err := parsePositiveDuration("RUN_INTERVAL", "15m")
	if err != nil {
		return nil, err
	}

	batchSize, err := parseBatchSize()
	if err != nil {
		return nil, err
	}

	uniformWeights, err := parseBool("RECONCILE_UNIFORM_WEIGHTS", false)
	if err != nil {
		return nil, err
	}

	brokersEnv := os.Getenv("KAFKA_BROKERS")
	kafkaEnabled := brokersEnv != ""
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PredictionBaseURL:    sharedcfg.EnvOrDefault("PREDICTION_BASE_URL", "http://localhost:8000"),
		PredictionTimeout:    predictionTimeout,
		PredictionBatchSize:  batchSize,
		PredictionBatchDelay: batchDelay,

		PredictionRequestsPerMinute: requestsPerMinute,

		RunInterval:             runInterval,
		ReconcileUniformWeights: uniformWeights,

		CatalogPath:   os.Getenv("CATALOG_PATH"),
		IncidentsPath: os.Getenv("INCIDENTS_PATH"),

		KafkaEnabled:          kafkaEnabled,
		KafkaBrokers:          sharedcfg.ParseBrokers(brokersEnv),
		KafkaPredictionsTopic: sharedcfg.EnvOrDefault("KAFKA_PREDICTIONS_TOPIC", "area-risk-predictions"),
		KafkaIncidentsTopic:   sharedcfg.EnvOrDefault("KAFKA_INCIDENTS_TOPIC", "fire-incidents"),
		KafkaClientID:         sharedcfg.EnvOrDefault("KAFKA_CLIENT_ID", "wildfire-risk-service"),

		RedisURL: os.Getenv("REDIS_URL"),
	}

	if err := validateBaseURL(cfg.PredictionBaseURL); err != nil {
		return nil, err
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaPredictionsTopic == "" {
		return nil, errors.New("KAFKA_PREDICTIONS_TOPIC is required")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBatchSize() (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault("PREDICTION_BATCH_SIZE", "10"))
	if err != nil || n <= 0 || n > maxPredictionBatchSize {
		return 0, fmt.Errorf("invalid PREDICTION_BATCH_SIZE: must be between 1 and %d", maxPredictionBatchSize)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("invalid PREDICTION_BASE_URL: must be an absolute http(s) URL")
	}
	return nil
}
