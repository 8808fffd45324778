package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/wildfire-risk-service/internal/config"
	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
)

const publishTimeout = 10 * time.Second

// PredictionMessage is the value of every message on the predictions topic.
type PredictionMessage struct {
	RunID      string                        `json:"run_id"`
	Prediction domain.AreaFireRiskPrediction `json:"prediction"`
}

// PredictionWriter publishes each batch of newly reconciled predictions to
// a Kafka topic. It implements pipeline.Observer.
type PredictionWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPredictionWriter creates a Kafka producer for the configured
// predictions topic.
func NewPredictionWriter(cfg *config.Config, logger *slog.Logger) *PredictionWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaPredictionsTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		Transport:    &kafkago.Transport{ClientID: cfg.KafkaClientID},
	}
	return &PredictionWriter{writer: w, logger: logger}
}

// Observe publishes the predictions a snapshot added. Publishing failures
// are logged and never affect the run.
func (w *PredictionWriter) Observe(ctx context.Context, s pipeline.Snapshot) {
	if len(s.Added) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := w.WriteBatch(ctx, s.RunID, s.Added); err != nil {
		w.logger.Warn("publish predictions failed", "error", err, "run_id", s.RunID, "count", len(s.Added))
	}
}

// WriteBatch serializes and publishes predictions in a single WriteMessages
// call.
func (w *PredictionWriter) WriteBatch(ctx context.Context, runID string, preds []domain.AreaFireRiskPrediction) error {
	if len(preds) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(preds))
	for i := range preds {
		msg, err := serializeToMessage(runID, preds[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *PredictionWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a prediction into a Kafka message keyed by
// area name.
func serializeToMessage(runID string, p domain.AreaFireRiskPrediction) (kafkago.Message, error) {
	data, err := json.Marshal(PredictionMessage{RunID: runID, Prediction: p})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize prediction: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(p.AreaName()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "risk_level", Value: []byte(p.RiskLevel)},
			{Key: "last_updated", Value: []byte(p.LastUpdated.UTC().Format(time.RFC3339))},
		},
	}, nil
}
