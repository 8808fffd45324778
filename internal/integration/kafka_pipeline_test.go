//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/wildfire-risk-service/internal/adapter/kafka"
	"github.com/couchcryptid/wildfire-risk-service/internal/adapter/predict"
	"github.com/couchcryptid/wildfire-risk-service/internal/catalog"
	"github.com/couchcryptid/wildfire-risk-service/internal/config"
	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/mockpredictor"
	"github.com/couchcryptid/wildfire-risk-service/internal/observability"
	"github.com/couchcryptid/wildfire-risk-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const (
	testIncidentsTopic   = "test-incidents"
	testPredictionsTopic = "test-predictions"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("wildfire-risk-test"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start kafka container")

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func testConfig(broker string) *config.Config {
	return &config.Config{
		KafkaEnabled:          true,
		KafkaBrokers:          []string{broker},
		KafkaPredictionsTopic: testPredictionsTopic,
		KafkaIncidentsTopic:   testIncidentsTopic,
		KafkaClientID:         "wildfire-risk-integration",
	}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testPredictionsTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// publishedPrediction holds a deserialized message read from the predictions topic.
type publishedPrediction struct {
	Message kafka.PredictionMessage
	Key     string
	Headers map[string]string
}

func readPrediction(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedPrediction {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from predictions topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var pm kafka.PredictionMessage
	require.NoError(t, json.Unmarshal(msg.Value, &pm), "unmarshal prediction message")

	return publishedPrediction{Message: pm, Key: string(msg.Key), Headers: headers}
}

func incidentMessage(t *testing.T, inc domain.FireIncident) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(inc)
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(inc.Name), Value: payload}
}

// TestKafkaAdapters verifies that the incident feed replays its topic,
// tombstones included, and that the prediction writer publishes keyed
// messages with run headers.
func TestKafkaAdapters(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testIncidentsTopic)
	createTopic(t, broker, testPredictionsTopic)
	cfg := testConfig(broker)

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testIncidentsTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	started := time.Date(2024, time.September, 5, 18, 0, 0, 0, time.UTC)
	line := domain.FireIncident{
		Name:             "Line Fire",
		Location:         domain.Coordinate{Lat: 34.15, Lon: -117.19},
		AcresBurned:      43978,
		PercentContained: 20,
		IsActive:         true,
		StartedAt:        started,
	}
	park := domain.FireIncident{
		Name:             "Park Fire",
		Location:         domain.Coordinate{Lat: 39.81, Lon: -121.73},
		AcresBurned:      429603,
		PercentContained: 100,
		StartedAt:        started,
	}
	updated := line
	updated.PercentContained = 56

	require.NoError(t, producer.WriteMessages(ctx,
		incidentMessage(t, line),
		incidentMessage(t, park),
		kafkago.Message{Key: []byte("Park Fire")},
		incidentMessage(t, updated),
	))

	feed := kafka.NewIncidentFeed(cfg, discardLogger())
	t.Cleanup(func() { _ = feed.Close() })
	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()
	go func() { _ = feed.Run(feedCtx) }()

	waitCtx, cancelWait := context.WithTimeout(ctx, 45*time.Second)
	defer cancelWait()
	require.NoError(t, feed.WaitReady(waitCtx), "feed should finish replaying the topic")
	require.NoError(t, feed.CheckReadiness(ctx))

	incidents, err := feed.CurrentIncidents(ctx)
	require.NoError(t, err)
	require.Len(t, incidents, 1, "a caught-up feed holds the latest report only")
	assert.InDelta(t, 56, incidents[0].PercentContained, 1e-9)

	// Publish two predictions through the observer path.
	area := &domain.GeographicArea{Name: "riverside", DisplayName: "Riverside"}
	other := &domain.GeographicArea{Name: "redlands", DisplayName: "Redlands"}
	updatedAt := time.Date(2024, time.September, 6, 12, 0, 0, 0, time.UTC)
	writer := kafka.NewPredictionWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	writer.Observe(ctx, pipeline.Snapshot{
		RunID: "run-1",
		Added: []domain.AreaFireRiskPrediction{
			{Area: area, RiskLevel: domain.RiskHigh, RiskScore: 0.62, LastUpdated: updatedAt},
			{Area: other, RiskLevel: domain.RiskLow, RiskScore: 0.12, LastUpdated: updatedAt},
		},
	})

	consumer := newConsumer(t, broker)
	first := readPrediction(ctx, t, consumer)
	assert.Equal(t, "riverside", first.Key)
	assert.Equal(t, "run-1", first.Headers["run_id"])
	assert.Equal(t, "high", first.Headers["risk_level"])
	assert.Equal(t, "2024-09-06T12:00:00Z", first.Headers["last_updated"])
	assert.Equal(t, "run-1", first.Message.RunID)
	assert.InDelta(t, 0.62, first.Message.Prediction.RiskScore, 1e-9)

	second := readPrediction(ctx, t, consumer)
	assert.Equal(t, "redlands", second.Key)
	assert.Equal(t, "low", second.Headers["risk_level"])
}

// TestPipelineEndToEnd runs a full aggregation against the mock prediction
// service with incidents from Kafka and predictions published to Kafka.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testIncidentsTopic)
	createTopic(t, broker, testPredictionsTopic)
	cfg := testConfig(broker)

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testIncidentsTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, incidentMessage(t, domain.FireIncident{
		Name:             "Line Fire",
		Location:         domain.Coordinate{Lat: 34.15, Lon: -117.19},
		AcresBurned:      43978,
		PercentContained: 0,
		IsActive:         true,
	})))

	feed := kafka.NewIncidentFeed(cfg, discardLogger())
	t.Cleanup(func() { _ = feed.Close() })
	go func() { _ = feed.Run(ctx) }()
	require.NoError(t, feed.WaitReady(ctx))
	require.Equal(t, 1, feed.Len())

	svc := httptest.NewServer(mockpredictor.NewHandler(
		mockpredictor.NewModel(clockwork.NewRealClock()), mockpredictor.Config{}, discardLogger()))
	t.Cleanup(svc.Close)

	cat, err := catalog.New([]domain.GeographicArea{
		{Name: "san_bernardino", DisplayName: "San Bernardino", Center: domain.Coordinate{Lat: 34.1083, Lon: -117.2898}, Population: 222101, AreaType: domain.AreaTypeWildlandUrbanInterface},
		{Name: "riverside", DisplayName: "Riverside", Center: domain.Coordinate{Lat: 33.9806, Lon: -117.3755}, Population: 314998, AreaType: domain.AreaTypeWildlandUrbanInterface},
		{Name: "eureka", DisplayName: "Eureka", Center: domain.Coordinate{Lat: 40.8021, Lon: -124.1637}, Population: 26512, AreaType: domain.AreaTypeUrban},
	}, []string{"san_bernardino"})
	require.NoError(t, err)

	metrics := observability.NewMetricsForTesting()
	client := predict.NewClient(svc.URL, 5*time.Second, predict.NewMemoryStore(), discardLogger(), metrics)
	writer := kafka.NewPredictionWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	coord := pipeline.New(cat, feed, client, discardLogger(), metrics,
		pipeline.WithBatchSize(2),
		pipeline.WithBatchDelay(0),
		pipeline.WithObservers(writer),
	)

	snap, err := coord.Run(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Predictions, 3)

	byName := make(map[string]domain.AreaFireRiskPrediction, len(snap.Predictions))
	for _, p := range snap.Predictions {
		byName[p.AreaName()] = p
	}
	assert.NotEmpty(t, byName["san_bernardino"].NearbyFires, "Line Fire is within reach of San Bernardino")
	assert.Empty(t, byName["eureka"].NearbyFires)

	consumer := newConsumer(t, broker)
	seen := map[string]string{}
	for range 3 {
		pp := readPrediction(ctx, t, consumer)
		seen[pp.Key] = pp.Headers["run_id"]
	}
	assert.Len(t, seen, 3)
	for name, runID := range seen {
		assert.Equal(t, snap.RunID, runID, name)
	}
}
