//go:build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/wildfire-risk-service/internal/adapter/redisstore"
	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := testcontainers.Run(ctx, "redis:7-alpine",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(wait.ForLog("Ready to accept connections")),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start redis container")

	endpoint, err := ctr.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func TestRedisStore_ModelInfoRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := redisstore.Connect("redis://" + startRedis(ctx, t) + "/0")
	require.NoError(t, err)
	store := redisstore.New(client, time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.CheckReadiness(ctx))

	_, ok, err := store.LatestModelInfo(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty store has no model info")

	info := domain.ModelInfo{
		Type:             "ensemble",
		Accuracy:         "87.3%",
		Components:       "random_forest,gradient_boosting",
		Features:         "24",
		ProcessingTimeMs: 142.5,
		WeatherSource:    "open-meteo",
		ObservedAt:       time.Date(2024, time.September, 6, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveModelInfo(ctx, info))

	got, ok, err := store.LatestModelInfo(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, info, got)

	ttl, err := client.TTL(ctx, "wildfire:model:latest").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestRedisStore_ModelDetailsRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := redisstore.Connect(startRedis(ctx, t))
	require.NoError(t, err)
	store := redisstore.New(client, time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	details := domain.ModelDetails{
		ModelType:       "Enhanced Ensemble (XGBoost + Random Forest)",
		Accuracy:        "94.0%",
		FeaturesCount:   48,
		WeatherProvider: "Open-Meteo API",
		ModelComponents: []string{"XGBoost Classifier", "Random Forest Classifier"},
		EnsembleWeights: map[string]float64{"XGBoost": 0.7, "Random Forest": 0.3},
		Status:          "Production Ready",
	}
	require.NoError(t, store.SaveModelDetails(ctx, details))

	got, ok, err := store.LatestModelDetails(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, details, got)

	_, ok, err = store.LatestModelInfo(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "details and response metadata are stored separately")
}
