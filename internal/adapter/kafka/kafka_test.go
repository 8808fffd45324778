package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	updated := time.Date(2025, 8, 14, 11, 30, 0, 0, time.UTC)
	area := domain.GeographicArea{Name: "malibu", DisplayName: "Malibu", Center: domain.Coordinate{Lat: 34.03, Lon: -118.78}}
	p := domain.AreaFireRiskPrediction{
		Area:        &area,
		RiskLevel:   domain.RiskExtreme,
		RiskScore:   0.91,
		LastUpdated: updated,
	}

	msg, err := serializeToMessage("run-1", p)
	require.NoError(t, err)

	assert.Equal(t, []byte("malibu"), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "run_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[0].Value)
	assert.Equal(t, "risk_level", msg.Headers[1].Key)
	assert.Equal(t, []byte("extreme"), msg.Headers[1].Value)
	assert.Equal(t, []byte(updated.Format(time.RFC3339)), msg.Headers[2].Value)

	var decoded PredictionMessage
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, "malibu", decoded.Prediction.AreaName())
	assert.Equal(t, domain.RiskExtreme, decoded.Prediction.RiskLevel)
	assert.Contains(t, string(msg.Value), `"risk_level":"extreme"`)
}

func TestParseIncidentMessage(t *testing.T) {
	payload := `{"name":"Franklin Fire","location":{"latitude":34.05,"longitude":-118.8},
		"acres_burned":4037,"percent_contained":35,"is_active":true,"started_at":"2024-12-09T23:00:00Z"}`
	msg := kafkago.Message{Key: []byte("Franklin Fire"), Value: []byte(payload)}

	key, inc, err := parseIncidentMessage(msg)
	require.NoError(t, err)
	require.NotNil(t, inc)
	assert.Equal(t, "franklin fire", key)
	assert.Equal(t, "Franklin Fire", inc.Name)
	assert.InDelta(t, 34.05, inc.Location.Lat, 1e-9)
	assert.True(t, inc.IsActive)
	assert.Equal(t, time.Date(2024, 12, 9, 23, 0, 0, 0, time.UTC), inc.StartedAt.UTC())
}

func TestParseIncidentMessage_Tombstone(t *testing.T) {
	key, inc, err := parseIncidentMessage(kafkago.Message{Key: []byte("Franklin Fire")})
	require.NoError(t, err)
	assert.Nil(t, inc)
	assert.Equal(t, "franklin fire", key)

	_, _, err = parseIncidentMessage(kafkago.Message{})
	assert.Error(t, err)
}

func TestParseIncidentMessage_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":        `not-json{{{`,
		"missing name":    `{"percent_contained":10}`,
		"bad containment": `{"name":"X","percent_contained":140}`,
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := parseIncidentMessage(kafkago.Message{Key: []byte("x"), Value: []byte(value)})
			assert.Error(t, err)
		})
	}
}

func TestIncidentFeed_ApplyKeepsLatestPerIncident(t *testing.T) {
	feed := newIncidentFeed(nil, nil, slog.Default())

	put := func(name string, contained float64) {
		v, err := json.Marshal(domain.FireIncident{Name: name, PercentContained: contained, IsActive: true})
		require.NoError(t, err)
		require.NoError(t, feed.apply(kafkago.Message{Key: []byte(name), Value: v}))
	}
	put("Eaton Fire", 10)
	put("Airport Fire", 50)
	put("Eaton Fire", 95)

	got, err := feed.CurrentIncidents(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Airport Fire", got[0].Name)
	assert.Equal(t, "Eaton Fire", got[1].Name)
	assert.InDelta(t, 95, got[1].PercentContained, 1e-9)

	require.NoError(t, feed.apply(kafkago.Message{Key: []byte("EATON FIRE")}))
	assert.Equal(t, 1, feed.Len())

	assert.Error(t, feed.apply(kafkago.Message{Key: []byte("x"), Value: []byte("{")}))
	assert.Equal(t, 1, feed.Len())
}

func TestIncidentFeed_CaughtUpAfterReplay(t *testing.T) {
	feed := newIncidentFeed(nil, nil, slog.Default())
	require.Error(t, feed.CheckReadiness(context.Background()))

	feed.setTarget(3)
	feed.advance(0)
	feed.advance(1)
	require.Error(t, feed.CheckReadiness(context.Background()), "offset 2 not yet consumed")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, feed.WaitReady(ctx), context.DeadlineExceeded)

	feed.advance(2)
	require.NoError(t, feed.CheckReadiness(context.Background()))
	require.NoError(t, feed.WaitReady(context.Background()))

	feed.advance(3)
	assert.NoError(t, feed.CheckReadiness(context.Background()))
}

func TestIncidentFeed_EmptyTopicIsCaughtUp(t *testing.T) {
	feed := newIncidentFeed(nil, nil, slog.Default())
	feed.setTarget(0)
	assert.NoError(t, feed.WaitReady(context.Background()))
}

func TestIncidentFeed_ResolveTargetRetries(t *testing.T) {
	calls := 0
	feed := newIncidentFeed(nil, func(context.Context) (int64, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("leader not available")
		}
		return 5, nil
	}, slog.Default())

	require.True(t, feed.resolveTarget(context.Background()))
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(5), feed.target)
	assert.Error(t, feed.CheckReadiness(context.Background()))
}

func TestIncidentFeed_ResolveTargetStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	feed := newIncidentFeed(nil, func(context.Context) (int64, error) {
		cancel()
		return 0, errors.New("dial: connection refused")
	}, slog.Default())

	assert.False(t, feed.resolveTarget(ctx))
}
