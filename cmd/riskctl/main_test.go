package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/couchcryptid/wildfire-risk-service/internal/catalog"
	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/mockpredictor"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command against a mock prediction service and
// returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	svc := httptest.NewServer(mockpredictor.NewHandler(
		mockpredictor.NewModel(clockwork.NewRealClock()),
		mockpredictor.Config{},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	))
	t.Cleanup(svc.Close)

	t.Setenv("PREDICTION_BASE_URL", svc.URL)
	t.Setenv("PREDICTION_BATCH_DELAY", "0s")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunCommand_Table(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	out, err := execute(t, "run", "--json=false", "--high-risk=false")
	require.NoError(t, err)

	assert.Contains(t, out, "AREA")
	assert.Contains(t, out, "Complete: ")
	assert.Contains(t, out, "los_angeles")
	// Header, status line, blank line and one row per area.
	assert.Equal(t, cat.Len()+3, bytes.Count([]byte(out), []byte("\n")))
}

func TestRunCommand_JSONHighRisk(t *testing.T) {
	out, err := execute(t, "run", "--json", "--high-risk")
	require.NoError(t, err)

	var preds []domain.AreaFireRiskPrediction
	require.NoError(t, json.Unmarshal([]byte(out), &preds))
	for _, p := range preds {
		assert.True(t, p.RiskLevel.IsElevated(), p.AreaName())
	}
}

func TestNearestCommand(t *testing.T) {
	out, err := execute(t, "nearest", "--json", "--lat", "34.06", "--lon", "-118.25")
	require.NoError(t, err)

	var p domain.AreaFireRiskPrediction
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	require.NotNil(t, p.Area)
	assert.Equal(t, "los_angeles", p.Area.Name)
}

func TestNearestCommand_OutOfRange(t *testing.T) {
	_, err := execute(t, "nearest", "--json=false", "--lat", "91", "--lon", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestModelInfoCommand(t *testing.T) {
	out, err := execute(t, "model-info", "--json=false")
	require.NoError(t, err)

	assert.Contains(t, out, "Service: healthy (model loaded)")
	assert.Contains(t, out, "Features: 3")
	assert.Contains(t, out, "Weather provider: none")
}

func TestCatalogValidateCommand_Fails(t *testing.T) {
	path := writeFile(t, "areas.yaml", "areas: []\n")

	out, err := execute(t, "catalog", "validate", "--file", path, "--incidents", "", "--batch-size", "10")
	require.Error(t, err)
	assert.Contains(t, out, "catalog has no areas")
}

func TestCatalogValidateCommand_BatchSize(t *testing.T) {
	out, err := execute(t, "catalog", "validate", "--file", "", "--incidents", "", "--batch-size", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Batch size: 3")
	// Six priority areas plan into two batches of three.
	assert.Contains(t, out, "Batches: 2 priority")
}

func TestWeatherCommand(t *testing.T) {
	out, err := execute(t, "weather", "--json=false", "--lat", "34.05", "--lon", "-118.24")
	require.NoError(t, err)

	assert.Contains(t, out, "Temperature: ")
	assert.Contains(t, out, "Red flag warning: ")
}

func TestWeatherCommand_JSON(t *testing.T) {
	out, err := execute(t, "weather", "--json", "--lat", "34.05", "--lon", "-118.24")
	require.NoError(t, err)

	var w domain.WeatherConditions
	require.NoError(t, json.Unmarshal([]byte(out), &w))
	assert.NotZero(t, w.TemperatureF)
	assert.NotEmpty(t, w.LastUpdated)
}
