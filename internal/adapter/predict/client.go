package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	maxErrorBodyBytes   = 4 << 10
	maxSuccessBodyBytes = 16 << 20
	metadataSaveTimeout = 2 * time.Second
)

// Client talks to the remote wildfire risk prediction service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      MetadataStore
	clock      clockwork.Clock
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRequestsPerMinute caps the request rate to the remote service. Each
// request waits for a token; n <= 0 leaves the client unlimited.
func WithRequestsPerMinute(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(float64(n)/60.0), 1)
		}
	}
}

// NewClient creates a prediction client. Every request is bounded by timeout.
// A nil store disables metadata caching.
func NewClient(baseURL string, timeout time.Duration, store MetadataStore, logger *slog.Logger, metrics *observability.Metrics, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		store:   store,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit sends one batch of areas together with the full incident snapshot
// and returns the service's predictions for that batch.
func (c *Client) Submit(ctx context.Context, areas []domain.GeographicArea, incidents []domain.FireIncident) ([]domain.RemotePrediction, error) {
	body, err := json.Marshal(newPredictRequest(areas, incidents))
	if err != nil {
		return nil, fmt.Errorf("encode predict request: %w", err)
	}

	var resp predictResponse
	if err := c.do(ctx, http.MethodPost, "/predict", body, &resp); err != nil {
		return nil, err
	}

	c.saveModelInfo(ctx, resp)

	out := make([]domain.RemotePrediction, len(resp.Predictions))
	for i, p := range resp.Predictions {
		out[i] = p.toDomain()
	}
	return out, nil
}

// FetchModelInfo reads the service's model metadata and caches it. It is
// independent of batch submission.
func (c *Client) FetchModelInfo(ctx context.Context) (domain.ModelDetails, error) {
	var details domain.ModelDetails
	if err := c.do(ctx, http.MethodGet, "/model/info", nil, &details); err != nil {
		return domain.ModelDetails{}, err
	}
	c.saveModelDetails(ctx, details)
	return details, nil
}

// Weather reads the service's current fire weather at coord.
func (c *Client) Weather(ctx context.Context, coord domain.Coordinate) (domain.WeatherConditions, error) {
	path := "/weather/" + strconv.FormatFloat(coord.Lat, 'f', -1, 64) + "/" + strconv.FormatFloat(coord.Lon, 'f', -1, 64)
	var conditions domain.WeatherConditions
	if err := c.do(ctx, http.MethodGet, path, nil, &conditions); err != nil {
		return domain.WeatherConditions{}, err
	}
	return conditions, nil
}

// Health reads the service's health summary.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var status HealthStatus
	if err := c.do(ctx, http.MethodGet, "/health", nil, &status); err != nil {
		return HealthStatus{}, err
	}
	return status, nil
}

// LatestModelInfo returns the metadata cached from the most recent successful
// prediction response.
func (c *Client) LatestModelInfo(ctx context.Context) (domain.ModelInfo, bool, error) {
	if c.store == nil {
		return domain.ModelInfo{}, false, nil
	}
	return c.store.LatestModelInfo(ctx)
}

// LatestModelDetails returns the details cached from the most recent
// successful FetchModelInfo.
func (c *Client) LatestModelDetails(ctx context.Context) (domain.ModelDetails, bool, error) {
	if c.store == nil {
		return domain.ModelDetails{}, false, nil
	}
	return c.store.LatestModelDetails(ctx)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	endpoint := endpointLabel(path)
	op := method + " " + path

	if err := c.wait(ctx); err != nil {
		return c.fail(endpoint, &Error{Kind: waitKind(ctx), Op: op, Err: err})
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(endpoint, &Error{Kind: classifyTransport(err), Op: op, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return c.fail(endpoint, &Error{
			Kind:       classifyStatus(resp.StatusCode),
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       string(raw),
		})
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxSuccessBodyBytes))
	if err != nil {
		return c.fail(endpoint, &Error{Kind: classifyTransport(err), Op: op, Err: err})
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return c.fail(endpoint, &Error{Kind: KindDecode, Op: op, Err: err})
	}

	c.metrics.PredictionRequests.WithLabelValues(endpoint, "success").Inc()
	return nil
}

// wait blocks until the limiter grants a request slot.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// waitKind classifies a limiter failure: the caller's own deadline or
// cancellation, or a deadline too close for the next slot.
func waitKind(ctx context.Context) Kind {
	if err := ctx.Err(); err != nil {
		return classifyTransport(err)
	}
	return KindRateLimited
}

func (c *Client) fail(endpoint string, err *Error) error {
	c.metrics.PredictionRequests.WithLabelValues(endpoint, err.Kind.String()).Inc()
	return err
}

// saveModelInfo caches response metadata. Failures are logged and ignored.
func (c *Client) saveModelInfo(ctx context.Context, resp predictResponse) {
	if c.store == nil {
		return
	}
	info := domain.ModelInfo{
		Type:             resp.ModelInfo.Type,
		Accuracy:         resp.ModelInfo.Accuracy,
		Components:       resp.ModelInfo.Components,
		Features:         resp.ModelInfo.Features,
		ProcessingTimeMs: resp.ProcessingTimeMs,
		WeatherSource:    resp.WeatherSource,
		ObservedAt:       c.clock.Now().UTC(),
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metadataSaveTimeout)
	defer cancel()
	if err := c.store.SaveModelInfo(saveCtx, info); err != nil {
		c.logger.Warn("cache model info failed", "error", err)
	}
}

// saveModelDetails caches model details. Failures are logged and ignored.
func (c *Client) saveModelDetails(ctx context.Context, details domain.ModelDetails) {
	if c.store == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metadataSaveTimeout)
	defer cancel()
	if err := c.store.SaveModelDetails(saveCtx, details); err != nil {
		c.logger.Warn("cache model details failed", "error", err)
	}
}

func endpointLabel(path string) string {
	switch {
	case path == "/predict":
		return "predict"
	case path == "/model/info":
		return "model_info"
	case path == "/health":
		return "health"
	case strings.HasPrefix(path, "/weather/"):
		return "weather"
	default:
		return "other"
	}
}
