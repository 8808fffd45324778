package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wildfire_risk"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// aggregation pipeline.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec // labels: outcome={completed,failed,superseded}
	RunInProgress  prometheus.Gauge
	RunProgress    prometheus.Gauge
	AreasPredicted prometheus.Gauge

	// Batch metrics.
	BatchesTotal  *prometheus.CounterVec   // labels: phase={priority,bulk}, outcome={success,error}
	BatchDuration *prometheus.HistogramVec // labels: phase
	BatchSize     prometheus.Histogram

	// Remote service metrics.
	PredictionRequests *prometheus.CounterVec // labels: endpoint={predict,model_info,health}, outcome
	ReconcileDropped   *prometheus.CounterVec // labels: reason={unknown_area}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunInProgress,
		m.RunProgress,
		m.AreasPredicted,
		m.BatchesTotal,
		m.BatchDuration,
		m.BatchSize,
		m.PredictionRequests,
		m.ReconcileDropped,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// NewUnregisteredMetrics creates Metrics for short-lived commands that never
// serve /metrics.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Aggregation runs by terminal outcome.",
		}, []string{"outcome"}),
		RunInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_in_progress",
			Help:      "1 while an aggregation run is executing.",
		}),
		RunProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_progress_ratio",
			Help:      "Completion fraction of the current run.",
		}),
		AreasPredicted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "areas_predicted",
			Help:      "Number of areas with a prediction in the published result set.",
		}),
		BatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Submitted batches by phase and outcome.",
		}, []string{"phase", "outcome"}),
		BatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of one batch submit-and-reconcile cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"phase"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of areas per submitted batch.",
			Buckets:   []float64{1, 5, 10, 20, 30, 50, 75, 100},
		}),
		PredictionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_requests_total",
			Help:      "Requests to the remote prediction service by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		ReconcileDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_dropped_total",
			Help:      "Remote predictions dropped during reconciliation.",
		}, []string{"reason"}),
	}
}
