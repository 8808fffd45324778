package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/wildfire-risk-service/internal/adapter/predict"
	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/incident"
	"github.com/couchcryptid/wildfire-risk-service/internal/observability"
	"github.com/couchcryptid/wildfire-risk-service/internal/reconcile"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	// DefaultBatchSize is the number of areas per remote request.
	DefaultBatchSize = 10
	// DefaultBatchDelay is the pause between consecutive bulk batches.
	DefaultBatchDelay = 500 * time.Millisecond
)

const (
	startingStatus   = "Starting..."
	modelInfoTimeout = 10 * time.Second
)

// ErrSuperseded is returned by Run when a newer run replaced it.
var ErrSuperseded = errors.New("run superseded by a newer run")

// AreaCatalog provides the areas to analyze, split into priority and bulk.
type AreaCatalog interface {
	All() []domain.GeographicArea
	Priority() []domain.GeographicArea
	Bulk() []domain.GeographicArea
}

// PredictionClient submits one batch of areas to the remote service.
type PredictionClient interface {
	Submit(ctx context.Context, areas []domain.GeographicArea, incidents []domain.FireIncident) ([]domain.RemotePrediction, error)
}

// ModelInfoFetcher refreshes remote model metadata. Implementations cache
// what they fetch.
type ModelInfoFetcher interface {
	FetchModelInfo(ctx context.Context) (domain.ModelDetails, error)
}

// StartGate holds the first scheduled run until its dependencies are ready,
// such as an incident feed still replaying its topic.
type StartGate interface {
	WaitReady(ctx context.Context) error
}

// Locator resolves a coordinate to the nearest catalog area.
type Locator interface {
	Nearest(coord domain.Coordinate) (domain.GeographicArea, bool)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithBatchSize sets the maximum number of areas per remote request.
func WithBatchSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithBatchDelay sets the pause between bulk batches. Zero disables pacing.
func WithBatchDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.batchDelay = d
		}
	}
}

// WithClock sets the clock used for pacing, timestamps and periodic runs.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithObservers registers observers notified of every published snapshot.
func WithObservers(obs ...Observer) Option {
	return func(c *Coordinator) { c.observers = append(c.observers, obs...) }
}

// WithLocator overrides the nearest-area lookup.
func WithLocator(l Locator) Option {
	return func(c *Coordinator) { c.locator = l }
}

// WithModelInfo refreshes model metadata in the background at the start of
// every run.
func WithModelInfo(f ModelInfoFetcher) Option {
	return func(c *Coordinator) { c.model = f }
}

// WithStartGate delays the first run of Start until g reports ready.
func WithStartGate(g StartGate) Option {
	return func(c *Coordinator) { c.gate = g }
}

// WithUniformWeights gives every reconciled risk factor a weight of 1.0.
func WithUniformWeights(uniform bool) Option {
	return func(c *Coordinator) { c.uniformWeights = uniform }
}

// Coordinator drives aggregation runs over the catalog and owns the
// published result set. Only the current run may publish; a new run
// cancels the previous one and its later results are discarded.
type Coordinator struct {
	catalog    AreaCatalog
	incidents  incident.Source
	client     PredictionClient
	model      ModelInfoFetcher
	gate       StartGate
	locator    Locator
	reconciler *reconcile.Reconciler
	observers  []Observer
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics

	batchSize      int
	batchDelay     time.Duration
	uniformWeights bool

	trigger chan struct{}
	ready   atomic.Bool

	// publishMu orders run switches, snapshot updates and observer delivery.
	publishMu sync.Mutex

	mu        sync.RWMutex
	current   *run
	latest    Snapshot
	completed []domain.AreaFireRiskPrediction
	// view is what queries read: completed, overlaid by the predictions of
	// the run in flight.
	view []domain.AreaFireRiskPrediction
}

type run struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
	snap   Snapshot
	// err is the run's outcome, set before done is closed.
	err error
}

// New creates a Coordinator. A nil incident source is treated as having no
// active incidents.
func New(cat AreaCatalog, incidents incident.Source, client PredictionClient, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Coordinator {
	c := &Coordinator{
		catalog:    cat,
		incidents:  incidents,
		client:     client,
		clock:      clockwork.NewRealClock(),
		logger:     logger,
		metrics:    metrics,
		batchSize:  DefaultBatchSize,
		batchDelay: DefaultBatchDelay,
		trigger:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.incidents == nil {
		c.incidents = incident.NewStatic(nil)
	}
	if c.locator == nil {
		c.locator = catalogLocator{cat}
	}
	c.reconciler = reconcile.New(cat.All(),
		reconcile.WithClock(c.clock),
		reconcile.WithUniformWeights(c.uniformWeights),
	)
	return c
}

// CheckReadiness returns nil once a run has completed, or an error
// describing why the service is not yet ready.
func (c *Coordinator) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("no aggregation run has completed yet")
	}
	return nil
}

// Start runs an aggregation as soon as the start gate, if any, is ready,
// then every interval and whenever Trigger is called, until ctx is cancelled. A non-positive interval
// disables periodic runs.
func (c *Coordinator) Start(ctx context.Context, interval time.Duration) error {
	c.logger.Info("coordinator started", "interval", interval, "batch_size", c.batchSize, "batch_delay", c.batchDelay)
	if c.gate != nil {
		c.logger.Info("waiting for dependencies before the first run")
		if err := c.gate.WaitReady(ctx); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("coordinator stopping", "reason", ctx.Err())
				return nil
			}
			return fmt.Errorf("wait for start gate: %w", err)
		}
	}
	c.runLogged(ctx)

	var tick <-chan time.Time
	if interval > 0 {
		ticker := c.clock.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.Chan()
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopping", "reason", ctx.Err())
			return nil
		case <-tick:
			c.runLogged(ctx)
		case <-c.trigger:
			c.runLogged(ctx)
		}
	}
}

// Trigger asks the Start loop for a run. It returns false when a request is
// already pending.
func (c *Coordinator) Trigger() bool {
	select {
	case c.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

func (c *Coordinator) runLogged(ctx context.Context) {
	if _, err := c.Run(ctx); err != nil && ctx.Err() == nil && !errors.Is(err, ErrSuperseded) {
		c.logger.Error("aggregation run failed", "error", err)
	}
}

// Run executes one aggregation over the whole catalog and returns its final
// snapshot. Priority batch failures fail the run; bulk batch failures are
// logged and skipped.
func (c *Coordinator) Run(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r, _ := c.begin(ctx, cancel, false)
	return c.execute(ctx, r)
}

// joinOrStart returns the run in flight, or starts a new one in the
// background. A started run is detached from ctx's cancellation so a
// departing caller does not fail it.
func (c *Coordinator) joinOrStart(ctx context.Context) *run {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r, started := c.begin(runCtx, cancel, true)
	if !started {
		cancel()
		return r
	}
	go func() {
		defer cancel()
		_, _ = c.execute(runCtx, r)
	}()
	return r
}

// execute drives r through both phases and records its outcome for waiters.
func (c *Coordinator) execute(ctx context.Context, r *run) (final Snapshot, err error) {
	defer func() {
		r.err = err
		close(r.done)
	}()

	logger := c.logger.With("run_id", r.id)
	logger.Info("aggregation run started", "areas", len(c.catalog.All()))

	if c.model != nil {
		go c.refreshModelInfo(ctx, logger)
	}

	priority, bulk := PlanRun(c.catalog, c.batchSize)

	if !c.publish(ctx, r, func(s *Snapshot) {
		s.Progress = setupShare
		s.Status = fmt.Sprintf("Analyzing %d priority areas", len(c.catalog.Priority()))
	}) {
		return c.superseded(logger)
	}

	for i, batch := range priority {
		added, err := c.processBatch(ctx, logger, PhasePriority, batch)
		if err != nil {
			if ctx.Err() != nil {
				return c.interrupted(ctx, r, logger, ctx.Err())
			}
			logger.Error("priority batch failed", "batch", i+1, "batches", len(priority), "error", err)
			return c.fail(ctx, r, logger, err)
		}
		if !c.publish(ctx, r, func(s *Snapshot) {
			s.add(added)
			s.Progress = phaseProgress(PhasePriority, i+1, len(priority))
		}) {
			return c.superseded(logger)
		}
	}

	if !c.publish(ctx, r, func(s *Snapshot) {
		s.Phase = PhaseBulk
		s.Progress = phaseProgress(PhasePriority, len(priority), len(priority))
		s.Status = fmt.Sprintf("Analyzing %d remaining areas", len(c.catalog.Bulk()))
	}) {
		return c.superseded(logger)
	}

	skipped := 0
	for i, batch := range bulk {
		if i > 0 && !sleepWithContext(ctx, c.clock, c.batchDelay) {
			return c.interrupted(ctx, r, logger, ctx.Err())
		}

		added, err := c.processBatch(ctx, logger, PhaseBulk, batch)
		if err != nil {
			if ctx.Err() != nil {
				return c.interrupted(ctx, r, logger, ctx.Err())
			}
			skipped++
			logger.Warn("bulk batch failed, skipping", "batch", i+1, "batches", len(bulk), "areas", len(batch), "error", err)
		}
		if !c.publish(ctx, r, func(s *Snapshot) {
			s.add(added)
			s.Progress = phaseProgress(PhaseBulk, i+1, len(bulk))
		}) {
			return c.superseded(logger)
		}
	}

	final, ok := c.finish(ctx, r, func(s *Snapshot) {
		s.State = StateCompleted
		s.Phase = PhaseNone
		s.Progress = 1.0
		s.Status = fmt.Sprintf("Complete: %d areas analyzed", len(s.Predictions))
	})
	if !ok {
		return c.superseded(logger)
	}
	c.ready.Store(true)
	logger.Info("aggregation run completed", "predictions", len(final.Predictions), "skipped_batches", skipped)
	return final, nil
}

// processBatch submits one batch with a fresh incident snapshot and
// reconciles the response against the catalog.
func (c *Coordinator) processBatch(ctx context.Context, logger *slog.Logger, phase Phase, batch []domain.GeographicArea) ([]domain.AreaFireRiskPrediction, error) {
	start := c.clock.Now()
	c.metrics.BatchSize.Observe(float64(len(batch)))

	remote, err := c.submit(ctx, batch)
	c.metrics.BatchDuration.WithLabelValues(phase.String()).Observe(c.clock.Since(start).Seconds())
	if err != nil {
		c.metrics.BatchesTotal.WithLabelValues(phase.String(), "error").Inc()
		return nil, err
	}
	c.metrics.BatchesTotal.WithLabelValues(phase.String(), "success").Inc()

	preds, dropped := c.reconciler.ReconcileAll(remote)
	if dropped > 0 {
		c.metrics.ReconcileDropped.WithLabelValues("unknown_area").Add(float64(dropped))
		logger.Warn("dropped predictions for unknown areas", "phase", phase.String(), "dropped", dropped)
	}
	return preds, nil
}

func (c *Coordinator) submit(ctx context.Context, batch []domain.GeographicArea) ([]domain.RemotePrediction, error) {
	incidents, err := c.incidents.CurrentIncidents(ctx)
	if err != nil {
		return nil, fmt.Errorf("read incidents: %w", err)
	}
	return c.client.Submit(ctx, batch, incidents)
}

// refreshModelInfo outlives the run that started it; a short run must not
// cut the fetch off.
func (c *Coordinator) refreshModelInfo(ctx context.Context, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), modelInfoTimeout)
	defer cancel()

	details, err := c.model.FetchModelInfo(ctx)
	if err != nil {
		logger.Warn("model info refresh failed", "error", err)
		return
	}
	logger.Debug("model info refreshed", "model_type", details.ModelType, "features", details.FeaturesCount)
}

// begin makes a new run current, cancelling any run still in flight. With
// join set, a run in flight is returned instead and started is false.
func (c *Coordinator) begin(ctx context.Context, cancel context.CancelFunc, join bool) (r *run, started bool) {
	r = &run{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.snap = Snapshot{
		RunID:     r.id,
		State:     StateRunning,
		Phase:     PhasePriority,
		Status:    startingStatus,
		StartedAt: c.clock.Now(),
	}

	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	prev := c.current
	prevRunning := prev != nil && prev.snap.Running()
	if join && prevRunning {
		c.mu.Unlock()
		return prev, false
	}
	c.current = r
	snap := r.snap.clone()
	c.latest = snap
	c.view = c.completed
	c.mu.Unlock()

	if prevRunning {
		prev.cancel()
		c.metrics.RunsTotal.WithLabelValues("superseded").Inc()
		c.logger.Info("aggregation run superseded", "run_id", prev.id, "by", r.id)
	}
	c.record(snap)
	c.notify(ctx, snap)
	return r, true
}

// publish applies mutate to the run's snapshot and notifies observers. It
// returns false, without applying anything, when r is no longer current.
func (c *Coordinator) publish(ctx context.Context, r *run, mutate func(*Snapshot)) bool {
	_, ok := c.finish(ctx, r, mutate)
	return ok
}

func (c *Coordinator) finish(ctx context.Context, r *run, mutate func(*Snapshot)) (Snapshot, bool) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	if c.current != r {
		c.mu.Unlock()
		return Snapshot{}, false
	}
	r.snap.Added = nil
	mutate(&r.snap)
	if !r.snap.Running() {
		r.snap.FinishedAt = c.clock.Now()
	}
	snap := r.snap.clone()
	c.latest = snap
	switch snap.State {
	case StateCompleted:
		c.completed = snap.Predictions
		c.view = snap.Predictions
	case StateFailed:
		c.view = c.completed
	default:
		c.view = overlay(c.completed, snap.Predictions)
	}
	c.mu.Unlock()

	c.record(snap)
	c.notify(ctx, snap)
	return snap, true
}

func (c *Coordinator) fail(ctx context.Context, r *run, logger *slog.Logger, err error) (Snapshot, error) {
	msg := failureMessage(err)
	final, ok := c.finish(ctx, r, func(s *Snapshot) {
		s.State = StateFailed
		s.Phase = PhaseNone
		s.Predictions = nil
		s.Err = msg
		s.Status = "Failed: " + msg
	})
	if !ok {
		return c.superseded(logger)
	}
	logger.Error("aggregation run failed", "error", err)
	return final, err
}

// interrupted handles a cancelled run context, which is either a newer run
// superseding this one or the caller giving up.
func (c *Coordinator) interrupted(ctx context.Context, r *run, logger *slog.Logger, err error) (Snapshot, error) {
	c.mu.RLock()
	current := c.current == r
	c.mu.RUnlock()
	if !current {
		return c.superseded(logger)
	}
	return c.fail(ctx, r, logger, err)
}

func (c *Coordinator) superseded(logger *slog.Logger) (Snapshot, error) {
	logger.Info("aggregation run discarded")
	return Snapshot{}, ErrSuperseded
}

func (c *Coordinator) record(s Snapshot) {
	c.metrics.RunProgress.Set(s.Progress)
	switch s.State {
	case StateRunning:
		c.metrics.RunInProgress.Set(1)
	case StateCompleted:
		c.metrics.RunInProgress.Set(0)
		c.metrics.RunsTotal.WithLabelValues("completed").Inc()
		c.metrics.AreasPredicted.Set(float64(len(s.Predictions)))
	case StateFailed:
		c.metrics.RunInProgress.Set(0)
		c.metrics.RunsTotal.WithLabelValues("failed").Inc()
	}
}

// notify delivers s to every observer. Observers outlive the run context.
func (c *Coordinator) notify(ctx context.Context, s Snapshot) {
	ctx = context.WithoutCancel(ctx)
	for _, o := range c.observers {
		o.Observe(ctx, s)
	}
}

// Snapshot returns the most recently published snapshot.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

func failureMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "Analysis was cancelled."
	}
	return predict.UserMessage(err)
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

type catalogLocator struct {
	catalog AreaCatalog
}

func (l catalogLocator) Nearest(coord domain.Coordinate) (domain.GeographicArea, bool) {
	areas := l.catalog.All()
	idx := domain.NearestArea(areas, coord)
	if idx < 0 {
		return domain.GeographicArea{}, false
	}
	return areas[idx], true
}
