package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/wildfire-risk-service/internal/config"
	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// IncidentFeed consumes fire incident updates and keeps the latest report
// per incident. It implements incident.Source.
//
// Messages are keyed by incident name. An empty value removes the incident.
// The feed is caught up once it has applied every message that was on the
// topic when Run started.
type IncidentFeed struct {
	reader    *kafkago.Reader
	endOffset func(ctx context.Context) (int64, error)
	logger    *slog.Logger

	// target is the end offset of the replay; only Run touches it.
	target   int64
	caughtUp chan struct{}
	once     sync.Once

	mu        sync.RWMutex
	incidents map[string]domain.FireIncident
}

// NewIncidentFeed creates a reader for the configured incidents topic. The
// feed holds no committed offsets: every start replays the topic from the
// first offset, so the topic is expected to be compacted and single-partition.
func NewIncidentFeed(cfg *config.Config, logger *slog.Logger) *IncidentFeed {
	dialer := &kafkago.Dialer{
		ClientID:  cfg.KafkaClientID,
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   cfg.KafkaBrokers,
		Topic:     cfg.KafkaIncidentsTopic,
		Partition: 0,
		Dialer:    dialer,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	return newIncidentFeed(r, leaderEndOffset(dialer, cfg.KafkaBrokers, cfg.KafkaIncidentsTopic), logger)
}

func newIncidentFeed(r *kafkago.Reader, endOffset func(context.Context) (int64, error), logger *slog.Logger) *IncidentFeed {
	return &IncidentFeed{
		reader:    r,
		endOffset: endOffset,
		logger:    logger,
		caughtUp:  make(chan struct{}),
		incidents: make(map[string]domain.FireIncident),
	}
}

// leaderEndOffset asks the partition leader for the offset the next message
// will get. A partition holding no messages reports zero.
func leaderEndOffset(dialer *kafkago.Dialer, brokers []string, topic string) func(context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		var errs []error
		for _, broker := range brokers {
			conn, err := dialer.DialLeader(ctx, "tcp", broker, topic, 0)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			first, last, err := conn.ReadOffsets()
			_ = conn.Close()
			if err != nil {
				return 0, fmt.Errorf("read offsets: %w", err)
			}
			if first >= last {
				return 0, nil
			}
			return last, nil
		}
		return 0, fmt.Errorf("dial partition leader: %w", errors.Join(errs...))
	}
}

// Run consumes the topic until ctx is cancelled. Malformed messages are
// logged and skipped.
func (f *IncidentFeed) Run(ctx context.Context) error {
	f.logger.Info("incident feed started", "topic", f.reader.Config().Topic)

	if !f.resolveTarget(ctx) {
		f.logger.Info("incident feed stopping", "reason", ctx.Err())
		return nil
	}

	// Exponential backoff on read errors, capped at 5s.
	backoff := initialBackoff

	for {
		msg, err := f.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				f.logger.Info("incident feed stopping", "reason", ctx.Err())
				return nil
			}
			f.logger.Error("read incident failed", "error", err, "retry_in", backoff)
			if !retry.SleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = retry.NextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = initialBackoff

		if err := f.apply(msg); err != nil {
			f.logger.Warn("skipping incident message", "error", err,
				"partition", msg.Partition, "offset", msg.Offset)
		}
		f.advance(msg.Offset)
	}
}

// resolveTarget records the end offset of the replay, retrying until the
// leader answers. It returns false when ctx ends first.
func (f *IncidentFeed) resolveTarget(ctx context.Context) bool {
	backoff := initialBackoff
	for {
		end, err := f.endOffset(ctx)
		if err == nil {
			f.logger.Info("incident replay started", "end_offset", end)
			f.setTarget(end)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		f.logger.Error("read incident end offset failed", "error", err, "retry_in", backoff)
		if !retry.SleepWithContext(ctx, backoff) {
			return false
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (f *IncidentFeed) setTarget(end int64) {
	f.target = end
	if end <= 0 {
		f.markCaughtUp()
	}
}

// advance notes that the message at offset was consumed.
func (f *IncidentFeed) advance(offset int64) {
	if offset+1 >= f.target {
		f.markCaughtUp()
	}
}

func (f *IncidentFeed) markCaughtUp() {
	f.once.Do(func() {
		f.logger.Info("incident replay complete", "incidents", f.Len())
		close(f.caughtUp)
	})
}

// WaitReady blocks until the feed has caught up with the topic as it was
// when Run started.
func (f *IncidentFeed) WaitReady(ctx context.Context) error {
	select {
	case <-f.caughtUp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckReadiness reports whether the startup replay has finished.
func (f *IncidentFeed) CheckReadiness(_ context.Context) error {
	select {
	case <-f.caughtUp:
		return nil
	default:
		return errors.New("incident feed is still replaying its topic")
	}
}

// CurrentIncidents returns the latest known incidents ordered by name.
func (f *IncidentFeed) CurrentIncidents(_ context.Context) ([]domain.FireIncident, error) {
	f.mu.RLock()
	out := make([]domain.FireIncident, 0, len(f.incidents))
	for _, inc := range f.incidents {
		out = append(out, inc)
	}
	f.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Len reports the number of incidents currently held.
func (f *IncidentFeed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.incidents)
}

func (f *IncidentFeed) Close() error {
	return f.reader.Close()
}

func (f *IncidentFeed) apply(msg kafkago.Message) error {
	key, inc, err := parseIncidentMessage(msg)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if inc == nil {
		delete(f.incidents, key)
		return nil
	}
	f.incidents[key] = *inc
	return nil
}

// parseIncidentMessage decodes a message into its store key and incident.
// A nil incident marks a removal.
func parseIncidentMessage(msg kafkago.Message) (string, *domain.FireIncident, error) {
	key := domain.NormalizeName(string(msg.Key))
	if len(msg.Value) == 0 {
		if key == "" {
			return "", nil, errors.New("tombstone without key")
		}
		return key, nil, nil
	}

	var inc domain.FireIncident
	if err := json.Unmarshal(msg.Value, &inc); err != nil {
		return "", nil, fmt.Errorf("decode incident: %w", err)
	}
	if err := inc.Validate(); err != nil {
		return "", nil, err
	}
	if key == "" {
		key = domain.NormalizeName(inc.Name)
	}
	return key, &inc, nil
}
