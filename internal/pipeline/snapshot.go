package pipeline

import (
	"context"
	"slices"
	"time"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
)

// State is the lifecycle position of an aggregation run.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Phase distinguishes the two halves of a running aggregation.
type Phase int

const (
	PhaseNone Phase = iota
	PhasePriority
	PhaseBulk
)

func (p Phase) String() string {
	switch p {
	case PhasePriority:
		return "priority"
	case PhaseBulk:
		return "bulk"
	default:
		return "none"
	}
}

// Progress shares of a run. Setup takes the first tenth, priority batches
// the next fifth and bulk batches the remainder.
const (
	setupShare    = 0.1
	priorityShare = 0.2
	bulkShare     = 0.7
)

// phaseProgress returns overall progress after done of total batches in a
// phase have finished. It is monotonic across the run.
func phaseProgress(phase Phase, done, total int) float64 {
	base, share := setupShare, priorityShare
	if phase == PhaseBulk {
		base, share = setupShare+priorityShare, bulkShare
	}
	if total <= 0 {
		return base + share
	}
	return base + share*float64(done)/float64(total)
}

// Snapshot is an immutable view of one run at a point in time. Predictions
// only ever grows within a run; Added holds the predictions appended by the
// step that produced the snapshot.
type Snapshot struct {
	RunID       string
	State       State
	Phase       Phase
	Predictions []domain.AreaFireRiskPrediction
	Added       []domain.AreaFireRiskPrediction
	Progress    float64
	Status      string
	Err         string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Running reports whether the run is still executing.
func (s Snapshot) Running() bool { return s.State == StateRunning }

func (s *Snapshot) add(preds []domain.AreaFireRiskPrediction) {
	s.Predictions = append(s.Predictions, preds...)
	s.Added = preds
}

// clone detaches the snapshot from later appends by the run.
func (s Snapshot) clone() Snapshot {
	s.Predictions = slices.Clip(s.Predictions)
	s.Added = slices.Clip(s.Added)
	return s
}

// Observer receives every snapshot the coordinator publishes, in order.
// Implementations must not block for long; the run waits on them.
type Observer interface {
	Observe(ctx context.Context, s Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, s Snapshot)

func (f ObserverFunc) Observe(ctx context.Context, s Snapshot) { f(ctx, s) }
