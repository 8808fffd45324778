package pipeline

import (
	"context"
	"errors"
	"slices"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
)

// FindByName returns the first prediction whose area name matches name,
// ignoring case and surrounding whitespace.
func FindByName(preds []domain.AreaFireRiskPrediction, name string) (domain.AreaFireRiskPrediction, bool) {
	key := domain.NormalizeName(name)
	for _, p := range preds {
		if p.Area != nil && p.Area.Key() == key {
			return p, true
		}
	}
	return domain.AreaFireRiskPrediction{}, false
}

// FilterHighRisk returns the predictions at high or extreme risk, in their
// original order.
func FilterHighRisk(preds []domain.AreaFireRiskPrediction) []domain.AreaFireRiskPrediction {
	out := make([]domain.AreaFireRiskPrediction, 0, len(preds))
	for _, p := range preds {
		if p.RiskLevel.IsElevated() {
			out = append(out, p)
		}
	}
	return out
}

// visible is the result set queries read. It only grows while a run is in
// flight and is replaced when the run completes.
func (c *Coordinator) visible() []domain.AreaFireRiskPrediction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

// overlay returns base with each prediction in top replacing the entry for
// the same area. Areas missing from base are appended in top's order.
func overlay(base, top []domain.AreaFireRiskPrediction) []domain.AreaFireRiskPrediction {
	if len(top) == 0 {
		return base
	}
	if len(base) == 0 {
		return top
	}

	out := slices.Clone(base)
	index := make(map[string]int, len(out))
	for i, p := range out {
		index[predictionKey(p)] = i
	}
	for _, p := range top {
		key := predictionKey(p)
		if i, ok := index[key]; ok {
			out[i] = p
			continue
		}
		index[key] = len(out)
		out = append(out, p)
	}
	return out
}

func predictionKey(p domain.AreaFireRiskPrediction) string {
	if p.Area == nil {
		return ""
	}
	return p.Area.Key()
}

// Predictions returns a copy of the visible result set.
func (c *Coordinator) Predictions() []domain.AreaFireRiskPrediction {
	return slices.Clone(c.visible())
}

// Prediction looks up the prediction for an area by name.
func (c *Coordinator) Prediction(name string) (domain.AreaFireRiskPrediction, bool) {
	return FindByName(c.visible(), name)
}

// HighRisk returns the visible predictions at high or extreme risk.
func (c *Coordinator) HighRisk() []domain.AreaFireRiskPrediction {
	return FilterHighRisk(c.visible())
}

// Nearest returns the prediction for the catalog area closest to coord.
// When no predictions exist yet it waits for the run in flight, or starts
// one, before looking. The error is non-nil only when that run failed.
func (c *Coordinator) Nearest(ctx context.Context, coord domain.Coordinate) (domain.AreaFireRiskPrediction, bool, error) {
	area, ok := c.locator.Nearest(coord)
	if !ok {
		return domain.AreaFireRiskPrediction{}, false, nil
	}

	if len(c.visible()) == 0 {
		if err := c.awaitResults(ctx); err != nil {
			return domain.AreaFireRiskPrediction{}, false, err
		}
	}

	p, ok := FindByName(c.visible(), area.Name)
	return p, ok, nil
}

// awaitResults waits for the run in flight, or a new one, to finish and
// returns its error. A superseded run hands over to its successor.
func (c *Coordinator) awaitResults(ctx context.Context) error {
	if c.gate != nil {
		if err := c.gate.WaitReady(ctx); err != nil {
			return err
		}
	}
	for {
		r := c.joinOrStart(ctx)
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}

		if !errors.Is(r.err, ErrSuperseded) {
			return r.err
		}
		if len(c.visible()) > 0 {
			return nil
		}
	}
}
