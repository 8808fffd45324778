// Package reconcile converts remote predictions into the internal risk model
// and ties each one to a known catalog area.
//
// Areas are matched by case-insensitive exact name. The remote service has no
// stable identifier for areas and echoes the display name in its responses,
// so an exact display-name match is accepted when no name matches. Records
// that match neither are dropped; reconciliation never fails.
package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// lowThreatLabel is the only remote threat label that does not flag a fire.
const lowThreatLabel = "Low"

// evacuationKeyword triggers the placeholder evacuation routes.
const evacuationKeyword = "evacuation"

var placeholderRoutes = []string{"Primary evacuation route", "Secondary evacuation route"}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock sets the clock used for the timestamp fallback.
func WithClock(c clockwork.Clock) Option {
	return func(r *Reconciler) { r.clock = c }
}

// WithUniformWeights assigns every factor weight 1.0 instead of its
// contribution.
func WithUniformWeights(uniform bool) Option {
	return func(r *Reconciler) { r.uniformWeights = uniform }
}

// Reconciler holds a name index over a catalog's areas. It is safe for
// concurrent use.
type Reconciler struct {
	byName         map[string]*domain.GeographicArea
	byDisplay      map[string]*domain.GeographicArea
	clock          clockwork.Clock
	uniformWeights bool
}

// New indexes areas. Predictions point into the areas slice, so the caller
// must not modify it afterwards.
func New(areas []domain.GeographicArea, opts ...Option) *Reconciler {
	r := &Reconciler{
		byName:    make(map[string]*domain.GeographicArea, len(areas)),
		byDisplay: make(map[string]*domain.GeographicArea, len(areas)),
		clock:     clockwork.NewRealClock(),
	}
	for i := range areas {
		a := &areas[i]
		if _, dup := r.byName[a.Key()]; !dup {
			r.byName[a.Key()] = a
		}
		dk := domain.NormalizeName(a.DisplayName)
		if _, dup := r.byDisplay[dk]; dk != "" && !dup {
			r.byDisplay[dk] = a
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile is a one-shot convenience over New(catalog).Reconcile.
func Reconcile(remote domain.RemotePrediction, catalog []domain.GeographicArea) (domain.AreaFireRiskPrediction, bool) {
	return New(catalog).Reconcile(remote)
}

// Reconcile converts remote into an internal prediction. It returns false
// when the remote area name matches no catalog area.
func (r *Reconciler) Reconcile(remote domain.RemotePrediction) (domain.AreaFireRiskPrediction, bool) {
	area := r.lookup(remote.AreaName)
	if area == nil {
		return domain.AreaFireRiskPrediction{}, false
	}

	return domain.AreaFireRiskPrediction{
		Area:             area,
		RiskLevel:        domain.ParseRiskLevel(remote.RiskLevel),
		RiskScore:        remote.RiskScore,
		Confidence:       remote.Confidence,
		Factors:          r.factors(remote.TopRiskFactors),
		NearbyFires:      nearbyFires(remote.NearbyFires),
		WeatherImpact:    remote.WeatherImpact,
		EvacuationRoutes: EvacuationRoutes(remote.EvacuationRecommendation),
		LastUpdated:      r.parseTimestamp(remote.LastUpdated),
	}, true
}

// ReconcileAll reconciles a batch, dropping unmatched records. The second
// return value counts the dropped records.
func (r *Reconciler) ReconcileAll(remote []domain.RemotePrediction) ([]domain.AreaFireRiskPrediction, int) {
	out := make([]domain.AreaFireRiskPrediction, 0, len(remote))
	dropped := 0
	for _, rp := range remote {
		p, ok := r.Reconcile(rp)
		if !ok {
			dropped++
			continue
		}
		out = append(out, p)
	}
	return out, dropped
}

func (r *Reconciler) lookup(name string) *domain.GeographicArea {
	key := domain.NormalizeName(name)
	if key == "" {
		return nil
	}
	if a, ok := r.byName[key]; ok {
		return a
	}
	return r.byDisplay[key]
}

func (r *Reconciler) factors(in []domain.RemoteRiskFactor) []domain.RiskFactor {
	out := make([]domain.RiskFactor, len(in))
	for i, f := range in {
		impact := domain.ImpactIncreases
		if f.Contribution < 0 {
			impact = domain.ImpactDecreases
		}
		weight := f.Contribution
		if r.uniformWeights {
			weight = 1.0
		}
		out[i] = domain.RiskFactor{
			Name:        f.Factor,
			Impact:      impact,
			Description: fmt.Sprintf("Value: %.1f, contribution: %.1f%%", f.Value, f.Contribution*100),
			Weight:      weight,
		}
	}
	return out
}

func nearbyFires(in []domain.RemoteNearbyFire) []domain.NearbyFire {
	out := make([]domain.NearbyFire, len(in))
	for i, f := range in {
		out[i] = domain.NearbyFire{
			Name:             f.Name,
			DistanceKm:       f.DistanceKm,
			AcresBurned:      f.AcresBurned,
			PercentContained: f.PercentContained,
			ThreatLevel:      f.ThreatLevel,
			IsThreat:         f.ThreatLevel != lowThreatLabel,
		}
	}
	return out
}

// EvacuationRoutes returns two generic route placeholders when the
// recommendation mentions evacuation, and an empty list otherwise. Callers
// may only rely on non-empty meaning the word was present.
func EvacuationRoutes(recommendation string) []string {
	if !strings.Contains(strings.ToLower(recommendation), evacuationKeyword) {
		return []string{}
	}
	return append([]string(nil), placeholderRoutes...)
}

func (r *Reconciler) parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return r.clock.Now()
}
