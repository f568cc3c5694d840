// Package confidence turns a model's validation residual distribution into
// prediction intervals and a confidence score. Intervals come from empirical
// residual percentiles, so no distributional assumption is needed once
// enough residuals exist.
package confidence

import (
	"math"
	"sort"

	"github.com/crickview/prediction-api/internal/models"
)

// zScores maps coverage to the two-sided normal quantile, used only when the
// residual sample is too thin for empirical percentiles.
var zScores = map[float64]float64{
	0.90: 1.6449,
	0.95: 1.9600,
	0.99: 2.5758,
}

// Estimator converts point predictions into interval predictions.
type Estimator struct {
	coverage   float64
	minSamples int
}

func NewEstimator(coverage float64, minSamples int) *Estimator {
	if coverage <= 0 || coverage >= 1 {
		coverage = 0.95
	}
	return &Estimator{coverage: coverage, minSamples: minSamples}
}

// Interval brackets a point prediction using the bundle's residuals.
// Bounds always satisfy lower <= point <= upper, and targets are
// non-negative so the lower bound never dips below zero.
func (e *Estimator) Interval(point float64, rs models.ResidualSummary) models.TargetPrediction {
	var lo, hi float64
	if rs.Samples >= e.minSamples && len(rs.Residuals) >= e.minSamples {
		lq := percentile(rs.Residuals, (1-e.coverage)/2)
		uq := percentile(rs.Residuals, (1+e.coverage)/2)
		lo, hi = point+lq, point+uq
	} else {
		// Normal fallback for thin residual samples.
		z, ok := zScores[e.coverage]
		if !ok {
			z = 1.96
		}
		lo, hi = point-z*rs.StdDev, point+z*rs.StdDev
	}

	if lo > point {
		lo = point
	}
	if hi < point {
		hi = point
	}
	if lo < 0 {
		lo = 0
	}
	if point < 0 {
		point = 0
	}
	if hi < point {
		hi = point
	}

	return models.TargetPrediction{
		Value:      point,
		LowerBound: lo,
		UpperBound: hi,
		Confidence: e.score(hi-lo, rs),
	}
}

// score shrinks confidence as the interval widens relative to the target's
// observed range: a band spanning the whole range carries no information.
func (e *Estimator) score(width float64, rs models.ResidualSummary) float64 {
	span := rs.TargetMax - rs.TargetMin
	if span <= 0 || math.IsInf(span, 0) {
		return 0
	}
	rel := width / span
	if rel < 0 {
		rel = 0
	}
	if rel > 1 {
		rel = 1
	}
	return e.coverage * (1 - rel)
}

// percentile is the linearly interpolated q-th quantile of values, q in
// [0, 1].
func percentile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	frac := pos - float64(lower)
	if lower+1 >= len(sorted) {
		return sorted[lower]
	}
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}
