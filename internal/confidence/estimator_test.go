package confidence

import (
	"math"
	"testing"

	"github.com/crickview/prediction-api/internal/models"
)

func symmetricResiduals(n int, spread float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		// Evenly spaced over [-spread, spread]
		out[i] = -spread + 2*spread*float64(i)/float64(n-1)
	}
	return out
}

func TestIntervalOrdering(t *testing.T) {
	e := NewEstimator(0.95, 30)
	rs := models.ResidualSummary{
		Residuals: symmetricResiduals(100, 12),
		StdDev:    7,
		TargetMin: 0,
		TargetMax: 120,
		Samples:   100,
	}

	for _, point := range []float64{0, 5, 35, 110} {
		p := e.Interval(point, rs)
		if p.LowerBound > p.Value || p.Value > p.UpperBound {
			t.Errorf("point %v: bounds out of order: [%v, %v, %v]", point, p.LowerBound, p.Value, p.UpperBound)
		}
		if p.LowerBound < 0 {
			t.Errorf("point %v: lower bound %v below zero", point, p.LowerBound)
		}
		if p.Confidence < 0 || p.Confidence > 1 {
			t.Errorf("point %v: confidence %v outside [0,1]", point, p.Confidence)
		}
	}
}

func TestIntervalUsesResidualPercentiles(t *testing.T) {
	e := NewEstimator(0.95, 30)
	rs := models.ResidualSummary{
		Residuals: symmetricResiduals(1000, 10),
		StdDev:    5.78,
		TargetMin: 0,
		TargetMax: 100,
		Samples:   1000,
	}

	p := e.Interval(50, rs)
	// 2.5th/97.5th percentiles of a uniform [-10,10] sample sit near ±9.5
	if math.Abs(p.LowerBound-40.5) > 0.5 {
		t.Errorf("lower bound = %v, want about 40.5", p.LowerBound)
	}
	if math.Abs(p.UpperBound-59.5) > 0.5 {
		t.Errorf("upper bound = %v, want about 59.5", p.UpperBound)
	}
}

func TestIntervalNormalFallback(t *testing.T) {
	e := NewEstimator(0.95, 30)
	// Only 5 residuals: below the percentile minimum, so sigma*z applies.
	rs := models.ResidualSummary{
		Residuals: []float64{-2, -1, 0, 1, 2},
		StdDev:    4,
		TargetMin: 0,
		TargetMax: 100,
		Samples:   5,
	}

	p := e.Interval(50, rs)
	want := 4 * 1.96
	if math.Abs((p.Value-p.LowerBound)-want) > 1e-9 {
		t.Errorf("lower offset = %v, want %v", p.Value-p.LowerBound, want)
	}
	if math.Abs((p.UpperBound-p.Value)-want) > 1e-9 {
		t.Errorf("upper offset = %v, want %v", p.UpperBound-p.Value, want)
	}
}

func TestNegativePointClamped(t *testing.T) {
	e := NewEstimator(0.95, 30)
	rs := models.ResidualSummary{StdDev: 1, TargetMin: 0, TargetMax: 10, Samples: 5}

	p := e.Interval(-3, rs)
	if p.Value != 0 {
		t.Errorf("negative point = %v, want clamped to 0", p.Value)
	}
	if p.LowerBound != 0 {
		t.Errorf("lower bound = %v, want 0", p.LowerBound)
	}
	if p.UpperBound < p.Value {
		t.Errorf("upper bound %v below point %v", p.UpperBound, p.Value)
	}
}

func TestConfidenceShrinksWithWidth(t *testing.T) {
	e := NewEstimator(0.95, 30)

	narrow := models.ResidualSummary{
		Residuals: symmetricResiduals(100, 2),
		TargetMin: 0, TargetMax: 100, Samples: 100,
	}
	wide := models.ResidualSummary{
		Residuals: symmetricResiduals(100, 40),
		TargetMin: 0, TargetMax: 100, Samples: 100,
	}

	pn := e.Interval(50, narrow)
	pw := e.Interval(50, wide)
	if pn.Confidence <= pw.Confidence {
		t.Errorf("narrow interval confidence %v should exceed wide %v", pn.Confidence, pw.Confidence)
	}
}

func TestConfidenceZeroWhenRangeDegenerate(t *testing.T) {
	e := NewEstimator(0.95, 30)
	rs := models.ResidualSummary{
		Residuals: symmetricResiduals(100, 5),
		TargetMin: 10, TargetMax: 10, Samples: 100,
	}
	if p := e.Interval(10, rs); p.Confidence != 0 {
		t.Errorf("confidence = %v, want 0 for degenerate target range", p.Confidence)
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{4, 1, 3, 2, 5}

	tests := []struct {
		q    float64
		want float64
	}{
		{0, 1},
		{0.25, 2},
		{0.5, 3},
		{0.75, 4},
		{1, 5},
		{0.125, 1.5},
	}
	for _, tt := range tests {
		if got := percentile(values, tt.q); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("percentile(%v) = %v, want %v", tt.q, got, tt.want)
		}
	}
}
