package model

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crickview/prediction-api/internal/config"
	"github.com/crickview/prediction-api/internal/features"
	"github.com/crickview/prediction-api/internal/models"
)

// Sample is one historical observation: the feature vector built from data
// available before the innings, and the realized target values.
type Sample struct {
	Time     time.Time
	Features []float64
	Targets  map[string]float64
}

// Metrics summarizes validation error for one target.
type Metrics struct {
	MAE     float64 `json:"mae"`
	RMSE    float64 `json:"rmse"`
	Samples int     `json:"samples"`
}

// Result is the outcome of one training run. Targets with too little data
// appear in Unavailable with no bundle.
type Result struct {
	Bundles     map[string]*models.TrainedModelBundle
	Unavailable []string
	Metrics     map[string]Metrics
}

// Train fits one regressor per target on a chronological split: the earliest
// (1 - ValidationSplit) of history trains, the rest validates and supplies
// the residual distribution for the confidence estimator. Splitting by time,
// not at random, keeps future innings out of the training set.
func Train(samples []Sample, schema *features.Schema, eng config.Engine, logger *zap.Logger) (*Result, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("training: no samples")
	}
	log := logger.Sugar()

	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	for i, s := range sorted {
		if len(s.Features) != schema.Len() {
			return nil, fmt.Errorf("training: sample %d has %d features, schema has %d", i, len(s.Features), schema.Len())
		}
	}

	split := eng.ValidationSplit
	if split <= 0 || split >= 1 {
		split = 0.2
	}

	result := &Result{
		Bundles: make(map[string]*models.TrainedModelBundle),
		Metrics: make(map[string]Metrics),
	}
	fingerprint := schema.Fingerprint()

	for _, target := range models.Targets() {
		n := len(sorted)
		if n < eng.MinTrainingSamples {
			log.Warnw("Target marked unavailable: insufficient training data",
				"target", target, "samples", n, "minimum", eng.MinTrainingSamples)
			result.Unavailable = append(result.Unavailable, target)
			continue
		}

		trainN := int(float64(n) * (1 - split))
		if trainN < 1 {
			trainN = 1
		}
		if trainN >= n {
			trainN = n - 1
		}

		x := make([][]float64, 0, trainN)
		y := make([]float64, 0, trainN)
		for _, s := range sorted[:trainN] {
			x = append(x, s.Features)
			y = append(y, s.Targets[target])
		}

		algo := eng.Algorithms[target]
		if algo == "" {
			algo = AlgorithmRidge
		}
		reg, err := New(algo)
		if err != nil {
			return nil, err
		}
		if err := reg.Fit(x, y); err != nil {
			return nil, fmt.Errorf("training %s: %w", target, err)
		}

		residuals := make([]float64, 0, n-trainN)
		var absSum, sqSum float64
		for _, s := range sorted[trainN:] {
			pred, err := reg.Predict(s.Features)
			if err != nil {
				return nil, fmt.Errorf("validating %s: %w", target, err)
			}
			r := s.Targets[target] - pred
			residuals = append(residuals, r)
			absSum += math.Abs(r)
			sqSum += r * r
		}

		valN := float64(len(residuals))
		result.Metrics[target] = Metrics{
			MAE:     absSum / valN,
			RMSE:    math.Sqrt(sqSum / valN),
			Samples: len(residuals),
		}

		params, err := reg.Marshal()
		if err != nil {
			return nil, fmt.Errorf("serializing %s model: %w", target, err)
		}

		tmin, tmax := targetRange(sorted, target)
		result.Bundles[target] = &models.TrainedModelBundle{
			ID:                uuid.NewString(),
			Target:            target,
			Algorithm:         reg.Algorithm(),
			Params:            params,
			SchemaFingerprint: fingerprint,
			Residuals: models.ResidualSummary{
				Residuals: residuals,
				StdDev:    stdDev(residuals),
				TargetMin: tmin,
				TargetMax: tmax,
				Samples:   len(residuals),
			},
			TrainingSamples: trainN,
			CreatedAt:       time.Now().UTC(),
		}

		log.Infow("Trained target",
			"target", target, "algorithm", reg.Algorithm(),
			"train_samples", trainN, "validation_samples", len(residuals),
			"mae", result.Metrics[target].MAE, "rmse", result.Metrics[target].RMSE)
	}

	return result, nil
}

func targetRange(samples []Sample, target string) (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, s := range samples {
		v := s.Targets[target]
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func stdDev(values []float64) float64 {
	n := float64(len(values))
	if n == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= n
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / n)
}
