package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Ridge is an L2-regularized linear regressor fitted by batch gradient
// descent over standardized inputs. Fitting is deterministic: fixed epoch
// count, fixed learning rate, no shuffling.
type Ridge struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Means   []float64 `json:"means"`
	Stds    []float64 `json:"stds"`

	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	L2           float64 `json:"l2"`
}

func NewRidge() *Ridge {
	return &Ridge{
		Epochs:       400,
		LearningRate: 0.05,
		L2:           0.1,
	}
}

func (r *Ridge) Algorithm() string { return AlgorithmRidge }

func (r *Ridge) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 || len(x) != len(y) {
		return errors.New("ridge: empty or mismatched training set")
	}
	n := len(x)
	dims := len(x[0])

	r.Means, r.Stds = columnStats(x)
	scaled := make([][]float64, n)
	for i, row := range x {
		if len(row) != dims {
			return fmt.Errorf("ridge: ragged training row %d", i)
		}
		scaled[i] = r.standardize(row)
	}

	r.Weights = make([]float64, dims)
	r.Bias = 0

	for epoch := 0; epoch < r.Epochs; epoch++ {
		gradW := make([]float64, dims)
		var gradB float64
		for i, row := range scaled {
			pred := r.Bias + dot(r.Weights, row)
			diff := pred - y[i]
			for j, v := range row {
				gradW[j] += diff * v
			}
			gradB += diff
		}
		inv := 1.0 / float64(n)
		for j := range r.Weights {
			r.Weights[j] -= r.LearningRate * (gradW[j]*inv + r.L2*r.Weights[j]*inv)
		}
		r.Bias -= r.LearningRate * gradB * inv
	}
	return nil
}

func (r *Ridge) Predict(x []float64) (float64, error) {
	if len(r.Weights) == 0 {
		return 0, errors.New("ridge: not fitted")
	}
	if len(x) != len(r.Weights) {
		return 0, fmt.Errorf("ridge: feature length %d does not match trained length %d", len(x), len(r.Weights))
	}
	return r.Bias + dot(r.Weights, r.standardize(x)), nil
}

func (r *Ridge) Marshal() ([]byte, error) { return json.Marshal(r) }

func (r *Ridge) standardize(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		if r.Stds[j] > 0 {
			out[j] = (v - r.Means[j]) / r.Stds[j]
		}
	}
	return out
}

func columnStats(x [][]float64) (means, stds []float64) {
	n := float64(len(x))
	dims := len(x[0])
	means = make([]float64, dims)
	stds = make([]float64, dims)

	for _, row := range x {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= n
	}
	for _, row := range x {
		for j, v := range row {
			d := v - means[j]
			stds[j] += d * d
		}
	}
	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / n)
	}
	return means, stds
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
