// Package model implements the regression ensemble: one independently
// trained regressor per target, all conforming to a single capability of
// mapping a fixed-length numeric vector to a scalar. Concrete algorithms
// are swappable without touching callers.
package model

import (
	"encoding/json"
	"fmt"
)

// Supported algorithm identifiers.
const (
	AlgorithmRidge         = "ridge"
	AlgorithmBoostedStumps = "boosted_stumps"
)

// Regressor maps a fixed-length feature vector to a scalar. Predict is pure
// and safe for unsynchronized concurrent use once fitted.
type Regressor interface {
	Algorithm() string
	Fit(x [][]float64, y []float64) error
	Predict(x []float64) (float64, error)
	Marshal() ([]byte, error)
}

// New returns a fresh, unfitted regressor for the named algorithm.
func New(algorithm string) (Regressor, error) {
	switch algorithm {
	case AlgorithmRidge:
		return NewRidge(), nil
	case AlgorithmBoostedStumps:
		return NewBoostedStumps(), nil
	default:
		return nil, fmt.Errorf("unknown regressor algorithm %q", algorithm)
	}
}

// Unmarshal restores a fitted regressor from its serialized parameters.
func Unmarshal(algorithm string, params json.RawMessage) (Regressor, error) {
	switch algorithm {
	case AlgorithmRidge:
		r := NewRidge()
		if err := json.Unmarshal(params, r); err != nil {
			return nil, fmt.Errorf("decoding ridge params: %w", err)
		}
		return r, nil
	case AlgorithmBoostedStumps:
		b := NewBoostedStumps()
		if err := json.Unmarshal(params, b); err != nil {
			return nil, fmt.Errorf("decoding boosted stump params: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown regressor algorithm %q", algorithm)
	}
}
