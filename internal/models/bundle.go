package models

import (
	"encoding/json"
	"time"
)

// ResidualSummary captures the validation-split residual distribution
// recorded at training time, used by the confidence estimator.
type ResidualSummary struct {
	Residuals []float64 `json:"residuals"`
	StdDev    float64   `json:"std_dev"`
	TargetMin float64   `json:"target_min"`
	TargetMax float64   `json:"target_max"`
	Samples   int       `json:"samples"`
}

// TrainedModelBundle is an immutable trained-model artifact. Retraining
// creates a new bundle; promotion swaps the current pointer, never the
// bundle itself.
type TrainedModelBundle struct {
	ID                string          `json:"id"`
	Target            string          `json:"target"`
	Algorithm         string          `json:"algorithm"`
	Params            json.RawMessage `json:"params"`
	SchemaFingerprint string          `json:"schema_fingerprint"`
	Residuals         ResidualSummary `json:"residuals"`
	TrainingSamples   int             `json:"training_samples"`
	CreatedAt         time.Time       `json:"created_at"`
}
