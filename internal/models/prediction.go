package models

import "time"

// Prediction targets. One regressor is trained per target.
const (
	TargetRuns        = "runs"
	TargetWickets     = "wickets"
	TargetStrikeRate  = "strike_rate"
	TargetEconomyRate = "economy_rate"
)

// Targets returns the canonical target order used everywhere.
func Targets() []string {
	return []string{TargetRuns, TargetWickets, TargetStrikeRate, TargetEconomyRate}
}

// TargetPrediction is one target's point estimate with calibrated bounds.
type TargetPrediction struct {
	Value      float64 `json:"value"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
	Confidence float64 `json:"confidence"`
}

// PredictionResult is the full per-player outcome. Targets without a usable
// promoted bundle appear in Unavailable instead of Targets; the rest of the
// result is still populated (partial-result semantics).
type PredictionResult struct {
	PlayerID      string                      `json:"player_id"`
	PlayerName    string                      `json:"player_name"`
	Role          Role                        `json:"role"`
	Match         MatchContext                `json:"match"`
	Targets       map[string]TargetPrediction `json:"targets"`
	Unavailable   []string                    `json:"unavailable,omitempty"`
	SchemaVersion string                      `json:"schema_version"`
	StaleData     bool                        `json:"stale_data,omitempty"`
	GeneratedAt   time.Time                   `json:"generated_at"`
}
