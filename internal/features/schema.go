// Package features turns a player + match context into the fixed-shape
// numeric vector the regressors consume. The schema is versioned and
// fingerprinted; bundles trained against a different fingerprint are refused
// at load time, so adding a feature here requires bumping SchemaVersion.
package features

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SchemaVersion changes whenever the feature list below changes in any way
// (name, order, count).
const SchemaVersion = "v1"

var featureNames = []string{
	"last5_runs_avg",
	"last5_wickets_avg",
	"last5_strike_rate_avg",
	"last5_economy_rate_avg",
	"last10_runs_avg",
	"last10_wickets_avg",
	"last10_strike_rate_avg",
	"last10_economy_rate_avg",
	"career_runs_avg",
	"career_wickets_avg",
	"career_strike_rate_avg",
	"career_economy_rate_avg",
	"is_batsman",
	"is_bowler",
	"is_all_rounder",
	"is_wicket_keeper",
	"batting_form_factor",
	"bowling_form_factor",
	"batting_consistency",
	"bowling_consistency",
	"venue_factor",
	"opposition_batting_strength",
	"opposition_bowling_strength",
	"pressure_index",
	"match_importance",
}

// Schema is the ordered, versioned feature layout.
type Schema struct {
	Version string
	Names   []string

	index map[string]int
}

// NewSchema returns the current schema.
func NewSchema() *Schema {
	idx := make(map[string]int, len(featureNames))
	for i, n := range featureNames {
		idx[n] = i
	}
	return &Schema{Version: SchemaVersion, Names: featureNames, index: idx}
}

// Fingerprint hashes version + ordered names; two schemas agree exactly when
// their fingerprints agree.
func (s *Schema) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(s.Version))
	h.Write([]byte{'\n'})
	h.Write([]byte(strings.Join(s.Names, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// Len returns the number of features.
func (s *Schema) Len() int { return len(s.Names) }

// Vector is one request's feature values in schema order. Imputation is
// total: a built vector never contains NaN or missing entries.
type Vector struct {
	Schema *Schema
	Values []float64
}

// Get returns the named feature's value.
func (v *Vector) Get(name string) (float64, error) {
	i, ok := v.Schema.index[name]
	if !ok {
		return 0, fmt.Errorf("unknown feature %q", name)
	}
	return v.Values[i], nil
}

func (v *Vector) set(name string, val float64) {
	v.Values[v.Schema.index[name]] = val
}
