package features

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/crickview/prediction-api/internal/config"
	"github.com/crickview/prediction-api/internal/models"
)

var imputedInputs = promauto.NewCounter(prometheus.CounterOpts{
	Name: "crickview_imputed_inputs_total",
	Help: "Missing underlying inputs replaced by role-level medians",
})

// Aux carries the context data the engineer needs beyond the player profile.
// Any of it may be nil/empty; missing pieces are imputed.
type Aux struct {
	Venue         *models.VenueStats
	Opposition    *models.TeamStrength
	RoleBaselines map[models.Role]models.CareerAggregates
}

// Engineer builds feature vectors deterministically: the same profile,
// context and aux always yield the same vector.
type Engineer struct {
	schema *Schema
	params config.Engine
	logger *zap.SugaredLogger
}

func NewEngineer(params config.Engine, logger *zap.Logger) *Engineer {
	return &Engineer{
		schema: NewSchema(),
		params: params,
		logger: logger.Sugar(),
	}
}

// Schema returns the schema this engineer emits.
func (e *Engineer) Schema() *Schema { return e.schema }

// Build computes the full feature vector for one (player, match) pair.
func (e *Engineer) Build(p *models.PlayerProfile, mc models.MatchContext, aux Aux) (*Vector, error) {
	v := &Vector{Schema: e.schema, Values: make([]float64, e.schema.Len())}

	recent := p.Recent
	last5 := window(recent, e.params.RecentWindow)
	last10 := window(recent, e.params.FormWindow)

	base := e.baseline(p.Role, aux)

	v.set("last5_runs_avg", e.windowAvg(last5, runsOf, base.RunsAvg))
	v.set("last5_wickets_avg", e.windowAvg(last5, wicketsOf, base.WicketsAvg))
	v.set("last5_strike_rate_avg", e.windowAvg(battingInnings(last5), strikeRateOf, base.StrikeRateAvg))
	v.set("last5_economy_rate_avg", e.windowAvg(bowlingInnings(last5), economyOf, base.EconomyRateAvg))
	v.set("last10_runs_avg", e.windowAvg(last10, runsOf, base.RunsAvg))
	v.set("last10_wickets_avg", e.windowAvg(last10, wicketsOf, base.WicketsAvg))
	v.set("last10_strike_rate_avg", e.windowAvg(battingInnings(last10), strikeRateOf, base.StrikeRateAvg))
	v.set("last10_economy_rate_avg", e.windowAvg(bowlingInnings(last10), economyOf, base.EconomyRateAvg))

	career := p.Career
	if career.Matches == 0 {
		imputedInputs.Inc()
		career = base
	}
	v.set("career_runs_avg", career.RunsAvg)
	v.set("career_wickets_avg", career.WicketsAvg)
	v.set("career_strike_rate_avg", career.StrikeRateAvg)
	v.set("career_economy_rate_avg", career.EconomyRateAvg)

	v.set("is_batsman", oneHot(p.Role == models.RoleBatsman))
	v.set("is_bowler", oneHot(p.Role == models.RoleBowler))
	v.set("is_all_rounder", oneHot(p.Role == models.RoleAllRounder))
	v.set("is_wicket_keeper", oneHot(p.Role == models.RoleWicketKeeper))

	v.set("batting_form_factor", e.formFactor(last10, runsOf, base.RunsAvg))
	v.set("bowling_form_factor", e.formFactor(last10, wicketsOf, base.WicketsAvg))
	v.set("batting_consistency", e.consistency(last10, runsOf))
	v.set("bowling_consistency", e.consistency(last10, wicketsOf))

	v.set("venue_factor", e.venueFactor(recent, mc.VenueID, aux.Venue))

	oppBat, oppBowl := 0.5, 0.5
	if aux.Opposition != nil {
		oppBat = aux.Opposition.BattingStrength
		oppBowl = aux.Opposition.BowlingStrength
	} else {
		imputedInputs.Inc()
	}
	v.set("opposition_batting_strength", oppBat)
	v.set("opposition_bowling_strength", oppBowl)

	v.set("pressure_index", e.pressureIndex(recent, mc.Importance))
	v.set("match_importance", mc.Importance)

	// Imputation is total: NaN/Inf must never leave this function.
	for i, val := range v.Values {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			v.Values[i] = 0
			imputedInputs.Inc()
			e.logger.Debugw("Sanitized non-finite feature", "feature", e.schema.Names[i])
		}
	}
	return v, nil
}

// DecayWeightedMean averages values (most recent last) with weight
// decay^age, normalized to sum 1. Returns (0, false) when values is empty.
func DecayWeightedMean(values []float64, decay float64) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	var sum, wsum float64
	for i, val := range values {
		w := math.Pow(decay, float64(n-1-i))
		sum += w * val
		wsum += w
	}
	if wsum == 0 {
		return 0, false
	}
	return sum / wsum, true
}

// formFactor is the decay-weighted mean of the windowed metric, imputed with
// the role baseline when the window is empty.
func (e *Engineer) formFactor(recs []models.InningsRecord, metric func(models.InningsRecord) float64, fallback float64) float64 {
	m, ok := DecayWeightedMean(collect(recs, metric), e.params.FormDecay)
	if !ok {
		imputedInputs.Inc()
		return fallback
	}
	return m
}

// consistency is the inverse coefficient of variation of the windowed
// metric, capped at the configured ceiling; zero variance means perfectly
// consistent and scores the ceiling.
func (e *Engineer) consistency(recs []models.InningsRecord, metric func(models.InningsRecord) float64) float64 {
	values := collect(recs, metric)
	if len(values) < 2 {
		imputedInputs.Inc()
		return 1.0
	}
	mean, std := meanStd(values)
	if std == 0 {
		return e.params.ConsistencyCeiling
	}
	if mean <= 0 {
		return 0
	}
	c := mean / std
	if c > e.params.ConsistencyCeiling {
		return e.params.ConsistencyCeiling
	}
	return c
}

// venueFactor z-scores the player's scoring at this venue against the
// all-player venue baseline. Thin history at the venue (or no baseline)
// falls back to 0, the role-average position.
func (e *Engineer) venueFactor(recent []models.InningsRecord, venueID string, venue *models.VenueStats) float64 {
	if venue == nil || venue.Innings == 0 || venue.RunsStd <= 0 {
		imputedInputs.Inc()
		return 0
	}

	var atVenue []float64
	for _, rec := range recent {
		if rec.VenueID == venueID {
			atVenue = append(atVenue, rec.Runs)
		}
	}
	if len(atVenue) < e.params.MinVenueInnings {
		return 0
	}

	mean, _ := meanStd(atVenue)
	return (mean - venue.RunsMean) / venue.RunsStd
}

// pressureIndex scales match importance by how the player has performed in
// high-importance innings relative to their overall level.
func (e *Engineer) pressureIndex(recent []models.InningsRecord, importance float64) float64 {
	var all, high []float64
	for _, rec := range recent {
		all = append(all, rec.Runs)
		if rec.Importance >= e.params.ImportanceThreshold {
			high = append(high, rec.Runs)
		}
	}

	ratio := 1.0
	if len(high) > 0 && len(all) > 0 {
		allMean, _ := meanStd(all)
		highMean, _ := meanStd(high)
		if allMean > 0 {
			ratio = highMean / allMean
		}
	}
	return importance * ratio
}

func (e *Engineer) windowAvg(recs []models.InningsRecord, metric func(models.InningsRecord) float64, fallback float64) float64 {
	values := collect(recs, metric)
	if len(values) == 0 {
		imputedInputs.Inc()
		return fallback
	}
	mean, _ := meanStd(values)
	return mean
}

func (e *Engineer) baseline(role models.Role, aux Aux) models.CareerAggregates {
	if b, ok := aux.RoleBaselines[role]; ok {
		return b
	}
	// League-shaped defaults when no baseline table is available.
	switch role {
	case models.RoleBowler:
		return models.CareerAggregates{RunsAvg: 8, WicketsAvg: 1.2, StrikeRateAvg: 95, EconomyRateAvg: 8}
	case models.RoleAllRounder:
		return models.CareerAggregates{RunsAvg: 18, WicketsAvg: 0.8, StrikeRateAvg: 125, EconomyRateAvg: 8.2}
	default:
		return models.CareerAggregates{RunsAvg: 25, WicketsAvg: 0, StrikeRateAvg: 128, EconomyRateAvg: 8.5}
	}
}

func window(recs []models.InningsRecord, n int) []models.InningsRecord {
	if n <= 0 || len(recs) <= n {
		return recs
	}
	return recs[len(recs)-n:]
}

func battingInnings(recs []models.InningsRecord) []models.InningsRecord {
	var out []models.InningsRecord
	for _, r := range recs {
		if r.BallsFaced > 0 {
			out = append(out, r)
		}
	}
	return out
}

func bowlingInnings(recs []models.InningsRecord) []models.InningsRecord {
	var out []models.InningsRecord
	for _, r := range recs {
		if r.Overs > 0 {
			out = append(out, r)
		}
	}
	return out
}

func runsOf(r models.InningsRecord) float64       { return r.Runs }
func wicketsOf(r models.InningsRecord) float64    { return r.Wickets }
func strikeRateOf(r models.InningsRecord) float64 { return r.StrikeRate() }
func economyOf(r models.InningsRecord) float64    { return r.EconomyRate() }

func collect(recs []models.InningsRecord, metric func(models.InningsRecord) float64) []float64 {
	out := make([]float64, 0, len(recs))
	for _, r := range recs {
		out = append(out, metric(r))
	}
	return out
}

func meanStd(values []float64) (mean, std float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= n

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / n)
}

func oneHot(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
