package features

import (
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/crickview/prediction-api/internal/config"
	"github.com/crickview/prediction-api/internal/models"
)

func testEngine() config.Engine {
	return config.Engine{
		FormWindow:          10,
		RecentWindow:        5,
		FormDecay:           0.8,
		ConsistencyCeiling:  10.0,
		MinVenueInnings:     3,
		ImportanceThreshold: 0.7,
	}
}

func newTestEngineer() *Engineer {
	return NewEngineer(testEngine(), zap.NewNop())
}

func fv(t *testing.T, vec *Vector, name string) float64 {
	t.Helper()
	v, err := vec.Get(name)
	if err != nil {
		t.Fatalf("Get(%q) error = %v", name, err)
	}
	return v
}

func battingRecord(runs, balls float64) models.InningsRecord {
	return models.InningsRecord{Runs: runs, BallsFaced: balls, Date: time.Now()}
}

func TestDecayWeightedMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		decay  float64
		want   float64
		wantOK bool
	}{
		{
			name:   "Empty",
			values: nil,
			decay:  0.8,
			want:   0,
			wantOK: false,
		},
		{
			name:   "Single",
			values: []float64{42},
			decay:  0.8,
			want:   42,
			wantOK: true,
		},
		{
			// weights 0.8^4..0.8^0 over [10 20 5 45 30], normalized
			name:   "RecencyWeighted",
			values: []float64{10, 20, 5, 45, 30},
			decay:  0.8,
			want:   (10*0.4096 + 20*0.512 + 5*0.64 + 45*0.8 + 30*1.0) / (0.4096 + 0.512 + 0.64 + 0.8 + 1.0),
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecayWeightedMean(tt.values, tt.decay)
			if ok != tt.wantOK {
				t.Fatalf("DecayWeightedMean() ok = %v, want %v", ok, tt.wantOK)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("DecayWeightedMean() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecayWeightedMeanFavorsRecent(t *testing.T) {
	rising, _ := DecayWeightedMean([]float64{10, 20, 30, 40, 50}, 0.8)
	falling, _ := DecayWeightedMean([]float64{50, 40, 30, 20, 10}, 0.8)
	if rising <= falling {
		t.Errorf("rising form %v should outweigh falling form %v", rising, falling)
	}
}

func TestBuildVectorComplete(t *testing.T) {
	e := newTestEngineer()

	profile := &models.PlayerProfile{
		ID:     "p1",
		Name:   "Test Batsman",
		TeamID: "team-a",
		Role:   models.RoleBatsman,
		Career: models.CareerAggregates{Matches: 40, RunsAvg: 32, StrikeRateAvg: 130},
		Recent: []models.InningsRecord{
			battingRecord(10, 8),
			battingRecord(20, 15),
			battingRecord(5, 9),
			battingRecord(45, 30),
			battingRecord(30, 22),
		},
	}
	mc := models.MatchContext{MatchID: "m1", VenueID: "v1", Importance: 0.8}

	vec, err := e.Build(profile, mc, Aux{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(vec.Values) != e.Schema().Len() {
		t.Fatalf("vector length = %d, want %d", len(vec.Values), e.Schema().Len())
	}
	for i, v := range vec.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("feature %s is non-finite: %v", e.Schema().Names[i], v)
		}
	}

	if got := fv(t, vec, "last5_runs_avg"); math.Abs(got-22) > 1e-9 {
		t.Errorf("last5_runs_avg = %v, want 22", got)
	}
	if got := fv(t, vec, "is_batsman"); got != 1 {
		t.Errorf("is_batsman = %v, want 1", got)
	}
	if got := fv(t, vec, "is_bowler"); got != 0 {
		t.Errorf("is_bowler = %v, want 0", got)
	}
	if got := fv(t, vec, "match_importance"); got != 0.8 {
		t.Errorf("match_importance = %v, want 0.8", got)
	}
}

func TestBuildDeterministic(t *testing.T) {
	e := newTestEngineer()
	profile := &models.PlayerProfile{
		ID:     "p1",
		Role:   models.RoleAllRounder,
		Career: models.CareerAggregates{Matches: 10, RunsAvg: 18, WicketsAvg: 1},
		Recent: []models.InningsRecord{battingRecord(12, 10), battingRecord(40, 28)},
	}
	mc := models.MatchContext{VenueID: "v1", Importance: 0.5}

	a, err := e.Build(profile, mc, Aux{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	b, err := e.Build(profile, mc, Aux{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			t.Errorf("feature %s differs between identical builds: %v vs %v",
				e.Schema().Names[i], a.Values[i], b.Values[i])
		}
	}
}

func TestBuildImputesEmptyHistory(t *testing.T) {
	e := newTestEngineer()

	// Debutant: no career, no recent innings, no aux context.
	profile := &models.PlayerProfile{ID: "rookie", Role: models.RoleBowler}
	mc := models.MatchContext{VenueID: "v1", Importance: 0.6}

	vec, err := e.Build(profile, mc, Aux{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	for i, v := range vec.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("feature %s is non-finite for empty history: %v", e.Schema().Names[i], v)
		}
	}
	// Bowler baseline imputation, not zero
	if got := fv(t, vec, "career_wickets_avg"); got <= 0 {
		t.Errorf("career_wickets_avg = %v, want bowler baseline > 0", got)
	}
	if got := fv(t, vec, "venue_factor"); got != 0 {
		t.Errorf("venue_factor = %v, want 0 with no venue baseline", got)
	}
}

func TestBuildImputesFromRoleBaselines(t *testing.T) {
	e := newTestEngineer()

	baselines := map[models.Role]models.CareerAggregates{
		models.RoleWicketKeeper: {RunsAvg: 27.5, StrikeRateAvg: 135},
	}
	profile := &models.PlayerProfile{ID: "wk1", Role: models.RoleWicketKeeper}
	vec, err := e.Build(profile, models.MatchContext{}, Aux{RoleBaselines: baselines})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if got := fv(t, vec, "career_runs_avg"); got != 27.5 {
		t.Errorf("career_runs_avg = %v, want role median 27.5", got)
	}
}

func TestConsistency(t *testing.T) {
	e := newTestEngineer()

	tests := []struct {
		name string
		recs []models.InningsRecord
		want float64
	}{
		{
			name: "ZeroVarianceScoresCeiling",
			recs: []models.InningsRecord{battingRecord(30, 20), battingRecord(30, 20), battingRecord(30, 20)},
			want: 10.0,
		},
		{
			name: "TooFewInnings",
			recs: []models.InningsRecord{battingRecord(30, 20)},
			want: 1.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.consistency(tt.recs, runsOf); got != tt.want {
				t.Errorf("consistency() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVenueFactor(t *testing.T) {
	e := newTestEngineer()
	venue := &models.VenueStats{VenueID: "v1", RunsMean: 25, RunsStd: 10, Innings: 500}

	atVenue := func(runs float64) models.InningsRecord {
		r := battingRecord(runs, 20)
		r.VenueID = "v1"
		return r
	}

	// Three innings at the venue averaging 35 vs baseline 25, std 10 gives z = 1
	recs := []models.InningsRecord{atVenue(30), atVenue(35), atVenue(40)}
	if got := e.venueFactor(recs, "v1", venue); math.Abs(got-1) > 1e-9 {
		t.Errorf("venueFactor = %v, want 1", got)
	}

	// Below the minimum innings at this venue, stays neutral
	if got := e.venueFactor(recs[:2], "v1", venue); got != 0 {
		t.Errorf("venueFactor with thin history = %v, want 0", got)
	}

	// No baseline at all, stays neutral
	if got := e.venueFactor(recs, "v1", nil); got != 0 {
		t.Errorf("venueFactor with no baseline = %v, want 0", got)
	}
}

func TestOppositionDefaultsToAverage(t *testing.T) {
	e := newTestEngineer()
	vec, err := e.Build(&models.PlayerProfile{ID: "p", Role: models.RoleBatsman}, models.MatchContext{}, Aux{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := fv(t, vec, "opposition_batting_strength"); got != 0.5 {
		t.Errorf("opposition_batting_strength = %v, want 0.5", got)
	}
	if got := fv(t, vec, "opposition_bowling_strength"); got != 0.5 {
		t.Errorf("opposition_bowling_strength = %v, want 0.5", got)
	}
}
