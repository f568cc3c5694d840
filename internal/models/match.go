package models

import "time"

// MatchContext describes the upcoming match a prediction is for. Immutable
// once constructed; supplied by the schedule store.
type MatchContext struct {
	MatchID    string    `json:"match_id"`
	HomeTeam   string    `json:"home_team"`
	AwayTeam   string    `json:"away_team"`
	VenueID    string    `json:"venue_id"`
	Date       time.Time `json:"date"`
	Importance float64   `json:"importance"`
	// OppositionID is relative to the subject player and is filled in by the
	// prediction service once the player's team is known.
	OppositionID string `json:"opposition_id,omitempty"`
}

// Opponent returns the team facing teamID, or "" if teamID is not playing.
func (m MatchContext) Opponent(teamID string) string {
	switch teamID {
	case m.HomeTeam:
		return m.AwayTeam
	case m.AwayTeam:
		return m.HomeTeam
	}
	return ""
}

// PlayerForm is the lightweight recent-form summary exposed alongside the
// model-backed predictions.
type PlayerForm struct {
	PlayerID    string    `json:"player_id"`
	RecentRuns  []float64 `json:"recent_runs"`
	RunsAvg     float64   `json:"runs_avg"`
	WicketsAvg  float64   `json:"wickets_avg"`
	Trend       string    `json:"trend"` // "improving", "declining", "stable"
	LastUpdated time.Time `json:"last_updated"`
}
