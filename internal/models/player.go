package models

import "time"

// Role classifies a player's primary discipline.
type Role string

const (
	RoleBatsman      Role = "Batsman"
	RoleBowler       Role = "Bowler"
	RoleAllRounder   Role = "AllRounder"
	RoleWicketKeeper Role = "WicketKeeper"
)

// Roles lists every valid role, used for role-median imputation tables.
var Roles = []Role{RoleBatsman, RoleBowler, RoleAllRounder, RoleWicketKeeper}

// InningsRecord is one completed innings for a player, as stored in ClickHouse
// and as returned inside a PlayerProfile. Most-recent-last ordering is the
// contract everywhere a slice of these appears.
type InningsRecord struct {
	MatchID      string    `json:"match_id"`
	Date         time.Time `json:"date"`
	VenueID      string    `json:"venue_id"`
	OppositionID string    `json:"opposition_id"`
	Importance   float64   `json:"importance"`
	Runs         float64   `json:"runs"`
	BallsFaced   float64   `json:"balls_faced"`
	Wickets      float64   `json:"wickets"`
	Overs        float64   `json:"overs"`
	RunsConceded float64   `json:"runs_conceded"`
}

// StrikeRate returns runs per 100 balls, 0 when no balls were faced.
func (r InningsRecord) StrikeRate() float64 {
	if r.BallsFaced <= 0 {
		return 0
	}
	return r.Runs / r.BallsFaced * 100
}

// EconomyRate returns runs conceded per over, 0 when no overs were bowled.
func (r InningsRecord) EconomyRate() float64 {
	if r.Overs <= 0 {
		return 0
	}
	return r.RunsConceded / r.Overs
}

// CareerAggregates summarizes a player's full history.
type CareerAggregates struct {
	Matches        int     `json:"matches"`
	RunsAvg        float64 `json:"runs_avg"`
	WicketsAvg     float64 `json:"wickets_avg"`
	StrikeRateAvg  float64 `json:"strike_rate_avg"`
	EconomyRateAvg float64 `json:"economy_rate_avg"`
}

// PlayerProfile is the ingestion gateway's view of a player: identity, career
// aggregates and the ordered recent innings window. Read-only downstream.
type PlayerProfile struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	TeamID string           `json:"team_id"`
	Role   Role             `json:"role"`
	Career CareerAggregates `json:"career"`
	Recent []InningsRecord  `json:"recent"`
}

// TeamStrength carries a team's normalized batting and bowling strength in
// [0,1], derived from league-wide aggregates.
type TeamStrength struct {
	TeamID          string  `json:"team_id"`
	BattingStrength float64 `json:"batting_strength"`
	BowlingStrength float64 `json:"bowling_strength"`
}

// VenueStats is the all-player historical baseline for a venue.
type VenueStats struct {
	VenueID     string  `json:"venue_id"`
	RunsMean    float64 `json:"runs_mean"`
	RunsStd     float64 `json:"runs_std"`
	WicketsMean float64 `json:"wickets_mean"`
	Innings     int     `json:"innings"`
}
