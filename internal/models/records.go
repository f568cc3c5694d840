package models

import (
	"time"

	"github.com/google/uuid"
)

// RawStatRecord is one line of the line-delimited ingest payload: a completed
// innings reported by the stats collaborator. Validation ranges follow the
// league bounds (a T20 innings can't score 500).
type RawStatRecord struct {
	MatchID      string  `json:"match_id" validate:"required"`
	PlayerID     string  `json:"player_id" validate:"required"`
	PlayerName   string  `json:"player_name"`
	TeamID       string  `json:"team_id" validate:"required"`
	OppositionID string  `json:"opposition_id"`
	VenueID      string  `json:"venue_id"`
	Role         Role    `json:"role" validate:"omitempty,oneof=Batsman Bowler AllRounder WicketKeeper"`
	Importance   float64 `json:"importance" validate:"gte=0,lte=1"`
	Timestamp    float64 `json:"timestamp"`
	Runs         float64 `json:"runs" validate:"gte=0,lte=500"`
	BallsFaced   float64 `json:"balls_faced" validate:"gte=0"`
	Wickets      float64 `json:"wickets" validate:"gte=0,lte=10"`
	Overs        float64 `json:"overs" validate:"gte=0,lte=10"`
	RunsConceded float64 `json:"runs_conceded" validate:"gte=0"`
}

// InningsRow is the normalized ClickHouse row written by the ingest worker.
type InningsRow struct {
	Timestamp    time.Time
	MatchID      uuid.UUID
	PlayerID     string
	PlayerName   string
	TeamID       string
	OppositionID string
	VenueID      string
	Role         string
	Importance   float64
	Runs         float64
	BallsFaced   float64
	Wickets      float64
	Overs        float64
	RunsConceded float64
	RawJSON      string
}
