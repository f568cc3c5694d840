package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/crickview/prediction-api/internal/models"
)

// StatsReader exposes the ClickHouse innings history as a gateway Source
// ("history") so venue baselines and team strengths go through the same
// cache/TTL discipline as collaborator records. It also serves the typed
// queries the trainer and form service use directly.
type StatsReader struct {
	ch driver.Conn
}

func NewStatsReader(ch driver.Conn) *StatsReader {
	return &StatsReader{ch: ch}
}

func (r *StatsReader) Name() string { return "history" }

// Fetch resolves path-like keys: "venue/<id>", "team/<id>", "player/<id>".
func (r *StatsReader) Fetch(ctx context.Context, key string) ([]byte, error) {
	kind, id, ok := strings.Cut(key, "/")
	if !ok || id == "" {
		return nil, fmt.Errorf("malformed history key %q", key)
	}

	var v any
	var err error
	switch kind {
	case "venue":
		v, err = r.VenueStats(ctx, id)
	case "team":
		v, err = r.TeamStrength(ctx, id)
	case "player":
		v, err = r.PlayerHistory(ctx, id, 50)
	default:
		return nil, fmt.Errorf("unknown history key kind %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// VenueStats returns the all-player scoring baseline at a venue.
func (r *StatsReader) VenueStats(ctx context.Context, venueID string) (*models.VenueStats, error) {
	stats := &models.VenueStats{VenueID: venueID}

	var innings uint64
	err := r.ch.QueryRow(ctx, `
		SELECT
			avg(runs) as runs_mean,
			stddevPop(runs) as runs_std,
			avg(wickets) as wickets_mean,
			count() as innings
		FROM cricket_stats.player_innings
		WHERE venue_id = ?
	`, venueID).Scan(&stats.RunsMean, &stats.RunsStd, &stats.WicketsMean, &innings)
	if err != nil {
		return nil, fmt.Errorf("venue baseline query: %w", err)
	}
	stats.Innings = int(innings)
	return stats, nil
}

// TeamStrength returns a team's batting/bowling strength normalized against
// the league-wide per-innings averages, clamped to [0,1] with 0.5 = average.
func (r *StatsReader) TeamStrength(ctx context.Context, teamID string) (*models.TeamStrength, error) {
	strength := &models.TeamStrength{TeamID: teamID}

	var teamRuns, teamWickets, leagueRuns, leagueWickets float64
	err := r.ch.QueryRow(ctx, `
		SELECT
			avgIf(runs, team_id = ?) as team_runs,
			avgIf(wickets, team_id = ?) as team_wickets,
			avg(runs) as league_runs,
			avg(wickets) as league_wickets
		FROM cricket_stats.player_innings
	`, teamID, teamID).Scan(&teamRuns, &teamWickets, &leagueRuns, &leagueWickets)
	if err != nil {
		return nil, fmt.Errorf("team strength query: %w", err)
	}

	strength.BattingStrength = normalizeStrength(teamRuns, leagueRuns)
	strength.BowlingStrength = normalizeStrength(teamWickets, leagueWickets)
	return strength, nil
}

// normalizeStrength maps a team average onto [0,1] where the league average
// sits at 0.5 and twice the league average saturates at 1.
func normalizeStrength(team, league float64) float64 {
	if league <= 0 {
		return 0.5
	}
	s := team / (2 * league)
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// PlayerHistory returns a player's innings, most recent last.
func (r *StatsReader) PlayerHistory(ctx context.Context, playerID string, limit int) ([]models.InningsRecord, error) {
	rows, err := r.ch.Query(ctx, `
		SELECT
			toString(match_id),
			timestamp,
			venue_id,
			opposition_id,
			importance,
			runs,
			balls_faced,
			wickets,
			overs,
			runs_conceded
		FROM cricket_stats.player_innings
		WHERE player_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("player history query: %w", err)
	}
	defer rows.Close()

	var history []models.InningsRecord
	for rows.Next() {
		var rec models.InningsRecord
		if err := rows.Scan(
			&rec.MatchID, &rec.Date, &rec.VenueID, &rec.OppositionID, &rec.Importance,
			&rec.Runs, &rec.BallsFaced, &rec.Wickets, &rec.Overs, &rec.RunsConceded,
		); err != nil {
			continue
		}
		history = append(history, rec)
	}

	// Query is newest-first; callers expect most-recent-last.
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

// RoleBaselines returns per-role median metrics used for imputation of
// missing inputs.
func (r *StatsReader) RoleBaselines(ctx context.Context) (map[models.Role]models.CareerAggregates, error) {
	rows, err := r.ch.Query(ctx, `
		SELECT
			role,
			median(runs) as runs_med,
			median(wickets) as wickets_med,
			medianIf(runs / balls_faced * 100, balls_faced > 0) as sr_med,
			medianIf(runs_conceded / overs, overs > 0) as er_med
		FROM cricket_stats.player_innings
		WHERE role != ''
		GROUP BY role
	`)
	if err != nil {
		return nil, fmt.Errorf("role baseline query: %w", err)
	}
	defer rows.Close()

	baselines := make(map[models.Role]models.CareerAggregates)
	for rows.Next() {
		var role string
		var agg models.CareerAggregates
		if err := rows.Scan(&role, &agg.RunsAvg, &agg.WicketsAvg, &agg.StrikeRateAvg, &agg.EconomyRateAvg); err != nil {
			continue
		}
		baselines[models.Role(role)] = agg
	}
	return baselines, nil
}

// TrainingInnings streams the full chronological innings history for offline
// training: every row keyed by player with its timestamp, oldest first.
type TrainingInnings struct {
	PlayerID   string
	PlayerName string
	TeamID     string
	Role       models.Role
	Record     models.InningsRecord
}

func (r *StatsReader) AllInnings(ctx context.Context, since time.Time) ([]TrainingInnings, error) {
	rows, err := r.ch.Query(ctx, `
		SELECT
			player_id,
			player_name,
			team_id,
			role,
			toString(match_id),
			timestamp,
			venue_id,
			opposition_id,
			importance,
			runs,
			balls_faced,
			wickets,
			overs,
			runs_conceded
		FROM cricket_stats.player_innings
		WHERE timestamp >= ?
		ORDER BY timestamp ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("training innings query: %w", err)
	}
	defer rows.Close()

	var out []TrainingInnings
	for rows.Next() {
		var ti TrainingInnings
		var role string
		if err := rows.Scan(
			&ti.PlayerID, &ti.PlayerName, &ti.TeamID, &role,
			&ti.Record.MatchID, &ti.Record.Date, &ti.Record.VenueID, &ti.Record.OppositionID,
			&ti.Record.Importance, &ti.Record.Runs, &ti.Record.BallsFaced,
			&ti.Record.Wickets, &ti.Record.Overs, &ti.Record.RunsConceded,
		); err != nil {
			continue
		}
		ti.Role = models.Role(role)
		out = append(out, ti)
	}
	return out, nil
}
