package logic

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/crickview/prediction-api/internal/ingest"
	"github.com/crickview/prediction-api/internal/models"
)

// scheduleService reads the fixture list from Postgres. The schedule is
// authored data (fixtures, venues, importance weights), not ingested stats,
// so it lives in the relational store rather than ClickHouse.
type scheduleService struct {
	db PgPool
}

func NewScheduleService(db PgPool) ScheduleService {
	return &scheduleService{db: db}
}

func (s *scheduleService) GetMatchContext(ctx context.Context, matchID string) (*models.MatchContext, error) {
	mc := &models.MatchContext{}
	err := s.db.QueryRow(ctx, `
		SELECT match_id, home_team, away_team, venue_id, match_date, importance
		FROM schedule
		WHERE match_id = $1
	`, matchID).Scan(&mc.MatchID, &mc.HomeTeam, &mc.AwayTeam, &mc.VenueID, &mc.Date, &mc.Importance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("match %s: %w", matchID, ingest.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("schedule lookup: %w", err)
	}
	return mc, nil
}

func (s *scheduleService) GetUpcomingMatches(ctx context.Context, limit int) ([]models.MatchContext, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT match_id, home_team, away_team, venue_id, match_date, importance
		FROM schedule
		WHERE match_date >= NOW()
		ORDER BY match_date ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("upcoming matches query: %w", err)
	}
	defer rows.Close()

	var matches []models.MatchContext
	for rows.Next() {
		var mc models.MatchContext
		if err := rows.Scan(&mc.MatchID, &mc.HomeTeam, &mc.AwayTeam, &mc.VenueID, &mc.Date, &mc.Importance); err != nil {
			return nil, fmt.Errorf("scanning match row: %w", err)
		}
		matches = append(matches, mc)
	}
	return matches, rows.Err()
}
