package logic

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/crickview/prediction-api/internal/ingest"
	"github.com/crickview/prediction-api/internal/models"
	"github.com/crickview/prediction-api/internal/registry"
)

// PgPool defines the interface for PostgreSQL connection pool
type PgPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Fetcher is the slice of the ingestion gateway the services depend on.
type Fetcher interface {
	Fetch(ctx context.Context, source, key string) (*ingest.Payload, error)
}

// ModelStore serves the currently promoted model per target.
type ModelStore interface {
	LoadCurrent(target string) (*registry.Loaded, error)
}

// ScheduleService resolves upcoming match context.
type ScheduleService interface {
	GetMatchContext(ctx context.Context, matchID string) (*models.MatchContext, error)
	GetUpcomingMatches(ctx context.Context, limit int) ([]models.MatchContext, error)
}

// PredictionService produces per-player target predictions for a match.
type PredictionService interface {
	PredictPlayer(ctx context.Context, playerID, matchID string) (*models.PredictionResult, error)
}

// FormService summarizes a player's recent form without model involvement.
type FormService interface {
	GetPlayerForm(ctx context.Context, playerID string) (*models.PlayerForm, error)
}

// HistoryProvider is the slice of the ClickHouse stats reader the form and
// prediction services use directly.
type HistoryProvider interface {
	PlayerHistory(ctx context.Context, playerID string, limit int) ([]models.InningsRecord, error)
	RoleBaselines(ctx context.Context) (map[models.Role]models.CareerAggregates, error)
}
