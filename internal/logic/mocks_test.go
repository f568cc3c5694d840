package logic

import (
	"context"

	"github.com/crickview/prediction-api/internal/ingest"
	"github.com/crickview/prediction-api/internal/models"
	"github.com/crickview/prediction-api/internal/registry"
)

// MockFetcher implements Fetcher for testing
type MockFetcher struct {
	FetchFunc func(ctx context.Context, source, key string) (*ingest.Payload, error)
}

func (m *MockFetcher) Fetch(ctx context.Context, source, key string) (*ingest.Payload, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, source, key)
	}
	return &ingest.Payload{Data: []byte("{}")}, nil
}

// MockSchedule implements ScheduleService for testing
type MockSchedule struct {
	GetMatchContextFunc    func(ctx context.Context, matchID string) (*models.MatchContext, error)
	GetUpcomingMatchesFunc func(ctx context.Context, limit int) ([]models.MatchContext, error)
}

func (m *MockSchedule) GetMatchContext(ctx context.Context, matchID string) (*models.MatchContext, error) {
	if m.GetMatchContextFunc != nil {
		return m.GetMatchContextFunc(ctx, matchID)
	}
	return &models.MatchContext{MatchID: matchID}, nil
}

func (m *MockSchedule) GetUpcomingMatches(ctx context.Context, limit int) ([]models.MatchContext, error) {
	if m.GetUpcomingMatchesFunc != nil {
		return m.GetUpcomingMatchesFunc(ctx, limit)
	}
	return nil, nil
}

// MockHistory implements HistoryProvider for testing
type MockHistory struct {
	PlayerHistoryFunc func(ctx context.Context, playerID string, limit int) ([]models.InningsRecord, error)
	RoleBaselinesFunc func(ctx context.Context) (map[models.Role]models.CareerAggregates, error)
}

func (m *MockHistory) PlayerHistory(ctx context.Context, playerID string, limit int) ([]models.InningsRecord, error) {
	if m.PlayerHistoryFunc != nil {
		return m.PlayerHistoryFunc(ctx, playerID, limit)
	}
	return nil, nil
}

func (m *MockHistory) RoleBaselines(ctx context.Context) (map[models.Role]models.CareerAggregates, error) {
	if m.RoleBaselinesFunc != nil {
		return m.RoleBaselinesFunc(ctx)
	}
	return nil, nil
}

// MockModelStore implements ModelStore for testing
type MockModelStore struct {
	LoadCurrentFunc func(target string) (*registry.Loaded, error)
}

func (m *MockModelStore) LoadCurrent(target string) (*registry.Loaded, error) {
	if m.LoadCurrentFunc != nil {
		return m.LoadCurrentFunc(target)
	}
	return nil, &registry.ModelUnavailableError{Target: target, Reason: "no promoted bundle"}
}
