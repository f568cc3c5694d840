package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/crickview/prediction-api/internal/logic"
	"github.com/crickview/prediction-api/internal/models"
)

// MockQueue implements IngestQueue for testing
type MockQueue struct {
	EnqueueFunc func(record *models.RawStatRecord) bool
	Enqueued    []*models.RawStatRecord
}

func (m *MockQueue) Enqueue(record *models.RawStatRecord) bool {
	m.Enqueued = append(m.Enqueued, record)
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(record)
	}
	return true
}

func (m *MockQueue) QueueDepth() int { return len(m.Enqueued) }

// MockPrediction implements logic.PredictionService for testing
type MockPrediction struct {
	PredictPlayerFunc func(ctx context.Context, playerID, matchID string) (*models.PredictionResult, error)
}

func (m *MockPrediction) PredictPlayer(ctx context.Context, playerID, matchID string) (*models.PredictionResult, error) {
	if m.PredictPlayerFunc != nil {
		return m.PredictPlayerFunc(ctx, playerID, matchID)
	}
	return &models.PredictionResult{PlayerID: playerID}, nil
}

// MockSchedule implements logic.ScheduleService for testing
type MockSchedule struct {
	GetUpcomingMatchesFunc func(ctx context.Context, limit int) ([]models.MatchContext, error)
}

func (m *MockSchedule) GetMatchContext(ctx context.Context, matchID string) (*models.MatchContext, error) {
	return &models.MatchContext{MatchID: matchID}, nil
}

func (m *MockSchedule) GetUpcomingMatches(ctx context.Context, limit int) ([]models.MatchContext, error) {
	if m.GetUpcomingMatchesFunc != nil {
		return m.GetUpcomingMatchesFunc(ctx, limit)
	}
	return nil, nil
}

// MockForm implements logic.FormService for testing
type MockForm struct {
	GetPlayerFormFunc func(ctx context.Context, playerID string) (*models.PlayerForm, error)
}

func (m *MockForm) GetPlayerForm(ctx context.Context, playerID string) (*models.PlayerForm, error) {
	if m.GetPlayerFormFunc != nil {
		return m.GetPlayerFormFunc(ctx, playerID)
	}
	return &models.PlayerForm{PlayerID: playerID}, nil
}

func newTestHandler(queue IngestQueue, prediction logic.PredictionService, form logic.FormService, schedule logic.ScheduleService) *Handler {
	if queue == nil {
		queue = &MockQueue{}
	}
	if prediction == nil {
		prediction = &MockPrediction{}
	}
	if form == nil {
		form = &MockForm{}
	}
	if schedule == nil {
		schedule = &MockSchedule{}
	}
	return New(Config{
		WorkerPool: queue,
		Logger:     zap.NewNop(),
		Prediction: prediction,
		Schedule:   schedule,
		Form:       form,
	})
}
