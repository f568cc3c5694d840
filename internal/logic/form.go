package logic

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/crickview/prediction-api/internal/models"
)

const formWindow = 10

type formService struct {
	history HistoryProvider
	logger  *zap.SugaredLogger
}

func NewFormService(history HistoryProvider, logger *zap.Logger) FormService {
	return &formService{history: history, logger: logger.Sugar()}
}

// GetPlayerForm summarizes the last innings window straight from ClickHouse.
// It deliberately bypasses the model ensemble: form is a descriptive view,
// not a prediction.
func (s *formService) GetPlayerForm(ctx context.Context, playerID string) (*models.PlayerForm, error) {
	recs, err := s.history.PlayerHistory(ctx, playerID, formWindow)
	if err != nil {
		return nil, err
	}

	form := &models.PlayerForm{
		PlayerID:    playerID,
		Trend:       "stable",
		LastUpdated: time.Now().UTC(),
	}
	if len(recs) == 0 {
		return form, nil
	}

	var runsSum, wicketsSum float64
	for _, r := range recs {
		form.RecentRuns = append(form.RecentRuns, r.Runs)
		runsSum += r.Runs
		wicketsSum += r.Wickets
	}
	form.RunsAvg = runsSum / float64(len(recs))
	form.WicketsAvg = wicketsSum / float64(len(recs))

	// Trend compares the latest innings to the window average.
	if len(recs) >= 3 {
		latest := recs[len(recs)-1].Runs
		switch {
		case latest > form.RunsAvg*1.1:
			form.Trend = "improving"
		case latest < form.RunsAvg*0.9:
			form.Trend = "declining"
		}
	}
	return form, nil
}
