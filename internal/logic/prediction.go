package logic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crickview/prediction-api/internal/confidence"
	"github.com/crickview/prediction-api/internal/features"
	"github.com/crickview/prediction-api/internal/ingest"
	"github.com/crickview/prediction-api/internal/models"
	"github.com/crickview/prediction-api/internal/registry"
)

// Gateway source names the prediction service fetches through.
const (
	SourceCollaborator = "collaborator"
	SourceHistory      = "history"
)

var (
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crickview_predictions_total",
		Help: "Prediction requests by outcome (full, partial, error)",
	}, []string{"outcome"})

	predictionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crickview_prediction_duration_seconds",
		Help:    "End-to-end prediction latency",
		Buckets: prometheus.DefBuckets,
	})
)

// PredictionError wraps failures inside the prediction pipeline with the
// player they occurred for.
type PredictionError struct {
	PlayerID string
	Stage    string
	Err      error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("predicting player %s (%s): %v", e.PlayerID, e.Stage, e.Err)
}

func (e *PredictionError) Unwrap() error { return e.Err }

type predictionService struct {
	gateway   Fetcher
	schedule  ScheduleService
	history   HistoryProvider
	store     ModelStore
	engineer  *features.Engineer
	estimator *confidence.Estimator
	logger    *zap.SugaredLogger
}

func NewPredictionService(
	gateway Fetcher,
	schedule ScheduleService,
	history HistoryProvider,
	store ModelStore,
	engineer *features.Engineer,
	estimator *confidence.Estimator,
	logger *zap.Logger,
) PredictionService {
	return &predictionService{
		gateway:   gateway,
		schedule:  schedule,
		history:   history,
		store:     store,
		engineer:  engineer,
		estimator: estimator,
		logger:    logger.Sugar(),
	}
}

// PredictPlayer runs the full pipeline for one (player, match) pair. Targets
// without a servable model land in Unavailable; everything else is still
// returned. Only a missing player or match fails the whole request.
func (s *predictionService) PredictPlayer(ctx context.Context, playerID, matchID string) (*models.PredictionResult, error) {
	start := time.Now()
	defer func() { predictionDuration.Observe(time.Since(start).Seconds()) }()

	mc, err := s.schedule.GetMatchContext(ctx, matchID)
	if err != nil {
		predictionsTotal.WithLabelValues("error").Inc()
		return nil, &PredictionError{PlayerID: playerID, Stage: "schedule", Err: err}
	}

	profile, profileStale, err := s.fetchProfile(ctx, playerID)
	if err != nil {
		predictionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	mc.OppositionID = mc.Opponent(profile.TeamID)

	aux, auxStale := s.fetchAux(ctx, mc, profile.TeamID)

	vec, err := s.engineer.Build(profile, *mc, aux)
	if err != nil {
		predictionsTotal.WithLabelValues("error").Inc()
		return nil, &PredictionError{PlayerID: playerID, Stage: "features", Err: err}
	}

	result := &models.PredictionResult{
		PlayerID:      profile.ID,
		PlayerName:    profile.Name,
		Role:          profile.Role,
		Match:         *mc,
		Targets:       make(map[string]models.TargetPrediction),
		SchemaVersion: vec.Schema.Version,
		StaleData:     profileStale || auxStale,
		GeneratedAt:   time.Now().UTC(),
	}

	for _, target := range models.Targets() {
		loaded, err := s.store.LoadCurrent(target)
		if err != nil {
			var unavailable *registry.ModelUnavailableError
			if errors.As(err, &unavailable) {
				s.logger.Debugw("Target unavailable", "player_id", playerID, "target", target, "reason", unavailable.Reason)
				result.Unavailable = append(result.Unavailable, target)
				continue
			}
			predictionsTotal.WithLabelValues("error").Inc()
			return nil, &PredictionError{PlayerID: playerID, Stage: "registry", Err: err}
		}

		point, err := loaded.Model.Predict(vec.Values)
		if err != nil {
			predictionsTotal.WithLabelValues("error").Inc()
			return nil, &PredictionError{PlayerID: playerID, Stage: "predict " + target, Err: err}
		}
		result.Targets[target] = s.estimator.Interval(point, loaded.Bundle.Residuals)
	}

	if len(result.Unavailable) > 0 {
		predictionsTotal.WithLabelValues("partial").Inc()
	} else {
		predictionsTotal.WithLabelValues("full").Inc()
	}
	return result, nil
}

func (s *predictionService) fetchProfile(ctx context.Context, playerID string) (*models.PlayerProfile, bool, error) {
	payload, err := s.gateway.Fetch(ctx, SourceCollaborator, "player/"+playerID)
	if err != nil {
		return nil, false, &PredictionError{PlayerID: playerID, Stage: "profile", Err: err}
	}
	var profile models.PlayerProfile
	if err := json.Unmarshal(payload.Data, &profile); err != nil {
		return nil, false, &PredictionError{PlayerID: playerID, Stage: "profile decode", Err: err}
	}
	if profile.ID == "" {
		profile.ID = playerID
	}
	return &profile, payload.Stale, nil
}

// fetchAux pulls venue, opposition and role baselines concurrently. All of
// it is optional context: failures degrade to imputation, never to request
// failure.
func (s *predictionService) fetchAux(ctx context.Context, mc *models.MatchContext, teamID string) (features.Aux, bool) {
	var (
		mu    sync.Mutex
		aux   features.Aux
		stale bool
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := s.gateway.Fetch(gctx, SourceHistory, "venue/"+mc.VenueID)
		if err != nil {
			s.logger.Warnw("Venue context unavailable", "venue_id", mc.VenueID, "error", err)
			return nil
		}
		var vs models.VenueStats
		if err := json.Unmarshal(p.Data, &vs); err != nil {
			return nil
		}
		mu.Lock()
		aux.Venue = &vs
		stale = stale || p.Stale
		mu.Unlock()
		return nil
	})

	if mc.OppositionID != "" {
		g.Go(func() error {
			p, err := s.gateway.Fetch(gctx, SourceHistory, "team/"+mc.OppositionID)
			if err != nil {
				s.logger.Warnw("Opposition context unavailable", "team_id", mc.OppositionID, "error", err)
				return nil
			}
			var ts models.TeamStrength
			if err := json.Unmarshal(p.Data, &ts); err != nil {
				return nil
			}
			mu.Lock()
			aux.Opposition = &ts
			stale = stale || p.Stale
			mu.Unlock()
			return nil
		})
	}

	g.Go(func() error {
		baselines, err := s.history.RoleBaselines(gctx)
		if err != nil {
			s.logger.Warnw("Role baselines unavailable", "error", err)
			return nil
		}
		mu.Lock()
		aux.RoleBaselines = baselines
		mu.Unlock()
		return nil
	})

	g.Wait() // goroutines never return errors; Wait is for completion only
	return aux, stale
}

// NotFound reports whether err means the requested entity does not exist
// upstream.
func NotFound(err error) bool {
	return errors.Is(err, ingest.ErrNotFound)
}
