// The trainer replays the innings history chronologically, rebuilding the
// pre-match feature vector for every innings exactly as the API would have
// seen it, then fits and promotes one bundle per target.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"github.com/crickview/prediction-api/internal/config"
	"github.com/crickview/prediction-api/internal/features"
	"github.com/crickview/prediction-api/internal/ingest"
	"github.com/crickview/prediction-api/internal/model"
	"github.com/crickview/prediction-api/internal/models"
	"github.com/crickview/prediction-api/internal/registry"
)

// minHistoryInnings is how many prior innings a player needs before their
// innings become training samples. Earlier innings would train the model on
// mostly-imputed vectors.
const minHistoryInnings = 3

func main() {
	var (
		sinceFlag = flag.String("since", "", "only train on innings after this date (RFC3339)")
		dryRun    = flag.Bool("dry-run", false, "train and report metrics without saving or promoting")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	since := time.Time{}
	if *sinceFlag != "" {
		since, err = time.Parse(time.RFC3339, *sinceFlag)
		if err != nil {
			log.Fatalw("Invalid -since value", "error", err)
		}
	}

	ctx := context.Background()

	chOpts, err := clickhouse.ParseDSN(cfg.ClickHouseURL)
	if err != nil {
		log.Fatalw("Invalid ClickHouse URL", "error", err)
	}
	ch, err := clickhouse.Open(chOpts)
	if err != nil {
		log.Fatalw("Failed to connect to ClickHouse", "error", err)
	}
	defer ch.Close()

	reader := ingest.NewStatsReader(ch)
	engineer := features.NewEngineer(cfg.Engine, logger)

	innings, err := reader.AllInnings(ctx, since)
	if err != nil {
		log.Fatalw("Failed to load innings history", "error", err)
	}
	log.Infow("Loaded innings history", "innings", len(innings))

	samples, err := buildSamples(ctx, reader, engineer, cfg.Engine, innings, log)
	if err != nil {
		log.Fatalw("Failed to build training samples", "error", err)
	}
	log.Infow("Built training samples", "samples", len(samples))

	result, err := model.Train(samples, engineer.Schema(), cfg.Engine, logger)
	if err != nil {
		log.Fatalw("Training failed", "error", err)
	}

	for target, m := range result.Metrics {
		log.Infow("Validation metrics", "target", target, "mae", m.MAE, "rmse", m.RMSE, "samples", m.Samples)
	}
	if *dryRun {
		log.Info("Dry run, not saving bundles")
		return
	}

	reg, err := registry.New(cfg.BundleDir, engineer.Schema(), logger)
	if err != nil {
		log.Fatalw("Failed to open model registry", "error", err)
	}
	for target, bundle := range result.Bundles {
		if err := reg.Save(bundle); err != nil {
			log.Fatalw("Failed to save bundle", "target", target, "error", err)
		}
		if err := reg.Promote(target, bundle.ID); err != nil {
			log.Fatalw("Failed to promote bundle", "target", target, "error", err)
		}
	}
	for _, target := range result.Unavailable {
		log.Warnw("Target left unpromoted", "target", target)
	}
}

type playerState struct {
	role    models.Role
	teamID  string
	name    string
	innings []models.InningsRecord
}

// buildSamples replays history in order. Venue and team aggregates are
// computed once up front; strictly they include future innings, but they are
// slow-moving league baselines and recomputing them per-row would be a full
// table scan per innings.
func buildSamples(
	ctx context.Context,
	reader *ingest.StatsReader,
	engineer *features.Engineer,
	eng config.Engine,
	innings []ingest.TrainingInnings,
	log *zap.SugaredLogger,
) ([]model.Sample, error) {
	baselines, err := reader.RoleBaselines(ctx)
	if err != nil {
		log.Warnw("Role baselines unavailable, using defaults", "error", err)
	}

	venues := make(map[string]*models.VenueStats)
	teams := make(map[string]*models.TeamStrength)
	states := make(map[string]*playerState)

	var samples []model.Sample
	for _, ti := range innings {
		state, ok := states[ti.PlayerID]
		if !ok {
			state = &playerState{role: ti.Role, teamID: ti.TeamID, name: ti.PlayerName}
			states[ti.PlayerID] = state
		}

		if len(state.innings) >= minHistoryInnings {
			rec := ti.Record

			venue := venues[rec.VenueID]
			if venue == nil && rec.VenueID != "" {
				if venue, err = reader.VenueStats(ctx, rec.VenueID); err != nil {
					venue = nil
				}
				venues[rec.VenueID] = venue
			}
			opposition := teams[rec.OppositionID]
			if opposition == nil && rec.OppositionID != "" {
				if opposition, err = reader.TeamStrength(ctx, rec.OppositionID); err != nil {
					opposition = nil
				}
				teams[rec.OppositionID] = opposition
			}

			profile := &models.PlayerProfile{
				ID:     ti.PlayerID,
				Name:   state.name,
				TeamID: state.teamID,
				Role:   state.role,
				Career: careerFrom(state.innings),
				Recent: state.innings,
			}
			mc := models.MatchContext{
				MatchID:      rec.MatchID,
				VenueID:      rec.VenueID,
				Date:         rec.Date,
				Importance:   rec.Importance,
				OppositionID: rec.OppositionID,
			}
			vec, err := engineer.Build(profile, mc, features.Aux{
				Venue:         venue,
				Opposition:    opposition,
				RoleBaselines: baselines,
			})
			if err != nil {
				return nil, err
			}

			samples = append(samples, model.Sample{
				Time:     rec.Date,
				Features: vec.Values,
				Targets: map[string]float64{
					models.TargetRuns:        rec.Runs,
					models.TargetWickets:     rec.Wickets,
					models.TargetStrikeRate:  rec.StrikeRate(),
					models.TargetEconomyRate: rec.EconomyRate(),
				},
			})
		}

		state.innings = append(state.innings, ti.Record)
	}
	return samples, nil
}

func careerFrom(recs []models.InningsRecord) models.CareerAggregates {
	agg := models.CareerAggregates{Matches: len(recs)}
	if len(recs) == 0 {
		return agg
	}

	var srSum, srN, erSum, erN float64
	for _, r := range recs {
		agg.RunsAvg += r.Runs
		agg.WicketsAvg += r.Wickets
		if r.BallsFaced > 0 {
			srSum += r.StrikeRate()
			srN++
		}
		if r.Overs > 0 {
			erSum += r.EconomyRate()
			erN++
		}
	}
	n := float64(len(recs))
	agg.RunsAvg /= n
	agg.WicketsAvg /= n
	if srN > 0 {
		agg.StrikeRateAvg = srSum / srN
	}
	if erN > 0 {
		agg.EconomyRateAvg = erSum / erN
	}
	return agg
}
