package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/crickview/prediction-api/internal/confidence"
	"github.com/crickview/prediction-api/internal/config"
	"github.com/crickview/prediction-api/internal/features"
	"github.com/crickview/prediction-api/internal/handlers"
	"github.com/crickview/prediction-api/internal/ingest"
	"github.com/crickview/prediction-api/internal/logic"
	"github.com/crickview/prediction-api/internal/registry"
	"github.com/crickview/prediction-api/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	var logger *zap.Logger
	if cfg.Env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	pg, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalw("Failed to create Postgres pool", "error", err)
	}
	defer pg.Close()
	if err := pg.Ping(ctx); err != nil {
		log.Fatalw("Failed to ping Postgres", "error", err)
	}

	// ClickHouse
	chOpts, err := clickhouse.ParseDSN(cfg.ClickHouseURL)
	if err != nil {
		log.Fatalw("Invalid ClickHouse URL", "error", err)
	}
	ch, err := clickhouse.Open(chOpts)
	if err != nil {
		log.Fatalw("Failed to connect to ClickHouse", "error", err)
	}
	defer ch.Close()
	if err := ch.Ping(ctx); err != nil {
		log.Fatalw("Failed to ping ClickHouse", "error", err)
	}

	// Redis
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalw("Invalid Redis URL", "error", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalw("Failed to ping Redis", "error", err)
	}

	// Ingestion gateway over the collaborator API and local history
	statsReader := ingest.NewStatsReader(ch)
	collaborator := ingest.NewHTTPSource(
		logic.SourceCollaborator, cfg.CollaboratorURL, cfg.CollaboratorToken,
		&http.Client{Timeout: cfg.FetchTimeout},
	)
	gateway := ingest.NewGateway(ingest.GatewayConfig{
		Cache:         ingest.NewRedisCache(rdb, "ingest", cfg.StaleTTL),
		TTL:           cfg.CacheTTL,
		FetchTimeout:  cfg.FetchTimeout,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
		RatePerSecond: cfg.RateLimitPerSecond,
		RateBurst:     cfg.RateLimitBurst,
		Logger:        logger,
	}, collaborator, statsReader)

	// Feature engineering and model serving
	engineer := features.NewEngineer(cfg.Engine, logger)
	reg, err := registry.New(cfg.BundleDir, engineer.Schema(), logger)
	if err != nil {
		log.Fatalw("Failed to open model registry", "error", err)
	}
	reg.LoadAll()

	estimator := confidence.NewEstimator(cfg.Engine.IntervalCoverage, cfg.Engine.MinResidualSamples)

	scheduleSvc := logic.NewScheduleService(pg)
	predictionSvc := logic.NewPredictionService(
		gateway, scheduleSvc, statsReader, reg, engineer, estimator, logger,
	)
	formSvc := logic.NewFormService(statsReader, logger)

	// Worker pool for async innings ingestion
	pool := worker.NewPool(worker.PoolConfig{
		WorkerCount:   cfg.WorkerCount,
		QueueSize:     cfg.QueueSize,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		ClickHouse:    ch,
		Postgres:      pg,
		Redis:         rdb,
		Logger:        logger,
	})
	pool.Start(ctx)

	h := handlers.New(handlers.Config{
		WorkerPool: pool,
		Postgres:   pg,
		ClickHouse: ch,
		Redis:      rdb,
		Logger:     logger,
		Prediction: predictionSvc,
		Schedule:   scheduleSvc,
		Form:       formSvc,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h.Routes(cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("Server starting", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("Server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Server shutdown failed", "error", err)
	}
	pool.Stop()
	log.Info("Shutdown complete")
}
