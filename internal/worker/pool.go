// Package worker implements the buffered worker pool pattern for async
// innings ingestion. This decouples HTTP request handling from database
// writes, providing:
// - Backpressure handling via load shedding
// - Batch inserts for efficient ClickHouse writes
// - Graceful shutdown with flush guarantees

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/crickview/prediction-api/internal/models"
)

// Milestone thresholds on cumulative career counters.
var (
	runThresholds = map[int64]string{
		1000:  "RUNS_1000",
		5000:  "RUNS_5000",
		10000: "RUNS_10000",
	}
	wicketThresholds = map[int64]string{
		50:  "WICKETS_50",
		100: "WICKETS_100",
		250: "WICKETS_250",
	}
)

// Prometheus metrics
var (
	recordsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crickview_records_ingested_total",
		Help: "Total number of innings records accepted for ingestion",
	})

	recordsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crickview_records_processed_total",
		Help: "Total number of innings records written by workers",
	})

	recordsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crickview_records_failed_total",
		Help: "Total number of innings records that failed processing",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crickview_worker_queue_depth",
		Help: "Current depth of the worker queue",
	})

	batchInsertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crickview_batch_insert_duration_seconds",
		Help:    "Duration of batch inserts to ClickHouse",
		Buckets: prometheus.DefBuckets,
	})

	recordsLoadShed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crickview_records_load_shed_total",
		Help: "Total number of innings records dropped due to load shedding",
	})
)

// Job represents a unit of work for the worker pool
type Job struct {
	Record    *models.RawStatRecord
	RawJSON   string
	Timestamp time.Time
}

// PoolConfig configures the worker pool
type PoolConfig struct {
	WorkerCount   int
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	ClickHouse    driver.Conn
	Postgres      *pgxpool.Pool
	Redis         *redis.Client
	Logger        *zap.Logger
}

// Pool manages a pool of workers for async innings processing
type Pool struct {
	config   PoolConfig
	jobQueue chan Job
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.SugaredLogger
}

// NewPool creates a new worker pool
func NewPool(cfg PoolConfig) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}

	return &Pool{
		config:   cfg,
		jobQueue: make(chan Job, cfg.QueueSize),
		logger:   cfg.Logger.Sugar(),
	}
}

// Start launches the worker goroutines
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	go p.reportQueueDepth()

	p.logger.Infow("Worker pool started",
		"workers", p.config.WorkerCount,
		"queueSize", p.config.QueueSize,
		"batchSize", p.config.BatchSize,
	)
}

// Stop gracefully shuts down the worker pool
func (p *Pool) Stop() {
	p.logger.Info("Stopping worker pool...")

	p.cancel()
	close(p.jobQueue)
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

// Enqueue adds a record to the queue. Blocks if queue is full.
func (p *Pool) Enqueue(record *models.RawStatRecord) bool {
	rawJSON, _ := json.Marshal(record)

	job := Job{
		Record:    record,
		RawJSON:   string(rawJSON),
		Timestamp: time.Now(),
	}

	// Protect against sending on closed channel
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warnw("Failed to enqueue record (pool stopped)", "error", r)
		}
	}()

	select {
	case p.jobQueue <- job:
		recordsIngested.Inc()
		return true
	case <-p.ctx.Done():
		p.logger.Warn("Worker pool context canceled, dropping record")
		recordsLoadShed.Inc()
		return false
	}
}

// QueueDepth returns current queue size
func (p *Pool) QueueDepth() int {
	return len(p.jobQueue)
}

// worker processes jobs from the queue in batches
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	batch := make([]Job, 0, p.config.BatchSize)
	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		start := time.Now()
		if err := p.processBatch(batch); err != nil {
			p.logger.Errorw("Batch processing failed",
				"worker", id,
				"batchSize", len(batch),
				"error", err,
			)
			recordsFailed.Add(float64(len(batch)))
		} else {
			recordsProcessed.Add(float64(len(batch)))
		}
		batchInsertDuration.Observe(time.Since(start).Seconds())

		batch = batch[:0]
	}

	for {
		select {
		case job, ok := <-p.jobQueue:
			if !ok {
				flush()
				return
			}

			batch = append(batch, job)
			if len(batch) >= p.config.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-p.ctx.Done():
			flush()
			return
		}
	}
}

// processBatch writes a batch of innings to ClickHouse, then runs Redis and
// milestone side effects.
func (p *Pool) processBatch(batch []Job) error {
	if len(batch) == 0 {
		return nil
	}

	ctx := context.Background()

	chBatch, err := p.config.ClickHouse.PrepareBatch(ctx, `
		INSERT INTO cricket_stats.player_innings (
			timestamp, match_id, player_id, player_name, team_id,
			opposition_id, venue_id, role, importance,
			runs, balls_faced, wickets, overs, runs_conceded, raw_json
		)
	`)
	if err != nil {
		return err
	}

	for _, job := range batch {
		row := toInningsRow(job.Record, job.RawJSON, job.Timestamp)

		err := chBatch.Append(
			row.Timestamp,
			row.MatchID,
			row.PlayerID,
			row.PlayerName,
			row.TeamID,
			row.OppositionID,
			row.VenueID,
			row.Role,
			row.Importance,
			row.Runs,
			row.BallsFaced,
			row.Wickets,
			row.Overs,
			row.RunsConceded,
			row.RawJSON,
		)
		if err != nil {
			p.logger.Warnw("Failed to append record to batch", "error", err, "player_id", job.Record.PlayerID)
			continue
		}
	}

	// Must copy batch because the slice is reused in the worker loop
	batchCopy := make([]Job, len(batch))
	copy(batchCopy, batch)
	go p.processBatchSideEffects(ctx, batchCopy)

	if err := chBatch.Send(); err != nil {
		p.logger.Errorw("Failed to send batch to ClickHouse", "error", err, "batchSize", len(batch))
		return err
	}
	return nil
}

// processBatchSideEffects maintains rolling career counters in Redis and
// persists milestone unlocks. Counters are advisory state for the form views;
// ClickHouse remains the source of truth.
func (p *Pool) processBatchSideEffects(ctx context.Context, batch []Job) {
	if len(batch) == 0 {
		return
	}

	// Phase 1: counter increments in one pipeline
	type counterCheck struct {
		playerID string
		cmd      *redis.IntCmd
		kind     string // "runs" or "wickets"
		delta    int64
	}

	pipe := p.config.Redis.Pipeline()
	var checks []counterCheck

	for _, job := range batch {
		rec := job.Record
		if rec.PlayerID == "" {
			continue
		}

		if rec.Runs > 0 {
			cmd := pipe.IncrBy(ctx, "player:"+rec.PlayerID+":runs", int64(rec.Runs))
			checks = append(checks, counterCheck{playerID: rec.PlayerID, cmd: cmd, kind: "runs", delta: int64(rec.Runs)})
		}
		if rec.Wickets > 0 {
			cmd := pipe.IncrBy(ctx, "player:"+rec.PlayerID+":wickets", int64(rec.Wickets))
			checks = append(checks, counterCheck{playerID: rec.PlayerID, cmd: cmd, kind: "wickets", delta: int64(rec.Wickets)})
		}
		if rec.PlayerName != "" {
			pipe.HSet(ctx, "player_names", rec.PlayerID, rec.PlayerName)
		}

		// Single-innings milestones need no counter; record them directly.
		if rec.Runs >= 100 {
			pipe.SAdd(ctx, "player:"+rec.PlayerID+":milestones", "CENTURY")
		}
		if rec.Wickets >= 5 {
			pipe.SAdd(ctx, "player:"+rec.PlayerID+":milestones", "FIVE_WICKET_HAUL")
		}
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		p.logger.Errorw("Redis pipeline failed", "error", err)
	}

	// Phase 2: threshold crossings. An increment can jump over a threshold,
	// so check the crossed range, not equality.
	type unlock struct {
		playerID  string
		milestone string
	}
	var unlocks []unlock

	for _, check := range checks {
		after, err := check.cmd.Result()
		if err != nil {
			continue
		}
		before := after - check.delta
		thresholds := runThresholds
		if check.kind == "wickets" {
			thresholds = wicketThresholds
		}
		for threshold, id := range thresholds {
			if before < threshold && after >= threshold {
				unlocks = append(unlocks, unlock{playerID: check.playerID, milestone: id})
			}
		}
	}

	if len(unlocks) == 0 {
		return
	}

	// Phase 3: bulk persistence, idempotent via ON CONFLICT
	var sb strings.Builder
	sb.WriteString("INSERT INTO player_milestones (player_id, milestone_id, reached_at) VALUES ")
	vals := []interface{}{}
	now := time.Now()

	for i, u := range unlocks {
		n := i * 3
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d, $%d)", n+1, n+2, n+3)
		vals = append(vals, u.playerID, u.milestone, now)
	}
	sb.WriteString(" ON CONFLICT (player_id, milestone_id) DO NOTHING")

	if _, err := p.config.Postgres.Exec(ctx, sb.String(), vals...); err != nil {
		p.logger.Errorw("Failed to bulk insert milestones", "error", err, "count", len(unlocks))
	}

	markPipe := p.config.Redis.Pipeline()
	for _, u := range unlocks {
		markPipe.SAdd(ctx, "player:"+u.playerID+":milestones", u.milestone)
	}
	if _, err := markPipe.Exec(ctx); err != nil && err != redis.Nil {
		p.logger.Errorw("Redis milestone pipeline failed", "error", err)
	}
}

// minValidUnixTimestamp is 2020-01-01 00:00:00 UTC in seconds. Feed
// timestamps below this are treated as relative offsets, not real epochs,
// and the ingestion wall-clock time is used instead.
const minValidUnixTimestamp = 1577836800

// toInningsRow normalizes a raw record for ClickHouse. receivedAt is the
// wall-clock time when the record was enqueued, used as fallback when the
// feed timestamp is not a Unix epoch.
func toInningsRow(rec *models.RawStatRecord, rawJSON string, receivedAt time.Time) *models.InningsRow {
	matchID, err := uuid.Parse(rec.MatchID)
	if err != nil {
		// Consistent namespace for non-standard match IDs
		namespace := uuid.MustParse("00000000-0000-0000-0000-000000000000")
		matchID = uuid.NewMD5(namespace, []byte(rec.MatchID))
	}

	var ts time.Time
	if rec.Timestamp >= minValidUnixTimestamp {
		sec := int64(rec.Timestamp)
		nsec := int64((rec.Timestamp - float64(sec)) * 1e9)
		ts = time.Unix(sec, nsec)
	} else {
		ts = receivedAt
	}

	return &models.InningsRow{
		Timestamp:    ts,
		MatchID:      matchID,
		PlayerID:     rec.PlayerID,
		PlayerName:   rec.PlayerName,
		TeamID:       rec.TeamID,
		OppositionID: rec.OppositionID,
		VenueID:      rec.VenueID,
		Role:         string(rec.Role),
		Importance:   rec.Importance,
		Runs:         rec.Runs,
		BallsFaced:   rec.BallsFaced,
		Wickets:      rec.Wickets,
		Overs:        rec.Overs,
		RunsConceded: rec.RunsConceded,
		RawJSON:      rawJSON,
	}
}

func (p *Pool) reportQueueDepth() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			queueDepth.Set(float64(len(p.jobQueue)))
		case <-p.ctx.Done():
			return
		}
	}
}
