// Package ingest implements the ingestion gateway: TTL-cached access to the
// external stats collaborator with retry/backoff, circuit breaking, rate
// limiting and per-key refresh coalescing. Callers never hit the upstream
// twice for the same stale key concurrently, and a dead upstream degrades to
// last-known-stale payloads before it degrades to an error.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crickview_cache_hits_total",
		Help: "Fresh cache hits by source",
	}, []string{"source"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crickview_cache_misses_total",
		Help: "Cache misses (expired or absent) by source",
	}, []string{"source"})

	staleServes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crickview_stale_serves_total",
		Help: "Requests served from stale payloads after upstream failure",
	}, []string{"source"})

	upstreamRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crickview_upstream_retries_total",
		Help: "Retry attempts against upstream sources",
	}, []string{"source"})

	upstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crickview_upstream_failures_total",
		Help: "Keys that exhausted all retries with no usable payload",
	}, []string{"source"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crickview_fetch_duration_seconds",
		Help:    "Duration of gateway fetches including cache path",
		Buckets: prometheus.DefBuckets,
	})
)

// Payload is the gateway's answer: the raw record plus whether it came from
// the stale fallback path.
type Payload struct {
	Data      []byte
	Stale     bool
	FetchedAt time.Time
}

// GatewayConfig configures the ingestion gateway.
type GatewayConfig struct {
	Cache          Cache
	TTL            time.Duration
	FetchTimeout   time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	RatePerSecond  int
	RateBurst      int
	BreakerTimeout time.Duration
	Logger         *zap.Logger
}

// Gateway coalesces, caches and rate-limits fetches of raw statistic records.
type Gateway struct {
	cache        Cache
	ttl          time.Duration
	fetchTimeout time.Duration
	maxRetries   int
	backoff      time.Duration

	group   singleflight.Group
	limiter *rate.Limiter

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	sources  map[string]Source

	logger *zap.SugaredLogger

	// sleep is swapped out in tests
	sleep func(ctx context.Context, d time.Duration) error
}

func NewGateway(cfg GatewayConfig, sources ...Source) *Gateway {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = cfg.RatePerSecond
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	g := &Gateway{
		cache:        cfg.Cache,
		ttl:          cfg.TTL,
		fetchTimeout: cfg.FetchTimeout,
		maxRetries:   cfg.MaxRetries,
		backoff:      cfg.RetryBackoff,
		limiter:      rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		breakers:     make(map[string]*gobreaker.CircuitBreaker),
		sources:      make(map[string]Source),
		logger:       cfg.Logger.Sugar(),
		sleep:        sleepCtx,
	}
	for _, s := range sources {
		g.sources[s.Name()] = s
		g.breakers[s.Name()] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    s.Name(),
			Timeout: cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
	}
	return g
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fetch returns the cached payload for (source, key) if fresh, otherwise
// refreshes it. Concurrent refreshes of the same key share one upstream call.
// When every retry fails the last known payload is served stale; if nothing
// was ever cached the result is an *IngestionError.
func (g *Gateway) Fetch(ctx context.Context, source, key string) (*Payload, error) {
	start := time.Now()
	defer func() { fetchDuration.Observe(time.Since(start).Seconds()) }()

	cacheKey := source + "/" + key

	if e, ok, err := g.cache.Get(ctx, cacheKey); err == nil && ok {
		cacheHits.WithLabelValues(source).Inc()
		return &Payload{Data: e.Payload, FetchedAt: e.FetchedAt}, nil
	} else if err != nil {
		g.logger.Warnw("Cache read failed, refreshing", "key", cacheKey, "error", err)
	}
	cacheMisses.WithLabelValues(source).Inc()

	v, err, _ := g.group.Do(cacheKey, func() (interface{}, error) {
		// A waiter queued behind a completed refresh sees the fresh entry here
		// instead of triggering a second upstream call.
		if e, ok, err := g.cache.Get(ctx, cacheKey); err == nil && ok {
			return &Payload{Data: e.Payload, FetchedAt: e.FetchedAt}, nil
		}
		return g.refresh(ctx, source, key, cacheKey)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Payload), nil
}

func (g *Gateway) refresh(ctx context.Context, source, key, cacheKey string) (*Payload, error) {
	src, ok := g.sources[source]
	if !ok {
		return nil, &IngestionError{Source: source, Key: key, Err: fmt.Errorf("unknown source %q", source)}
	}
	breaker := g.breaker(source)

	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if attempt > 0 {
			upstreamRetries.WithLabelValues(source).Inc()
			if err := g.sleep(ctx, g.backoff<<(attempt-1)); err != nil {
				lastErr = err
				break
			}
		}

		if err := g.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		data, err := g.attempt(ctx, breaker, src, key)
		if err == nil {
			if cerr := g.cache.Set(ctx, cacheKey, data, g.ttl); cerr != nil {
				g.logger.Warnw("Cache write failed", "key", cacheKey, "error", cerr)
			}
			return &Payload{Data: data, FetchedAt: time.Now()}, nil
		}

		lastErr = err
		if errors.Is(err, ErrNotFound) {
			break
		}
		g.logger.Warnw("Upstream fetch failed", "source", source, "key", key, "attempt", attempt+1, "error", err)
	}

	if e, ok, err := g.cache.GetStale(ctx, cacheKey); err == nil && ok {
		staleServes.WithLabelValues(source).Inc()
		g.logger.Warnw("Serving stale payload", "source", source, "key", key, "age", time.Since(e.FetchedAt))
		return &Payload{Data: e.Payload, Stale: true, FetchedAt: e.FetchedAt}, nil
	}

	upstreamFailures.WithLabelValues(source).Inc()
	return nil, &IngestionError{Source: source, Key: key, Err: lastErr}
}

// attempt runs one upstream call under the breaker with a bounded timeout.
// A timeout is a failed attempt subject to the retry policy, not fatal.
func (g *Gateway) attempt(ctx context.Context, breaker *gobreaker.CircuitBreaker, src Source, key string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.fetchTimeout)
	defer cancel()

	v, err := breaker.Execute(func() (interface{}, error) {
		return src.Fetch(attemptCtx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (g *Gateway) breaker(source string) *gobreaker.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.breakers[source]
	if !ok {
		b = gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: source})
		g.breakers[source] = b
	}
	return b
}
