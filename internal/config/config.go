package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server
	Port int
	Env  string

	// CORS
	AllowedOrigins []string

	// Backend URLs
	PostgresURL   string
	ClickHouseURL string
	RedisURL      string

	// External stats collaborator
	CollaboratorURL   string
	CollaboratorToken string

	// Ingestion gateway
	CacheTTL           time.Duration
	StaleTTL           time.Duration
	FetchTimeout       time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	RateLimitPerSecond int
	RateLimitBurst     int

	// Ingest worker pool
	WorkerCount   int
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration

	// Model registry
	BundleDir string

	Engine Engine
}

// Engine holds the numeric constants of the prediction engine. Defaults are
// overridable from a YAML file named by ENGINE_CONFIG.
type Engine struct {
	FormWindow          int     `yaml:"form_window"`
	RecentWindow        int     `yaml:"recent_window"`
	FormDecay           float64 `yaml:"form_decay"`
	ConsistencyCeiling  float64 `yaml:"consistency_ceiling"`
	MinVenueInnings     int     `yaml:"min_venue_innings"`
	ImportanceThreshold float64 `yaml:"importance_threshold"`
	IntervalCoverage    float64 `yaml:"interval_coverage"`
	MinResidualSamples  int     `yaml:"min_residual_samples"`
	MinTrainingSamples  int     `yaml:"min_training_samples"`
	ValidationSplit     float64 `yaml:"validation_split"`
	// Algorithms maps target name to regressor algorithm ("ridge" or
	// "boosted_stumps").
	Algorithms map[string]string `yaml:"algorithms"`
}

func defaultEngine() Engine {
	return Engine{
		FormWindow:          10,
		RecentWindow:        5,
		FormDecay:           0.8,
		ConsistencyCeiling:  10.0,
		MinVenueInnings:     3,
		ImportanceThreshold: 0.7,
		IntervalCoverage:    0.95,
		MinResidualSamples:  30,
		MinTrainingSamples:  50,
		ValidationSplit:     0.2,
		Algorithms: map[string]string{
			"runs":         "boosted_stumps",
			"wickets":      "boosted_stumps",
			"strike_rate":  "ridge",
			"economy_rate": "ridge",
		},
	}
}

// Load loads configuration from environment variables.
// It returns an error if critical configuration is missing.
func Load() (*Config, error) {
	cfg := &Config{
		Port: getEnvInt("PORT", 8080),
		Env:  getEnv("ENV", "development"),

		CacheTTL:           getEnvDuration("CACHE_TTL", time.Hour),
		StaleTTL:           getEnvDuration("STALE_TTL", 7*24*time.Hour),
		FetchTimeout:       getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		MaxRetries:         getEnvInt("MAX_RETRIES", 3),
		RetryBackoff:       getEnvDuration("RETRY_BACKOFF", 500*time.Millisecond),
		RateLimitPerSecond: getEnvInt("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 20),

		WorkerCount:   getEnvInt("WORKER_COUNT", 4),
		QueueSize:     getEnvInt("QUEUE_SIZE", 10000),
		BatchSize:     getEnvInt("BATCH_SIZE", 500),
		FlushInterval: getEnvDuration("FLUSH_INTERVAL", 1*time.Second),

		BundleDir: getEnv("BUNDLE_DIR", "bundles"),

		Engine: defaultEngine(),
	}

	// CORS
	origins := getEnv("ALLOWED_ORIGINS", "http://localhost:3000")
	for _, o := range strings.Split(origins, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	// Critical configuration - fail if missing
	var err error
	if cfg.PostgresURL, err = getEnvRequired("POSTGRES_URL"); err != nil {
		return nil, err
	}
	if cfg.ClickHouseURL, err = getEnvRequired("CLICKHOUSE_URL"); err != nil {
		return nil, err
	}
	if cfg.RedisURL, err = getEnvRequired("REDIS_URL"); err != nil {
		return nil, err
	}
	if cfg.CollaboratorURL, err = getEnvRequired("COLLABORATOR_URL"); err != nil {
		return nil, err
	}
	cfg.CollaboratorToken = getEnv("COLLABORATOR_TOKEN", "")

	if path := getEnv("ENGINE_CONFIG", ""); path != "" {
		if err := loadEngineFile(path, &cfg.Engine); err != nil {
			return nil, fmt.Errorf("loading engine config %s: %w", path, err)
		}
	}

	return cfg, nil
}

func loadEngineFile(path string, eng *Engine) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, eng)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvRequired(key string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("missing required environment variable: %s", key)
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
