// Package config loads and validates engine configuration.
//
// Configuration is resolved in three layers: built-in defaults, an optional
// YAML file, then environment variable overrides. The resolved Config is
// constructed once in main and passed to components explicitly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the routing engine.
type Config struct {
	HTTP     *HTTPConfig    `yaml:"http"`
	Redis    *RedisConfig   `yaml:"redis"`
	Routing  *RoutingConfig `yaml:"routing"`
	Dedup    *DedupConfig   `yaml:"dedup"`
	Breaker  *BreakerConfig `yaml:"circuit_breaker"`
	Worker   *WorkerConfig  `yaml:"worker"`
	Webhooks *WebhookConfig `yaml:"webhooks"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port string `yaml:"port"`
}

// RedisConfig holds broker connection settings.
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// RoutingConfig controls scoring, ETA and preemption behavior.
type RoutingConfig struct {
	// HighUrgencyThreshold is the urgency above which the notifier fires.
	HighUrgencyThreshold float64 `yaml:"high_urgency_threshold"`

	// PreemptionThreshold is the minimum urgency authorized to preempt.
	PreemptionThreshold float64 `yaml:"preemption_threshold"`

	// GeneralistThreshold is the minimum proficiency across all known
	// categories for an agent to count as a generalist.
	GeneralistThreshold float64 `yaml:"generalist_threshold"`

	// EtaBase and EtaMin bound the estimated completion time. ETA decreases
	// linearly from EtaBase at urgency 0 to EtaMin at urgency 1.
	EtaBase time.Duration `yaml:"eta_base"`
	EtaMin  time.Duration `yaml:"eta_min"`
}

// DedupConfig controls the semantic deduplication window.
type DedupConfig struct {
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	TimeWindow          time.Duration `yaml:"time_window"`
	CountThreshold      int           `yaml:"count_threshold"`
}

// BreakerConfig controls the classifier circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
	LatencyThreshold time.Duration `yaml:"latency_threshold"`
}

// WorkerConfig controls the worker pool.
type WorkerConfig struct {
	// Count is the number of worker goroutines consuming the broker.
	Count int `yaml:"count"`

	// ConsumeTimeout is the blocking timeout of a single broker pop.
	ConsumeTimeout time.Duration `yaml:"consume_timeout"`

	// GracefulShutdownTimeout bounds the wait for in-flight tickets on stop.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}

// WebhookConfig holds outbound notification targets. Empty URLs disable the
// corresponding channel.
type WebhookConfig struct {
	SlackURL   string `yaml:"slack_url"`
	DiscordURL string `yaml:"discord_url"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTP:  &HTTPConfig{Port: "8080"},
		Redis: &RedisConfig{Addr: "localhost:6379"},
		Routing: &RoutingConfig{
			HighUrgencyThreshold: 0.8,
			PreemptionThreshold:  0.85,
			GeneralistThreshold:  0.5,
			EtaBase:              60 * time.Second,
			EtaMin:               15 * time.Second,
		},
		Dedup: &DedupConfig{
			SimilarityThreshold: 0.9,
			TimeWindow:          5 * time.Minute,
			CountThreshold:      10,
		},
		Breaker: &BreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			ResetTimeout:     30 * time.Second,
			LatencyThreshold: 500 * time.Millisecond,
		},
		Worker: &WorkerConfig{
			Count:                   2,
			ConsumeTimeout:          5 * time.Second,
			GracefulShutdownTimeout: 30 * time.Second,
		},
		Webhooks: &WebhookConfig{},
	}
}

// Load resolves configuration from defaults, an optional YAML file at path
// (skipped when path is empty or missing), and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		c.HTTP.Port = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		c.Webhooks.SlackURL = v
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		c.Webhooks.DiscordURL = v
	}
	if v, ok := envFloat("HIGH_URGENCY_THRESHOLD"); ok {
		c.Routing.HighUrgencyThreshold = v
	}
	if v, ok := envFloat("PREEMPTION_URGENCY_THRESHOLD"); ok {
		c.Routing.PreemptionThreshold = v
	}
	if v, ok := envFloat("GENERALIST_THRESHOLD"); ok {
		c.Routing.GeneralistThreshold = v
	}
	if v, ok := envInt("ETA_BASE_SECONDS"); ok {
		c.Routing.EtaBase = time.Duration(v) * time.Second
	}
	if v, ok := envInt("ETA_MIN_SECONDS"); ok {
		c.Routing.EtaMin = time.Duration(v) * time.Second
	}
	if v, ok := envFloat("SIMILARITY_THRESHOLD"); ok {
		c.Dedup.SimilarityThreshold = v
	}
	if v, ok := envInt("DUPLICATE_TIME_WINDOW_MINUTES"); ok {
		c.Dedup.TimeWindow = time.Duration(v) * time.Minute
	}
	if v, ok := envInt("DUPLICATE_COUNT_THRESHOLD"); ok {
		c.Dedup.CountThreshold = v
	}
	if v, ok := envInt("CIRCUIT_BREAKER_LATENCY_MS"); ok {
		c.Breaker.LatencyThreshold = time.Duration(v) * time.Millisecond
	}
	if v, ok := envInt("WORKER_COUNT"); ok {
		c.Worker.Count = v
	}
}

// Validate checks value ranges that would otherwise surface as subtle
// routing bugs.
func (c *Config) Validate() error {
	if c.Routing.HighUrgencyThreshold < 0 || c.Routing.HighUrgencyThreshold > 1 {
		return fmt.Errorf("high_urgency_threshold must be in [0,1], got %v", c.Routing.HighUrgencyThreshold)
	}
	if c.Routing.PreemptionThreshold < 0 || c.Routing.PreemptionThreshold > 1 {
		return fmt.Errorf("preemption_threshold must be in [0,1], got %v", c.Routing.PreemptionThreshold)
	}
	if c.Routing.EtaMin > c.Routing.EtaBase {
		return fmt.Errorf("eta_min (%v) must not exceed eta_base (%v)", c.Routing.EtaMin, c.Routing.EtaBase)
	}
	if c.Dedup.SimilarityThreshold <= 0 || c.Dedup.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in (0,1], got %v", c.Dedup.SimilarityThreshold)
	}
	if c.Dedup.CountThreshold < 2 {
		return fmt.Errorf("count_threshold must be at least 2, got %d", c.Dedup.CountThreshold)
	}
	if c.Breaker.FailureThreshold < 1 || c.Breaker.SuccessThreshold < 1 {
		return fmt.Errorf("breaker thresholds must be positive")
	}
	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be positive, got %d", c.Worker.Count)
	}
	return nil
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
