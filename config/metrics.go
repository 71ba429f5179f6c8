package config

import (
	"strings"
	"time"

	"github.com/target/entity-metrics/internal/domain/model"
)

// EntityMetricsConfig controls cache population.
type EntityMetricsConfig struct {
	// LockTTL bounds how long a crashed populator can block others from recomputing an entity.
	LockTTL time.Duration `env:"ENTITY_METRICS_LOCK_TTL" envDefault:"10s"`

	// BatchSize is the maximum number of ids per aggregation query.
	BatchSize int `env:"ENTITY_METRICS_BATCH_SIZE" envDefault:"1000"`

	// FanoutConcurrency caps in-flight cache round trips during existence checks,
	// lock acquisition and writes.
	FanoutConcurrency int `env:"ENTITY_METRICS_FANOUT_CONCURRENCY" envDefault:"64"`

	// KeyPrefix namespaces every Redis key written by the cache.
	KeyPrefix string `env:"ENTITY_METRICS_KEY_PREFIX" envDefault:"entity-metrics"`

	// CacheTTL expires stored metric sets; zero keeps them until busted or refreshed.
	CacheTTL time.Duration `env:"ENTITY_METRICS_CACHE_TTL" envDefault:"0s"`

	// MaxIDsPerRequest caps the ids accepted by one HTTP call.
	MaxIDsPerRequest int `env:"ENTITY_METRICS_MAX_IDS_PER_REQUEST" envDefault:"1000"`
}

// Sanitize applies guardrails to cache population configuration values.
func (c *EntityMetricsConfig) Sanitize() {
	if c.LockTTL < time.Second {
		c.LockTTL = time.Second
	}
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	// Postgres handles large ANY() arrays, but keep a single query bounded.
	if c.BatchSize > 10000 {
		c.BatchSize = 10000
	}
	if c.FanoutConcurrency < 1 {
		c.FanoutConcurrency = 1
	}
	c.KeyPrefix = strings.Trim(strings.TrimSpace(c.KeyPrefix), ":")
	if c.KeyPrefix == "" {
		c.KeyPrefix = "entity-metrics"
	}
	if c.CacheTTL < 0 {
		c.CacheTTL = 0
	}
	if c.MaxIDsPerRequest < 1 {
		c.MaxIDsPerRequest = 1
	}
}

// PrewarmConfig controls the background pre-warmer.
type PrewarmConfig struct {
	// Interval is the pre-warm tick interval.
	Interval time.Duration `env:"PREWARM_INTERVAL" envDefault:"5m"`

	// Window is how far back activity makes an entity a pre-warm candidate.
	Window time.Duration `env:"PREWARM_WINDOW" envDefault:"24h"`

	// Limit caps candidates per entity type per tick.
	Limit int `env:"PREWARM_LIMIT" envDefault:"5000"`

	// EntityTypes lists the entity types warmed on every tick.
	EntityTypes []model.EntityType `env:"PREWARM_ENTITY_TYPES" envDefault:"image"`
}

// Sanitize applies guardrails to pre-warm configuration values.
func (p *PrewarmConfig) Sanitize() {
	if p.Interval < 30*time.Second {
		p.Interval = 30 * time.Second
	}
	if p.Window < time.Minute {
		p.Window = time.Minute
	}
	if p.Limit < 1 {
		p.Limit = 1
	}
	if len(p.EntityTypes) == 0 {
		p.EntityTypes = []model.EntityType{model.EntityTypeImage}
	}
}
