// Package prewarmer provides adapters for running the entity metrics pre-warmer.
package prewarmer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/entity-metrics/config"
	"github.com/target/entity-metrics/internal/core"
	"github.com/target/entity-metrics/internal/data"
	"github.com/target/entity-metrics/internal/observability/statsd"
	"github.com/target/entity-metrics/internal/service"
)

// Runner builds the pre-warmer from store handles and runs its loop.
type Runner struct {
	prewarmer *service.MetricPrewarmer
	logger    *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB            *sql.DB
	Redis         redis.UniversalClient
	EntityMetrics config.EntityMetricsConfig
	Prewarm       config.PrewarmConfig
	Logger        *slog.Logger

	// Optional dependency injection for testing/decoupling
	Aggregation core.AggregationRepository
	Metrics     core.EntityMetricsCacheRepository
	Cache       core.CacheRepository
	Sink        statsd.Sink
}

// NewRunner creates a new pre-warm runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	svc, err := wireEntityMetrics(opts)
	if err != nil {
		return nil, fmt.Errorf("wire entity metrics: %w", err)
	}

	return &Runner{
		prewarmer: svc.Prewarmer,
		logger:    opts.Logger,
	}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.Aggregation == nil && opts.DB == nil {
		return errors.New("database connection is required")
	}
	if (opts.Metrics == nil || opts.Cache == nil) && opts.Redis == nil {
		return errors.New("redis client is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

func wireEntityMetrics(opts RunnerOptions) (*service.EntityMetricsService, error) {
	aggregation := opts.Aggregation
	if aggregation == nil {
		aggregation = data.NewEntityMetricRepo(opts.DB)
	}

	metrics := opts.Metrics
	if metrics == nil {
		repo, err := data.NewRedisEntityMetricsRepo(data.RedisEntityMetricsRepoOptions{
			Client:    opts.Redis,
			KeyPrefix: opts.EntityMetrics.KeyPrefix,
			TTL:       opts.EntityMetrics.CacheTTL,
		})
		if err != nil {
			return nil, err
		}
		metrics = repo
	}

	cache := opts.Cache
	if cache == nil {
		cache = data.NewRedisCacheRepo(opts.Redis)
	}

	return service.NewEntityMetricsService(service.EntityMetricsServiceOptions{
		Aggregation: aggregation,
		Metrics:     metrics,
		Cache:       cache,
		Config:      opts.EntityMetrics,
		Prewarm:     opts.Prewarm,
		Logger:      opts.Logger,
		Sink:        opts.Sink,
	})
}

// Run starts the pre-warm loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting prewarm runner")
	return r.prewarmer.Run(ctx)
}
