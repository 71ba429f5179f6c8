package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/entity-metrics/config"
	"github.com/target/entity-metrics/internal/adapters/prewarmer"
	"github.com/target/entity-metrics/internal/observability/statsd"
)

// PrewarmerConfig contains configuration for the background pre-warmer.
type PrewarmerConfig struct {
	DB            *sql.DB
	RedisClient   redis.UniversalClient
	Logger        *slog.Logger
	EntityMetrics config.EntityMetricsConfig
	Prewarm       config.PrewarmConfig
	Metrics       statsd.Sink
}

// RunPrewarmer starts the pre-warm loop and blocks until ctx is cancelled.
func RunPrewarmer(ctx context.Context, cfg PrewarmerConfig) error {
	runner, err := prewarmer.NewRunner(prewarmer.RunnerOptions{
		DB:            cfg.DB,
		Redis:         cfg.RedisClient,
		EntityMetrics: cfg.EntityMetrics,
		Prewarm:       cfg.Prewarm,
		Logger:        cfg.Logger,
		Sink:          cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create prewarm runner: %w", err)
	}

	return runner.Run(ctx)
}
