package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/target/entity-metrics/internal/bootstrap"
	"github.com/target/entity-metrics/internal/data"
	"github.com/target/entity-metrics/internal/service"
)

// serviceOpener returns a ready service and a func releasing its connections.
type serviceOpener func(cmdCtx *commandContext) (*service.EntityMetricsService, func() error, error)

// connectService dials Postgres and Redis and assembles the entity metrics service.
func connectService(cmdCtx *commandContext) (*service.EntityMetricsService, func() error, error) {
	stores := bootstrap.StoreConfig{
		DBConfig:    cmdCtx.Config.Postgres,
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	}

	db, err := bootstrap.ConnectDB(stores)
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}
	client, err := bootstrap.ConnectRedis(stores)
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("connect redis: %w", err), closeInfra(db, nil))
	}
	closer := func() error { return closeInfra(db, client) }

	metricsRepo, err := data.NewRedisEntityMetricsRepo(data.RedisEntityMetricsRepoOptions{
		Client:    client,
		KeyPrefix: cmdCtx.Config.EntityMetrics.KeyPrefix,
		TTL:       cmdCtx.Config.EntityMetrics.CacheTTL,
	})
	if err != nil {
		return nil, nil, errors.Join(err, closer())
	}

	svc, err := service.NewEntityMetricsService(service.EntityMetricsServiceOptions{
		Aggregation: data.NewEntityMetricRepo(db),
		Metrics:     metricsRepo,
		Cache:       data.NewRedisCacheRepo(client),
		Config:      cmdCtx.Config.EntityMetrics,
		Prewarm:     cmdCtx.Config.Prewarm,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return nil, nil, errors.Join(err, closer())
	}
	return svc, closer, nil
}

func closeInfra(db *sql.DB, redisClient redis.UniversalClient) error {
	var closeErr error
	if db != nil {
		if err := db.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close db: %w", err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close redis: %w", err))
		}
	}
	return closeErr
}
