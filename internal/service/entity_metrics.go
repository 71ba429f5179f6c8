package service

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/entity-metrics/config"
	"github.com/target/entity-metrics/internal/core"
	"github.com/target/entity-metrics/internal/domain/model"
	"github.com/target/entity-metrics/internal/observability/statsd"
)

// EntityMetricsServiceOptions groups the store handles and configuration needed to assemble
// the cache population components.
type EntityMetricsServiceOptions struct {
	Aggregation core.AggregationRepository        // Required: source of truth for totals
	Metrics     core.EntityMetricsCacheRepository // Required: metric set store
	Cache       core.CacheRepository              // Required: key/value store used for locks
	Config      config.EntityMetricsConfig
	Prewarm     config.PrewarmConfig
	Logger      *slog.Logger
	Sink        statsd.Sink
}

// EntityMetricsService bundles one accessor per entity type with the shared populator and
// pre-warmer built on the same stores.
type EntityMetricsService struct {
	Loader    *MetricBatchLoader
	Populator *MetricPopulator
	Prewarmer *MetricPrewarmer
	accessors map[model.EntityType]*MetricAccessor
}

// NewEntityMetricsService wires locks, loader, populator, accessors and pre-warmer.
func NewEntityMetricsService(opts EntityMetricsServiceOptions) (*EntityMetricsService, error) {
	if opts.Aggregation == nil || opts.Metrics == nil || opts.Cache == nil {
		return nil, errors.New("aggregation, metrics and cache repositories are required")
	}

	cfg := opts.Config
	cfg.Sanitize()

	locks, err := NewMetricLockCoordinator(MetricLockOptions{
		Cache:     opts.Cache,
		TTL:       cfg.LockTTL,
		KeyPrefix: cfg.KeyPrefix,
		Logger:    opts.Logger,
		Metrics:   opts.Sink,
	})
	if err != nil {
		return nil, fmt.Errorf("lock coordinator: %w", err)
	}

	loader, err := NewMetricBatchLoader(MetricBatchLoaderOptions{
		Repo:      opts.Aggregation,
		BatchSize: cfg.BatchSize,
		Logger:    opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("batch loader: %w", err)
	}

	populator, err := NewMetricPopulator(MetricPopulatorOptions{
		Cache:             opts.Metrics,
		Locks:             locks,
		Loader:            loader,
		FanoutConcurrency: cfg.FanoutConcurrency,
		Logger:            opts.Logger,
		Metrics:           opts.Sink,
	})
	if err != nil {
		return nil, fmt.Errorf("populator: %w", err)
	}

	accessors := make(map[model.EntityType]*MetricAccessor, len(model.AllEntityTypes()))
	for _, entityType := range model.AllEntityTypes() {
		accessor, accErr := NewMetricAccessor(MetricAccessorOptions{
			EntityType: entityType,
			Populator:  populator,
			Cache:      opts.Metrics,
			Logger:     opts.Logger,
			Metrics:    opts.Sink,
		})
		if accErr != nil {
			return nil, fmt.Errorf("%s accessor: %w", entityType, accErr)
		}
		accessors[entityType] = accessor
	}

	prewarmer, err := NewMetricPrewarmer(MetricPrewarmerOptions{
		Repo:      opts.Aggregation,
		Populator: populator,
		Config:    opts.Prewarm,
		Logger:    opts.Logger,
		Metrics:   opts.Sink,
	})
	if err != nil {
		return nil, fmt.Errorf("prewarmer: %w", err)
	}

	return &EntityMetricsService{
		Loader:    loader,
		Populator: populator,
		Prewarmer: prewarmer,
		accessors: accessors,
	}, nil
}

// Accessor returns the accessor bound to entityType.
func (s *EntityMetricsService) Accessor(entityType model.EntityType) (*MetricAccessor, error) {
	a, ok := s.accessors[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidEntityType, entityType)
	}
	return a, nil
}
