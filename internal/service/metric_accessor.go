package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/entity-metrics/internal/core"
	"github.com/target/entity-metrics/internal/domain/model"
	apperrors "github.com/target/entity-metrics/internal/errors"
	"github.com/target/entity-metrics/internal/observability/metrics"
	"github.com/target/entity-metrics/internal/observability/statsd"
)

// ErrFlushUnsupported is returned by MetricAccessor.Flush. Dropping every cached set at once
// would push the whole working set back onto the aggregation store.
var ErrFlushUnsupported = apperrors.Unsupported("flushing all entity metrics is not supported")

// Accessor operation names used in metric tags.
const (
	opFetch   = "fetch"
	opBust    = "bust"
	opRefresh = "refresh"
)

// MetricAccessorOptions groups dependencies for MetricAccessor.
type MetricAccessorOptions struct {
	EntityType model.EntityType                  // Required: entity type served by this accessor
	Populator  *MetricPopulator                  // Required: cache filler
	Cache      core.EntityMetricsCacheRepository // Required: metric set store
	Logger     *slog.Logger                      // Optional: structured logger
	Metrics    statsd.Sink                       // Optional: metrics sink
}

// MetricAccessor is the read path for one entity type's metrics.
type MetricAccessor struct {
	entityType model.EntityType
	populator  *MetricPopulator
	cache      core.EntityMetricsCacheRepository
	logger     *slog.Logger
	metrics    statsd.Sink
}

// NewMetricAccessor constructs a MetricAccessor.
func NewMetricAccessor(opts MetricAccessorOptions) (*MetricAccessor, error) {
	if !opts.EntityType.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidEntityType, opts.EntityType)
	}
	if opts.Populator == nil {
		return nil, errors.New("MetricPopulator is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("EntityMetricsCacheRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MetricAccessor{
		entityType: opts.EntityType,
		populator:  opts.Populator,
		cache:      opts.Cache,
		logger:     logger.With("component", "metric_accessor", "entity_type", opts.EntityType),
		metrics:    opts.Metrics,
	}, nil
}

// EntityType returns the entity type this accessor serves.
func (a *MetricAccessor) EntityType() model.EntityType { return a.entityType }

// Fetch returns one normalized record per distinct id, populating missing entries first.
// Population problems are logged and never surface here; cache read failures do.
func (a *MetricAccessor) Fetch(ctx context.Context, ids []int64) (map[int64]model.NormalizedMetricRecord, error) {
	ids = model.UniqueIDs(ids)
	out := make(map[int64]model.NormalizedMetricRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	a.populator.Populate(ctx, a.entityType, ids, PopulateOptions{})

	sets, err := a.cache.GetBulkMetrics(ctx, a.entityType, ids)
	if err != nil {
		a.emit(opFetch, len(ids), err)
		return nil, fmt.Errorf("read %s metrics: %w", a.entityType, err)
	}
	for _, id := range ids {
		out[id] = model.Normalize(sets[id])
	}
	a.emit(opFetch, len(ids), nil)
	return out, nil
}

// Bust deletes the cached metric sets for ids so the next Fetch recomputes them.
func (a *MetricAccessor) Bust(ctx context.Context, ids []int64) error {
	ids = model.UniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	deleted, err := a.cache.DeleteMetrics(ctx, a.entityType, ids)
	a.emit(opBust, len(ids), err)
	if err != nil {
		return fmt.Errorf("bust %s metrics: %w", a.entityType, err)
	}
	a.logger.DebugContext(ctx, "busted metrics", "ids", len(ids), "deleted", deleted)
	return nil
}

// Refresh recomputes ids regardless of what is cached.
func (a *MetricAccessor) Refresh(ctx context.Context, ids []int64) PopulateResult {
	res := a.populator.Populate(ctx, a.entityType, ids, PopulateOptions{ForceRefresh: true})
	a.emit(opRefresh, res.Requested, res.Err)
	return res
}

// Flush always fails with ErrFlushUnsupported.
func (a *MetricAccessor) Flush(context.Context) error {
	return ErrFlushUnsupported
}

func (a *MetricAccessor) emit(op string, count int, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.EmitFetch(a.metrics, metrics.OperationMetric{
		EntityType: string(a.entityType),
		Operation:  op,
		Result:     result,
		Count:      count,
		Err:        err,
	})
}
