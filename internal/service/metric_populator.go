package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/entity-metrics/internal/core"
	"github.com/target/entity-metrics/internal/domain/model"
	"github.com/target/entity-metrics/internal/observability/metrics"
	"github.com/target/entity-metrics/internal/observability/statsd"
)

// DefaultFanoutConcurrency caps concurrent cache round trips within a populate call.
const DefaultFanoutConcurrency = 64

// PopulateOptions tunes a single Populate call.
type PopulateOptions struct {
	// ForceRefresh skips the existence check and recomputes every id that can be locked.
	ForceRefresh bool
}

// PopulateResult summarizes a populate call. Failures are reported through Err rather than
// returned, so a populate never breaks its caller.
type PopulateResult struct {
	EntityType model.EntityType `json:"entityType"`
	Requested  int              `json:"requested"`
	Missing    int              `json:"missing"`
	Acquired   int              `json:"acquired"`
	Skipped    int              `json:"skipped"`
	Loaded     int              `json:"loaded"`
	Written    int              `json:"written"`
	Err        error            `json:"-"`
}

func (r PopulateResult) result() string {
	switch {
	case r.Err != nil:
		return metrics.ResultError
	case r.Acquired == 0:
		return metrics.ResultNoop
	default:
		return metrics.ResultSuccess
	}
}

func (r PopulateResult) stages() map[string]int {
	return map[string]int{
		metrics.StageRequested: r.Requested,
		metrics.StageMissing:   r.Missing,
		metrics.StageAcquired:  r.Acquired,
		metrics.StageSkipped:   r.Skipped,
		metrics.StageWritten:   r.Written,
	}
}

// MetricPopulatorOptions groups dependencies for MetricPopulator.
type MetricPopulatorOptions struct {
	Cache             core.EntityMetricsCacheRepository // Required: metric set store
	Locks             *MetricLockCoordinator            // Required: per-entity population locks
	Loader            *MetricBatchLoader                // Required: aggregation reader
	FanoutConcurrency int                               // Optional: defaults to DefaultFanoutConcurrency
	Logger            *slog.Logger                      // Optional: structured logger
	Metrics           statsd.Sink                       // Optional: metrics sink
}

// MetricPopulator fills the cache for entities whose metric sets are absent.
//
// Concurrent callers asking for the same entity collapse onto a single loader: whoever
// wins the per-entity lock recomputes, everyone else skips and reads whatever is cached.
type MetricPopulator struct {
	cache       core.EntityMetricsCacheRepository
	locks       *MetricLockCoordinator
	loader      *MetricBatchLoader
	concurrency int
	logger      *slog.Logger
	metrics     statsd.Sink
}

// NewMetricPopulator constructs a MetricPopulator.
func NewMetricPopulator(opts MetricPopulatorOptions) (*MetricPopulator, error) {
	if opts.Cache == nil {
		return nil, errors.New("EntityMetricsCacheRepository is required")
	}
	if opts.Locks == nil {
		return nil, errors.New("MetricLockCoordinator is required")
	}
	if opts.Loader == nil {
		return nil, errors.New("MetricBatchLoader is required")
	}

	concurrency := opts.FanoutConcurrency
	if concurrency <= 0 {
		concurrency = DefaultFanoutConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &MetricPopulator{
		cache:       opts.Cache,
		locks:       opts.Locks,
		loader:      opts.Loader,
		concurrency: concurrency,
		logger:      logger.With("component", "metric_populator"),
		metrics:     opts.Metrics,
	}, nil
}

// Populate ensures the cache holds a metric set for each of ids. Entities already cached are
// left alone unless opts.ForceRefresh is set; entities another process is populating are
// skipped. Once locks are held, loading, writing and release run to completion even when
// ctx is canceled.
func (p *MetricPopulator) Populate(
	ctx context.Context,
	entityType model.EntityType,
	ids []int64,
	opts PopulateOptions,
) (res PopulateResult) {
	start := time.Now()
	ids = model.UniqueIDs(ids)
	res = PopulateResult{EntityType: entityType, Requested: len(ids)}

	defer func() {
		if r := recover(); r != nil {
			res.Err = errors.Join(res.Err, fmt.Errorf("populate %s panicked: %v", entityType, r))
			p.logger.ErrorContext(ctx, "populate panicked", "entity_type", entityType, "panic", r)
		}
		metrics.EmitPopulate(p.metrics, metrics.PopulateMetric{
			EntityType: string(entityType),
			Result:     res.result(),
			Duration:   time.Since(start),
			Stages:     res.stages(),
			Err:        res.Err,
		})
	}()

	if len(ids) == 0 {
		return res
	}

	candidates := ids
	if !opts.ForceRefresh {
		candidates = p.findMissing(ctx, entityType, ids)
	}
	res.Missing = len(candidates)
	if len(candidates) == 0 {
		return res
	}

	acquired := p.acquireLocks(ctx, entityType, candidates)
	res.Acquired = len(acquired)
	res.Skipped = len(candidates) - len(acquired)
	if len(acquired) == 0 {
		p.logger.DebugContext(ctx, "all candidates locked elsewhere",
			"entity_type", entityType,
			"skipped", res.Skipped,
		)
		return res
	}
	fillCtx := context.WithoutCancel(ctx)
	defer p.locks.Release(fillCtx, model.RefsFor(entityType, acquired))

	loaded, written, err := p.fill(fillCtx, entityType, acquired)
	res.Loaded = loaded
	res.Written = written
	res.Err = err
	if err != nil {
		p.logger.WarnContext(ctx, "populate completed with errors",
			"entity_type", entityType,
			"acquired", res.Acquired,
			"written", res.Written,
			"error", err,
		)
	}
	return res
}

// findMissing returns the ids with no cached metric set. Existence-check failures count as
// missing so a flaky cache degrades to recomputation rather than stale gaps.
func (p *MetricPopulator) findMissing(ctx context.Context, entityType model.EntityType, ids []int64) []int64 {
	missing := make([]bool, len(ids))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			ok, err := p.cache.MetricsExist(ctx, model.EntityRef{Type: entityType, ID: id})
			if err != nil {
				p.logger.WarnContext(ctx, "metrics existence check failed",
					"entity_type", entityType,
					"entity_id", id,
					"error", err,
				)
			}
			missing[i] = err != nil || !ok
			return nil
		})
	}
	_ = g.Wait()

	return filterIDs(ids, missing)
}

// acquireLocks returns the ids whose population lock this call now holds.
func (p *MetricPopulator) acquireLocks(ctx context.Context, entityType model.EntityType, ids []int64) []int64 {
	held := make([]bool, len(ids))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			held[i] = p.locks.TryAcquire(ctx, model.EntityRef{Type: entityType, ID: id})
			return nil
		})
	}
	_ = g.Wait()

	return filterIDs(ids, held)
}

// fill loads and writes metric sets batch by batch. A failed batch is recorded and the
// remaining batches still run.
func (p *MetricPopulator) fill(
	ctx context.Context,
	entityType model.EntityType,
	ids []int64,
) (loaded, written int, err error) {
	var errs []error
	for i, batch := range p.loader.Batches(ids) {
		rows, loadErr := p.loader.LoadBatch(ctx, entityType, batch)
		if loadErr != nil {
			errs = append(errs, fmt.Errorf("load %s batch %d: %w", entityType, i, loadErr))
			continue
		}
		loaded += len(batch)

		n, writeErr := p.writeBatch(ctx, entityType, batch, model.GroupByEntity(rows))
		written += n
		if writeErr != nil {
			errs = append(errs, fmt.Errorf("write %s batch %d: %w", entityType, i, writeErr))
		}
	}
	return loaded, written, errors.Join(errs...)
}

// writeBatch stores one metric set per id, concurrently. Ids with no rows are stored as
// empty sets so the next existence check sees them as populated.
func (p *MetricPopulator) writeBatch(
	ctx context.Context,
	entityType model.EntityType,
	ids []int64,
	sets map[int64]model.MetricSet,
) (int, error) {
	errs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			ref := model.EntityRef{Type: entityType, ID: id}
			set := sets[id]
			if set == nil {
				set = model.MetricSet{}
			}
			if err := p.cache.SetMetrics(ctx, ref, set); err != nil {
				errs[i] = fmt.Errorf("%s: %w", ref, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	written := 0
	for _, err := range errs {
		if err == nil {
			written++
		}
	}
	return written, errors.Join(errs...)
}

func filterIDs(ids []int64, keep []bool) []int64 {
	out := make([]int64, 0, len(ids))
	for i, id := range ids {
		if keep[i] {
			out = append(out, id)
		}
	}
	return out
}
