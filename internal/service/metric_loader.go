package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/entity-metrics/internal/core"
	"github.com/target/entity-metrics/internal/domain/model"
	"github.com/target/entity-metrics/internal/util"
)

// DefaultBatchSize is the maximum number of ids sent to the aggregation store per query.
const DefaultBatchSize = 1000

// MetricBatchLoaderOptions groups dependencies for MetricBatchLoader.
type MetricBatchLoaderOptions struct {
	Repo      core.AggregationRepository // Required: aggregation store
	BatchSize int                        // Optional: ids per query, defaults to DefaultBatchSize
	Logger    *slog.Logger               // Optional: structured logger
}

// MetricBatchLoader reads metric totals from the aggregation store in bounded batches.
type MetricBatchLoader struct {
	repo      core.AggregationRepository
	batchSize int
	logger    *slog.Logger
}

// NewMetricBatchLoader constructs a MetricBatchLoader.
func NewMetricBatchLoader(opts MetricBatchLoaderOptions) (*MetricBatchLoader, error) {
	if opts.Repo == nil {
		return nil, errors.New("AggregationRepository is required")
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MetricBatchLoader{
		repo:      opts.Repo,
		batchSize: batchSize,
		logger:    logger.With("component", "metric_loader"),
	}, nil
}

// Batches splits ids into the slices Load would query one at a time.
func (b *MetricBatchLoader) Batches(ids []int64) [][]int64 {
	return util.Chunk(ids, b.batchSize)
}

// LoadBatch runs a single aggregation query. Callers keep len(ids) within the batch size.
func (b *MetricBatchLoader) LoadBatch(
	ctx context.Context,
	entityType model.EntityType,
	ids []int64,
) ([]model.MetricData, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := b.repo.LoadMetrics(ctx, entityType, ids)
	if err != nil {
		return nil, err
	}
	b.logger.DebugContext(ctx, "loaded metric batch",
		"entity_type", entityType,
		"ids", len(ids),
		"rows", len(rows),
	)
	return rows, nil
}

// Load queries every batch of ids in sequence and concatenates the rows.
// The first failing batch aborts the load.
func (b *MetricBatchLoader) Load(
	ctx context.Context,
	entityType model.EntityType,
	ids []int64,
) ([]model.MetricData, error) {
	var out []model.MetricData
	for i, batch := range b.Batches(ids) {
		rows, err := b.LoadBatch(ctx, entityType, batch)
		if err != nil {
			return nil, fmt.Errorf("load %s batch %d: %w", entityType, i, err)
		}
		out = append(out, rows...)
	}
	return out, nil
}
