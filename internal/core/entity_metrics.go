package core

import (
	"context"
	"time"

	"github.com/target/entity-metrics/internal/domain/model"
)

// EntityMetricsCacheRepository stores one MetricSet per entity.
type EntityMetricsCacheRepository interface {
	// MetricsExist reports whether a MetricSet has been stored for ref.
	MetricsExist(ctx context.Context, ref model.EntityRef) (bool, error)

	// SetMetrics replaces the stored MetricSet for ref wholesale.
	// An empty set is stored as a populated entity with no metrics.
	SetMetrics(ctx context.Context, ref model.EntityRef, set model.MetricSet) error

	// GetBulkMetrics returns the stored sets for ids. Ids that were never populated are absent.
	GetBulkMetrics(ctx context.Context, entityType model.EntityType, ids []int64) (map[int64]model.MetricSet, error)

	// DeleteMetrics removes the stored sets for ids and returns how many existed.
	DeleteMetrics(ctx context.Context, entityType model.EntityType, ids []int64) (int64, error)
}

// ListRecentlyActiveParams groups parameters for AggregationRepository.ListRecentlyActive.
type ListRecentlyActiveParams struct {
	EntityType model.EntityType
	Since      time.Time
	Limit      int
}

// AggregationRepository reads all-time metric totals from the source of truth.
type AggregationRepository interface {
	// LoadMetrics returns one row per (entity, kind) with a positive total for the given ids.
	LoadMetrics(ctx context.Context, entityType model.EntityType, ids []int64) ([]model.MetricData, error)

	// ListRecentlyActive returns distinct ids with metric events recorded at or after Since,
	// most recent first.
	ListRecentlyActive(ctx context.Context, params ListRecentlyActiveParams) ([]int64, error)
}
