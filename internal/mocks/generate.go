// Package mocks provides mock implementations of the entity metrics ports for tests.
//
// Repository mocks are generated with go.uber.org/mock (gomock). To regenerate after an
// interface change, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockAggregationRepository(ctrl)
//	repo.EXPECT().LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{1}).Return(rows, nil)
//
// The cache ports are served by the hand-written fakes in internal/mocks/cache instead, since
// population tests need real lock and TTL semantics rather than scripted calls.
package mocks

// Generate mock for AggregationRepository interface from internal/core package.
// This creates MockAggregationRepository with methods for all AggregationRepository interface methods:
// LoadMetrics, ListRecentlyActive
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=aggregation_repository_mock.go github.com/target/entity-metrics/internal/core AggregationRepository

// Generate mock for EntityMetricsCacheRepository interface from internal/core package.
// This creates MockEntityMetricsCacheRepository with methods for all EntityMetricsCacheRepository interface methods:
// MetricsExist, SetMetrics, GetBulkMetrics, DeleteMetrics
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=entity_metrics_cache_repository_mock.go github.com/target/entity-metrics/internal/core EntityMetricsCacheRepository
