package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/entity-metrics/config"
	"github.com/target/entity-metrics/internal/domain/model"
	"github.com/target/entity-metrics/internal/mocks"
	"github.com/target/entity-metrics/internal/mocks/cache"
)

func TestNewEntityMetricsService(t *testing.T) {
	_, err := NewEntityMetricsService(EntityMetricsServiceOptions{})
	require.Error(t, err)

	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAggregationRepository(ctrl)
	store := cache.NewMemoryStore("entity-metrics")

	svc, err := NewEntityMetricsService(EntityMetricsServiceOptions{
		Aggregation: repo,
		Metrics:     store,
		Cache:       store,
		Config:      config.EntityMetricsConfig{BatchSize: 2},
		Logger:      discardLogger(),
	})
	require.NoError(t, err)
	require.NotNil(t, svc.Populator)
	require.NotNil(t, svc.Prewarmer)

	for _, et := range model.AllEntityTypes() {
		a, accErr := svc.Accessor(et)
		require.NoError(t, accErr)
		assert.Equal(t, et, a.EntityType())
	}
	_, err = svc.Accessor("user")
	require.ErrorIs(t, err, model.ErrInvalidEntityType)

	// Accessors share the configured batch size.
	gomock.InOrder(
		repo.EXPECT().LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{1, 2}).Return(nil, nil),
		repo.EXPECT().LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{3}).Return(nil, nil),
	)
	a, err := svc.Accessor(model.EntityTypeImage)
	require.NoError(t, err)
	got, err := a.Fetch(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
