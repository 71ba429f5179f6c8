package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/entity-metrics/config"
	"github.com/target/entity-metrics/internal/core"
	"github.com/target/entity-metrics/internal/domain/model"
	"github.com/target/entity-metrics/internal/observability/metrics"
)

func newTestPrewarmer(t *testing.T, f *populatorFixture, cfg config.PrewarmConfig) *MetricPrewarmer {
	t.Helper()
	w, err := NewMetricPrewarmer(MetricPrewarmerOptions{
		Repo:      f.repo,
		Populator: f.populator,
		Config:    cfg,
		Logger:    discardLogger(),
		Metrics:   f.sink,
	})
	require.NoError(t, err)
	return w
}

func TestNewMetricPrewarmer_Validation(t *testing.T) {
	f := newPopulatorFixture(t, 10)

	_, err := NewMetricPrewarmer(MetricPrewarmerOptions{Populator: f.populator})
	require.Error(t, err)

	_, err = NewMetricPrewarmer(MetricPrewarmerOptions{Repo: f.repo})
	require.Error(t, err)

	w := newTestPrewarmer(t, f, config.PrewarmConfig{})
	assert.Equal(t, []model.EntityType{model.EntityTypeImage}, w.config.EntityTypes, "config is sanitized")
}

func TestMetricPrewarmer_PreWarm(t *testing.T) {
	f := newPopulatorFixture(t, 10)
	w := newTestPrewarmer(t, f, config.PrewarmConfig{Interval: time.Minute, Window: 2 * time.Hour, Limit: 50})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	f.repo.EXPECT().
		ListRecentlyActive(gomock.Any(), core.ListRecentlyActiveParams{
			EntityType: model.EntityTypePost,
			Since:      now.Add(-2 * time.Hour),
			Limit:      10,
		}).
		Return([]int64{9, 4}, nil)
	f.repo.EXPECT().
		LoadMetrics(gomock.Any(), model.EntityTypePost, []int64{9, 4}).
		Return([]model.MetricData{row(9, model.MetricKindReactionLike, 2)}, nil)

	res := w.PreWarm(context.Background(), model.EntityTypePost, 10)

	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 2, res.Populate.Written)

	emitted := f.sink.find(metrics.MetricPrewarm)
	require.Len(t, emitted, 1)
	assert.Equal(t, int64(2), emitted[0].value)
	assert.Equal(t, metrics.ResultSuccess, emitted[0].tags["result"])
}

func TestMetricPrewarmer_PreWarmDefaultsLimit(t *testing.T) {
	f := newPopulatorFixture(t, 10)
	w := newTestPrewarmer(t, f, config.PrewarmConfig{Interval: time.Minute, Window: time.Hour, Limit: 77})

	f.repo.EXPECT().
		ListRecentlyActive(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.ListRecentlyActiveParams) ([]int64, error) {
			assert.Equal(t, 77, params.Limit)
			return nil, nil
		})

	res := w.PreWarm(context.Background(), model.EntityTypeImage, 0)
	require.NoError(t, res.Err)
	assert.Equal(t, 0, res.Candidates)

	emitted := f.sink.find(metrics.MetricPrewarm)
	require.Len(t, emitted, 1)
	assert.Equal(t, metrics.ResultNoop, emitted[0].tags["result"])
}

func TestMetricPrewarmer_PreWarmSwallowsLookupErrors(t *testing.T) {
	f := newPopulatorFixture(t, 10)
	w := newTestPrewarmer(t, f, config.PrewarmConfig{Interval: time.Minute, Window: time.Hour, Limit: 5})
	boom := errors.New("relation does not exist")

	f.repo.EXPECT().ListRecentlyActive(gomock.Any(), gomock.Any()).Return(nil, boom)

	res := w.PreWarm(context.Background(), model.EntityTypeImage, 5)

	require.ErrorIs(t, res.Err, boom)
	assert.Equal(t, 0, res.Candidates)
}

func TestMetricPrewarmer_RunWarmsConfiguredTypesUntilCanceled(t *testing.T) {
	f := newPopulatorFixture(t, 10)
	w := newTestPrewarmer(t, f, config.PrewarmConfig{
		Interval:    time.Minute,
		Window:      time.Hour,
		Limit:       5,
		EntityTypes: []model.EntityType{model.EntityTypeImage, model.EntityTypeArticle},
	})
	w.config.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gomock.InOrder(
		f.repo.EXPECT().
			ListRecentlyActive(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params core.ListRecentlyActiveParams) ([]int64, error) {
				assert.Equal(t, model.EntityTypeImage, params.EntityType)
				return nil, nil
			}),
		f.repo.EXPECT().
			ListRecentlyActive(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params core.ListRecentlyActiveParams) ([]int64, error) {
				assert.Equal(t, model.EntityTypeArticle, params.EntityType)
				cancel()
				return nil, context.Canceled
			}),
	)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("prewarmer did not stop after cancellation")
	}
}
