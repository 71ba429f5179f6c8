package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/entity-metrics/internal/domain/model"
	"github.com/target/entity-metrics/internal/observability/metrics"
)

func TestNewMetricPopulator_RequiresDependencies(t *testing.T) {
	f := newPopulatorFixture(t, 10)

	_, err := NewMetricPopulator(MetricPopulatorOptions{Locks: f.locks})
	require.Error(t, err)

	_, err = NewMetricPopulator(MetricPopulatorOptions{Cache: f.store})
	require.Error(t, err)

	_, err = NewMetricPopulator(MetricPopulatorOptions{Cache: f.store, Locks: f.locks})
	require.Error(t, err)
}

func TestMetricPopulator_EmptyInput(t *testing.T) {
	f := newPopulatorFixture(t, 10)

	res := f.populator.Populate(context.Background(), model.EntityTypeImage, nil, PopulateOptions{})

	assert.Equal(t, PopulateResult{EntityType: model.EntityTypeImage}, res)
	assert.Empty(t, f.store.Keys())
}

func TestMetricPopulator_PopulatesMissingEntities(t *testing.T) {
	f := newPopulatorFixture(t, 10)
	ctx := context.Background()

	f.repo.EXPECT().
		LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{1, 2}).
		Return([]model.MetricData{
			row(1, model.MetricKindReactionLike, 5),
			row(1, model.MetricKindComment, 2),
			row(2, model.MetricKindBuzz, 100),
		}, nil)

	res := f.populator.Populate(ctx, model.EntityTypeImage, []int64{1, 2, 1}, PopulateOptions{})

	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Requested, "duplicates collapse")
	assert.Equal(t, 2, res.Missing)
	assert.Equal(t, 2, res.Acquired)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 2, res.Loaded)
	assert.Equal(t, 2, res.Written)

	sets, err := f.store.GetBulkMetrics(ctx, model.EntityTypeImage, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, model.MetricSet{model.MetricKindReactionLike: 5, model.MetricKindComment: 2}, sets[1])
	assert.Equal(t, model.MetricSet{model.MetricKindBuzz: 100}, sets[2])
	assert.Empty(t, f.lockKeys(), "locks are released after populate")

	emitted := f.sink.find(metrics.MetricPopulate)
	require.Len(t, emitted, 1)
	assert.Equal(t, metrics.ResultSuccess, emitted[0].tags["result"])
	assert.Equal(t, "image", emitted[0].tags["entity_type"])
}

func TestMetricPopulator_IdempotentFastPath(t *testing.T) {
	f := newPopulatorFixture(t, 10)
	ctx := context.Background()

	f.repo.EXPECT().
		LoadMetrics(gomock.Any(), model.EntityTypePost, []int64{4}).
		Return([]model.MetricData{row(4, model.MetricKindCollection, 1)}, nil).
		Times(1)

	first := f.populator.Populate(ctx, model.EntityTypePost, []int64{4}, PopulateOptions{})
	second := f.populator.Populate(ctx, model.EntityTypePost, []int64{4}, PopulateOptions{})

	assert.Equal(t, 1, first.Written)
	assert.Equal(t, 0, second.Missing)
	assert.Equal(t, 0, second.Acquired)
	require.NoError(t, second.Err)
	assert.Equal(t, 1, f.store.SetMetricsCalls(model.EntityRef{Type: model.EntityTypePost, ID: 4}))

	emitted := f.sink.find(metrics.MetricPopulate)
	require.Len(t, emitted, 2)
	assert.Equal(t, metrics.ResultNoop, emitted[1].tags["result"])
}

func TestMetricPopulator_SinglePopulatorPerEntity(t *testing.T) {
	f := newPopulatorFixture(t, 10)
	ctx := context.Background()
	ids := []int64{1, 2}

	var concurrent PopulateResult
	f.repo.EXPECT().
		LoadMetrics(gomock.Any(), model.EntityTypeImage, ids).
		DoAndReturn(func(ctx context.Context, et model.EntityType, ids []int64) ([]model.MetricData, error) {
			// A second caller arrives while the first still holds the locks.
			concurrent = f.populator.Populate(ctx, et, ids, PopulateOptions{})
			return []model.MetricData{row(1, model.MetricKindComment, 3)}, nil
		}).
		Times(1)

	res := f.populator.Populate(ctx, model.EntityTypeImage, ids, PopulateOptions{})

	assert.Equal(t, 2, res.Acquired)
	assert.Equal(t, 2, res.Written)

	assert.Equal(t, 2, concurrent.Missing)
	assert.Equal(t, 0, concurrent.Acquired)
	assert.Equal(t, 2, concurrent.Skipped)
	require.NoError(t, concurrent.Err)

	for _, id := range ids {
		assert.Equal(t, 1, f.store.SetMetricsCalls(model.EntityRef{Type: model.EntityTypeImage, ID: id}))
	}

	var contended int
	for _, m := range f.sink.find(metrics.MetricLock) {
		if m.tags["result"] == metrics.ResultContended {
			contended++
		}
	}
	assert.Equal(t, 2, contended)
}

func TestMetricPopulator_LoadsNeverOverlapForAnEntity(t *testing.T) {
	f := newPopulatorFixture(t, 10)
	ctx := context.Background()

	var inFlight, peak, loads atomic.Int32
	f.repo.EXPECT().
		LoadMetrics(gomock.Any(), model.EntityTypeModel, []int64{7}).
		DoAndReturn(func(context.Context, model.EntityType, []int64) ([]model.MetricData, error) {
			loads.Add(1)
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			return []model.MetricData{row(7, model.MetricKindBuzz, 10)}, nil
		}).
		AnyTimes()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.populator.Populate(ctx, model.EntityTypeModel, []int64{7}, PopulateOptions{ForceRefresh: true})
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, loads.Load(), int32(1))
	assert.Equal(t, int32(1), peak.Load(), "at most one loader per entity at a time")
	assert.Empty(t, f.lockKeys())
}

func TestMetricPopulator_SparseStorage(t *testing.T) {
	f := newPopulatorFixture(t, 10)
	ctx := context.Background()

	f.repo.EXPECT().
		LoadMetrics(gomock.Any(), model.EntityTypeArticle, []int64{1, 2}).
		Return([]model.MetricData{
			row(1, model.MetricKindReactionHeart, 4),
			row(1, model.MetricKindReactionCry, 0),
		}, nil).
		Times(1)

	res := f.populator.Populate(ctx, model.EntityTypeArticle, []int64{1, 2}, PopulateOptions{})
	require.NoError(t, res.Err)

	sets, err := f.store.GetBulkMetrics(ctx, model.EntityTypeArticle, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, model.MetricSet{model.MetricKindReactionHeart: 4}, sets[1])
	_, zeroStored := sets[1][model.MetricKindReactionCry]
	assert.False(t, zeroStored)

	empty, ok := sets[2]
	require.True(t, ok, "entities with no activity are still marked populated")
	assert.Empty(t, empty)

	// Populated-but-empty entities take the fast path.
	again := f.populator.Populate(ctx, model.EntityTypeArticle, []int64{2}, PopulateOptions{})
	assert.Equal(t, 0, again.Missing)
}

func TestMetricPopulator_LoadFailureIsReportedNotReturned(t *testing.T) {
	f := newPopulatorFixture(t, 10)
	boom := errors.New("aggregation store down")

	f.repo.EXPECT().
		LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{1}).
		Return(nil, boom)

	res := f.populator.Populate(context.Background(), model.EntityTypeImage, []int64{1}, PopulateOptions{})

	require.ErrorIs(t, res.Err, boom)
	assert.Equal(t, 1, res.Acquired)
	assert.Equal(t, 0, res.Written)
	assert.Empty(t, f.lockKeys())

	emitted := f.sink.find(metrics.MetricPopulate)
	require.Len(t, emitted, 1)
	assert.Equal(t, metrics.ResultError, emitted[0].tags["result"])
}

func TestMetricPopulator_FailedBatchDoesNotStopLaterBatches(t *testing.T) {
	f := newPopulatorFixture(t, 2)
	boom := errors.New("statement timeout")

	gomock.InOrder(
		f.repo.EXPECT().
			LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{1, 2}).
			Return(nil, boom),
		f.repo.EXPECT().
			LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{3, 4}).
			Return([]model.MetricData{row(3, model.MetricKindComment, 1)}, nil),
	)

	res := f.populator.Populate(context.Background(), model.EntityTypeImage, []int64{1, 2, 3, 4}, PopulateOptions{})

	require.ErrorIs(t, res.Err, boom)
	assert.Contains(t, res.Err.Error(), "batch 0")
	assert.Equal(t, 4, res.Acquired)
	assert.Equal(t, 2, res.Loaded)
	assert.Equal(t, 2, res.Written)

	exists, err := f.store.MetricsExist(context.Background(), model.EntityRef{Type: model.EntityTypeImage, ID: 1})
	require.NoError(t, err)
	assert.False(t, exists, "failed batches leave entities unpopulated")
	assert.Empty(t, f.lockKeys())
}

func TestMetricPopulator_WriteFailureIsolatedPerEntity(t *testing.T) {
	f := newPopulatorFixture(t, 10)
	boom := errors.New("READONLY replica")
	f.store.SetMetricsErr = func(ref model.EntityRef) error {
		if ref.ID == 2 {
			return boom
		}
		return nil
	}

	f.repo.EXPECT().
		LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{1, 2, 3}).
		Return(nil, nil)

	res := f.populator.Populate(context.Background(), model.EntityTypeImage, []int64{1, 2, 3}, PopulateOptions{})

	require.ErrorIs(t, res.Err, boom)
	assert.Contains(t, res.Err.Error(), "image:2")
	assert.Equal(t, 2, res.Written)
}

func TestMetricPopulator_ExistenceErrorCountsAsMissing(t *testing.T) {
	f := newPopulatorFixture(t, 10)
	ctx := context.Background()
	ref := model.EntityRef{Type: model.EntityTypeImage, ID: 1}
	f.store.Seed(ref, model.MetricSet{model.MetricKindBuzz: 1})
	f.store.MetricsExistErr = func(model.EntityRef) error { return errors.New("i/o timeout") }

	f.repo.EXPECT().
		LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{1}).
		Return([]model.MetricData{row(1, model.MetricKindBuzz, 2)}, nil)

	res := f.populator.Populate(ctx, model.EntityTypeImage, []int64{1}, PopulateOptions{})

	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Missing)
	assert.Equal(t, 1, res.Written)
}

func TestMetricPopulator_LockErrorSkipsEntity(t *testing.T) {
	f := newPopulatorFixture(t, 10)
	f.store.SetIfNotExistsErr = func(string) error { return errors.New("connection refused") }

	res := f.populator.Populate(context.Background(), model.EntityTypeImage, []int64{1}, PopulateOptions{})

	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Missing)
	assert.Equal(t, 0, res.Acquired)
	assert.Equal(t, 1, res.Skipped)

	lockMetrics := f.sink.find(metrics.MetricLock)
	require.Len(t, lockMetrics, 1)
	assert.Equal(t, metrics.ResultError, lockMetrics[0].tags["result"])
}

func TestMetricPopulator_LockSelfHealsAfterTTL(t *testing.T) {
	f := newPopulatorFixture(t, 10)
	ctx := context.Background()
	ref := model.EntityRef{Type: model.EntityTypeImage, ID: 5}

	// A populator that crashed without releasing its lock.
	ok, err := f.store.SetIfNotExists(ctx, f.locks.LockKey(ref), []byte("1"), DefaultLockTTL)
	require.NoError(t, err)
	require.True(t, ok)

	blocked := f.populator.Populate(ctx, model.EntityTypeImage, []int64{5}, PopulateOptions{})
	assert.Equal(t, 1, blocked.Skipped)
	assert.Equal(t, 0, blocked.Written)

	f.store.Advance(DefaultLockTTL)

	f.repo.EXPECT().
		LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{5}).
		Return([]model.MetricData{row(5, model.MetricKindReactionLaugh, 8)}, nil)

	healed := f.populator.Populate(ctx, model.EntityTypeImage, []int64{5}, PopulateOptions{})
	require.NoError(t, healed.Err)
	assert.Equal(t, 1, healed.Acquired)
	assert.Equal(t, 1, healed.Written)
}

func TestMetricPopulator_ReleasesLocksAfterCallerCancels(t *testing.T) {
	f := newPopulatorFixture(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.repo.EXPECT().
		LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{1}).
		DoAndReturn(func(context.Context, model.EntityType, []int64) ([]model.MetricData, error) {
			cancel()
			return nil, context.Canceled
		})

	res := f.populator.Populate(ctx, model.EntityTypeImage, []int64{1}, PopulateOptions{})

	require.ErrorIs(t, res.Err, context.Canceled)
	assert.Empty(t, f.lockKeys())
}

func TestMetricPopulator_FinishesLoadAfterCallerCancels(t *testing.T) {
	f := newPopulatorFixture(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gomock.InOrder(
		f.repo.EXPECT().
			LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{1}).
			DoAndReturn(func(context.Context, model.EntityType, []int64) ([]model.MetricData, error) {
				cancel()
				return []model.MetricData{row(1, model.MetricKindReactionLike, 3)}, nil
			}),
		f.repo.EXPECT().
			LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{2}).
			DoAndReturn(func(loadCtx context.Context, _ model.EntityType, _ []int64) ([]model.MetricData, error) {
				assert.NoError(t, loadCtx.Err(), "later batches keep running")
				return []model.MetricData{row(2, model.MetricKindComment, 4)}, nil
			}),
	)

	res := f.populator.Populate(ctx, model.EntityTypeImage, []int64{1, 2}, PopulateOptions{})

	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Loaded)
	assert.Equal(t, 2, res.Written)
	assert.Empty(t, f.lockKeys())

	sets, err := f.store.GetBulkMetrics(context.Background(), model.EntityTypeImage, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, model.MetricSet{model.MetricKindReactionLike: 3}, sets[1])
	assert.Equal(t, model.MetricSet{model.MetricKindComment: 4}, sets[2])
}

func TestMetricPopulator_RecoversFromPanics(t *testing.T) {
	f := newPopulatorFixture(t, 10)

	f.repo.EXPECT().
		LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{1}).
		DoAndReturn(func(context.Context, model.EntityType, []int64) ([]model.MetricData, error) {
			panic("driver bug")
		})

	var res PopulateResult
	require.NotPanics(t, func() {
		res = f.populator.Populate(context.Background(), model.EntityTypeImage, []int64{1}, PopulateOptions{})
	})

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "panicked")
	assert.Empty(t, f.lockKeys(), "locks are released on panic")
}
