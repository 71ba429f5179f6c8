package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/entity-metrics/internal/domain/model"
	"github.com/target/entity-metrics/internal/testutil"
)

func TestMetricsKey(t *testing.T) {
	ref := model.EntityRef{Type: model.EntityTypePost, ID: 9}
	assert.Equal(t, "entity-metrics:post:9", MetricsKey(DefaultKeyPrefix, ref))
}

func TestDecodeMetricSet(t *testing.T) {
	set := decodeMetricSet(map[string]string{
		PopulatedField:  "1700000000000",
		"reactionLike":  "4",
		"comment":       "0",
		"buzz":          "not-a-number",
		"unknownMetric": "5",
	})

	assert.Equal(t, model.MetricSet{model.MetricKindReactionLike: 4}, set)
}

func TestNewRedisEntityMetricsRepo_RequiresClient(t *testing.T) {
	_, err := NewRedisEntityMetricsRepo(RedisEntityMetricsRepoOptions{})
	require.ErrorIs(t, err, ErrRedisClientRequired)
}

func TestRedisEntityMetricsRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo, err := NewRedisEntityMetricsRepo(RedisEntityMetricsRepoOptions{
		Client:       client,
		KeyPrefix:    "test-metrics",
		TimeProvider: NewFixedTimeProvider(now),
	})
	require.NoError(t, err)
	ctx := context.Background()

	ref := model.EntityRef{Type: model.EntityTypeImage, ID: 1}

	t.Run("unpopulated entity is absent", func(t *testing.T) {
		exists, existsErr := repo.MetricsExist(ctx, ref)
		require.NoError(t, existsErr)
		assert.False(t, exists)

		got, getErr := repo.GetBulkMetrics(ctx, model.EntityTypeImage, []int64{1})
		require.NoError(t, getErr)
		assert.Empty(t, got)
	})

	t.Run("write replaces wholesale", func(t *testing.T) {
		require.NoError(t, repo.SetMetrics(ctx, ref, model.MetricSet{
			model.MetricKindReactionLike: 3,
			model.MetricKindComment:      1,
		}))
		require.NoError(t, repo.SetMetrics(ctx, ref, model.MetricSet{model.MetricKindBuzz: 50}))

		got, getErr := repo.GetBulkMetrics(ctx, model.EntityTypeImage, []int64{1})
		require.NoError(t, getErr)
		assert.Equal(t, model.MetricSet{model.MetricKindBuzz: 50}, got[1])

		marker := client.HGet(ctx, "test-metrics:image:1", PopulatedField).Val()
		assert.Equal(t, "1704110400000", marker)
	})

	t.Run("empty set marks entity populated", func(t *testing.T) {
		empty := model.EntityRef{Type: model.EntityTypeImage, ID: 2}
		require.NoError(t, repo.SetMetrics(ctx, empty, nil))

		exists, existsErr := repo.MetricsExist(ctx, empty)
		require.NoError(t, existsErr)
		assert.True(t, exists)

		got, getErr := repo.GetBulkMetrics(ctx, model.EntityTypeImage, []int64{1, 2, 3})
		require.NoError(t, getErr)
		require.Contains(t, got, int64(2))
		assert.Empty(t, got[2])
		assert.NotContains(t, got, int64(3))
	})

	t.Run("sparse storage never writes zero", func(t *testing.T) {
		sparse := model.EntityRef{Type: model.EntityTypeImage, ID: 4}
		require.NoError(t, repo.SetMetrics(ctx, sparse, model.MetricSet{
			model.MetricKindComment:    0,
			model.MetricKindCollection: 2,
		}))

		fields := client.HKeys(ctx, "test-metrics:image:4").Val()
		assert.ElementsMatch(t, []string{PopulatedField, "collection"}, fields)
	})

	t.Run("delete removes sets", func(t *testing.T) {
		deleted, delErr := repo.DeleteMetrics(ctx, model.EntityTypeImage, []int64{1, 2, 99})
		require.NoError(t, delErr)
		assert.Equal(t, int64(2), deleted)

		exists, existsErr := repo.MetricsExist(ctx, ref)
		require.NoError(t, existsErr)
		assert.False(t, exists)
	})

	t.Run("ttl applied when configured", func(t *testing.T) {
		ttlRepo, ttlErr := NewRedisEntityMetricsRepo(RedisEntityMetricsRepoOptions{
			Client:    client,
			KeyPrefix: "test-metrics",
			TTL:       time.Minute,
		})
		require.NoError(t, ttlErr)

		require.NoError(t, ttlRepo.SetMetrics(ctx, model.EntityRef{Type: model.EntityTypePost, ID: 5}, model.MetricSet{
			model.MetricKindReactionCry: 1,
		}))
		ttl := client.TTL(ctx, "test-metrics:post:5").Val()
		assert.True(t, ttl > 0 && ttl <= time.Minute, "ttl %v", ttl)
	})
}
