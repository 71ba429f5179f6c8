package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/entity-metrics/config"
	"github.com/target/entity-metrics/internal/domain/model"
	"github.com/target/entity-metrics/internal/mocks"
	"github.com/target/entity-metrics/internal/mocks/cache"
	"github.com/target/entity-metrics/internal/service"
)

type adminFixture struct {
	repo   *mocks.MockAggregationRepository
	store  *cache.MemoryStore
	out    *bytes.Buffer
	cmdCtx *commandContext
	closed bool
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &adminFixture{
		repo:  mocks.NewMockAggregationRepository(ctrl),
		store: cache.NewMemoryStore("entity-metrics"),
		out:   &bytes.Buffer{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.AppConfig{
		EntityMetrics: config.EntityMetricsConfig{BatchSize: 100, FanoutConcurrency: 2},
		Prewarm:       config.PrewarmConfig{Limit: 50},
	}
	f.cmdCtx = &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
		Out:    f.out,
		openService: func(cmdCtx *commandContext) (*service.EntityMetricsService, func() error, error) {
			svc, err := service.NewEntityMetricsService(service.EntityMetricsServiceOptions{
				Aggregation: f.repo,
				Metrics:     f.store,
				Cache:       f.store,
				Config:      cmdCtx.Config.EntityMetrics,
				Prewarm:     cmdCtx.Config.Prewarm,
				Logger:      cmdCtx.Logger,
			})
			return svc, func() error { f.closed = true; return nil }, err
		},
	}
	return f
}

func TestCommandsRegistered(t *testing.T) {
	cmds := commands()
	for _, name := range []string{"migrate", "fetch", "aggregate", "bust", "refresh", "prewarm"} {
		c, ok := cmds[name]
		require.True(t, ok, name)
		assert.Equal(t, name, c.name)
		assert.NotNil(t, c.run)
	}

	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))
	assert.Contains(t, buf.String(), "entitymetrics-admin <command>")
	assert.Contains(t, buf.String(), "prewarm")
}

func TestParseEntityFlags(t *testing.T) {
	opts, err := parseEntityFlags("fetch", []string{"--type", "Post", "--ids", "3,1,3", "--json"}, true)
	require.NoError(t, err)
	assert.Equal(t, model.EntityTypePost, opts.EntityType)
	assert.Equal(t, []int64{3, 1}, opts.IDs)
	assert.True(t, opts.JSON)

	_, err = parseEntityFlags("fetch", []string{"--type", "user", "--ids", "1"}, true)
	require.ErrorIs(t, err, model.ErrInvalidEntityType)

	_, err = parseEntityFlags("bust", nil, true)
	require.ErrorContains(t, err, "--ids is required")

	_, err = parseEntityFlags("bust", []string{"--ids", "1,x"}, true)
	require.Error(t, err)

	opts, err = parseEntityFlags("prewarm", []string{"--limit", "10"}, false)
	require.NoError(t, err)
	assert.Equal(t, 10, opts.Limit)
	assert.Equal(t, model.EntityTypeImage, opts.EntityType)

	_, err = parseEntityFlags("prewarm", []string{"--limit", "-1"}, false)
	require.Error(t, err)
}

func TestParseMigrateFlags(t *testing.T) {
	opts, err := parseMigrateFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultMigrationTimeout, opts.Timeout)

	_, err = parseMigrateFlags([]string{"--timeout", "0s"})
	require.Error(t, err)
}

func TestRunFetch_Table(t *testing.T) {
	f := newAdminFixture(t)
	f.repo.EXPECT().
		LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{2, 1}).
		Return([]model.MetricData{{EntityID: 1, Kind: model.MetricKindComment, Total: 4}}, nil)

	require.NoError(t, runFetch(f.cmdCtx, []string{"--ids", "2,1"}))

	out := f.out.String()
	assert.Contains(t, out, "COMMENT")
	assert.Regexp(t, `(?m)^1\s+-\s+-\s+-\s+-\s+4\s+-\s+-\s*$`, out)
	assert.Regexp(t, `(?m)^2(\s+-){7}\s*$`, out)
	assert.True(t, f.closed)
}

func TestRunFetch_JSON(t *testing.T) {
	f := newAdminFixture(t)
	f.repo.EXPECT().
		LoadMetrics(gomock.Any(), model.EntityTypeArticle, []int64{9}).
		Return([]model.MetricData{{EntityID: 9, Kind: model.MetricKindBuzz, Total: 12}}, nil)

	require.NoError(t, runFetch(f.cmdCtx, []string{"--type", "article", "--ids", "9", "--json"}))

	var got map[string]model.NormalizedMetricRecord
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &got))
	require.Contains(t, got, "9")
	require.NotNil(t, got["9"].Buzz)
	assert.Equal(t, int64(12), *got["9"].Buzz)
}

func TestRunAggregate_BypassesCache(t *testing.T) {
	f := newAdminFixture(t)
	f.cmdCtx.Config.EntityMetrics.BatchSize = 1
	ref := model.EntityRef{Type: model.EntityTypeImage, ID: 1}
	f.store.Seed(ref, model.MetricSet{model.MetricKindComment: 1})

	gomock.InOrder(
		f.repo.EXPECT().
			LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{1}).
			Return([]model.MetricData{{EntityID: 1, Kind: model.MetricKindComment, Total: 8}}, nil),
		f.repo.EXPECT().
			LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{2}).
			Return(nil, nil),
	)

	require.NoError(t, runAggregate(f.cmdCtx, []string{"--ids", "1,2", "--json"}))

	var got map[string]model.NormalizedMetricRecord
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &got))
	require.NotNil(t, got["1"].Comment)
	assert.Equal(t, int64(8), *got["1"].Comment)
	assert.Equal(t, model.NormalizedMetricRecord{}, got["2"])

	sets, err := f.store.GetBulkMetrics(context.Background(), model.EntityTypeImage, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, model.MetricSet{model.MetricKindComment: 1}, sets[1], "cache is untouched")
}

func TestRunBust(t *testing.T) {
	f := newAdminFixture(t)
	ref := model.EntityRef{Type: model.EntityTypeImage, ID: 5}
	f.store.Seed(ref, model.MetricSet{model.MetricKindComment: 1})

	require.NoError(t, runBust(f.cmdCtx, []string{"--ids", "5"}))

	exists, err := f.store.MetricsExist(context.Background(), ref)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Contains(t, f.out.String(), "Busted 1 image")
}

func TestRunRefresh_ReportsLoadFailure(t *testing.T) {
	f := newAdminFixture(t)
	f.repo.EXPECT().
		LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{7}).
		Return(nil, errors.New("db down"))

	err := runRefresh(f.cmdCtx, []string{"--ids", "7"})
	require.ErrorContains(t, err, "db down")
	assert.Contains(t, f.out.String(), "Requested: 1")
}

func TestRunPrewarm(t *testing.T) {
	f := newAdminFixture(t)
	f.repo.EXPECT().
		ListRecentlyActive(gomock.Any(), gomock.Any()).
		Return([]int64{4}, nil)
	f.repo.EXPECT().
		LoadMetrics(gomock.Any(), model.EntityTypeImage, []int64{4}).
		Return(nil, nil)

	require.NoError(t, runPrewarm(f.cmdCtx, []string{"--limit", "3", "--json"}))

	var got service.PrewarmResult
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &got))
	assert.Equal(t, 1, got.Candidates)
	assert.Equal(t, 1, got.Populate.Written)
}

func TestWithAccessor_OpenFailure(t *testing.T) {
	f := newAdminFixture(t)
	f.cmdCtx.openService = func(*commandContext) (*service.EntityMetricsService, func() error, error) {
		return nil, nil, errors.New("connect redis: refused")
	}
	require.ErrorContains(t, runBust(f.cmdCtx, []string{"--ids", "1"}), "refused")
}
