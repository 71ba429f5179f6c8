package service

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/entity-metrics/internal/domain/model"
	"github.com/target/entity-metrics/internal/mocks"
	"github.com/target/entity-metrics/internal/mocks/cache"
)

const testPrefix = "entity-metrics"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSink captures counters so tests can assert emitted tags.
type recordingSink struct {
	mu     sync.Mutex
	counts []recordedMetric
}

type recordedMetric struct {
	name  string
	value int64
	tags  map[string]string
}

func (s *recordingSink) Count(name string, value int64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = append(s.counts, recordedMetric{name: name, value: value, tags: tags})
}

func (s *recordingSink) Gauge(string, float64, map[string]string) {}

func (s *recordingSink) Timing(string, time.Duration, map[string]string) {}

func (s *recordingSink) find(name string) []recordedMetric {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []recordedMetric
	for _, m := range s.counts {
		if m.name == name {
			out = append(out, m)
		}
	}
	return out
}

type populatorFixture struct {
	store     *cache.MemoryStore
	repo      *mocks.MockAggregationRepository
	locks     *MetricLockCoordinator
	populator *MetricPopulator
	sink      *recordingSink
}

func newPopulatorFixture(t *testing.T, batchSize int) *populatorFixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	f := &populatorFixture{
		store: cache.NewMemoryStore(testPrefix),
		repo:  mocks.NewMockAggregationRepository(ctrl),
		sink:  &recordingSink{},
	}

	var err error
	f.locks, err = NewMetricLockCoordinator(MetricLockOptions{
		Cache:     f.store,
		TTL:       DefaultLockTTL,
		KeyPrefix: testPrefix,
		Logger:    discardLogger(),
		Metrics:   f.sink,
	})
	require.NoError(t, err)

	loader, err := NewMetricBatchLoader(MetricBatchLoaderOptions{
		Repo:      f.repo,
		BatchSize: batchSize,
		Logger:    discardLogger(),
	})
	require.NoError(t, err)

	f.populator, err = NewMetricPopulator(MetricPopulatorOptions{
		Cache:             f.store,
		Locks:             f.locks,
		Loader:            loader,
		FanoutConcurrency: 4,
		Logger:            discardLogger(),
		Metrics:           f.sink,
	})
	require.NoError(t, err)
	return f
}

func (f *populatorFixture) accessor(t *testing.T, entityType model.EntityType) *MetricAccessor {
	t.Helper()
	a, err := NewMetricAccessor(MetricAccessorOptions{
		EntityType: entityType,
		Populator:  f.populator,
		Cache:      f.store,
		Logger:     discardLogger(),
		Metrics:    f.sink,
	})
	require.NoError(t, err)
	return a
}

// lockKeys returns live lock keys in the store.
func (f *populatorFixture) lockKeys() []string {
	var out []string
	for _, k := range f.store.Keys() {
		if strings.HasPrefix(k, testPrefix+":lock:") {
			out = append(out, k)
		}
	}
	return out
}

func row(id int64, kind model.MetricKind, total int64) model.MetricData {
	return model.MetricData{EntityID: id, Kind: kind, Total: total}
}

func ptr(v int64) *int64 { return &v }
