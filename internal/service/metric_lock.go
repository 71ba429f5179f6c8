package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/target/entity-metrics/internal/core"
	"github.com/target/entity-metrics/internal/domain/model"
	"github.com/target/entity-metrics/internal/observability/metrics"
	"github.com/target/entity-metrics/internal/observability/statsd"
)

// DefaultLockTTL bounds how long a crashed populator can hold an entity.
const DefaultLockTTL = 10 * time.Second

// lockMarker is the payload of every lock key; only key presence matters.
var lockMarker = []byte("1")

// MetricLockOptions groups dependencies for MetricLockCoordinator.
type MetricLockOptions struct {
	Cache     core.CacheRepository // Required: key/value store holding lock markers
	TTL       time.Duration        // Optional: lock lifetime, defaults to DefaultLockTTL
	KeyPrefix string               // Optional: key namespace, defaults to "entity-metrics"
	Logger    *slog.Logger         // Optional: structured logger
	Metrics   statsd.Sink          // Optional: metrics sink
}

// MetricLockCoordinator hands out short-lived, per-entity population locks so only one
// process recomputes a given entity at a time. Locks are best-effort: they expire after
// the TTL whether or not they are released, and store failures read as "not acquired".
type MetricLockCoordinator struct {
	cache   core.CacheRepository
	ttl     time.Duration
	prefix  string
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewMetricLockCoordinator constructs a MetricLockCoordinator.
func NewMetricLockCoordinator(opts MetricLockOptions) (*MetricLockCoordinator, error) {
	if opts.Cache == nil {
		return nil, errors.New("CacheRepository is required")
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "entity-metrics"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &MetricLockCoordinator{
		cache:   opts.Cache,
		ttl:     ttl,
		prefix:  prefix,
		logger:  logger.With("component", "metric_lock"),
		metrics: opts.Metrics,
	}, nil
}

// LockKey returns the key guarding population of ref.
func (l *MetricLockCoordinator) LockKey(ref model.EntityRef) string {
	return l.prefix + ":lock:" + ref.String()
}

// TryAcquire atomically claims the population lock for ref. It never blocks waiting for
// another holder and reports false on contention or store error.
func (l *MetricLockCoordinator) TryAcquire(ctx context.Context, ref model.EntityRef) bool {
	ok, err := l.cache.SetIfNotExists(ctx, l.LockKey(ref), lockMarker, l.ttl)
	switch {
	case err != nil:
		l.logger.WarnContext(ctx, "lock acquire failed", "entity", ref.String(), "error", err)
		metrics.EmitLock(l.metrics, string(ref.Type), metrics.ResultError)
		return false
	case !ok:
		metrics.EmitLock(l.metrics, string(ref.Type), metrics.ResultContended)
		return false
	default:
		metrics.EmitLock(l.metrics, string(ref.Type), metrics.ResultAcquired)
		return true
	}
}

// Release deletes the lock markers for refs in one round trip. Failures are logged;
// the TTL clears anything left behind.
func (l *MetricLockCoordinator) Release(ctx context.Context, refs []model.EntityRef) {
	if len(refs) == 0 {
		return
	}
	keys := make([]string, len(refs))
	for i, ref := range refs {
		keys[i] = l.LockKey(ref)
	}
	if _, err := l.cache.Delete(ctx, keys...); err != nil {
		l.logger.WarnContext(ctx, "lock release failed; locks will expire",
			"count", len(keys),
			"ttl", l.ttl,
			"error", err,
		)
	}
}
