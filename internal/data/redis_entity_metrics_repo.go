package data

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/entity-metrics/internal/domain/model"
)

// PopulatedField is the hash field written alongside the metric totals of every stored set.
// Its presence distinguishes a populated entity with no metrics from one never populated.
const PopulatedField = "_populated_at"

// DefaultKeyPrefix namespaces every key written by the entity metrics cache.
const DefaultKeyPrefix = "entity-metrics"

// RedisEntityMetricsRepoOptions configures a RedisEntityMetricsRepo.
type RedisEntityMetricsRepoOptions struct {
	Client    redis.UniversalClient
	KeyPrefix string
	// TTL expires stored sets; zero keeps them until busted or refreshed.
	TTL          time.Duration
	TimeProvider TimeProvider
}

// RedisEntityMetricsRepo stores each entity's MetricSet as a Redis hash keyed
// "<prefix>:<type>:<id>" with one field per metric kind.
type RedisEntityMetricsRepo struct {
	client       redis.UniversalClient
	prefix       string
	ttl          time.Duration
	timeProvider TimeProvider
}

// NewRedisEntityMetricsRepo constructs a RedisEntityMetricsRepo.
func NewRedisEntityMetricsRepo(opts RedisEntityMetricsRepoOptions) (*RedisEntityMetricsRepo, error) {
	if opts.Client == nil {
		return nil, ErrRedisClientRequired
	}
	prefix := strings.TrimSpace(opts.KeyPrefix)
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &RedisEntityMetricsRepo{
		client:       opts.Client,
		prefix:       prefix,
		ttl:          max(opts.TTL, 0),
		timeProvider: tp,
	}, nil
}

// MetricsKey returns the hash key holding the MetricSet of ref.
func MetricsKey(prefix string, ref model.EntityRef) string {
	return prefix + ":" + ref.String()
}

func (r *RedisEntityMetricsRepo) key(ref model.EntityRef) string {
	return MetricsKey(r.prefix, ref)
}

// MetricsExist reports whether a MetricSet has been stored for ref.
func (r *RedisEntityMetricsRepo) MetricsExist(ctx context.Context, ref model.EntityRef) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(ref)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", ref, err)
	}
	return n > 0, nil
}

// SetMetrics deletes and rewrites the hash for ref inside one MULTI/EXEC so readers
// never observe a partially written set.
func (r *RedisEntityMetricsRepo) SetMetrics(ctx context.Context, ref model.EntityRef, set model.MetricSet) error {
	key := r.key(ref)
	values := make([]any, 0, 2*(len(set)+1))
	values = append(values, PopulatedField, r.timeProvider.Now().UTC().UnixMilli())
	for _, kind := range model.AllMetricKinds() {
		if total, ok := set[kind]; ok && total > 0 {
			values = append(values, string(kind), total)
		}
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values...)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write %s: %w", ref, err)
	}
	return nil
}

// GetBulkMetrics reads the hashes for ids in a single pipeline.
func (r *RedisEntityMetricsRepo) GetBulkMetrics(
	ctx context.Context,
	entityType model.EntityType,
	ids []int64,
) (map[int64]model.MetricSet, error) {
	out := make(map[int64]model.MetricSet, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	if _, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, r.key(model.EntityRef{Type: entityType, ID: id}))
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("redis bulk read %s: %w", entityType, err)
	}

	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		out[ids[i]] = decodeMetricSet(fields)
	}
	return out, nil
}

// DeleteMetrics removes the hashes for ids in a single pipeline.
func (r *RedisEntityMetricsRepo) DeleteMetrics(
	ctx context.Context,
	entityType model.EntityType,
	ids []int64,
) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	cmds := make([]*redis.IntCmd, len(ids))
	if _, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.Del(ctx, r.key(model.EntityRef{Type: entityType, ID: id}))
		}
		return nil
	}); err != nil {
		return 0, fmt.Errorf("redis delete %s: %w", entityType, err)
	}

	var deleted int64
	for _, cmd := range cmds {
		deleted += cmd.Val()
	}
	return deleted, nil
}

// decodeMetricSet ignores the marker field, unknown kinds and non-positive totals.
func decodeMetricSet(fields map[string]string) model.MetricSet {
	set := make(model.MetricSet, len(fields))
	for field, raw := range fields {
		if field == PopulatedField {
			continue
		}
		kind := model.MetricKind(field)
		if !kind.Valid() {
			continue
		}
		total, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || total <= 0 {
			continue
		}
		set[kind] = total
	}
	return set
}
