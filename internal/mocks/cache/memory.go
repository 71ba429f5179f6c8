// Package cache contains hand-written in-memory doubles for the cache ports.
// They keep real SET NX and TTL semantics under a manually advanced clock, which scripted
// gomock expectations cannot express.
package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/target/entity-metrics/internal/core"
	"github.com/target/entity-metrics/internal/domain/model"
)

// Ensure compile-time conformance to core ports.
var (
	_ core.CacheRepository              = (*MemoryStore)(nil)
	_ core.EntityMetricsCacheRepository = (*MemoryStore)(nil)
)

// ErrEmptyKey mirrors the Redis adapter's rejection of blank keys.
var ErrEmptyKey = errors.New("key cannot be empty")

type entry struct {
	value   []byte
	set     model.MetricSet
	isSet   bool
	expires time.Time
}

// MemoryStore is a goroutine-safe stand-in for Redis implementing both the generic cache
// port and the entity metrics port. Time only moves when Advance is called, and calls on a
// canceled context fail the way a real client would.
type MemoryStore struct {
	// Optional failure hooks. Returning a non-nil error makes the call fail before
	// touching state.
	SetIfNotExistsErr func(key string) error
	DeleteErr         func(keys []string) error
	MetricsExistErr   func(ref model.EntityRef) error
	SetMetricsErr     func(ref model.EntityRef) error
	GetBulkErr        func(entityType model.EntityType, ids []int64) error

	// TTL applied to metric sets; zero means no expiry.
	MetricsTTL time.Duration

	mu       sync.Mutex
	prefix   string
	now      time.Time
	entries  map[string]entry
	setCalls map[model.EntityRef]int
}

// NewMemoryStore creates an empty store using prefix for metric set keys.
func NewMemoryStore(prefix string) *MemoryStore {
	if prefix == "" {
		prefix = "entity-metrics"
	}
	return &MemoryStore{
		prefix:   prefix,
		now:      time.Unix(1_700_000_000, 0),
		entries:  make(map[string]entry),
		setCalls: make(map[model.EntityRef]int),
	}
}

// Advance moves the store clock forward, expiring keys whose TTL has elapsed.
func (m *MemoryStore) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// MetricsKey returns the key a metric set for ref is stored under.
func (m *MemoryStore) MetricsKey(ref model.EntityRef) string {
	return m.prefix + ":" + ref.String()
}

// SetMetricsCalls reports how many times SetMetrics succeeded for ref.
func (m *MemoryStore) SetMetricsCalls(ref model.EntityRef) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCalls[ref]
}

// Keys returns the live keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for k := range m.entries {
		if _, ok := m.lookupLocked(k); ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Seed stores set for ref directly, bypassing hooks and call counting.
func (m *MemoryStore) Seed(ref model.EntityRef, set model.MetricSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.MetricsKey(ref)] = entry{set: cloneSet(set), isSet: true, expires: m.expiryLocked(m.MetricsTTL)}
}

func (m *MemoryStore) SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if key == "" {
		return false, ErrEmptyKey
	}
	if m.SetIfNotExistsErr != nil {
		if err := m.SetIfNotExistsErr(key); err != nil {
			return false, err
		}
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lookupLocked(key); ok {
		return false, nil
	}
	m.entries[key] = entry{value: append([]byte(nil), value...), expires: m.expiryLocked(ttl)}
	return true, nil
}

func (m *MemoryStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if m.DeleteErr != nil {
		if err := m.DeleteErr(keys); err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.lookupLocked(k); ok {
			n++
		}
		delete(m.entries, k)
	}
	return n, nil
}

func (m *MemoryStore) Health(context.Context) error { return nil }

func (m *MemoryStore) MetricsExist(ctx context.Context, ref model.EntityRef) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if m.MetricsExistErr != nil {
		if err := m.MetricsExistErr(ref); err != nil {
			return false, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookupLocked(m.MetricsKey(ref))
	return ok && e.isSet, nil
}

func (m *MemoryStore) SetMetrics(ctx context.Context, ref model.EntityRef, set model.MetricSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.SetMetricsErr != nil {
		if err := m.SetMetricsErr(ref); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.MetricsKey(ref)] = entry{set: cloneSet(set), isSet: true, expires: m.expiryLocked(m.MetricsTTL)}
	m.setCalls[ref]++
	return nil
}

func (m *MemoryStore) GetBulkMetrics(
	ctx context.Context,
	entityType model.EntityType,
	ids []int64,
) (map[int64]model.MetricSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.GetBulkErr != nil {
		if err := m.GetBulkErr(entityType, ids); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]model.MetricSet, len(ids))
	for _, id := range ids {
		e, ok := m.lookupLocked(m.MetricsKey(model.EntityRef{Type: entityType, ID: id}))
		if !ok || !e.isSet {
			continue
		}
		out[id] = cloneSet(e.set)
	}
	return out, nil
}

func (m *MemoryStore) DeleteMetrics(ctx context.Context, entityType model.EntityType, ids []int64) (int64, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = m.MetricsKey(model.EntityRef{Type: entityType, ID: id})
	}
	return m.Delete(ctx, keys...)
}

// lookupLocked returns the live entry for key, evicting it if expired.
func (m *MemoryStore) lookupLocked(key string) (entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return entry{}, false
	}
	if !e.expires.IsZero() && !m.now.Before(e.expires) {
		delete(m.entries, key)
		return entry{}, false
	}
	return e, true
}

func (m *MemoryStore) expiryLocked(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now.Add(ttl)
}

func cloneSet(set model.MetricSet) model.MetricSet {
	out := make(model.MetricSet, len(set))
	for k, v := range set {
		out[k] = v
	}
	return out
}
