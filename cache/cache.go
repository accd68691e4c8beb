// Package cache implements the namespaced TTL store: a
// colon-keyed key/value store with atomic counters, windowed counters, a
// namespace index, batch operations and size-based eviction.
//
// The clock is injectable (as in the teacher's pulse/budget.Limiter) so
// window-boundary tests don't depend on wall-clock sleeps.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wanderer-industries/topologyd/errors"
)

// Default TTL presets.
const (
	TTLCharacter      = 24 * time.Hour
	TTLCorporation    = 24 * time.Hour
	TTLAlliance       = 24 * time.Hour
	TTLUniverseType   = 24 * time.Hour
	TTLMapData        = time.Hour
	TTLSystem         = time.Hour
	TTLItemPrice      = 6 * time.Hour
	TTLKillmail       = 30 * time.Minute
	TTLLicense        = 20 * time.Minute
	TTLNotifDedup     = 30 * time.Minute
	TTLHealthCheck    = time.Second
	DefaultTTL        = 24 * time.Hour
	namespaceIndexKey = "__namespace_index__"
)

var ErrNotFound = errors.New("cache: key not found")

type entry struct {
	value     any
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// WindowedCount is the value shape held by update_windowed_counter.
type WindowedCount struct {
	Requests    int64
	WindowStart time.Time
}

// Stats summarizes cache occupancy.
type Stats struct {
	Size       int
	Namespaces int
}

// Cache is a namespaced, TTL-bearing key/value store with atomic counters.
type Cache struct {
	mu    sync.Mutex
	data  map[string]entry
	index map[string]map[string]struct{} // namespace -> set of full keys
	limit int
	now   func() time.Time
}

// Option configures a Cache at construction.
type Option func(*Cache)

// WithLimit sets the eviction limit (0 disables eviction).
func WithLimit(limit int) Option {
	return func(c *Cache) { c.limit = limit }
}

// WithClock injects a clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		data:  make(map[string]entry),
		index: make(map[string]map[string]struct{}),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func namespaceOf(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

// Get returns the value for key, or ErrNotFound.
func (c *Cache) Get(key string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok || e.expired(c.now()) {
		return nil, ErrNotFound
	}
	return e.value, nil
}

// Exists reports whether key is present and unexpired.
func (c *Cache) Exists(key string) bool {
	_, err := c.Get(key)
	return err == nil
}

// Put stores value under key with the given ttl (0 means DefaultTTL;
// pass a negative ttl for "no expiry").
func (c *Cache) Put(key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, value, ttl)
	c.maybeEvictLocked()
	return nil
}

func (c *Cache) putLocked(key string, value any, ttl time.Duration) {
	var expiresAt time.Time
	switch {
	case ttl < 0:
		// no expiry
	case ttl == 0:
		expiresAt = c.now().Add(DefaultTTL)
	default:
		expiresAt = c.now().Add(ttl)
	}
	c.data[key] = entry{value: value, expiresAt: expiresAt}
	c.indexAddLocked(key)
}

func (c *Cache) indexAddLocked(key string) {
	if key == namespaceIndexKey {
		return
	}
	ns := namespaceOf(key)
	set, ok := c.index[ns]
	if !ok {
		set = make(map[string]struct{})
		c.index[ns] = set
	}
	set[key] = struct{}{}
}

func (c *Cache) indexRemoveLocked(key string) {
	ns := namespaceOf(key)
	if set, ok := c.index[ns]; ok {
		delete(set, key)
		if len(set) == 0 {
			delete(c.index, ns)
		}
	}
}

// Delete removes key, updating the namespace index.
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.indexRemoveLocked(key)
	return nil
}

// UpdateCounter atomically increments the integer at key by delta,
// initializing it to delta if absent. If ttl is non-zero, expiry is (re)set.
func (c *Cache) UpdateCounter(key string, delta int64, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var cur int64
	e, ok := c.data[key]
	live := ok && !e.expired(c.now())
	if live {
		if v, ok := e.value.(int64); ok {
			cur = v
		}
	}
	cur += delta
	if ttl == 0 && live {
		c.data[key] = entry{value: cur, expiresAt: e.expiresAt}
		c.indexAddLocked(key)
		return cur, nil
	}
	c.putLocked(key, cur, ttl)
	return cur, nil
}

// UpdateWindowedCounter implements the update_windowed_counter primitive
// a sliding fixed-window request counter keyed by key, resetting
// whenever now - window_start >= window.
func (c *Cache) UpdateWindowedCounter(key string, window time.Duration, ttl time.Duration) (WindowedCount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var wc WindowedCount
	if e, ok := c.data[key]; ok && !e.expired(now) {
		if prev, ok := e.value.(WindowedCount); ok {
			if now.Sub(prev.WindowStart) < window {
				wc = WindowedCount{Requests: prev.Requests + 1, WindowStart: prev.WindowStart}
			} else {
				wc = WindowedCount{Requests: 1, WindowStart: now}
			}
		} else {
			wc = WindowedCount{Requests: 1, WindowStart: now}
		}
	} else {
		wc = WindowedCount{Requests: 1, WindowStart: now}
	}
	c.putLocked(key, wc, ttl)
	return wc, nil
}

// ClearNamespaceOptions controls ClearNamespace behavior.
type ClearNamespaceOptions struct {
	BatchSize int
}

// ClearNamespace deletes every key with the "ns:" prefix, using the
// namespace index when present and falling back to a full scan.
func (c *Cache) ClearNamespace(ns string, opts ClearNamespaceOptions) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	if set, ok := c.index[ns]; ok {
		for k := range set {
			keys = append(keys, k)
		}
	} else {
		prefix := ns + ":"
		for k := range c.data {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
	}

	n := 0
	for _, k := range keys {
		delete(c.data, k)
		c.indexRemoveLocked(k)
		n++
	}
	delete(c.index, ns)
	return n, nil
}

// GetBatch returns the present, unexpired values for the given keys.
func (c *Cache) GetBatch(keys []string) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if e, ok := c.data[k]; ok && !e.expired(now) {
			out[k] = e.value
		}
	}
	return out
}

// PutBatch stores every key/value pair with DefaultTTL.
func (c *Cache) PutBatch(kv map[string]any) {
	c.PutBatchWithTTL(kv, 0)
}

// PutBatchWithTTL stores every key/value pair with a shared ttl.
func (c *Cache) PutBatchWithTTL(kv map[string]any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range kv {
		c.putLocked(k, v, ttl)
	}
	c.maybeEvictLocked()
}

// Size returns the number of live (non-expired) keys.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for _, e := range c.data {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Stats returns cache occupancy statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Size: len(c.data), Namespaces: len(c.index)}
}

// ListNamespaces returns known namespace names. useIndex currently has no
// effect beyond documenting intent (the index is always authoritative here).
func (c *Cache) ListNamespaces(useIndex bool) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.index))
	for ns := range c.index {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// maybeEvictLocked applies the eviction policy: at 90% of limit evict
// 10% of keys at random; at 100% evict 30%. The namespace index key itself
// is never evicted. Caller must hold c.mu.
func (c *Cache) maybeEvictLocked() {
	if c.limit <= 0 {
		return
	}
	size := len(c.data)
	var fraction float64
	switch {
	case size > c.limit:
		fraction = 0.3
	case float64(size) > 0.9*float64(c.limit):
		fraction = 0.1
	default:
		return
	}

	n := int(float64(size) * fraction)
	if n <= 0 {
		return
	}
	evicted := 0
	for k := range c.data {
		if k == namespaceIndexKey {
			continue
		}
		delete(c.data, k)
		c.indexRemoveLocked(k)
		evicted++
		if evicted >= n {
			break
		}
	}
}
