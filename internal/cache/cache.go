package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"

	"photovault/internal/logging"
	"photovault/internal/metrics"
)

const (
	// DefaultMaxBytes caps total cached payload at 64 MiB.
	DefaultMaxBytes = 64 << 20
	// DefaultMaxEntries caps the total entry count.
	DefaultMaxEntries = 10000

	// admissionEvictFraction is the share of a namespace evicted when an
	// insert would blow the budget.
	admissionEvictFraction = 0.10
	// maintenanceHighWater triggers extra eviction during maintenance.
	maintenanceHighWater = 0.80
	// maintenanceEvictFraction is the extra share evicted above the
	// high-water mark.
	maintenanceEvictFraction = 0.20
)

// Options tunes cache budgets. Zero values pick defaults.
type Options struct {
	MaxBytes   int64
	MaxEntries int
}

func (o *Options) applyDefaults() {
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.MaxEntries <= 0 {
		o.MaxEntries = DefaultMaxEntries
	}
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	SizeBytes  int64 `json:"sizeBytes"`
	EntryCount int   `json:"entryCount"`
}

// entry is one cached value. TTL of zero means no expiry.
type entry struct {
	namespace      string
	key            string
	value          any
	sizeBytes      int64
	createdAt      time.Time
	ttl            time.Duration
	accessCount    int64
	lastAccessedAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) > e.ttl
}

// Cache is a thread-safe namespaced LRU with TTLs. The recency list is
// global across namespaces; budgets are global too, but admission pressure
// is relieved from the namespace being written to first.
type Cache struct {
	mu      sync.Mutex
	opts    Options
	entries map[string]*list.Element
	lru     *list.List // front = most recently used

	sizeBytes int64
	hits      int64
	misses    int64
	evictions int64
}

// New creates an empty cache.
func New(opts Options) *Cache {
	opts.applyDefaults()
	return &Cache{
		opts:    opts,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
}

func cacheKey(namespace, key string) string {
	return namespace + "\x00" + key
}

// Get returns the cached value for (namespace, key). An entry past its TTL
// is removed and the access counts as a miss.
func (c *Cache) Get(namespace, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[cacheKey(namespace, key)]
	if !ok {
		c.misses++
		metrics.CacheMisses.WithLabelValues(namespace).Inc()
		return nil, false
	}

	ent := elem.Value.(*entry)
	now := time.Now()
	if ent.expired(now) {
		c.removeLocked(elem, "ttl")
		c.misses++
		metrics.CacheMisses.WithLabelValues(namespace).Inc()
		return nil, false
	}

	ent.accessCount++
	ent.lastAccessedAt = now
	c.lru.MoveToFront(elem)
	c.hits++
	metrics.CacheHits.WithLabelValues(namespace).Inc()
	return ent.value, true
}

// Has reports whether a live entry exists without refreshing its recency
// or touching hit/miss counters.
func (c *Cache) Has(namespace, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[cacheKey(namespace, key)]
	if !ok {
		return false
	}
	return !elem.Value.(*entry).expired(time.Now())
}

// Set stores a value with an optional TTL (zero = never expires). When the
// insert would exceed a budget, least-recently-used entries are evicted
// before the new entry is admitted. A value bigger than the whole byte
// budget is not admitted at all.
func (c *Cache) Set(namespace, key string, value any, ttl time.Duration) {
	size := sizeOf(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if size > c.opts.MaxBytes {
		logging.Warn("cache: refusing %s/%s, %d bytes exceeds budget %d", namespace, key, size, c.opts.MaxBytes)
		return
	}

	ck := cacheKey(namespace, key)
	if elem, ok := c.entries[ck]; ok {
		// Overwrite, not an eviction.
		c.detachLocked(elem)
	}

	if c.sizeBytes+size > c.opts.MaxBytes || len(c.entries)+1 > c.opts.MaxEntries {
		c.relieveLocked(namespace, size)
	}

	now := time.Now()
	ent := &entry{
		namespace:      namespace,
		key:            key,
		value:          value,
		sizeBytes:      size,
		createdAt:      now,
		ttl:            ttl,
		lastAccessedAt: now,
	}
	c.entries[ck] = c.lru.PushFront(ent)
	c.sizeBytes += size
	c.publishGauges()
}

// relieveLocked frees room for an incoming entry of the given size. The
// written namespace pays first; remaining pressure is global.
func (c *Cache) relieveLocked(namespace string, incoming int64) {
	target := int(float64(c.nsCountLocked(namespace)) * admissionEvictFraction)
	if target < 1 {
		target = 1
	}
	c.evictLRULocked(namespace, target, "lru")

	// Still over budget: take from everyone, oldest first.
	for (c.sizeBytes+incoming > c.opts.MaxBytes || len(c.entries)+1 > c.opts.MaxEntries) && c.lru.Len() > 0 {
		c.removeLocked(c.lru.Back(), "lru")
	}
}

func (c *Cache) nsCountLocked(namespace string) int {
	count := 0
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if elem.Value.(*entry).namespace == namespace {
			count++
		}
	}
	return count
}

// Delete removes one entry if present.
func (c *Cache) Delete(namespace, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[cacheKey(namespace, key)]; ok {
		c.removeLocked(elem, "clear")
		c.publishGauges()
	}
}

// EvictLRU removes up to count least-recently-used entries. An empty
// namespace means eviction across all namespaces.
func (c *Cache) EvictLRU(namespace string, count int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := c.evictLRULocked(namespace, count, "lru")
	c.publishGauges()
	return evicted
}

func (c *Cache) evictLRULocked(namespace string, count int, reason string) int {
	evicted := 0
	elem := c.lru.Back()
	for elem != nil && evicted < count {
		prev := elem.Prev()
		ent := elem.Value.(*entry)
		if namespace == "" || ent.namespace == namespace {
			c.removeLocked(elem, reason)
			evicted++
		}
		elem = prev
	}
	return evicted
}

// Clear drops all entries in a namespace, or everything when namespace is
// empty.
func (c *Cache) Clear(namespace string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cleared := 0
	elem := c.lru.Front()
	for elem != nil {
		next := elem.Next()
		if namespace == "" || elem.Value.(*entry).namespace == namespace {
			c.removeLocked(elem, "clear")
			cleared++
		}
		elem = next
	}
	c.publishGauges()
	return cleared
}

// GetStats returns a snapshot of the global counters.
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
		SizeBytes:  c.sizeBytes,
		EntryCount: len(c.entries),
	}
}

// StartMaintenance sweeps expired entries on the given interval and, when
// occupancy stays above the high-water mark after the sweep, evicts an
// extra share of entries by LRU order. Runs until ctx is cancelled.
func (c *Cache) StartMaintenance(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Maintain()
		case <-ctx.Done():
			logging.Debug("cache maintenance stopped")
			return
		}
	}
}

// Maintain runs one maintenance pass.
func (c *Cache) Maintain() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	swept := 0
	elem := c.lru.Front()
	for elem != nil {
		next := elem.Next()
		if elem.Value.(*entry).expired(now) {
			c.removeLocked(elem, "ttl")
			swept++
		}
		elem = next
	}

	overBytes := float64(c.sizeBytes) > maintenanceHighWater*float64(c.opts.MaxBytes)
	overEntries := float64(len(c.entries)) > maintenanceHighWater*float64(c.opts.MaxEntries)
	if overBytes || overEntries {
		target := int(float64(len(c.entries)) * maintenanceEvictFraction)
		if target < 1 {
			target = 1
		}
		evicted := c.evictLRULocked("", target, "lru")
		logging.Debug("cache maintenance: swept %d expired, evicted %d over high-water", swept, evicted)
	} else if swept > 0 {
		logging.Debug("cache maintenance: swept %d expired entries", swept)
	}
	c.publishGauges()
}

// removeLocked detaches an entry and records the eviction reason. Explicit
// removals ("clear") are not counted in the evictions stat; that tracks
// only capacity and TTL pressure. The metrics label keeps all reasons.
func (c *Cache) removeLocked(elem *list.Element, reason string) {
	ent := c.detachLocked(elem)
	if reason != "clear" {
		c.evictions++
	}
	metrics.CacheEvictions.WithLabelValues(ent.namespace, reason).Inc()
}

func (c *Cache) detachLocked(elem *list.Element) *entry {
	ent := elem.Value.(*entry)
	c.lru.Remove(elem)
	delete(c.entries, cacheKey(ent.namespace, ent.key))
	c.sizeBytes -= ent.sizeBytes
	return ent
}

func (c *Cache) publishGauges() {
	metrics.CacheSizeBytes.Set(float64(c.sizeBytes))
	metrics.CacheEntries.Set(float64(len(c.entries)))
}

// sizeOf estimates the serialized payload size of a value. Byte slices and
// strings count exactly; everything else is measured by its JSON encoding,
// with a flat fallback for unencodable values.
func sizeOf(value any) int64 {
	switch v := value.(type) {
	case []byte:
		return int64(len(v))
	case string:
		return int64(len(v))
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return 64
		}
		return int64(len(encoded))
	}
}
