package timeline

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"photovault/internal/cache"
	"photovault/internal/logging"
	"photovault/internal/metrics"
	"photovault/internal/store"
)

// cacheNamespace holds memoized section lists.
const cacheNamespace = "sections"

// queryPageSize is the page size used when walking the full item set.
const queryPageSize = 1000

// Timeline serves sections and slices over the store's item set. Section
// generation is O(total items), so it only reruns when the underlying
// content hash or the grouping changes, never per read.
type Timeline struct {
	store *store.Store
	cache *cache.Cache

	mu          sync.Mutex
	grouping    Grouping
	contentHash string
	sections    []Section
	excluded    []store.MediaItem
}

// New creates a Timeline over a store, memoizing through the shared cache.
func New(st *store.Store, c *cache.Cache) *Timeline {
	return &Timeline{store: st, cache: c, grouping: GroupMonthly}
}

// GetSections returns the date-bucketed sections for a grouping,
// regenerating only when the item set changed since the last call.
func (t *Timeline) GetSections(ctx context.Context, grouping Grouping) ([]Section, error) {
	items, hash, err := t.loadItems(ctx)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if grouping == t.grouping && hash == t.contentHash && t.sections != nil {
		return t.sections, nil
	}

	// The cache can still short-circuit a regeneration after a restart of
	// this Timeline instance.
	cacheKey := fmt.Sprintf("%s:%s", grouping, hash)
	if cached, ok := t.cache.Get(cacheNamespace, cacheKey); ok {
		if sections, valid := cached.([]Section); valid {
			t.grouping = grouping
			t.contentHash = hash
			t.sections = sections
			return sections, nil
		}
	}

	start := time.Now()
	sections, excluded := GenerateSections(items, grouping)
	duration := time.Since(start)

	t.grouping = grouping
	t.contentHash = hash
	t.sections = sections
	t.excluded = excluded

	t.cache.Set(cacheNamespace, cacheKey, sections, 10*time.Minute)

	metrics.TimelineRegenerations.Inc()
	metrics.TimelineGenerationDuration.Observe(duration.Seconds())
	metrics.TimelineSections.Set(float64(len(sections)))

	if len(excluded) > 0 {
		logging.Warn("timeline: %d items excluded for missing timestamps", len(excluded))
	}
	logging.Debug("timeline: generated %d sections (%s grouping) over %d items in %s",
		len(sections), grouping, len(items), duration.Round(time.Microsecond))
	return sections, nil
}

// GetSlices returns virtualization slices over the current grouping's
// sections.
func (t *Timeline) GetSlices(ctx context.Context, grouping Grouping, sliceSize int) ([]Slice, error) {
	sections, err := t.GetSections(ctx, grouping)
	if err != nil {
		return nil, err
	}
	return CreateSlices(sections, sliceSize), nil
}

// ScrollToDate resolves a date to a section position under a grouping.
func (t *Timeline) ScrollToDate(ctx context.Context, grouping Grouping, date time.Time) (Position, bool, error) {
	sections, err := t.GetSections(ctx, grouping)
	if err != nil {
		return Position{}, false, err
	}
	pos, ok := ScrollToDate(date, sections)
	return pos, ok, nil
}

// Metrics returns summary statistics for a grouping.
func (t *Timeline) Metrics(ctx context.Context, grouping Grouping) (Metrics, error) {
	sections, err := t.GetSections(ctx, grouping)
	if err != nil {
		return Metrics{}, err
	}
	return GetMetrics(sections), nil
}

// Excluded returns the items left out of the last generation for missing
// timestamps.
func (t *Timeline) Excluded() []store.MediaItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.excluded
}

// PreloadSections warms the cache with the sections around an index so a
// scrolling consumer finds its neighbors hot.
func (t *Timeline) PreloadSections(aroundIndex, radius int) {
	t.mu.Lock()
	sections := t.sections
	t.mu.Unlock()

	if radius <= 0 {
		radius = 2
	}
	for i := aroundIndex - radius; i <= aroundIndex+radius; i++ {
		if i < 0 || i >= len(sections) {
			continue
		}
		t.cache.Set(cacheNamespace, "preload:"+sections[i].BucketKey, sections[i], 5*time.Minute)
	}
}

// loadItems walks the full non-deleted item set in creation-time order and
// computes its content hash.
func (t *Timeline) loadItems(ctx context.Context) ([]store.MediaItem, string, error) {
	var items []store.MediaItem
	offset := 0
	for {
		page, err := t.store.QueryItems(ctx, store.QueryFilters{Limit: queryPageSize, Offset: offset})
		if err != nil {
			return nil, "", fmt.Errorf("timeline: load items: %w", err)
		}
		items = append(items, page.Items...)
		offset += len(page.Items)
		if len(page.Items) < queryPageSize || offset >= page.TotalItems {
			break
		}
	}
	return items, contentHash(items), nil
}

// contentHash fingerprints the item set. Any change in membership, order,
// or a field the timeline renders produces a new hash.
func contentHash(items []store.MediaItem) string {
	hash := sha256.New()
	var buf [8]byte
	for _, item := range items {
		hash.Write([]byte(item.ID))
		binary.LittleEndian.PutUint64(buf[:], uint64(item.CreationTime.UnixNano()))
		hash.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(item.UpdatedAt.Unix()))
		hash.Write(buf[:])
		if item.IsFavorite {
			hash.Write([]byte{1})
		} else {
			hash.Write([]byte{0})
		}
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(len(items)))
	hash.Write(buf[:])
	return hex.EncodeToString(hash.Sum(nil))
}
