package cache

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/dashmon/internal/clock"
	"github.com/t77yq/dashmon/internal/metrics"
)

// Options configures a MetricCache.
type Options struct {
	MaxEntries    int
	DefaultTTL    time.Duration
	SweepInterval time.Duration
}

// entry wraps a cached value with its bookkeeping.
type entry struct {
	key      string
	value    interface{}
	storedAt time.Time
	ttl      time.Duration
	hits     int
}

// Stats reports cache usage counters.
type Stats struct {
	Entries   int     `json:"entries"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	SizeBytes int     `json:"size_bytes"`
}

// MetricCache memoizes metric fetch results keyed by resource kind and
// normalized filter shape, bounded by TTL and capacity. Eviction uses a
// hybrid recency/frequency score (hits minus age in seconds); the entry
// with the lowest score goes first, ties broken by insertion order.
type MetricCache struct {
	logger *zap.Logger
	clk    clock.Clock
	mcs    *metrics.Metrics
	opts   Options

	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	hits    int64
	misses  int64
	sweep   clock.Timer
}

// New creates a metric cache. Zero option fields fall back to defaults
// (50 entries, 5m TTL, 1m sweep).
func New(logger *zap.Logger, clk clock.Clock, mcs *metrics.Metrics, opts Options) *MetricCache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 50
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	return &MetricCache{
		logger:  logger.Named("metric-cache"),
		clk:     clk,
		mcs:     mcs,
		opts:    opts,
		entries: make(map[string]*entry),
	}
}

// BuildKey derives a deterministic cache key from a resource prefix and
// a parameter object. Logically equal parameter sets always produce the
// same key regardless of field order: map keys are sorted recursively
// and array fields are serialized sorted.
func BuildKey(prefix string, params map[string]interface{}) string {
	if len(params) == 0 {
		return prefix
	}
	return prefix + ":" + canonicalize(params)
}

func canonicalize(v interface{}) string {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+canonicalize(val[k]))
		}
		return "{" + strings.Join(parts, ",") + "}"
	case []string:
		sorted := append([]string(nil), val...)
		sort.Strings(sorted)
		return "[" + strings.Join(sorted, ",") + "]"
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, canonicalize(item))
		}
		sort.Strings(parts)
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Get returns the cached value for key if present and fresh. A stale
// entry is evicted and reported as a miss. Hit/miss counters update on
// every call.
func (c *MetricCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && c.clk.Now().Sub(e.storedAt) < e.ttl {
		e.hits++
		c.hits++
		if c.mcs != nil {
			c.mcs.CacheHits.Inc()
		}
		return e.value, true
	}
	if ok {
		c.removeLocked(key)
	}
	c.misses++
	if c.mcs != nil {
		c.mcs.CacheMisses.Inc()
	}
	return nil, false
}

// Set stores a value under key. An optional ttl overrides the default.
// When the cache is at capacity the lowest-scoring entry is evicted
// before insertion.
func (c *MetricCache) Set(key string, value interface{}, ttl ...time.Duration) {
	entryTTL := c.opts.DefaultTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		entryTTL = ttl[0]
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.opts.MaxEntries {
		c.evictLocked()
	}
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = &entry{
		key:      key,
		value:    value,
		storedAt: c.clk.Now(),
		ttl:      entryTTL,
	}
}

// evictLocked removes the entry with the lowest hits-minus-age score.
func (c *MetricCache) evictLocked() {
	now := c.clk.Now()
	var victim string
	lowest := math.MaxFloat64
	for _, key := range c.order {
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		score := float64(e.hits) - now.Sub(e.storedAt).Seconds()
		if score < lowest {
			lowest = score
			victim = key
		}
	}
	if victim == "" {
		return
	}
	c.removeLocked(victim)
	if c.mcs != nil {
		c.mcs.CacheEvictions.Inc()
	}
	c.logger.Debug("Evicted cache entry",
		zap.String("key", victim),
		zap.Float64("score", lowest))
}

// Invalidate removes every entry whose key contains pattern and returns
// the number removed.
func (c *MetricCache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range append([]string(nil), c.order...) {
		if strings.Contains(key, pattern) {
			c.removeLocked(key)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("Invalidated cache entries",
			zap.String("pattern", pattern),
			zap.Int("removed", removed))
	}
	return removed
}

// Clear removes every entry and resets the hit/miss counters.
func (c *MetricCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.order = nil
	c.hits = 0
	c.misses = 0
}

// Stats returns current cache statistics. The size is a serialized-size
// heuristic, not a precise memory measurement.
func (c *MetricCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = math.Round(float64(c.hits)/float64(total)*100) / 100
	}

	size := 0
	for _, e := range c.entries {
		size += len(e.key)
		if data, err := json.Marshal(e.value); err == nil {
			size += len(data)
		}
	}

	return Stats{
		Entries:   len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		HitRate:   rate,
		SizeBytes: size,
	}
}

// Start begins the background expiry sweep.
func (c *MetricCache) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sweep != nil {
		return
	}
	c.scheduleSweepLocked()
	c.logger.Info("Metric cache started",
		zap.Int("max_entries", c.opts.MaxEntries),
		zap.Duration("default_ttl", c.opts.DefaultTTL),
		zap.Duration("sweep_interval", c.opts.SweepInterval))
}

// Stop cancels the background sweep.
func (c *MetricCache) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sweep != nil {
		c.sweep.Stop()
		c.sweep = nil
	}
}

func (c *MetricCache) scheduleSweepLocked() {
	c.sweep = c.clk.AfterFunc(c.opts.SweepInterval, func() {
		c.sweepExpired()

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.sweep == nil {
			// Stopped while the sweep was running.
			return
		}
		c.scheduleSweepLocked()
	})
}

// sweepExpired removes all entries whose TTL has elapsed, independent
// of Get calls.
func (c *MetricCache) sweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	removed := 0
	for _, key := range append([]string(nil), c.order...) {
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		if now.Sub(e.storedAt) >= e.ttl {
			c.removeLocked(key)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("Swept expired cache entries", zap.Int("removed", removed))
	}
}

func (c *MetricCache) removeLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
