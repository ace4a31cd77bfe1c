// Package respcache caches API response payloads in memory with TTL
// expiration, pluggable eviction strategies, and transparent gzip
// compression of large entries. Keys are derived from the API name,
// endpoint, and request parameters so identical requests hit the same
// entry regardless of parameter ordering.
package respcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"biocollect/internal/models"
)

const (
	// Entries smaller than this are stored uncompressed.
	compressionThreshold = 1024

	// Compression must save at least this fraction to be kept.
	compressionMinSavings = 0.10

	// Eviction drains the cache down to this fraction of its limit.
	evictionTargetRatio = 0.80
)

type entry struct {
	key          string
	apiName      string
	endpoint     string
	data         []byte
	compressed   bool
	size         int64
	createdAt    time.Time
	expiresAt    time.Time
	lastAccessed time.Time
	accessCount  int64
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Cache is an in-memory response cache. Safe for concurrent use. Close must
// be called to stop the background cleanup goroutine.
type Cache struct {
	cfg    models.CacheConfig
	logger *slog.Logger

	mu          sync.Mutex
	entries     map[string]*entry
	memoryBytes int64
	metrics     *Metrics

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a cache from the given configuration and starts the periodic
// cleanup goroutine.
func New(cfg models.CacheConfig, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache{
		cfg:     cfg,
		logger:  logger,
		entries: make(map[string]*entry),
		metrics: &Metrics{},
		done:    make(chan struct{}),
	}

	go c.cleanupLoop()

	return c
}

// Key derives the cache key for a request. The parameter map is serialized
// with sorted keys before hashing, so parameter order never splits entries.
func Key(apiName, endpoint string, params map[string]string) string {
	canonical := struct {
		API      string            `json:"api"`
		Endpoint string            `json:"endpoint"`
		Params   map[string]string `json:"params"`
	}{apiName, endpoint, params}

	// encoding/json writes map keys in sorted order.
	payload, _ := json.Marshal(canonical)
	digest := sha256.Sum256(payload)
	return fmt.Sprintf("%s:%s:%s", apiName, endpoint, hex.EncodeToString(digest[:])[:16])
}

// Get looks up the cached response for a request. Expired entries are removed
// on access and reported as misses.
func (c *Cache) Get(apiName, endpoint string, params map[string]string) ([]byte, bool) {
	if !c.cfg.Enabled {
		return nil, false
	}

	key := Key(apiName, endpoint, params)
	now := time.Now()

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.metrics.misses++
		c.mu.Unlock()
		return nil, false
	}

	if e.expired(now) {
		c.removeLocked(key)
		c.metrics.misses++
		c.metrics.expirations++
		c.mu.Unlock()
		return nil, false
	}

	e.lastAccessed = now
	e.accessCount++
	c.metrics.hits++

	data := e.data
	compressed := e.compressed
	c.mu.Unlock()

	if !compressed {
		// Callers must not mutate the cached bytes.
		out := make([]byte, len(data))
		copy(out, data)
		return out, true
	}

	out, err := decompress(data)
	if err != nil {
		c.logger.Error("failed to decompress cache entry", "key", key, "error", err)
		c.mu.Lock()
		c.removeLocked(key)
		c.mu.Unlock()
		return nil, false
	}
	return out, true
}

// Put stores a response payload under the configured TTL. Failures are
// logged and swallowed; a cache write must never fail the request that
// produced the data.
func (c *Cache) Put(apiName, endpoint string, params map[string]string, data []byte) {
	c.PutTTL(apiName, endpoint, params, data, 0)
}

// PutTTL stores a response payload with an explicit TTL. A non-positive ttl
// falls back to the per-API override, then the default.
func (c *Cache) PutTTL(apiName, endpoint string, params map[string]string, data []byte, ttl time.Duration) {
	if !c.cfg.Enabled || len(data) == 0 {
		return
	}

	key := Key(apiName, endpoint, params)
	now := time.Now()

	stored := make([]byte, len(data))
	copy(stored, data)
	compressed := false

	if c.cfg.Compression && len(data) > compressionThreshold {
		if packed, ok := compress(data); ok {
			c.mu.Lock()
			c.metrics.compressionSavings += int64(len(data) - len(packed))
			c.mu.Unlock()
			stored = packed
			compressed = true
		}
	}

	e := &entry{
		key:          key,
		apiName:      apiName,
		endpoint:     endpoint,
		data:         stored,
		compressed:   compressed,
		size:         int64(len(stored)),
		createdAt:    now,
		expiresAt:    now.Add(c.resolveTTL(apiName, ttl)),
		lastAccessed: now,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.memoryBytes -= old.size
	}
	c.entries[key] = e
	c.memoryBytes += e.size

	c.evictIfNeededLocked()
}

// resolveTTL picks the TTL for an entry: explicit override first, then the
// per-API table, then the default.
func (c *Cache) resolveTTL(apiName string, ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	if ttl, ok := c.cfg.APITTL[apiName]; ok {
		return ttl
	}
	return c.cfg.DefaultTTL
}

// InvalidateAll drops every entry.
func (c *Cache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]*entry)
	c.memoryBytes = 0

	c.logger.Info("cache invalidated", "entries_removed", n)
	return n
}

// InvalidateAPI drops all entries belonging to one API.
func (c *Cache) InvalidateAPI(apiName string) int {
	return c.invalidatePrefix(apiName + ":")
}

// InvalidateEndpoint drops all entries for one endpoint of one API.
func (c *Cache) InvalidateEndpoint(apiName, endpoint string) int {
	return c.invalidatePrefix(apiName + ":" + endpoint + ":")
}

// InvalidateKey drops the single entry for one exact request.
func (c *Cache) InvalidateKey(apiName, endpoint string, params map[string]string) int {
	key := Key(apiName, endpoint, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return 0
	}
	c.removeLocked(key)

	c.logger.Info("cache invalidated", "key", key, "entries_removed", 1)
	return 1
}

func (c *Cache) invalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.removeLocked(key)
			n++
		}
	}

	if n > 0 {
		c.logger.Info("cache invalidated", "prefix", prefix, "entries_removed", n)
	}
	return n
}

// Stats returns a snapshot of the cache metrics and occupancy.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Entries:            len(c.entries),
		MemoryBytes:        c.memoryBytes,
		MaxEntries:         c.cfg.MaxEntries,
		MaxMemoryBytes:     int64(c.cfg.MaxMemoryMB) * 1024 * 1024,
		Hits:               c.metrics.hits,
		Misses:             c.metrics.misses,
		Evictions:          c.metrics.evictions,
		Expirations:        c.metrics.expirations,
		CompressionSavings: c.metrics.compressionSavings,
		HitRate:            c.metrics.hitRate(),
		Strategy:           c.cfg.Strategy,
	}
}

// Close stops the background cleanup goroutine. Idempotent.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Cache) cleanupLoop() {
	interval := c.cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired drops all expired entries in one pass.
func (c *Cache) removeExpired() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			c.removeLocked(key)
			c.metrics.expirations++
			removed++
		}
	}

	if removed > 0 {
		c.logger.Debug("cache cleanup removed expired entries",
			"removed", removed,
			"remaining", len(c.entries),
		)
	}
}

// removeLocked deletes one entry and adjusts the memory accounting. Caller
// holds c.mu.
func (c *Cache) removeLocked(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	c.memoryBytes -= e.size
	delete(c.entries, key)
}

// evictIfNeededLocked enforces the entry-count and memory ceilings, draining
// to 80% of the exceeded limit by the configured strategy. Caller holds c.mu.
func (c *Cache) evictIfNeededLocked() {
	maxMemory := int64(c.cfg.MaxMemoryMB) * 1024 * 1024

	overCount := c.cfg.MaxEntries > 0 && len(c.entries) > c.cfg.MaxEntries
	overMemory := maxMemory > 0 && c.memoryBytes > maxMemory
	if !overCount && !overMemory {
		return
	}

	targetEntries := int(float64(c.cfg.MaxEntries) * evictionTargetRatio)
	targetMemory := int64(float64(maxMemory) * evictionTargetRatio)

	victims := c.victimOrderLocked()
	evicted := 0
	for _, key := range victims {
		stillOverCount := overCount && len(c.entries) > targetEntries
		stillOverMemory := overMemory && c.memoryBytes > targetMemory
		if !stillOverCount && !stillOverMemory {
			break
		}
		c.removeLocked(key)
		c.metrics.evictions++
		evicted++
	}

	if evicted > 0 {
		c.logger.Debug("cache eviction",
			"strategy", c.cfg.Strategy,
			"evicted", evicted,
			"entries", len(c.entries),
			"memory_bytes", c.memoryBytes,
		)
	}
}

// victimOrderLocked returns entry keys in eviction order for the configured
// strategy. Caller holds c.mu.
func (c *Cache) victimOrderLocked() []string {
	ordered := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		ordered = append(ordered, e)
	}

	switch c.cfg.Strategy {
	case models.CacheStrategyLFU:
		sort.Slice(ordered, func(i, j int) bool {
			return ordered[i].accessCount < ordered[j].accessCount
		})
	case models.CacheStrategyFIFO:
		sort.Slice(ordered, func(i, j int) bool {
			return ordered[i].createdAt.Before(ordered[j].createdAt)
		})
	case models.CacheStrategyTTL:
		// Already-expired entries go first; the rest by age.
		now := time.Now()
		sort.Slice(ordered, func(i, j int) bool {
			ei, ej := ordered[i].expired(now), ordered[j].expired(now)
			if ei != ej {
				return ei
			}
			return ordered[i].createdAt.Before(ordered[j].createdAt)
		})
	default: // LRU
		sort.Slice(ordered, func(i, j int) bool {
			return ordered[i].lastAccessed.Before(ordered[j].lastAccessed)
		})
	}

	keys := make([]string, len(ordered))
	for i, e := range ordered {
		keys[i] = e.key
	}
	return keys
}

// compress gzips the payload and reports whether the result is worth keeping,
// requiring at least 10% savings.
func compress(data []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}

	packed := buf.Bytes()
	if float64(len(packed)) > float64(len(data))*(1-compressionMinSavings) {
		return nil, false
	}
	return packed, true
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
