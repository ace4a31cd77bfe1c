package respcache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Fetcher performs the actual upstream request when the cache misses.
// Implementations own their rate limiting and retry behavior.
type Fetcher interface {
	Fetch(ctx context.Context, apiName, endpoint string, params map[string]string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, apiName, endpoint string, params map[string]string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, apiName, endpoint string, params map[string]string) ([]byte, error) {
	return f(ctx, apiName, endpoint, params)
}

// ResponseTimes tracks average latency split by cache outcome.
type ResponseTimes struct {
	CachedRequests   int64         `json:"cached_requests"`
	UpstreamRequests int64         `json:"upstream_requests"`
	CachedAverage    time.Duration `json:"cached_average"`
	UpstreamAverage  time.Duration `json:"upstream_average"`
}

// CachedClient serves requests from the cache and falls through to the
// fetcher on a miss, storing the result. A nil cache disables caching
// entirely and every request goes upstream.
type CachedClient struct {
	cache   *Cache
	fetcher Fetcher
	logger  *slog.Logger

	mu            sync.Mutex
	cachedTotal   time.Duration
	cachedCount   int64
	upstreamTotal time.Duration
	upstreamCount int64
}

// NewCachedClient wraps a fetcher with the cache.
func NewCachedClient(cache *Cache, fetcher Fetcher, logger *slog.Logger) *CachedClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedClient{cache: cache, fetcher: fetcher, logger: logger}
}

// Do returns the response for a request, consulting the cache first. Upstream
// responses are cached before being returned, under the given TTL; a
// non-positive ttl falls back to the cache's per-API and default TTLs. The
// elapsed time of a failed fetch is still recorded before the error
// propagates.
func (c *CachedClient) Do(ctx context.Context, apiName, endpoint string, params map[string]string, ttl time.Duration) ([]byte, error) {
	start := time.Now()

	if c.cache != nil {
		if data, ok := c.cache.Get(apiName, endpoint, params); ok {
			c.record(true, time.Since(start))
			return data, nil
		}
	}

	data, err := c.fetcher.Fetch(ctx, apiName, endpoint, params)
	c.record(false, time.Since(start))
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.PutTTL(apiName, endpoint, params, data, ttl)
	}

	return data, nil
}

// Times returns the latency statistics accumulated so far.
func (c *CachedClient) Times() ResponseTimes {
	c.mu.Lock()
	defer c.mu.Unlock()

	times := ResponseTimes{
		CachedRequests:   c.cachedCount,
		UpstreamRequests: c.upstreamCount,
	}
	if c.cachedCount > 0 {
		times.CachedAverage = c.cachedTotal / time.Duration(c.cachedCount)
	}
	if c.upstreamCount > 0 {
		times.UpstreamAverage = c.upstreamTotal / time.Duration(c.upstreamCount)
	}
	return times
}

func (c *CachedClient) record(cached bool, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached {
		c.cachedCount++
		c.cachedTotal += elapsed
		return
	}
	c.upstreamCount++
	c.upstreamTotal += elapsed
}
