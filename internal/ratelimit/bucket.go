package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements the token bucket algorithm for steady-state rate
// limiting. Tokens accumulate continuously at a fixed rate up to a cap and
// are consumed per request. Acquire never sleeps; it returns the residual
// wait so the owning Limiter can combine it with the burst-violation delay
// and suspend once.
type TokenBucket struct {
	mu         sync.Mutex
	rate       float64 // tokens per second
	capacity   float64
	tokens     float64
	lastUpdate time.Time
}

// NewTokenBucket creates a token bucket refilling at rate tokens per second.
// A non-positive capacity defaults to twice the rate (at least one token).
func NewTokenBucket(rate float64, capacity float64) *TokenBucket {
	if capacity <= 0 {
		capacity = rate * 2
		if capacity < 1 {
			capacity = 1
		}
	}
	return &TokenBucket{
		rate:       rate,
		capacity:   capacity,
		tokens:     capacity,
		lastUpdate: time.Now(),
	}
}

// Acquire takes n tokens from the bucket and returns the delay the caller
// must wait out before proceeding. When enough tokens are available the
// delay is zero; otherwise all remaining tokens are consumed and the delay
// covers the refill time for the shortfall. Refill and debit happen
// atomically under the bucket's lock, keeping 0 <= tokens <= capacity at
// every observation point.
func (tb *TokenBucket) Acquire(n int) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastUpdate).Seconds()
	tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.rate)
	tb.lastUpdate = now

	need := float64(n)
	if tb.tokens >= need {
		tb.tokens -= need
		return 0
	}

	shortfall := need - tb.tokens
	tb.tokens = 0
	return time.Duration(shortfall / tb.rate * float64(time.Second))
}

// Tokens returns the current token count, including refill accrued since the
// last acquisition. It does not mutate bucket state.
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	elapsed := time.Since(tb.lastUpdate).Seconds()
	return min(tb.capacity, tb.tokens+elapsed*tb.rate)
}

// Capacity returns the bucket's maximum token count.
func (tb *TokenBucket) Capacity() float64 {
	return tb.capacity
}
