// Package ratelimit governs outbound API traffic with a per-API token bucket
// for steady-state throughput and a sliding-window burst detector with
// exponential backoff for violation handling. A process-wide Manager keys
// limiters by API name and aggregates statistics through a shared Monitor.
package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Config holds the rate limiting parameters for one API. Immutable after
// limiter construction.
type Config struct {
	RequestsPerSecond float64
	BurstLimit        int
	BurstWindow       time.Duration

	// Exponential backoff applied on consecutive burst violations.
	ViolationInitialDelay      time.Duration
	ViolationBackoffMultiplier float64
	ViolationMaxDelay          time.Duration

	// SoftLimitThreshold is the fraction of the rate ceiling at which a
	// soft (warning) violation is emitted.
	SoftLimitThreshold float64

	EnableMonitoring bool
	EnableReporting  bool
}

// LimiterStats is a point-in-time snapshot of one limiter's counters.
type LimiterStats struct {
	APIName               string        `json:"api_name"`
	TotalRequests         int64         `json:"total_requests"`
	AverageDelay          time.Duration `json:"average_delay"`
	CurrentRate           float64       `json:"current_rate"`
	ConsecutiveViolations int           `json:"consecutive_violations"`
	CurrentTokens         float64       `json:"current_tokens"`
	RequestsPerSecond     float64       `json:"requests_per_second"`
	BurstLimit            int           `json:"burst_limit"`
	BurstWindow           time.Duration `json:"burst_window"`
}

// Limiter rate-limits one API. Acquire must be called before every outbound
// request; it applies the burst-violation delay and the token-bucket delay
// sequentially, each at its own suspension point.
type Limiter struct {
	apiName string
	cfg     Config
	bucket  *TokenBucket
	monitor *Monitor
	logger  *slog.Logger

	mu                    sync.Mutex
	window                *timeRing
	consecutiveViolations int
	lastViolation         time.Time
	totalRequests         int64
	totalDelay            time.Duration
}

// NewLimiter creates a limiter for the named API. The monitor may be nil.
func NewLimiter(apiName string, cfg Config, monitor *Monitor, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		apiName: apiName,
		cfg:     cfg,
		bucket:  NewTokenBucket(cfg.RequestsPerSecond, 0),
		monitor: monitor,
		logger:  logger,
		window:  newTimeRing(cfg.BurstLimit * 2),
	}
}

// Acquire obtains permission to make tokens requests against the API,
// sleeping as required by the burst governor and the token bucket. It
// returns the total delay that was applied. The waits are context-aware;
// on cancellation the context error is returned and no request slot is
// recorded.
func (l *Limiter) Acquire(ctx context.Context, tokens int) (time.Duration, error) {
	now := time.Now()
	var totalDelay time.Duration

	// Burst ceiling first: a violation parks the caller before the bucket
	// is even consulted.
	burstDelay := l.checkBurstLimit(now)
	if burstDelay > 0 {
		totalDelay += burstDelay
		if err := sleepContext(ctx, burstDelay); err != nil {
			return totalDelay, err
		}
	}

	tokenDelay := l.bucket.Acquire(tokens)
	if tokenDelay > 0 {
		totalDelay += tokenDelay
		if err := sleepContext(ctx, tokenDelay); err != nil {
			return totalDelay, err
		}
	}

	l.checkSoftLimit()

	l.mu.Lock()
	l.window.append(now)
	l.totalRequests++
	l.totalDelay += totalDelay
	l.mu.Unlock()

	if l.monitor != nil {
		l.monitor.RecordRequest(l.apiName, totalDelay)
	}

	if totalDelay > 100*time.Millisecond {
		l.logger.Debug("rate limiting delay applied",
			"api_name", l.apiName,
			"delay", totalDelay,
			"tokens_requested", tokens,
			"current_rate", l.currentRate(),
		)
	}

	return totalDelay, nil
}

// checkBurstLimit counts requests inside the burst window and, when the
// ceiling is met, computes the exponential violation delay. The
// consecutive-violation counter recovers to zero once a full window passes
// without a violation.
func (l *Limiter) checkBurstLimit(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	windowStart := now.Add(-l.cfg.BurstWindow)
	requestsInWindow := l.window.countSince(windowStart)

	if requestsInWindow >= l.cfg.BurstLimit {
		l.consecutiveViolations++
		delay := l.violationDelay()
		l.lastViolation = now

		if l.monitor != nil {
			l.monitor.RecordViolation(Violation{
				Kind:             ViolationBurst,
				Timestamp:        now,
				APIName:          l.apiName,
				CurrentRate:      l.currentRateLocked(now),
				LimitRate:        l.cfg.RequestsPerSecond,
				DelayApplied:     delay,
				RequestsInWindow: requestsInWindow,
			})
		}

		return delay
	}

	if !l.lastViolation.IsZero() && now.Sub(l.lastViolation) > l.cfg.BurstWindow {
		l.consecutiveViolations = 0
	}

	return 0
}

// checkSoftLimit emits a soft violation when the trailing one-minute rate
// exceeds the configured fraction of the ceiling. Never blocks.
func (l *Limiter) checkSoftLimit() {
	rate := l.currentRate()
	softLimit := l.cfg.RequestsPerSecond * l.cfg.SoftLimitThreshold

	if rate > softLimit && l.monitor != nil {
		l.monitor.RecordViolation(Violation{
			Kind:         ViolationSoft,
			Timestamp:    time.Now(),
			APIName:      l.apiName,
			CurrentRate:  rate,
			LimitRate:    l.cfg.RequestsPerSecond,
			DelayApplied: 0,
		})
	}
}

// violationDelay computes the exponential backoff for the current
// consecutive-violation count. Caller holds l.mu.
func (l *Limiter) violationDelay() time.Duration {
	delay := float64(l.cfg.ViolationInitialDelay) *
		math.Pow(l.cfg.ViolationBackoffMultiplier, float64(l.consecutiveViolations-1))
	return min(time.Duration(delay), l.cfg.ViolationMaxDelay)
}

func (l *Limiter) currentRate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentRateLocked(time.Now())
}

// currentRateLocked returns requests per second over the trailing minute.
// Caller holds l.mu.
func (l *Limiter) currentRateLocked(now time.Time) float64 {
	if l.window.len() == 0 {
		return 0
	}
	return float64(l.window.countSince(now.Add(-time.Minute))) / 60.0
}

// Stats returns a snapshot of the limiter's counters and configuration.
func (l *Limiter) Stats() LimiterStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	avgDelay := time.Duration(0)
	if l.totalRequests > 0 {
		avgDelay = l.totalDelay / time.Duration(l.totalRequests)
	}

	return LimiterStats{
		APIName:               l.apiName,
		TotalRequests:         l.totalRequests,
		AverageDelay:          avgDelay,
		CurrentRate:           l.currentRateLocked(time.Now()),
		ConsecutiveViolations: l.consecutiveViolations,
		CurrentTokens:         l.bucket.Tokens(),
		RequestsPerSecond:     l.cfg.RequestsPerSecond,
		BurstLimit:            l.cfg.BurstLimit,
		BurstWindow:           l.cfg.BurstWindow,
	}
}

// sleepContext waits for the duration or until the context is cancelled,
// whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
