package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrUnknownAPI is returned when acquiring for an API that was never
// registered with the manager.
var ErrUnknownAPI = errors.New("no rate limiter configured for API")

// ErrReportingDisabled is returned by GenerateReport when reporting was not
// enabled at construction time.
var ErrReportingDisabled = errors.New("rate limit reporting not enabled")

// Manager is the process-wide registry of per-API rate limiters sharing one
// Monitor. Construct a single Manager at the composition root and inject it
// into every API client.
type Manager struct {
	mu        sync.RWMutex
	limiters  map[string]*Limiter
	monitor   *Monitor
	reporting bool
	logger    *slog.Logger
}

// NewManager creates a rate limit manager. The monitor is shared by all
// limiters created through it.
func NewManager(enableMonitoring, enableReporting bool, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	var monitor *Monitor
	if enableMonitoring {
		monitor = NewMonitor(true, logger)
	}

	return &Manager{
		limiters:  make(map[string]*Limiter),
		monitor:   monitor,
		reporting: enableReporting,
		logger:    logger,
	}
}

// CreateLimiter creates a rate limiter for an API, or returns the existing
// one if the API is already registered.
func (m *Manager) CreateLimiter(apiName string, cfg Config) *Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limiter, ok := m.limiters[apiName]; ok {
		return limiter
	}

	limiter := NewLimiter(apiName, cfg, m.monitor, m.logger)
	m.limiters[apiName] = limiter

	m.logger.Info("created rate limiter",
		"api_name", apiName,
		"requests_per_second", cfg.RequestsPerSecond,
		"burst_limit", cfg.BurstLimit,
	)

	return limiter
}

// Limiter returns the registered limiter for an API, if any.
func (m *Manager) Limiter(apiName string) (*Limiter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limiter, ok := m.limiters[apiName]
	return limiter, ok
}

// Acquire obtains permission for a request against the named API. It fails
// if no limiter was registered for the API.
func (m *Manager) Acquire(ctx context.Context, apiName string, tokens int) (time.Duration, error) {
	limiter, ok := m.Limiter(apiName)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAPI, apiName)
	}

	return limiter.Acquire(ctx, tokens)
}

// AllStats returns per-limiter statistics keyed by API name.
func (m *Manager) AllStats() map[string]LimiterStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]LimiterStats, len(m.limiters))
	for apiName, limiter := range m.limiters {
		stats[apiName] = limiter.Stats()
	}
	return stats
}

// GenerateReport builds the monitoring report across all APIs.
func (m *Manager) GenerateReport() (Report, error) {
	if !m.reporting || m.monitor == nil {
		return Report{}, ErrReportingDisabled
	}

	return m.monitor.GenerateReport(), nil
}

// RecentViolations returns violations across all APIs within the lookback
// window. Returns nil when monitoring is disabled.
func (m *Manager) RecentViolations(lookback time.Duration) []Violation {
	if m.monitor == nil {
		return nil
	}

	return m.monitor.RecentViolations(lookback)
}

// Monitor returns the shared monitor, or nil when monitoring is disabled.
func (m *Manager) Monitor() *Monitor {
	return m.monitor
}
