package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

// ViolationKind distinguishes soft warnings from hard burst violations.
type ViolationKind string

const (
	// ViolationSoft is emitted when the sustained rate approaches the
	// configured ceiling. Informational only; never blocks.
	ViolationSoft ViolationKind = "soft_limit"

	// ViolationBurst is emitted when the request count inside the burst
	// window reaches the burst ceiling.
	ViolationBurst ViolationKind = "burst_limit"
)

// Violation records a single rate limit violation. Immutable once created.
type Violation struct {
	Kind             ViolationKind `json:"kind"`
	Timestamp        time.Time     `json:"timestamp"`
	APIName          string        `json:"api_name"`
	CurrentRate      float64       `json:"current_rate"`
	LimitRate        float64       `json:"limit_rate"`
	DelayApplied     time.Duration `json:"delay_applied"`
	RequestsInWindow int           `json:"requests_in_window"`
}

// APIStats aggregates monitoring data for one API.
type APIStats struct {
	APIName          string                  `json:"api_name"`
	TotalRequests    int64                   `json:"total_requests"`
	TotalViolations  int64                   `json:"total_violations"`
	CurrentRate      float64                 `json:"current_rate"`
	AverageDelay     time.Duration           `json:"average_delay"`
	LastViolation    *Violation              `json:"last_violation,omitempty"`
	ViolationsByKind map[ViolationKind]int64 `json:"violations_by_kind"`
}

// Retention bounds for the monitor's in-memory state.
const (
	maxViolationHistory = 1000
	maxRequestHistory   = 1000

	// Smoothing factor for the exponential moving average of applied delay.
	delayEMAAlpha = 0.1
)

// Monitor aggregates statistics and violation history across all rate
// limiters. Safe for concurrent use.
type Monitor struct {
	mu         sync.Mutex
	enabled    bool
	stats      map[string]*APIStats
	violations []Violation
	history    map[string]*timeRing
	logger     *slog.Logger
}

// NewMonitor creates a monitor. When enabled is false all recording calls
// are no-ops.
func NewMonitor(enabled bool, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		enabled: enabled,
		stats:   make(map[string]*APIStats),
		history: make(map[string]*timeRing),
		logger:  logger,
	}
}

// RecordRequest records a completed acquisition for an API along with the
// total delay that was applied to it.
func (m *Monitor) RecordRequest(apiName string, delay time.Duration) {
	if !m.enabled {
		return
	}

	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	stats, ok := m.stats[apiName]
	if !ok {
		stats = &APIStats{
			APIName:          apiName,
			ViolationsByKind: make(map[ViolationKind]int64),
		}
		m.stats[apiName] = stats
	}

	stats.TotalRequests++
	stats.AverageDelay = time.Duration(
		(1-delayEMAAlpha)*float64(stats.AverageDelay) + delayEMAAlpha*float64(delay))

	ring, ok := m.history[apiName]
	if !ok {
		ring = newTimeRing(maxRequestHistory)
		m.history[apiName] = ring
	}
	ring.append(now)

	// Requests per second over the trailing minute.
	stats.CurrentRate = float64(ring.countSince(now.Add(-time.Minute))) / 60.0
}

// RecordViolation appends a violation to the bounded history and updates the
// per-API statistics.
func (m *Monitor) RecordViolation(v Violation) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.violations = append(m.violations, v)
	if len(m.violations) > maxViolationHistory {
		m.violations = m.violations[len(m.violations)-maxViolationHistory:]
	}

	if stats, ok := m.stats[v.APIName]; ok {
		stats.TotalViolations++
		last := v
		stats.LastViolation = &last
		stats.ViolationsByKind[v.Kind]++
	}

	m.logger.Warn("rate limit violation",
		"api_name", v.APIName,
		"kind", string(v.Kind),
		"current_rate", v.CurrentRate,
		"limit_rate", v.LimitRate,
		"delay_applied", v.DelayApplied,
		"requests_in_window", v.RequestsInWindow,
	)
}

// Stats returns a snapshot of per-API statistics. When apiName is empty,
// all APIs are included.
func (m *Monitor) Stats(apiName string) map[string]APIStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]APIStats)
	if apiName != "" {
		if stats, ok := m.stats[apiName]; ok {
			out[apiName] = snapshotStats(stats)
		} else {
			out[apiName] = APIStats{APIName: apiName, ViolationsByKind: map[ViolationKind]int64{}}
		}
		return out
	}

	for name, stats := range m.stats {
		out[name] = snapshotStats(stats)
	}
	return out
}

// RecentViolations returns violations recorded within the lookback window.
func (m *Monitor) RecentViolations(lookback time.Duration) []Violation {
	cutoff := time.Now().Add(-lookback)

	m.mu.Lock()
	defer m.mu.Unlock()

	var recent []Violation
	for _, v := range m.violations {
		if v.Timestamp.After(cutoff) {
			recent = append(recent, v)
		}
	}
	return recent
}

// ReportSummary summarizes monitoring state across all APIs.
type ReportSummary struct {
	TotalAPIs        int   `json:"total_apis"`
	TotalRequests    int64 `json:"total_requests"`
	TotalViolations  int64 `json:"total_violations"`
	RecentViolations int   `json:"recent_violations"`
}

// Report is the full monitoring report.
type Report struct {
	Timestamp time.Time           `json:"timestamp"`
	APIs      map[string]APIStats `json:"apis"`
	Summary   ReportSummary       `json:"summary"`
}

// GenerateReport builds a point-in-time monitoring report covering all APIs.
func (m *Monitor) GenerateReport() Report {
	recent := len(m.RecentViolations(time.Hour))

	m.mu.Lock()
	defer m.mu.Unlock()

	report := Report{
		Timestamp: time.Now(),
		APIs:      make(map[string]APIStats, len(m.stats)),
	}

	for name, stats := range m.stats {
		report.APIs[name] = snapshotStats(stats)
		report.Summary.TotalRequests += stats.TotalRequests
		report.Summary.TotalViolations += stats.TotalViolations
	}
	report.Summary.TotalAPIs = len(m.stats)
	report.Summary.RecentViolations = recent

	return report
}

func snapshotStats(stats *APIStats) APIStats {
	copied := *stats
	copied.ViolationsByKind = make(map[ViolationKind]int64, len(stats.ViolationsByKind))
	for k, v := range stats.ViolationsByKind {
		copied.ViolationsByKind[k] = v
	}
	if stats.LastViolation != nil {
		last := *stats.LastViolation
		copied.LastViolation = &last
	}
	return copied
}

// timeRing is a fixed-capacity ring of timestamps. Appending past capacity
// silently overwrites the oldest entry.
type timeRing struct {
	buf  []time.Time
	head int // index of oldest entry
	size int
}

func newTimeRing(capacity int) *timeRing {
	if capacity < 1 {
		capacity = 1
	}
	return &timeRing{buf: make([]time.Time, capacity)}
}

func (r *timeRing) append(t time.Time) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = t
		r.size++
		return
	}
	r.buf[r.head] = t
	r.head = (r.head + 1) % len(r.buf)
}

// countSince returns the number of entries strictly after the cutoff.
func (r *timeRing) countSince(cutoff time.Time) int {
	count := 0
	for i := 0; i < r.size; i++ {
		if r.buf[(r.head+i)%len(r.buf)].After(cutoff) {
			count++
		}
	}
	return count
}

func (r *timeRing) len() int { return r.size }
