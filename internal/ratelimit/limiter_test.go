package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		RequestsPerSecond:          100,
		BurstLimit:                 3,
		BurstWindow:                10 * time.Second,
		ViolationInitialDelay:      time.Millisecond,
		ViolationBackoffMultiplier: 2.0,
		ViolationMaxDelay:          10 * time.Millisecond,
		SoftLimitThreshold:         0.8,
		EnableMonitoring:           true,
	}
}

func TestAcquireUnderLimits(t *testing.T) {
	l := NewLimiter("UniProt", testConfig(), nil, discardLogger())

	delay, err := l.Acquire(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), delay, "no delay within limits")
}

func TestBurstViolationDelaysAndRecords(t *testing.T) {
	monitor := NewMonitor(true, discardLogger())
	l := NewLimiter("UniProt", testConfig(), monitor, discardLogger())

	// Three requests fill the burst window.
	for i := 0; i < 3; i++ {
		_, err := l.Acquire(context.Background(), 1)
		require.NoError(t, err)
	}

	// The fourth hits the burst ceiling and is delayed.
	delay, err := l.Acquire(context.Background(), 1)
	require.NoError(t, err)
	assert.Greater(t, delay, time.Duration(0), "fourth back-to-back request must be delayed")

	violations := monitor.RecentViolations(time.Minute)
	require.NotEmpty(t, violations)

	var burst *Violation
	for i := range violations {
		if violations[i].Kind == ViolationBurst {
			burst = &violations[i]
			break
		}
	}
	require.NotNil(t, burst, "a hard violation must be recorded")
	assert.Equal(t, "UniProt", burst.APIName)
	assert.GreaterOrEqual(t, burst.RequestsInWindow, 3)
	assert.Greater(t, burst.DelayApplied, time.Duration(0))
}

func TestConsecutiveViolationBackoffEscalates(t *testing.T) {
	cfg := testConfig()
	l := NewLimiter("UniProt", cfg, nil, discardLogger())

	for i := 0; i < 3; i++ {
		_, err := l.Acquire(context.Background(), 1)
		require.NoError(t, err)
	}

	first := l.checkBurstLimit(time.Now())
	second := l.checkBurstLimit(time.Now())
	third := l.checkBurstLimit(time.Now())

	assert.Equal(t, cfg.ViolationInitialDelay, first)
	assert.Equal(t, 2*cfg.ViolationInitialDelay, second)
	assert.Equal(t, 4*cfg.ViolationInitialDelay, third)
}

func TestViolationDelayCapped(t *testing.T) {
	cfg := testConfig()
	l := NewLimiter("UniProt", cfg, nil, discardLogger())

	l.mu.Lock()
	l.consecutiveViolations = 20
	l.mu.Unlock()

	l.mu.Lock()
	delay := l.violationDelay()
	l.mu.Unlock()

	assert.Equal(t, cfg.ViolationMaxDelay, delay)
}

func TestViolationRecoveryAfterQuietWindow(t *testing.T) {
	cfg := testConfig()
	cfg.BurstWindow = 20 * time.Millisecond
	l := NewLimiter("UniProt", cfg, nil, discardLogger())

	for i := 0; i < 3; i++ {
		_, err := l.Acquire(context.Background(), 1)
		require.NoError(t, err)
	}
	require.Greater(t, l.checkBurstLimit(time.Now()), time.Duration(0))

	// A full quiet window resets the consecutive counter.
	later := time.Now().Add(2 * cfg.BurstWindow)
	assert.Equal(t, time.Duration(0), l.checkBurstLimit(later))

	l.mu.Lock()
	violations := l.consecutiveViolations
	l.mu.Unlock()
	assert.Equal(t, 0, violations)
}

func TestSoftLimitViolationEmitted(t *testing.T) {
	cfg := testConfig()
	cfg.BurstLimit = 1000
	// Soft limit of 0.1 rps; the trailing-minute rate crosses it after seven
	// requests.
	cfg.SoftLimitThreshold = 0.001
	monitor := NewMonitor(true, discardLogger())
	l := NewLimiter("UniProt", cfg, monitor, discardLogger())

	for i := 0; i < 10; i++ {
		delay, err := l.Acquire(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), delay, "soft limit never blocks")
	}

	var soft *Violation
	violations := monitor.RecentViolations(time.Minute)
	for i := range violations {
		if violations[i].Kind == ViolationSoft {
			soft = &violations[i]
			break
		}
	}
	require.NotNil(t, soft, "a soft violation must be recorded")
	assert.Equal(t, "UniProt", soft.APIName)
	assert.Zero(t, soft.DelayApplied)
	assert.Greater(t, soft.CurrentRate, cfg.RequestsPerSecond*cfg.SoftLimitThreshold)
}

func TestAcquireCancelledDuringViolationDelay(t *testing.T) {
	cfg := testConfig()
	cfg.ViolationInitialDelay = time.Hour
	cfg.ViolationMaxDelay = time.Hour
	l := NewLimiter("UniProt", cfg, nil, discardLogger())

	for i := 0; i < 3; i++ {
		_, err := l.Acquire(context.Background(), 1)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	before := l.Stats().TotalRequests
	_, err := l.Acquire(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, before, l.Stats().TotalRequests, "cancelled acquisition records no request")
}

func TestStatsSnapshot(t *testing.T) {
	l := NewLimiter("InterPro", testConfig(), nil, discardLogger())

	for i := 0; i < 2; i++ {
		_, err := l.Acquire(context.Background(), 1)
		require.NoError(t, err)
	}

	stats := l.Stats()
	assert.Equal(t, "InterPro", stats.APIName)
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, 100.0, stats.RequestsPerSecond)
	assert.Equal(t, 3, stats.BurstLimit)
}
