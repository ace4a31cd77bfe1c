package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biocollect/internal/errs"
)

func testController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewController(cfg, nil, logger)
}

func TestDelaySchedule(t *testing.T) {
	c := testController(t, Config{
		MaxRetries:        3,
		InitialDelay:      time.Second,
		BackoffMultiplier: 2.0,
		MaxDelay:          5 * time.Second,
	})

	assert.Equal(t, time.Second, c.Delay(0))
	assert.Equal(t, 2*time.Second, c.Delay(1))
	assert.Equal(t, 4*time.Second, c.Delay(2))
	assert.Equal(t, 5*time.Second, c.Delay(3), "capped at max delay")
	assert.Equal(t, 5*time.Second, c.Delay(10))
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	c := testController(t, Config{
		MaxRetries:        3,
		InitialDelay:      time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          5 * time.Millisecond,
	})

	opErr := &errs.NetworkError{Message: "connection reset"}
	attempts := 0

	result, err := c.Execute(context.Background(), func(ctx context.Context) (any, error) {
		attempts++
		return nil, opErr
	}, "UniProt", "fetch_protein")

	assert.Nil(t, result)
	assert.Equal(t, 4, attempts, "initial attempt plus MaxRetries retries")
	assert.Same(t, opErr, err, "original error propagates unwrapped")
}

func TestExecuteSucceedsMidway(t *testing.T) {
	c := testController(t, Config{
		MaxRetries:        5,
		InitialDelay:      time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          5 * time.Millisecond,
	})

	attempts := 0
	result, err := c.Execute(context.Background(), func(ctx context.Context) (any, error) {
		attempts++
		if attempts < 3 {
			return nil, &errs.NetworkError{Message: "timeout"}
		}
		return "payload", nil
	}, "UniProt", "fetch_protein")

	require.NoError(t, err)
	assert.Equal(t, "payload", result)
	assert.Equal(t, 3, attempts, "no further attempts after success")
}

func TestExecuteNonRetryableShortCircuits(t *testing.T) {
	c := testController(t, Config{
		MaxRetries:        5,
		InitialDelay:      time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          5 * time.Millisecond,
	})

	opErr := &errs.APIError{Message: "not found", StatusCode: 404}
	attempts := 0

	_, err := c.Execute(context.Background(), func(ctx context.Context) (any, error) {
		attempts++
		return nil, opErr
	}, "InterPro", "fetch_entry")

	assert.Equal(t, 1, attempts, "skip-classified errors are not retried")
	assert.Same(t, opErr, err)
}

func TestExecuteRetriesThrottling(t *testing.T) {
	c := testController(t, Config{
		MaxRetries:        2,
		InitialDelay:      time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          5 * time.Millisecond,
	})

	attempts := 0
	_, err := c.Execute(context.Background(), func(ctx context.Context) (any, error) {
		attempts++
		return nil, &errs.APIError{Message: "too many requests", StatusCode: 429}
	}, "UniProt", "search")

	assert.Equal(t, 3, attempts, "429 is retryable")
	assert.Error(t, err)
}

func TestExecuteContextCancelledDuringBackoff(t *testing.T) {
	c := testController(t, Config{
		MaxRetries:        3,
		InitialDelay:      time.Hour,
		BackoffMultiplier: 2.0,
		MaxDelay:          time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Execute(ctx, func(ctx context.Context) (any, error) {
		attempts++
		return nil, &errs.NetworkError{Message: "timeout"}
	}, "UniProt", "fetch_protein")

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteCancelledContextNotRetried(t *testing.T) {
	c := testController(t, Config{
		MaxRetries:        3,
		InitialDelay:      time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	_, err := c.Execute(ctx, func(ctx context.Context) (any, error) {
		attempts++
		cancel()
		return nil, ctx.Err()
	}, "UniProt", "fetch_protein")

	assert.Equal(t, 1, attempts, "cancellation aborts the loop")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteCustomClassifier(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	classify := func(err error) errs.Classification {
		return errs.Classification{
			Category: errs.CategoryUnknown,
			Severity: errs.SeverityLow,
			Action:   errs.ActionFail,
		}
	}
	c := NewController(Config{
		MaxRetries:        3,
		InitialDelay:      time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          5 * time.Millisecond,
	}, classify, logger)

	attempts := 0
	_, err := c.Execute(context.Background(), func(ctx context.Context) (any, error) {
		attempts++
		return nil, errors.New("boom")
	}, "UniProt", "fetch_protein")

	assert.Equal(t, 1, attempts)
	assert.Error(t, err)
}
