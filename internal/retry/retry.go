// Package retry wraps arbitrary operations in a bounded retry loop with
// exponential backoff. An error classifier decides whether a failure is
// worth another attempt; non-retryable failures propagate immediately
// without consuming the remaining budget.
package retry

import (
	"context"
	"log/slog"
	"math"
	"time"

	"biocollect/internal/errs"
)

// Config holds retry loop parameters.
type Config struct {
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
}

// Operation is a caller-supplied unit of work. It performs the actual call
// (including its own rate limiter acquisition) and returns the result.
type Operation func(ctx context.Context) (any, error)

// Classifier maps a failure to its recommended handling. The default is
// errs.Classify.
type Classifier func(err error) errs.Classification

// Controller executes operations with retry logic. Safe for concurrent use;
// each Execute call keeps its own attempt state.
type Controller struct {
	cfg      Config
	classify Classifier
	logger   *slog.Logger
}

// NewController creates a retry controller. A nil classifier defaults to
// errs.Classify.
func NewController(cfg Config, classify Classifier, logger *slog.Logger) *Controller {
	if classify == nil {
		classify = errs.Classify
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{cfg: cfg, classify: classify, logger: logger}
}

// Delay returns the backoff delay for a 0-indexed attempt:
// min(initial * multiplier^attempt, max).
func (c *Controller) Delay(attempt int) time.Duration {
	delay := float64(c.cfg.InitialDelay) * math.Pow(c.cfg.BackoffMultiplier, float64(attempt))
	if delay > float64(c.cfg.MaxDelay) || delay < 0 {
		return c.cfg.MaxDelay
	}
	return time.Duration(delay)
}

// Execute runs the operation, retrying classified-retryable failures up to
// MaxRetries times with exponential backoff. The original error is returned
// unwrapped once the budget is exhausted. Context cancellation aborts the
// loop immediately, both between attempts and during a backoff wait.
//
// database and operationName identify the call for logging only.
func (c *Controller) Execute(ctx context.Context, op Operation, database, operationName string) (any, error) {
	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		// Never retry past cancellation.
		if ctx.Err() != nil {
			return nil, err
		}

		if attempt == c.cfg.MaxRetries {
			c.logFinalFailure(database, operationName, err)
			return nil, err
		}

		classification := c.classify(err)
		if !classification.Retryable() {
			c.logger.Info("error classified as non-retryable",
				"database", database,
				"operation", operationName,
				"error_category", string(classification.Category),
				"recommended_action", string(classification.Action),
				"attempt", attempt+1,
			)
			return nil, err
		}

		delay := c.Delay(attempt)
		c.logRetryAttempt(database, operationName, attempt+1, err, delay, classification)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Controller) logRetryAttempt(database, operationName string, attempt int, err error, delay time.Duration, classification errs.Classification) {
	c.logger.Warn("retrying operation",
		"database", database,
		"operation", operationName,
		"attempt", attempt,
		"max_retries", c.cfg.MaxRetries,
		"delay", delay,
		"error_category", string(classification.Category),
		"recommended_action", string(classification.Action),
		"error", err,
	)
}

func (c *Controller) logFinalFailure(database, operationName string, err error) {
	c.logger.Error("operation failed after all retries",
		"database", database,
		"operation", operationName,
		"max_retries", c.cfg.MaxRetries,
		"error", err,
		"final_failure", true,
	)
}
