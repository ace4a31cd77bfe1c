// Package errs defines the error taxonomy for data collection operations and
// a classifier that maps failures to a category, severity, and recommended
// action. The retry controller consults the classification to decide whether
// a failure is worth retrying.
package errs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
)

// Category identifies the kind of failure.
type Category string

const (
	CategoryNetwork       Category = "network"
	CategoryAPI           Category = "api"
	CategoryData          Category = "data"
	CategoryValidation    Category = "validation"
	CategoryDatabase      Category = "database"
	CategoryConfiguration Category = "configuration"
	CategoryUnknown       Category = "unknown"
)

// Severity grades how serious a failure is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Action is the recommended handling for a classified failure.
type Action string

const (
	ActionRetry          Action = "retry"
	ActionSkip           Action = "skip"
	ActionFail           Action = "fail"
	ActionFallback       Action = "fallback"
	ActionLogAndContinue Action = "log_and_continue"
)

// Classification is the result of classifying an error.
type Classification struct {
	Category Category
	Severity Severity
	Action   Action
}

// Retryable reports whether the recommended action permits another attempt.
func (c Classification) Retryable() bool {
	return c.Action == ActionRetry || c.Action == ActionFallback
}

// NetworkError indicates a connectivity or timeout failure reaching an
// external API.
type NetworkError struct {
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("network error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("network error: %s", e.Message)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError indicates the remote service rejected or failed the request.
type APIError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: %s", e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// DataError indicates a malformed or unprocessable response payload.
type DataError struct {
	Message string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("data error: %s", e.Message)
}

func (e *DataError) Unwrap() error { return e.Err }

// ValidationError indicates collected data failed domain validation.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DatabaseError indicates a storage operation failure.
type DatabaseError struct {
	Message  string
	Critical bool
	Err      error
}

func (e *DatabaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("database error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("database error: %s", e.Message)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// ConfigError indicates invalid or missing configuration. Always fatal.
type ConfigError struct {
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Classify inspects an error chain and returns its category, severity, and
// recommended action. Context cancellation is classified as fail so callers
// propagate it immediately.
func Classify(err error) Classification {
	if err == nil {
		return Classification{CategoryUnknown, SeverityLow, ActionLogAndContinue}
	}

	// Cancellation is never retried.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Classification{CategoryNetwork, SeverityMedium, ActionFail}
	}

	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return Classification{CategoryConfiguration, SeverityCritical, ActionFail}
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		// Client errors cannot resolve by retrying, with the exception of 429
		// which signals throttling.
		if apiErr.StatusCode == 429 {
			return Classification{CategoryAPI, SeverityMedium, ActionRetry}
		}
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return Classification{CategoryAPI, SeverityHigh, ActionSkip}
		}
		return Classification{CategoryAPI, SeverityMedium, ActionRetry}
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return Classification{CategoryNetwork, SeverityMedium, ActionRetry}
	}

	var dataErr *DataError
	if errors.As(err, &dataErr) {
		return Classification{CategoryData, SeverityHigh, ActionSkip}
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return Classification{CategoryValidation, SeverityHigh, ActionSkip}
	}

	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		if dbErr.Critical {
			return Classification{CategoryDatabase, SeverityCritical, ActionFail}
		}
		return Classification{CategoryDatabase, SeverityHigh, ActionRetry}
	}

	// Standard library error types.
	var netOpErr net.Error
	if errors.As(err, &netOpErr) {
		return Classification{CategoryNetwork, SeverityMedium, ActionRetry}
	}

	var jsonSyntaxErr *json.SyntaxError
	var jsonTypeErr *json.UnmarshalTypeError
	if errors.As(err, &jsonSyntaxErr) || errors.As(err, &jsonTypeErr) {
		return Classification{CategoryData, SeverityHigh, ActionSkip}
	}

	if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return Classification{CategoryConfiguration, SeverityCritical, ActionFail}
	}

	return Classification{CategoryUnknown, SeverityMedium, ActionLogAndContinue}
}
