package errs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "connection reset" }
func (fakeNetError) Timeout() bool   { return true }
func (fakeNetError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category Category
		severity Severity
		action   Action
	}{
		{
			name:     "nil error",
			err:      nil,
			category: CategoryUnknown,
			severity: SeverityLow,
			action:   ActionLogAndContinue,
		},
		{
			name:     "context cancelled",
			err:      context.Canceled,
			category: CategoryNetwork,
			severity: SeverityMedium,
			action:   ActionFail,
		},
		{
			name:     "context deadline exceeded",
			err:      fmt.Errorf("fetch: %w", context.DeadlineExceeded),
			category: CategoryNetwork,
			severity: SeverityMedium,
			action:   ActionFail,
		},
		{
			name:     "config error",
			err:      &ConfigError{Message: "missing DSN"},
			category: CategoryConfiguration,
			severity: SeverityCritical,
			action:   ActionFail,
		},
		{
			name:     "api throttling",
			err:      &APIError{Message: "too many requests", StatusCode: 429},
			category: CategoryAPI,
			severity: SeverityMedium,
			action:   ActionRetry,
		},
		{
			name:     "api not found",
			err:      &APIError{Message: "not found", StatusCode: 404},
			category: CategoryAPI,
			severity: SeverityHigh,
			action:   ActionSkip,
		},
		{
			name:     "api server error",
			err:      &APIError{Message: "bad gateway", StatusCode: 502},
			category: CategoryAPI,
			severity: SeverityMedium,
			action:   ActionRetry,
		},
		{
			name:     "network error",
			err:      &NetworkError{Message: "dial failed"},
			category: CategoryNetwork,
			severity: SeverityMedium,
			action:   ActionRetry,
		},
		{
			name:     "data error",
			err:      &DataError{Message: "truncated payload"},
			category: CategoryData,
			severity: SeverityHigh,
			action:   ActionSkip,
		},
		{
			name:     "validation error",
			err:      &ValidationError{Message: "bad accession"},
			category: CategoryValidation,
			severity: SeverityHigh,
			action:   ActionSkip,
		},
		{
			name:     "non-critical database error",
			err:      &DatabaseError{Message: "lock timeout"},
			category: CategoryDatabase,
			severity: SeverityHigh,
			action:   ActionRetry,
		},
		{
			name:     "critical database error",
			err:      &DatabaseError{Message: "corrupt schema", Critical: true},
			category: CategoryDatabase,
			severity: SeverityCritical,
			action:   ActionFail,
		},
		{
			name:     "stdlib net error",
			err:      fakeNetError{},
			category: CategoryNetwork,
			severity: SeverityMedium,
			action:   ActionRetry,
		},
		{
			name:     "json syntax error",
			err:      jsonSyntaxError(t),
			category: CategoryData,
			severity: SeverityHigh,
			action:   ActionSkip,
		},
		{
			name:     "json type error",
			err:      jsonTypeError(t),
			category: CategoryData,
			severity: SeverityHigh,
			action:   ActionSkip,
		},
		{
			name:     "file not found",
			err:      fmt.Errorf("load config: %w", os.ErrNotExist),
			category: CategoryConfiguration,
			severity: SeverityCritical,
			action:   ActionFail,
		},
		{
			name:     "unknown error",
			err:      errors.New("something else"),
			category: CategoryUnknown,
			severity: SeverityMedium,
			action:   ActionLogAndContinue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.err)
			assert.Equal(t, tt.category, c.Category)
			assert.Equal(t, tt.severity, c.Severity)
			assert.Equal(t, tt.action, c.Action)
		})
	}
}

func jsonSyntaxError(t *testing.T) error {
	t.Helper()
	var v map[string]any
	err := json.Unmarshal([]byte("{not json"), &v)
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("expected syntax error, got %v", err)
	}
	return err
}

func jsonTypeError(t *testing.T) error {
	t.Helper()
	var v struct{ N int }
	err := json.Unmarshal([]byte(`{"N": "string"}`), &v)
	var typeErr *json.UnmarshalTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("expected type error, got %v", err)
	}
	return err
}

func TestClassifyWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("collect entry PF00069: %w", &APIError{Message: "not found", StatusCode: 404})
	c := Classify(wrapped)
	assert.Equal(t, ActionSkip, c.Action)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Classification{Action: ActionRetry}.Retryable())
	assert.True(t, Classification{Action: ActionFallback}.Retryable())
	assert.False(t, Classification{Action: ActionSkip}.Retryable())
	assert.False(t, Classification{Action: ActionFail}.Retryable())
	assert.False(t, Classification{Action: ActionLogAndContinue}.Retryable())
}

func TestErrorMessages(t *testing.T) {
	inner := errors.New("connection refused")

	netErr := &NetworkError{Message: "dial uniprot", Err: inner}
	assert.Contains(t, netErr.Error(), "network error")
	assert.Contains(t, netErr.Error(), "connection refused")
	assert.ErrorIs(t, netErr, inner)

	apiErr := &APIError{Message: "bad gateway", StatusCode: 502}
	assert.Contains(t, apiErr.Error(), "status 502")

	dbErr := &DatabaseError{Message: "insert failed", Err: inner}
	assert.ErrorIs(t, dbErr, inner)
}
