package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "basic error",
			err:      New(ErrCodeConnectionFailed, "Connection failed"),
			expected: "[SNPT1001] ERROR: Connection failed",
		},
		{
			name: "error with suggestions",
			err: New(ErrCodeConnectionFailed, "Connection failed").
				WithSuggestions("Check network", "Verify credentials"),
			expected: "[SNPT1001] ERROR: Connection failed\nSuggestions:\n  1. Check network\n  2. Verify credentials",
		},
		{
			name:     "error with cause",
			err:      Wrap(fmt.Errorf("connection refused"), ErrCodeConnectionFailed, "Connection failed"),
			expected: "[SNPT1001] ERROR: Connection failed\nCaused by: connection refused",
		},
		{
			name:     "warning severity",
			err:      New(ErrCodeValidationFailed, "Bad input").WithSeverity(SeverityWarning),
			expected: "[SNPT6001] WARNING: Bad input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	baseErr := fmt.Errorf("database connection refused")

	appErr := Wrap(baseErr, ErrCodeConnectionFailed, "Failed to connect to warehouse")

	if appErr.Cause != baseErr {
		t.Error("Wrapped error should contain original error as cause")
	}
	if appErr.Code != ErrCodeConnectionFailed {
		t.Errorf("Expected code %s, got %s", ErrCodeConnectionFailed, appErr.Code)
	}
	if !errors.Is(appErr, baseErr) {
		t.Error("errors.Is should see through the wrapper")
	}
	if Wrap(nil, ErrCodeInternal, "nothing") != nil {
		t.Error("Wrapping nil should return nil")
	}
}

func TestWrapInheritsContext(t *testing.T) {
	inner := New(ErrCodeStoreWriteFailed, "Write failed").WithContext("entity", "ETL_WH")
	outer := Wrap(inner, ErrCodeIngestAborted, "Ingest aborted")

	if outer.Context["entity"] != "ETL_WH" {
		t.Errorf("Expected inherited context, got %v", outer.Context)
	}
}

func TestErrorIsComparesByCode(t *testing.T) {
	a := New(ErrCodeSnapshotMissing, "No snapshot yet")
	b := New(ErrCodeSnapshotMissing, "Different message")
	c := New(ErrCodeStoreReadFailed, "Read failed")

	if !errors.Is(a, b) {
		t.Error("Errors with the same code should match")
	}
	if errors.Is(a, c) {
		t.Error("Errors with different codes should not match")
	}
}

func TestConfigError(t *testing.T) {
	err := ConfigError("Unknown store engine", "loop.store.engine")

	if err.Code != ErrCodeConfigInvalid {
		t.Errorf("Expected %s, got %s", ErrCodeConfigInvalid, err.Code)
	}
	if err.Context["field"] != "loop.store.engine" {
		t.Errorf("Expected field context, got %v", err.Context)
	}
	if len(err.Suggestions) == 0 {
		t.Error("Config errors should carry suggestions")
	}
}

func TestValidationError(t *testing.T) {
	err := ValidationError("target_lag_minutes", 2000, "must be between 1 and 1440")

	want := "Validation failed for target_lag_minutes: must be between 1 and 1440"
	if err.Message != want {
		t.Errorf("Expected %q, got %q", want, err.Message)
	}
	if err.Severity != SeverityWarning {
		t.Errorf("Expected warning severity, got %s", err.Severity)
	}
	if !err.Recoverable {
		t.Error("Validation errors should be recoverable")
	}
}

func TestSourceError(t *testing.T) {
	cause := fmt.Errorf("view not accessible")
	err := SourceError("warehouse_telemetry", cause)

	if err.Code != ErrCodeSourceFailed {
		t.Errorf("Expected %s, got %s", ErrCodeSourceFailed, err.Code)
	}
	if !strings.Contains(err.Error(), "Source warehouse_telemetry failed") {
		t.Errorf("Unexpected message: %s", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Cause should be preserved")
	}
}

func TestSQLErrorCodeSelection(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected ErrorCode
	}{
		{"plain failure", "Statement execution failed", ErrCodeSQLExecution},
		{"permission denied", "permission denied for warehouse", ErrCodeSQLPermission},
		{"timeout", "Statement timeout exceeded", ErrCodeSQLTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SQLError(tt.message, "ALTER WAREHOUSE ETL_WH SUSPEND", fmt.Errorf("boom"))
			if err.Code != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, err.Code)
			}
		})
	}
}

func TestSQLErrorTruncatesQuery(t *testing.T) {
	long := strings.Repeat("SELECT 1 UNION ALL ", 50)
	err := SQLError("Statement execution failed", long, fmt.Errorf("boom"))

	query, ok := err.Context["query"].(string)
	if !ok {
		t.Fatal("Expected query context")
	}
	if len(query) != 203 || !strings.HasSuffix(query, "...") {
		t.Errorf("Expected truncated query, got %d chars", len(query))
	}
}

func TestRetryLogic(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	config := &RetryConfig{
		MaxRetries:   maxAttempts - 1,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       false,
		RetryableError: func(err error) bool {
			return true
		},
	}

	ctx := context.Background()

	err := Retry(ctx, config, func(ctx context.Context) error {
		attempts++
		if attempts < maxAttempts {
			return New(ErrCodeConnectionTimeout, "Timeout").AsRecoverable()
		}
		return nil
	})

	if err != nil {
		t.Error("Expected retry to succeed")
	}
	if attempts != maxAttempts {
		t.Errorf("Expected %d attempts, got %d", maxAttempts, attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	config := &RetryConfig{
		MaxRetries:     2,
		InitialDelay:   time.Millisecond,
		MaxDelay:       10 * time.Millisecond,
		Multiplier:     2.0,
		RetryableError: func(err error) bool { return true },
	}

	err := Retry(context.Background(), config, func(ctx context.Context) error {
		attempts++
		return New(ErrCodeConnectionTimeout, "Timeout")
	})

	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if GetErrorCode(err) != ErrCodeMaxRetriesExceeded {
		t.Errorf("Expected %s, got %s", ErrCodeMaxRetriesExceeded, GetErrorCode(err))
	}
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	config := &RetryConfig{
		MaxRetries:     3,
		InitialDelay:   time.Millisecond,
		RetryableError: func(err error) bool { return false },
	}

	original := New(ErrCodeConfigInvalid, "Bad config")
	err := Retry(context.Background(), config, func(ctx context.Context) error {
		attempts++
		return original
	})

	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
	if !errors.Is(err, original) {
		t.Error("Expected original error to be returned unchanged")
	}
}

func TestDefaultRetryConfigRetryability(t *testing.T) {
	config := DefaultRetryConfig()

	if !config.RetryableError(New(ErrCodeConnectionTimeout, "Timeout")) {
		t.Error("Connection timeouts should be retryable")
	}
	if !config.RetryableError(New(ErrCodeInternal, "Oops").AsRecoverable()) {
		t.Error("Recoverable errors should be retryable")
	}
	if config.RetryableError(New(ErrCodeConfigInvalid, "Bad config")) {
		t.Error("Config errors should not be retryable")
	}
}

func TestCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, 100*time.Millisecond)
	ctx := context.Background()

	// First failure
	err := cb.Execute(ctx, func() error {
		return fmt.Errorf("failure 1")
	})
	if err == nil {
		t.Error("Expected error")
	}

	// Second failure - should open circuit
	err = cb.Execute(ctx, func() error {
		return fmt.Errorf("failure 2")
	})
	if err == nil {
		t.Error("Expected error")
	}

	// Circuit should be open now
	err = cb.Execute(ctx, func() error {
		return nil
	})
	if err == nil {
		t.Error("Expected circuit breaker to be open")
	}
	if GetErrorCode(err) != ErrCodeServiceUnavailable {
		t.Errorf("Expected %s, got %s", ErrCodeServiceUnavailable, GetErrorCode(err))
	}

	// Wait for reset timeout
	time.Sleep(150 * time.Millisecond)

	// Circuit should be half-open, success should close it
	err = cb.Execute(ctx, func() error {
		return nil
	})
	if err != nil {
		t.Error("Expected success after reset")
	}

	if cb.GetState() != "closed" {
		t.Errorf("Expected circuit to be closed, got %s", cb.GetState())
	}
}

func TestCircuitBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 50*time.Millisecond)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return fmt.Errorf("failure") })
	if cb.GetState() != "open" {
		t.Fatalf("Expected open circuit, got %s", cb.GetState())
	}

	time.Sleep(75 * time.Millisecond)

	_ = cb.Execute(ctx, func() error { return fmt.Errorf("still failing") })
	if cb.GetState() != "open" {
		t.Errorf("Expected circuit to reopen, got %s", cb.GetState())
	}
}

func TestErrorCodes(t *testing.T) {
	err1 := New(ErrCodeConnectionFailed, "Test")
	if GetErrorCode(err1) != ErrCodeConnectionFailed {
		t.Error("Failed to extract error code from AppError")
	}

	err2 := fmt.Errorf("regular error")
	if GetErrorCode(err2) != ErrCodeInternal {
		t.Error("Should return internal error code for non-AppError")
	}

	wrapped := fmt.Errorf("outer: %w", New(ErrCodeSnapshotMissing, "No snapshot"))
	if GetErrorCode(wrapped) != ErrCodeSnapshotMissing {
		t.Error("Should unwrap to find the AppError code")
	}
}

func TestIsRecoverable(t *testing.T) {
	if !IsRecoverable(New(ErrCodeTimeout, "Timeout").AsRecoverable()) {
		t.Error("Expected recoverable")
	}
	if IsRecoverable(New(ErrCodeTimeout, "Timeout")) {
		t.Error("Expected not recoverable")
	}
	if IsRecoverable(fmt.Errorf("plain error")) {
		t.Error("Plain errors are not recoverable")
	}
}

func TestErrorSeverity(t *testing.T) {
	tests := []struct {
		severity ErrorSeverity
		err      *AppError
	}{
		{
			severity: SeverityCritical,
			err:      New(ErrCodeInternal, "Critical error").WithSeverity(SeverityCritical),
		},
		{
			severity: SeverityWarning,
			err:      New(ErrCodeValidationFailed, "Warning").WithSeverity(SeverityWarning),
		},
	}

	for _, tt := range tests {
		if tt.err.Severity != tt.severity {
			t.Errorf("Expected severity %s, got %s", tt.severity, tt.err.Severity)
		}
	}
}

// Benchmark tests
func BenchmarkErrorCreation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = New(ErrCodeConnectionFailed, "Connection failed").
			WithContext("host", "example.com").
			WithSuggestions("Check connection")
	}
}

func BenchmarkRetryExecution(b *testing.B) {
	config := &RetryConfig{
		MaxRetries:   0, // No retries for benchmark
		InitialDelay: 0,
		RetryableError: func(err error) bool {
			return false
		},
	}

	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Retry(ctx, config, func(ctx context.Context) error {
			return nil
		})
	}
}
