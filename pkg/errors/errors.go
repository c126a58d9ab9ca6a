package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Connection errors (1xxx)
	ErrCodeConnectionFailed     ErrorCode = "SNPT1001"
	ErrCodeConnectionTimeout    ErrorCode = "SNPT1002"
	ErrCodeAuthenticationFailed ErrorCode = "SNPT1003"
	ErrCodeNetworkUnavailable   ErrorCode = "SNPT1004"
	ErrCodeInitialization       ErrorCode = "SNPT1005"
	ErrCodeUnsupportedDriver    ErrorCode = "SNPT1006"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound   ErrorCode = "SNPT2001"
	ErrCodeConfigInvalid    ErrorCode = "SNPT2002"
	ErrCodeConfigMissing    ErrorCode = "SNPT2003"
	ErrCodeConfigPermission ErrorCode = "SNPT2004"
	ErrCodeRulepackInvalid  ErrorCode = "SNPT2005"

	// Store errors (3xxx)
	ErrCodeStoreOpenFailed  ErrorCode = "SNPT3001"
	ErrCodeStoreReadFailed  ErrorCode = "SNPT3002"
	ErrCodeStoreWriteFailed ErrorCode = "SNPT3003"
	ErrCodeStoreCorrupted   ErrorCode = "SNPT3004"
	ErrCodeSnapshotMissing  ErrorCode = "SNPT3005"

	// SQL execution errors (4xxx)
	ErrCodeSQLSyntax         ErrorCode = "SNPT4001"
	ErrCodeSQLPermission     ErrorCode = "SNPT4002"
	ErrCodeSQLTimeout        ErrorCode = "SNPT4003"
	ErrCodeSQLObjectNotFound ErrorCode = "SNPT4004"
	ErrCodeSQLExecution      ErrorCode = "SNPT4005"
	ErrCodeNoResults         ErrorCode = "SNPT4006"
	ErrCodeUnknown           ErrorCode = "SNPT4999"

	// Ingestion errors (5xxx)
	ErrCodeSourceFailed     ErrorCode = "SNPT5001"
	ErrCodeIngestAborted    ErrorCode = "SNPT5002"
	ErrCodeIntakeSyncFailed ErrorCode = "SNPT5003"

	// Validation errors (6xxx)
	ErrCodeValidationFailed ErrorCode = "SNPT6001"
	ErrCodeInvalidInput     ErrorCode = "SNPT6002"
	ErrCodeRequiredField    ErrorCode = "SNPT6003"
	ErrCodeUserInput        ErrorCode = "SNPT6004"
	ErrCodeNotReadOnly      ErrorCode = "SNPT6005"

	// Security errors (7xxx)
	ErrCodeSecurityViolation  ErrorCode = "SNPT7001"
	ErrCodeEncryptionFailed   ErrorCode = "SNPT7002"
	ErrCodeCredentialsExpired ErrorCode = "SNPT7003"

	// Audit errors (8xxx)
	ErrCodeAuditAppendFailed    ErrorCode = "SNPT8001"
	ErrCodeIntegrityCheckFailed ErrorCode = "SNPT8002"
	ErrCodeNotFound             ErrorCode = "SNPT8003"
	ErrCodeInvalidState         ErrorCode = "SNPT8004"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "SNPT9001"
	ErrCodeTimeout            ErrorCode = "SNPT9002"
	ErrCodeResourceExhausted  ErrorCode = "SNPT9003"
	ErrCodeServiceUnavailable ErrorCode = "SNPT9004"
	ErrCodeResultParsing      ErrorCode = "SNPT9005"
	ErrCodeMaxRetriesExceeded ErrorCode = "SNPT9006"
	ErrCodeStageBusy          ErrorCode = "SNPT9007"
	ErrCodeFilePermission     ErrorCode = "SNPT9008"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // System failure, requires immediate attention
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed, but system continues
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"     // Informational, not an error
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:        code,
		Message:     message,
		Severity:    SeverityError,
		Context:     make(map[string]interface{}),
		Stack:       captureStack(),
		Timestamp:   time.Now(),
		Recoverable: false,
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// If wrapping another AppError, inherit its context
	if ae, ok := err.(*AppError); ok {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

// captureStack captures the current stack trace
func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// ConnectionError creates a connection-related error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSeverity(SeverityError).
		WithSuggestions(
			"Check your network connection",
			"Verify the warehouse endpoint is accessible",
			"Check firewall settings",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'snowpilot setup' to reconfigure",
			"Refer to the configuration documentation",
		)
}

// SQLError creates an SQL execution error
func SQLError(message string, query string, cause error) *AppError {
	err := Wrap(cause, ErrCodeSQLExecution, message).
		WithContext("query", truncateString(query, 200))

	if strings.Contains(message, "permission") || strings.Contains(message, "access denied") {
		err.Code = ErrCodeSQLPermission
		_ = err.WithSuggestions(
			"Check user permissions in the warehouse",
			"Verify the role has required privileges",
			"Contact your warehouse administrator",
		)
	} else if strings.Contains(message, "timeout") {
		err.Code = ErrCodeSQLTimeout
		_ = err.WithSuggestions(
			"Optimize the statement for better performance",
			"Increase the statement timeout setting",
			"Check the warehouse size",
		)
	}

	return err
}

// ValidationError creates a validation error
func ValidationError(field string, value interface{}, reason string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("Validation failed for %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value).
		WithSeverity(SeverityWarning).
		AsRecoverable()
}

// SourceError creates an ingestion source error
func SourceError(source string, cause error) *AppError {
	return Wrap(cause, ErrCodeSourceFailed, fmt.Sprintf("Source %s failed", source)).
		WithContext("source", source).
		WithSuggestions(
			"Check the source connection settings",
			"Verify the telemetry views are accessible to the configured role",
		)
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
