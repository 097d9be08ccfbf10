// Package errors provides the tagged error kinds shared by the intake pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidation            ErrorCode = "VALIDATION_ERROR"
	ErrCodeCooldownActive        ErrorCode = "COOLDOWN_ACTIVE"
	ErrCodeSessionTimeout        ErrorCode = "SESSION_TIMEOUT"
	ErrCodeScoringUnavailable    ErrorCode = "SCORING_UNAVAILABLE"
	ErrCodeOnboardingStepFailure ErrorCode = "ONBOARDING_STEP_FAILURE"
	ErrCodePersistenceFailure    ErrorCode = "PERSISTENCE_FAILURE"

	ErrCodeDuplicateSubmission ErrorCode = "DUPLICATE_SUBMISSION"
	ErrCodeNotSessionOwner     ErrorCode = "NOT_SESSION_OWNER"

	ErrCodeDatabaseConnectionFailed      ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeNotificationSendFailed        ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeExternalService               ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout                       ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal                      ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata sets a metadata key and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func detailsOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError reports an answer that breaks a length or required rule.
func NewValidationError(questionCode, details string) *StandardError {
	return newError(ErrCodeValidation, "Answer failed validation", details, false, nil).
		WithMetadata("questionCode", questionCode)
}

// NewMinLengthError is the validation error for an answer below the minimum.
func NewMinLengthError(questionCode string, min int) *StandardError {
	return NewValidationError(questionCode, fmt.Sprintf("Please provide at least **%d** characters.", min)).
		WithMetadata("minLength", min)
}

// NewCooldownActiveError blocks a new run until the cooldown elapses.
func NewCooldownActiveError(remaining time.Duration) *StandardError {
	return newError(ErrCodeCooldownActive, "Reapplication cooldown active", HumanRemaining(remaining), false, nil).
		WithMetadata("remaining", remaining)
}

func NewSessionTimeoutError(questionCode string) *StandardError {
	return newError(ErrCodeSessionTimeout, "Application timed out", "", false, nil).
		WithMetadata("questionCode", questionCode)
}

// NewScoringUnavailableError wraps any scoring call or parse failure.
func NewScoringUnavailableError(err error) *StandardError {
	return newError(ErrCodeScoringUnavailable, "Scoring service unavailable", detailsOf(err), true, err)
}

// NewOnboardingStepFailureError records one failed onboarding step.
// Later steps still run.
func NewOnboardingStepFailureError(step string, err error) *StandardError {
	return newError(ErrCodeOnboardingStepFailure, fmt.Sprintf("Onboarding step '%s' failed", step), detailsOf(err), true, err).
		WithMetadata("step", step)
}

func NewPersistenceFailureError(operation string, err error) *StandardError {
	return newError(ErrCodePersistenceFailure, fmt.Sprintf("Persistence operation '%s' failed", operation), detailsOf(err), true, err).
		WithMetadata("operation", operation)
}

func NewDuplicateSubmissionError(discordID string) *StandardError {
	return newError(ErrCodeDuplicateSubmission, "Application already submitted", fmt.Sprintf("discordId: %s", discordID), false, nil)
}

func NewNotSessionOwnerError(ownerID, actorID string) *StandardError {
	return newError(ErrCodeNotSessionOwner, "This isn’t your application.", fmt.Sprintf("owner: %s, actor: %s", ownerID, actorID), false, nil)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", detailsOf(err), true, err)
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", detailsOf(err), true, err)
}

func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("type: %s, error: %s", notificationType, detailsOf(err)), true, err)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), detailsOf(err), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), detailsOf(err), true, err)
}

// ==========================
// 3. Utility Functions
// ==========================

// As extracts a StandardError from anywhere in the chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Code == code
}

// CooldownRemaining returns the remaining cooldown carried by a CooldownActive error.
func CooldownRemaining(err error) (time.Duration, bool) {
	stdErr, ok := As(err)
	if !ok || stdErr.Code != ErrCodeCooldownActive {
		return 0, false
	}
	remaining, ok := stdErr.Metadata["remaining"].(time.Duration)
	return remaining, ok
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeOnboardingStepFailure,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeExternalService,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeTimeout:
		return 2

	default:
		// scoring retries happen inside the client; the applicant resubmits
		return 0
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeValidation || code == ErrCodeNotSessionOwner:
		return "VALIDATION"
	case code == ErrCodeCooldownActive || code == ErrCodeDuplicateSubmission || code == ErrCodeSessionTimeout:
		return "INTAKE"
	case code == ErrCodeScoringUnavailable:
		return "AI"
	case code == ErrCodeOnboardingStepFailure:
		return "ONBOARDING"
	case strings.Contains(codeStr, "PERSISTENCE") || strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "EXTERNAL") || strings.Contains(codeStr, "TIMEOUT"):
		return "EXTERNAL"
	default:
		return "OTHER"
	}
}

// HumanRemaining renders a cooldown as "Xd Yh", "Yh Zm" or "under 1m".
// Minutes are only shown when no whole day remains.
func HumanRemaining(d time.Duration) string {
	if d <= 0 {
		return "0d"
	}
	totalMinutes := int64(d / time.Minute)
	days := totalMinutes / (24 * 60)
	hours := (totalMinutes % (24 * 60)) / 60
	minutes := totalMinutes % 60

	parts := make([]string, 0, 3)
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 && days == 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if len(parts) == 0 {
		return "under 1m"
	}
	return strings.Join(parts, " ")
}
