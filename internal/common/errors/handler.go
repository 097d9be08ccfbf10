// internal/common/errors/handler.go
package errors

import (
	"fmt"
	"time"
)

// ErrorHandler turns pipeline errors into logged events and applicant-facing text.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleInteractionError logs err and returns the message shown to the applicant.
func (h *ErrorHandler) HandleInteractionError(err error, fields map[string]interface{}) string {
	stdErr := h.normalizeError(err)
	h.logError(stdErr, fields)
	return UserMessage(stdErr)
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   detailsOf(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func (h *ErrorHandler) logError(stdErr *StandardError, fields map[string]interface{}) {
	out := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"retries":       GetRetryCount(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range fields {
		out[k] = v
	}

	// applicant mistakes are expected traffic
	switch stdErr.Code {
	case ErrCodeValidation, ErrCodeCooldownActive, ErrCodeNotSessionOwner,
		ErrCodeDuplicateSubmission, ErrCodeSessionTimeout:
		h.logger.Warn("interaction rejected", out)
	default:
		h.logger.Error("interaction failed", out)
	}
}

// UserMessage maps an error to the ephemeral reply text.
func UserMessage(err error) string {
	stdErr, ok := As(err)
	if !ok {
		return "Sorry, something went wrong running that command."
	}

	switch stdErr.Code {
	case ErrCodeValidation:
		if stdErr.Details != "" {
			return stdErr.Details
		}
		return "That answer could not be accepted. Please try again."
	case ErrCodeCooldownActive:
		return fmt.Sprintf("You must wait **%s** before applying again.", stdErr.Details)
	case ErrCodeSessionTimeout:
		return "⏰ Application timed out. Please restart with `/apply`."
	case ErrCodeScoringUnavailable:
		return fmt.Sprintf("AI review failed: %s", stdErr.Details)
	case ErrCodePersistenceFailure:
		return fmt.Sprintf("There was an error submitting your application: %s", stdErr.Details)
	case ErrCodeDuplicateSubmission:
		return "Your application has already been submitted."
	case ErrCodeNotSessionOwner:
		return stdErr.Message
	default:
		return "Sorry, something went wrong running that command."
	}
}
