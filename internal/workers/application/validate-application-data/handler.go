// internal/workers/application/validate-application-data/handler.go
package validateapplicationdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"
)

const (
	TaskType = "validate-application-data"
)

var (
	ErrApplicationValidationFailed = errors.New("APPLICATION_VALIDATION_FAILED")
)

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config: config,
		logger: logger.ForStage(log, TaskType),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: nil input", ErrApplicationValidationFailed)
	}

	out, err := Check(input.Question, input.Text, input.Source)
	if err != nil {
		h.logger.Debug("answer rejected", map[string]interface{}{
			"questionCode": input.Question.Code,
			"source":       string(input.Source),
			"length":       utf8.RuneCountInString(strings.TrimSpace(input.Text)),
		})
		return nil, err
	}
	if out.Truncated {
		h.logger.Debug("answer truncated to max length", map[string]interface{}{
			"questionCode": input.Question.Code,
			"maxLength":    input.Question.MaxLen,
		})
	}
	return out, nil
}

// Preview renders an answer for the review card.
func (h *Handler) Preview(text string) string {
	return Preview(text, h.config.PreviewLength)
}

// Check applies the question's length rules. Over-long typed answers are
// cut to the maximum; over-long form answers are rejected.
func Check(q models.Question, text string, source Source) (*Output, error) {
	answer := strings.TrimSpace(text)
	length := utf8.RuneCountInString(answer)

	if answer == "" && (q.Required || q.MinLen > 0) {
		return nil, apperrors.NewValidationError(q.Code, msgRequired)
	}
	if q.MinLen > 0 && length < q.MinLen {
		return nil, apperrors.NewMinLengthError(q.Code, q.MinLen)
	}

	out := &Output{Answer: answer}
	if q.MaxLen > 0 && length > q.MaxLen {
		if source == SourceModal {
			return nil, apperrors.NewValidationError(q.Code, fmt.Sprintf(msgMaxLength, q.MaxLen))
		}
		out.Answer = truncateRunes(answer, q.MaxLen)
		out.Truncated = true
	}
	return out, nil
}

// Complete reports whether every question has an answer.
func Complete(qs models.QuestionSet, answers models.Answers) error {
	for _, q := range qs {
		if _, ok := answers[q.Code]; !ok {
			return apperrors.NewValidationError(q.Code, msgIncomplete)
		}
	}
	return nil
}

// Preview trims text and cuts it to limit characters including a "..." suffix.
func Preview(text string, limit int) string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return NoResponseText
	}
	if limit <= 3 || utf8.RuneCountInString(clean) <= limit {
		return clean
	}
	return truncateRunes(clean, limit-3) + "..."
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
