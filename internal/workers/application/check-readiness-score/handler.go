// internal/workers/application/check-readiness-score/handler.go
package checkreadinessscore

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/metrics"
	"intake-bot/internal/common/observability"
	"intake-bot/internal/common/retry"
	"intake-bot/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	TaskType = "check-readiness-score"
)

var (
	ErrReadinessScoreFailed = errors.New("READINESS_SCORE_FAILED")
)

// Handler is the Scoring Client. Provider calls are retried under
// config.Policy; the reply is parsed once.
type Handler struct {
	config   *Config
	provider Provider
	obs      *observability.Observability
	logger   logger.Logger
}

func NewHandler(config *Config, provider Provider, obs *observability.Observability, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config:   config,
		provider: provider,
		obs:      obs,
		logger:   logger.ForStage(log, TaskType),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewScoringUnavailableError(fmt.Errorf("%w: nil input", ErrReadinessScoreFailed))
	}
	verdict, err := h.execute(ctx, input)
	if err != nil {
		return nil, err
	}
	return &Output{Verdict: verdict}, nil
}

// Score rates answers against the rubric.
func (h *Handler) Score(ctx context.Context, answers models.Answers) (*models.Verdict, error) {
	return h.execute(ctx, &Input{Answers: answers})
}

func (h *Handler) execute(ctx context.Context, input *Input) (*models.Verdict, error) {
	if h.provider == nil {
		return nil, apperrors.NewScoringUnavailableError(fmt.Errorf("%w: %v", ErrReadinessScoreFailed, ErrMissingAPIKey))
	}
	providerName := h.provider.Name()

	ctx, span := h.obs.StartSpan(ctx, "scoring.score",
		attribute.String("scoring.provider", providerName),
		attribute.Int64("scoring.run_id", input.RunID),
	)
	defer span.End()

	start := time.Now()
	verdict, completion, err := h.score(ctx, input.Answers)
	elapsed := time.Since(start)

	outcome := "ok"
	tokensIn, tokensOut := 0, 0
	if completion != nil {
		tokensIn, tokensOut = completion.TokensIn, completion.TokensOut
	}
	if err != nil {
		outcome = "error"
	}
	metrics.ScoringDuration.WithLabelValues(providerName, outcome).Observe(elapsed.Seconds())
	h.obs.RecordScoring(ctx, providerName, outcome, elapsed, tokensIn, tokensOut)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.StageFailures.WithLabelValues(TaskType, string(apperrors.ErrCodeScoringUnavailable)).Inc()
		h.logger.Error("scoring failed", map[string]interface{}{
			"runId":    input.RunID,
			"provider": providerName,
			"error":    err,
		})
		return nil, apperrors.NewScoringUnavailableError(err)
	}

	span.SetAttributes(
		attribute.Float64("scoring.score", verdict.OverallScore),
		attribute.String("scoring.verdict", verdict.Verdict),
	)
	h.logger.Info("application scored", map[string]interface{}{
		"runId":     input.RunID,
		"provider":  providerName,
		"model":     verdict.Model,
		"score":     verdict.OverallScore,
		"verdict":   verdict.Verdict,
		"flags":     verdict.Flags,
		"tokensIn":  verdict.TokensIn,
		"tokensOut": verdict.TokensOut,
	})
	return verdict, nil
}

func (h *Handler) score(ctx context.Context, answers models.Answers) (*models.Verdict, *Completion, error) {
	system, user, err := BuildPrompt(answers)
	if err != nil {
		return nil, nil, err
	}

	attempt := 0
	completion, err := retry.Do(ctx, h.config.Policy, func(ctx context.Context) (*Completion, error) {
		attempt++
		if h.config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
			defer cancel()
		}
		c, err := h.provider.Complete(ctx, system, user)
		if err != nil {
			if !isTransient(err) {
				return nil, retry.Permanent(err)
			}
			h.logger.Warn("scoring call failed", map[string]interface{}{
				"provider": h.provider.Name(),
				"attempt":  attempt,
				"error":    err,
			})
			return nil, err
		}
		return c, nil
	})
	if err != nil {
		return nil, nil, err
	}

	raw, err := ParseContent(completion.Text)
	if err != nil {
		return nil, completion, err
	}
	verdict, err := Normalize(raw, h.config.MaxRationale)
	if err != nil {
		return nil, completion, err
	}
	verdict.Model = completion.Model
	verdict.TokensIn = completion.TokensIn
	verdict.TokensOut = completion.TokensOut
	return verdict, completion, nil
}
