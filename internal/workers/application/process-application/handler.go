// internal/workers/application/process-application/handler.go
package processapplication

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"intake-bot/internal/common/discord"
	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/metrics"
	"intake-bot/internal/common/observability"
	"intake-bot/internal/models"
	checkpriorityrouting "intake-bot/internal/workers/application/check-priority-routing"
	createapplicationrecord "intake-bot/internal/workers/application/create-application-record"
	onboardmember "intake-bot/internal/workers/application/onboard-member"
	recorddecision "intake-bot/internal/workers/application/record-decision"
	sendnotification "intake-bot/internal/workers/application/send-notification"

	"go.opentelemetry.io/otel/attribute"
)

const (
	TaskType = "process-application"
)

var (
	ErrMissingDependency = errors.New("MISSING_DEPENDENCY")
)

type Submitter interface {
	Submit(ctx context.Context, discordID, robloxUsername string, answers models.Answers) (*createapplicationrecord.Output, error)
}

type Scorer interface {
	Score(ctx context.Context, answers models.Answers) (*models.Verdict, error)
}

type Router interface {
	Execute(ctx context.Context, input *checkpriorityrouting.Input) (*checkpriorityrouting.Output, error)
}

type Ledger interface {
	RecordReview(ctx context.Context, runID int64, v *models.Verdict) (int64, error)
	Record(ctx context.Context, runID int64, discordID string, decision models.DecisionKind, reason string) (*recorddecision.Output, error)
}

type Onboarder interface {
	Execute(ctx context.Context, input *onboardmember.Input) (*onboardmember.Output, error)
}

type Notifier interface {
	RejectionDM(ctx context.Context, userID string, score float64, rationale string) (*sendnotification.Output, error)
	BorderlineNotice(ctx context.Context, user string, score float64) (*sendnotification.Output, error)
}

type Auditor interface {
	LogFor(ctx context.Context, userID, title, description string)
}

// Deps are the pipeline stages, in the order a submission passes through them.
type Deps struct {
	Submitter Submitter
	Scorer    Scorer
	Router    Router
	Ledger    Ledger
	Onboarder Onboarder
	Notifier  Notifier
	Audit     Auditor
	Obs       *observability.Observability
}

// Handler runs one confirmed application from storage to decision.
type Handler struct {
	config *Config
	deps   Deps
	logger logger.Logger
}

func NewHandler(config *Config, deps Deps, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config: config,
		deps:   deps,
		logger: logger.ForStage(log, TaskType),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if h.deps.Submitter == nil || h.deps.Scorer == nil || h.deps.Router == nil || h.deps.Ledger == nil {
		return nil, fmt.Errorf("%w: submitter, scorer, router and ledger are required", ErrMissingDependency)
	}
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	ctx, span := h.deps.Obs.StartSpan(ctx, "application.process",
		attribute.String("applicant.discord_id", input.DiscordID),
	)
	defer span.End()

	log := h.logger.With(map[string]interface{}{"discordId": input.DiscordID})
	mention := discord.Mention(input.DiscordID)

	sub, err := h.deps.Submitter.Submit(ctx, input.DiscordID, input.Answers.RobloxUsername(), input.Answers)
	if err != nil {
		if !apperrors.IsCode(err, apperrors.ErrCodeDuplicateSubmission) {
			h.audit(ctx, input.DiscordID, "Application Submission Error", fmt.Sprintf("User: %s\nError: %v", mention, err))
		}
		span.RecordError(err)
		return nil, err
	}
	out := &Output{RunID: sub.RunID}
	span.SetAttributes(attribute.Int64("application.run_id", sub.RunID))
	if input.OnSubmitted != nil {
		input.OnSubmitted(sub.RunID)
	}

	verdict, err := h.deps.Scorer.Score(ctx, input.Answers)
	if err != nil {
		h.audit(ctx, input.DiscordID, "Application AI Error", fmt.Sprintf("User: %s\nError: %v", mention, detailOf(err)))
		span.RecordError(err)
		return out, err
	}
	out.Verdict = verdict
	h.audit(ctx, input.DiscordID, "Application Scored", h.scoredText(mention, verdict))

	// no decision is written for a scored run without its review
	if _, err := h.deps.Ledger.RecordReview(ctx, sub.RunID, verdict); err != nil {
		log.Warn("failed to store scoring result", map[string]interface{}{"runId": sub.RunID, "error": err})
		span.RecordError(err)
		return out, h.fail(ctx, input.DiscordID, err)
	}

	route, err := h.deps.Router.Execute(ctx, &checkpriorityrouting.Input{Verdict: verdict})
	if err != nil {
		return out, h.fail(ctx, input.DiscordID, err)
	}
	out.Decision = route.Decision
	out.Band = route.Band

	switch route.Decision {
	case models.DecisionAccept:
		err = h.accept(ctx, input, sub.RunID, route, out)
	case models.DecisionBorderline:
		err = h.borderline(ctx, input, sub.RunID, route, verdict, out)
	default:
		err = h.reject(ctx, input, sub.RunID, route, verdict, out)
	}
	if err != nil {
		return out, h.fail(ctx, input.DiscordID, err)
	}

	log.Info("application processed", map[string]interface{}{
		"runId":    sub.RunID,
		"score":    verdict.OverallScore,
		"decision": string(out.Decision),
		"band":     out.Band,
	})
	return out, nil
}

func (h *Handler) accept(ctx context.Context, input *Input, runID int64, route *checkpriorityrouting.Output, out *Output) error {
	if h.deps.Onboarder == nil {
		// without an onboarder only the ledger entry is written
		if _, err := h.deps.Ledger.Record(ctx, runID, input.DiscordID, models.DecisionAccept, route.Reason); err != nil {
			return err
		}
	} else {
		onboarding, err := h.deps.Onboarder.Execute(ctx, &onboardmember.Input{
			RunID:          runID,
			DiscordID:      input.DiscordID,
			RobloxUsername: input.Answers.RobloxUsername(),
			Reason:         route.Reason,
		})
		out.Onboarding = onboarding
		if err != nil {
			return err
		}
	}
	out.Message = fmt.Sprintf(msgAccepted, discord.Mention(input.DiscordID))
	return nil
}

func (h *Handler) borderline(ctx context.Context, input *Input, runID int64, route *checkpriorityrouting.Output, v *models.Verdict, out *Output) error {
	mention := discord.Mention(input.DiscordID)
	h.audit(ctx, input.DiscordID, "Application Borderline", fmt.Sprintf("%s | Score: %.1f", mention, v.OverallScore))
	if h.deps.Notifier != nil {
		if _, err := h.deps.Notifier.BorderlineNotice(ctx, mention, v.OverallScore); err != nil {
			h.logger.Warn("borderline notice not delivered", map[string]interface{}{"runId": runID, "error": err})
		}
	}
	if _, err := h.deps.Ledger.Record(ctx, runID, input.DiscordID, models.DecisionBorderline, route.Reason); err != nil {
		return err
	}
	out.Message = msgBorderline
	return nil
}

func (h *Handler) reject(ctx context.Context, input *Input, runID int64, route *checkpriorityrouting.Output, v *models.Verdict, out *Output) error {
	if h.deps.Notifier != nil {
		if _, err := h.deps.Notifier.RejectionDM(ctx, input.DiscordID, v.OverallScore, v.Rationale); err != nil {
			h.logger.Warn("rejection message not delivered", map[string]interface{}{"runId": runID, "error": err})
		}
	}
	if _, err := h.deps.Ledger.Record(ctx, runID, input.DiscordID, models.DecisionReject, route.Reason); err != nil {
		return err
	}
	h.audit(ctx, input.DiscordID, "Application Rejected",
		fmt.Sprintf("User: %s | Score: %.1f", discord.Mention(input.DiscordID), v.OverallScore))
	out.Message = msgRejected
	return nil
}

func (h *Handler) fail(ctx context.Context, discordID string, err error) error {
	metrics.StageFailures.WithLabelValues(TaskType, codeOf(err)).Inc()
	h.audit(ctx, discordID, "Application Submission Error",
		fmt.Sprintf("User: %s\nError: %v", discord.Mention(discordID), detailOf(err)))
	return err
}

func (h *Handler) scoredText(mention string, v *models.Verdict) string {
	flags := strings.Join(v.Flags, ", ")
	if flags == "" {
		flags = "none"
	}
	rationale := v.Rationale
	if r := []rune(rationale); len(r) > h.config.AuditRationaleLen {
		rationale = string(r[:h.config.AuditRationaleLen])
	}
	return fmt.Sprintf("User: %s\nScore: **%.1f**\nVerdict: `%s`\nFlags: %s\nRationale: %s...",
		mention, v.OverallScore, v.Verdict, flags, rationale)
}

func (h *Handler) audit(ctx context.Context, userID, title, desc string) {
	if h.deps.Audit != nil {
		h.deps.Audit.LogFor(ctx, userID, title, desc)
	}
}

func detailOf(err error) string {
	if stdErr, ok := apperrors.As(err); ok && stdErr.Details != "" {
		return stdErr.Details
	}
	return err.Error()
}

func codeOf(err error) string {
	if stdErr, ok := apperrors.As(err); ok {
		return string(stdErr.Code)
	}
	return string(apperrors.ErrCodeInternal)
}
