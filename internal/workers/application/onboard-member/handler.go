// internal/workers/application/onboard-member/handler.go
package onboardmember

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"intake-bot/internal/common/discord"
	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/metrics"
	"intake-bot/internal/common/observability"
	"intake-bot/internal/common/retry"
	"intake-bot/internal/common/roblox"
	"intake-bot/internal/models"
	recorddecision "intake-bot/internal/workers/application/record-decision"
	sendnotification "intake-bot/internal/workers/application/send-notification"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
)

const (
	TaskType = "onboard-member"
)

var (
	ErrNoIdentity = errors.New("NO_IDENTITY")
)

const upsertMemberRankSQL = `
	INSERT INTO member_ranks (discord_id, rank, set_by, set_at) VALUES ($1, $2, $3, $4)
	ON CONFLICT (discord_id) DO UPDATE SET rank = EXCLUDED.rank, set_by = EXCLUDED.set_by, set_at = EXCLUDED.set_at`

// RankService is satisfied by *roblox.Client.
type RankService interface {
	Enabled() bool
	FindRoleByName(ctx context.Context, name string) (*roblox.Role, error)
	RoleNameByRank(ctx context.Context, rank int) (string, bool)
	AcceptJoin(ctx context.Context, robloxID int64) error
	SetRank(ctx context.Context, robloxID int64, target roblox.RankTarget) error
	EnsureMemberAndRank(ctx context.Context, robloxID int64, target roblox.RankTarget) error
}

// Identity is satisfied by *verifyidentity.Handler.
type Identity interface {
	Resolve(ctx context.Context, username string) (*roblox.User, error)
	Link(ctx context.Context, discordID string, user *roblox.User) (*models.IdentityLink, error)
}

// Notifier is satisfied by *sendnotification.Handler.
type Notifier interface {
	Welcome(ctx context.Context, userID string) (*sendnotification.Output, error)
	AcceptedNotice(ctx context.Context, userID, robloxName string) (*sendnotification.Output, error)
	OpsAlert(ctx context.Context, title, detail string) (*sendnotification.Output, error)
}

// Ledger is satisfied by *recorddecision.Handler.
type Ledger interface {
	Record(ctx context.Context, runID int64, discordID string, decision models.DecisionKind, reason string) (*recorddecision.Output, error)
}

type Auditor interface {
	LogFor(ctx context.Context, userID, title, description string)
}

// Deps groups the collaborators of the orchestrator.
type Deps struct {
	DB       *sql.DB
	Session  discord.Session
	Ranks    RankService
	Identity Identity
	Notifier Notifier
	Ledger   Ledger
	Audit    Auditor
	Obs      *observability.Observability
}

// Handler runs the accept path. Steps never roll back earlier steps and a
// failed step does not stop later ones.
type Handler struct {
	config *Config
	deps   Deps
	now    func() time.Time
	logger logger.Logger
}

func NewHandler(config *Config, deps Deps, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config: config,
		deps:   deps,
		now:    time.Now,
		logger: logger.ForStage(log, TaskType),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// run carries per-onboarding state between steps.
type run struct {
	input  *Input
	out    *Output
	member *discordgo.Member
	user   *roblox.User
	ranked bool
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	ctx, span := h.deps.Obs.StartSpan(ctx, "onboarding.run",
		attribute.Int64("onboarding.run_id", input.RunID),
	)
	defer span.End()

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	r := &run{input: input, out: &Output{}}

	member, err := discord.FindMember(h.deps.Session, h.config.GuildID, input.DiscordID)
	switch {
	case errors.Is(err, discord.ErrMemberMissing):
		return h.acceptMissingMember(ctx, r)
	case err != nil:
		h.logger.Warn("member lookup failed, local sync will be skipped", map[string]interface{}{
			"discordId": input.DiscordID,
			"error":     err,
		})
	default:
		r.member = member
	}

	h.step(ctx, r, StepIdentity, h.resolveIdentity)
	h.step(ctx, r, StepRank, h.syncRank)
	h.step(ctx, r, StepLocalSync, h.syncLocal)
	h.step(ctx, r, StepNotify, h.notify)
	ledgerErr := h.step(ctx, r, StepLedger, h.record)

	if ledgerErr != nil {
		return r.out, ledgerErr
	}
	h.audit(ctx, input.DiscordID, "Application Accepted", fmt.Sprintf("Auto-accepted: %s", discord.Mention(input.DiscordID)))
	h.logger.Info("onboarding finished", map[string]interface{}{
		"discordId": input.DiscordID,
		"runId":     input.RunID,
		"failed":    r.out.Failed(),
	})
	return r.out, nil
}

// acceptMissingMember records the accept for an applicant who left the guild.
func (h *Handler) acceptMissingMember(ctx context.Context, r *run) (*Output, error) {
	r.out.MemberMissing = true
	h.audit(ctx, r.input.DiscordID, "Application Accepted (but member missing)", fmt.Sprintf("User ID: %s", r.input.DiscordID))
	if err := h.step(ctx, r, StepLedger, h.record); err != nil {
		return r.out, err
	}
	return r.out, nil
}

// step runs fn and records its outcome. errSkip marks a step that had nothing to do.
func (h *Handler) step(ctx context.Context, r *run, name string, fn func(ctx context.Context, r *run) error) error {
	ctx, span := h.deps.Obs.StartSpan(ctx, "onboarding."+name)
	defer span.End()

	err := fn(ctx, r)
	result := StepResult{Name: name, Outcome: OutcomeOK}
	switch {
	case errors.Is(err, errSkip):
		result.Outcome = OutcomeSkipped
		err = nil
	case err != nil:
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		span.RecordError(err)
	}
	r.out.Steps = append(r.out.Steps, result)
	metrics.OnboardingSteps.WithLabelValues(name, result.Outcome).Inc()

	if err == nil {
		return nil
	}
	stepErr := apperrors.NewOnboardingStepFailureError(name, err)
	metrics.StageFailures.WithLabelValues(TaskType, string(apperrors.ErrCodeOnboardingStepFailure)).Inc()
	h.logger.Error("onboarding step failed", map[string]interface{}{
		"step":      name,
		"discordId": r.input.DiscordID,
		"runId":     r.input.RunID,
		"error":     err,
	})
	if h.deps.Notifier != nil && name != StepNotify {
		if _, alertErr := h.deps.Notifier.OpsAlert(ctx, "Onboarding step failed",
			fmt.Sprintf("step=%s discordId=%s runId=%d: %v", name, r.input.DiscordID, r.input.RunID, err)); alertErr != nil {
			h.logger.Warn("ops alert failed", map[string]interface{}{"error": alertErr})
		}
	}
	return stepErr
}

var errSkip = errors.New("skipped")

func (h *Handler) resolveIdentity(ctx context.Context, r *run) error {
	name := strings.TrimSpace(r.input.RobloxUsername)
	if name == "" || h.deps.Identity == nil {
		return errSkip
	}

	user, err := h.deps.Identity.Resolve(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}
	r.user = user
	r.out.RobloxID = user.ID
	r.out.RobloxName = user.Name

	if _, err := h.deps.Identity.Link(ctx, r.input.DiscordID, user); err != nil {
		return fmt.Errorf("link identity: %w", err)
	}
	h.audit(ctx, r.input.DiscordID, "Auto Verified",
		fmt.Sprintf("User: %s | Roblox: `%s` (%d)", discord.Mention(r.input.DiscordID), user.Name, user.ID))
	return nil
}

func (h *Handler) syncRank(ctx context.Context, r *run) error {
	if r.user == nil || h.deps.Ranks == nil || !h.deps.Ranks.Enabled() {
		return errSkip
	}

	role, err := h.deps.Ranks.FindRoleByName(ctx, h.config.TargetRankName)
	if err != nil {
		return fmt.Errorf("resolve rank %q: %w", h.config.TargetRankName, err)
	}
	target := roblox.TargetFor(*role)
	if target.Empty() {
		return fmt.Errorf("%w: %s", roblox.ErrNoRankTarget, h.config.TargetRankName)
	}

	if err := h.deps.Ranks.EnsureMemberAndRank(ctx, r.user.ID, target); err != nil {
		h.logger.Warn("combined ensure call failed, falling back to accept and set", map[string]interface{}{
			"robloxId": r.user.ID,
			"error":    err,
		})
		if err := h.deps.Ranks.AcceptJoin(ctx, r.user.ID); err != nil {
			h.logger.Warn("accept join failed", map[string]interface{}{"robloxId": r.user.ID, "error": err})
		}
		if err := h.deps.Ranks.SetRank(ctx, r.user.ID, target); err != nil {
			return fmt.Errorf("set rank: %w", err)
		}
	}
	r.ranked = true

	rankName := strings.TrimSpace(role.Name)
	if rankName == "" && target.RankNumber != nil {
		rankName, _ = h.deps.Ranks.RoleNameByRank(ctx, *target.RankNumber)
	}
	if rankName == "" {
		rankName = h.config.TargetRankName
	}
	r.out.RankName = rankName

	if err := h.storeRank(ctx, r.input.DiscordID, rankName); err != nil {
		h.logger.Warn("failed to record assigned rank", map[string]interface{}{
			"discordId": r.input.DiscordID,
			"error":     err,
		})
	}
	return nil
}

func (h *Handler) storeRank(ctx context.Context, discordID, rank string) error {
	if h.deps.DB == nil {
		return nil
	}
	id, err := models.ParseSnowflake(discordID)
	if err != nil {
		return err
	}
	var setBy sql.NullInt64
	if bot, err := models.ParseSnowflake(h.config.BotUserID); err == nil {
		setBy = sql.NullInt64{Int64: bot, Valid: true}
	}
	row := models.MemberRank{DiscordID: discordID, Rank: rank, SetBy: h.config.BotUserID, SetAt: h.now().UTC()}
	return retry.CallWithPolicy(ctx, h.config.Policy, func(ctx context.Context) error {
		_, err := h.deps.DB.ExecContext(ctx, upsertMemberRankSQL, id, row.Rank, setBy, row.SetAt)
		return err
	})
}

func (h *Handler) syncLocal(ctx context.Context, r *run) error {
	if r.member == nil || h.deps.Session == nil {
		return errSkip
	}
	var errs []error

	have := make(map[string]bool, len(r.member.Roles))
	for _, id := range r.member.Roles {
		have[id] = true
	}
	toAdd := make([]string, 0, len(h.config.NewMemberRoleIDs)+1)
	for _, id := range h.config.NewMemberRoleIDs {
		if id != "" && !have[id] {
			toAdd = append(toAdd, id)
			have[id] = true
		}
	}

	if r.ranked && r.out.RankName != "" {
		roleID, err := h.localRoleNamed(ctx, r.out.RankName)
		if err != nil {
			errs = append(errs, err)
		} else if roleID != "" && !have[roleID] {
			toAdd = append(toAdd, roleID)
		}
	}

	for _, roleID := range toAdd {
		roleID := roleID
		err := retry.CallWithPolicy(ctx, h.config.Policy, func(ctx context.Context) error {
			return permanentOnClientError(h.deps.Session.GuildMemberRoleAdd(h.config.GuildID, r.input.DiscordID, roleID))
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("add role %s: %w", roleID, err))
		}
	}

	if err := h.syncNickname(ctx, r); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (h *Handler) localRoleNamed(ctx context.Context, name string) (string, error) {
	roles, err := retry.Do(ctx, h.config.Policy, func(ctx context.Context) ([]*discordgo.Role, error) {
		roles, err := h.deps.Session.GuildRoles(h.config.GuildID)
		return roles, permanentOnClientError(err)
	})
	if err != nil {
		return "", fmt.Errorf("list guild roles: %w", err)
	}
	for _, role := range roles {
		if strings.EqualFold(role.Name, name) {
			return role.ID, nil
		}
	}
	return "", nil
}

func (h *Handler) syncNickname(ctx context.Context, r *run) error {
	nick := strings.TrimSpace(r.out.RobloxName)
	if nick == "" {
		nick = strings.TrimSpace(r.input.RobloxUsername)
	}
	if nick == "" {
		return nil
	}
	if runes := []rune(nick); len(runes) > h.config.MaxNicknameLen {
		nick = string(runes[:h.config.MaxNicknameLen])
	}
	if r.member.Nick == nick {
		return nil
	}

	err := retry.CallWithPolicy(ctx, h.config.Policy, func(ctx context.Context) error {
		return permanentOnClientError(h.deps.Session.GuildMemberNickname(h.config.GuildID, r.input.DiscordID, nick))
	})
	if discord.IsForbidden(err) {
		h.logger.Info("missing permission to change nickname", map[string]interface{}{"discordId": r.input.DiscordID})
		return nil
	}
	if err != nil {
		return fmt.Errorf("set nickname: %w", err)
	}
	return nil
}

func (h *Handler) notify(ctx context.Context, r *run) error {
	if h.deps.Notifier == nil {
		return errSkip
	}
	var errs []error
	if _, err := h.deps.Notifier.Welcome(ctx, r.input.DiscordID); err != nil {
		errs = append(errs, err)
	}
	if _, err := h.deps.Notifier.AcceptedNotice(ctx, r.input.DiscordID, r.out.RobloxName); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (h *Handler) record(ctx context.Context, r *run) error {
	reason := r.input.Reason
	if reason == "" {
		reason = "Auto-accepted by AI threshold"
	}
	// the decision must land even if onboarding ran out of time
	out, err := h.deps.Ledger.Record(context.WithoutCancel(ctx), r.input.RunID, r.input.DiscordID, models.DecisionAccept, reason)
	if err != nil {
		return err
	}
	r.out.Decision = out
	return nil
}

func (h *Handler) audit(ctx context.Context, userID, title, desc string) {
	if h.deps.Audit != nil {
		h.deps.Audit.LogFor(ctx, userID, title, desc)
	}
}

func permanentOnClientError(err error) error {
	if err != nil && (discord.IsForbidden(err) || discord.IsNotFound(err)) {
		return retry.Permanent(err)
	}
	return err
}
