// internal/workers/application/record-decision/handler.go
package recorddecision

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"intake-bot/internal/common/database"
	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"
)

const (
	TaskType = "record-decision"
)

var (
	ErrUnknownDecision = errors.New("UNKNOWN_DECISION")
)

const (
	insertReviewSQL = `
		INSERT INTO ai_reviews (run_id, model, score, verdict, rationale, tokens_in, tokens_out)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	insertDecisionSQL = `
		INSERT INTO decisions (run_id, decided_by, decision, reason, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	updateApplicantSQL = `
		UPDATE applicants SET status = $1, cooldown_until = $2, updated_at = now()
		WHERE discord_id = $3`
)

// Handler is the Decision Ledger. Decisions are append-only; the applicant
// row carries the resulting status and cooldown.
type Handler struct {
	config *Config
	db     *sql.DB
	now    func() time.Time
	logger logger.Logger
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config: config,
		db:     db,
		now:    time.Now,
		logger: logger.ForStage(log, TaskType),
	}
}

// RecordReview stores the scoring result for a run.
func (h *Handler) RecordReview(ctx context.Context, runID int64, v *models.Verdict) (int64, error) {
	review := models.AIReview{
		RunID:     runID,
		Model:     v.Model,
		Score:     v.OverallScore,
		Verdict:   v.Verdict,
		Rationale: v.Rationale,
		TokensIn:  v.TokensIn,
		TokensOut: v.TokensOut,
	}
	err := h.db.QueryRowContext(ctx, insertReviewSQL,
		review.RunID, review.Model, review.Score, review.Verdict, review.Rationale, review.TokensIn, review.TokensOut,
	).Scan(&review.ID)
	if err != nil {
		return 0, apperrors.NewPersistenceFailureError("record review", err)
	}
	return review.ID, nil
}

// Record appends a decision and applies its status and cooldown.
func (h *Handler) Record(ctx context.Context, runID int64, discordID string, decision models.DecisionKind, reason string) (*Output, error) {
	return h.execute(ctx, &Input{
		RunID:     runID,
		DiscordID: discordID,
		DecidedBy: models.DecidedByAI,
		Decision:  decision,
		Reason:    reason,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	discordID, err := models.ParseSnowflake(input.DiscordID)
	if err != nil {
		return nil, apperrors.NewPersistenceFailureError("record decision", err)
	}

	now := h.now().UTC()
	out := &Output{}
	var cooldown sql.NullTime

	switch input.Decision {
	case models.DecisionAccept:
		out.Status = models.ApplicantAccepted
	case models.DecisionReject:
		out.Status = models.ApplicantRejected
	case models.DecisionBorderline:
		out.Status = models.ApplicantSubmitted
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDecision, input.Decision)
	}
	if out.Status != models.ApplicantSubmitted {
		until := now.Add(h.config.Cooldown)
		cooldown = sql.NullTime{Time: until, Valid: true}
		out.CooldownUntil = &until
	}

	decidedBy := input.DecidedBy
	if decidedBy == "" {
		decidedBy = models.DecidedByAI
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	row := models.Decision{
		RunID:     input.RunID,
		DecidedBy: decidedBy,
		Decision:  input.Decision,
		Reason:    input.Reason,
		CreatedAt: now,
	}
	// the decision row and the applicant status land together or not at all
	err = database.WithTx(ctx, h.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, insertDecisionSQL,
			row.RunID, row.DecidedBy, string(row.Decision), row.Reason, row.CreatedAt,
		).Scan(&row.ID); err != nil {
			return fmt.Errorf("insert decision: %w", err)
		}
		if _, err := tx.ExecContext(ctx, updateApplicantSQL, string(out.Status), cooldown, discordID); err != nil {
			return fmt.Errorf("update applicant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewPersistenceFailureError("record decision", err)
	}
	out.DecisionID = row.ID

	h.logger.Info("decision recorded", map[string]interface{}{
		"runId":     input.RunID,
		"discordId": input.DiscordID,
		"decision":  string(input.Decision),
		"status":    string(out.Status),
	})
	return out, nil
}
