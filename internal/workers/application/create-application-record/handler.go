// internal/workers/application/create-application-record/handler.go
package createapplicationrecord

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"intake-bot/internal/common/database"
	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/metrics"
	"intake-bot/internal/models"

	"github.com/google/uuid"
)

const (
	TaskType = "create-application-record"
)

var (
	ErrDatabaseInsertFailed = errors.New("DATABASE_INSERT_FAILED")
	ErrDuplicateApplication = errors.New("DUPLICATE_APPLICATION")
	ErrUnknownQuestion      = errors.New("UNKNOWN_QUESTION_CODE")
)

const (
	ensureApplicantSQL = `
		INSERT INTO applicants (discord_id, status) VALUES ($1, 'in_progress')
		ON CONFLICT (discord_id) DO UPDATE SET status = 'in_progress', updated_at = now(), last_active = now()`

	touchApplicantSQL = `
		INSERT INTO applicants (discord_id, status) VALUES ($1, 'in_progress')
		ON CONFLICT (discord_id) DO UPDATE SET last_active = now(), updated_at = now()`

	cooldownSQL = `SELECT cooldown_until FROM applicants WHERE discord_id = $1`

	openRunByDiscordSQL = `
		SELECT EXISTS(
			SELECT 1 FROM application_runs r
			JOIN applicants a ON a.id = r.applicant_id
			WHERE a.discord_id = $1 AND r.submitted_at IS NULL
		)`

	submitApplicantSQL = `
		INSERT INTO applicants (discord_id, roblox_username, status, updated_at)
		VALUES ($1, $2, 'submitted', now())
		ON CONFLICT (discord_id) DO UPDATE SET roblox_username = EXCLUDED.roblox_username, status = 'submitted', updated_at = now()
		RETURNING id`

	openRunSQL = `SELECT EXISTS(SELECT 1 FROM application_runs WHERE applicant_id = $1 AND submitted_at IS NULL)`

	insertRunSQL = `
		INSERT INTO application_runs (applicant_id, started_at, submitted_at)
		VALUES ($1, $2, $2) RETURNING id`

	insertAnswerSQL = `
		INSERT INTO answers (run_id, question_code, answer_text, created_at)
		VALUES ($1, $2, $3, $4)`
)

// Locker is satisfied by *database.Locker.
type Locker interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, owner string) (bool, error)
}

// Handler is the only writer of applicants, runs and answers.
type Handler struct {
	config    *Config
	db        *sql.DB
	locker    Locker
	questions models.QuestionSet
	now       func() time.Time
	logger    logger.Logger
}

func NewHandler(config *Config, db *sql.DB, locker Locker, questions models.QuestionSet, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config:    config,
		db:        db,
		locker:    locker,
		questions: questions,
		now:       time.Now,
		logger:    logger.ForStage(log, TaskType),
	}
}

// EnsureApplicantRow creates the applicant in in_progress or resets it there.
func (h *Handler) EnsureApplicantRow(ctx context.Context, discordID string) error {
	id, err := models.ParseSnowflake(discordID)
	if err != nil {
		return apperrors.NewPersistenceFailureError("ensure applicant", err)
	}
	if _, err := h.db.ExecContext(ctx, ensureApplicantSQL, id); err != nil {
		return apperrors.NewPersistenceFailureError("ensure applicant", err)
	}
	return nil
}

// Touch marks the applicant active without changing status.
func (h *Handler) Touch(ctx context.Context, discordID string) error {
	id, err := models.ParseSnowflake(discordID)
	if err != nil {
		return apperrors.NewPersistenceFailureError("touch applicant", err)
	}
	if _, err := h.db.ExecContext(ctx, touchApplicantSQL, id); err != nil {
		return apperrors.NewPersistenceFailureError("touch applicant", err)
	}
	return nil
}

// CheckCooldown fails with CooldownActive while cooldown_until is in the future.
func (h *Handler) CheckCooldown(ctx context.Context, discordID string) error {
	id, err := models.ParseSnowflake(discordID)
	if err != nil {
		return apperrors.NewPersistenceFailureError("check cooldown", err)
	}

	var until sql.NullTime
	err = h.db.QueryRowContext(ctx, cooldownSQL, id).Scan(&until)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return apperrors.NewPersistenceFailureError("check cooldown", err)
	}
	if !until.Valid {
		return nil
	}
	if remaining := until.Time.Sub(h.now()); remaining > 0 {
		return apperrors.NewCooldownActiveError(remaining)
	}
	return nil
}

// HasOpenRun reports whether a run without submitted_at exists.
func (h *Handler) HasOpenRun(ctx context.Context, discordID string) (bool, error) {
	id, err := models.ParseSnowflake(discordID)
	if err != nil {
		return false, apperrors.NewPersistenceFailureError("check open run", err)
	}
	var open bool
	if err := h.db.QueryRowContext(ctx, openRunByDiscordSQL, id).Scan(&open); err != nil {
		return false, apperrors.NewPersistenceFailureError("check open run", err)
	}
	return open, nil
}

// CheckEligible runs the checks /apply needs before the first question.
func (h *Handler) CheckEligible(ctx context.Context, discordID string) error {
	if err := h.CheckCooldown(ctx, discordID); err != nil {
		return err
	}
	open, err := h.HasOpenRun(ctx, discordID)
	if err != nil {
		return err
	}
	if open {
		return apperrors.NewDuplicateSubmissionError(discordID)
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// Submit persists the run and its answers in one transaction.
func (h *Handler) Submit(ctx context.Context, discordID, robloxUsername string, answers models.Answers) (*Output, error) {
	return h.execute(ctx, &Input{DiscordID: discordID, RobloxUsername: robloxUsername, Answers: answers})
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	id, err := models.ParseSnowflake(input.DiscordID)
	if err != nil {
		return nil, apperrors.NewPersistenceFailureError("submit", err)
	}
	known := h.questions.Codes()
	for code := range input.Answers {
		if _, ok := known[code]; !ok {
			return nil, apperrors.NewPersistenceFailureError("submit",
				fmt.Errorf("%w: %s", ErrUnknownQuestion, code))
		}
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	if h.locker != nil {
		owner := uuid.New().String()
		ok, err := h.locker.Acquire(ctx, input.DiscordID, owner, h.config.LockTTL)
		if err != nil {
			h.logger.Warn("submission lock unavailable, continuing with row checks", map[string]interface{}{
				"discordId": input.DiscordID,
				"error":     err,
			})
		} else if !ok {
			return nil, apperrors.NewDuplicateSubmissionError(input.DiscordID)
		} else {
			defer func() {
				released, err := h.locker.Release(context.Background(), input.DiscordID, owner)
				if err != nil {
					h.logger.Warn("submission lock release failed", map[string]interface{}{"error": err})
				} else if !released {
					h.logger.Warn("submission lock expired before release", map[string]interface{}{"discordId": input.DiscordID})
				}
			}()
		}
	}

	var robloxName sql.NullString
	if input.RobloxUsername != "" {
		robloxName = sql.NullString{String: input.RobloxUsername, Valid: true}
	}

	submittedAt := h.now().UTC()
	out := &Output{SubmittedAt: submittedAt}

	err = database.WithTx(ctx, h.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, submitApplicantSQL, id, robloxName).Scan(&out.ApplicantID); err != nil {
			return fmt.Errorf("%w: upsert applicant: %v", ErrDatabaseInsertFailed, err)
		}

		var open bool
		if err := tx.QueryRowContext(ctx, openRunSQL, out.ApplicantID).Scan(&open); err != nil {
			return fmt.Errorf("%w: open run check: %v", ErrDatabaseInsertFailed, err)
		}
		if open {
			return ErrDuplicateApplication
		}

		run := models.ApplicationRun{ApplicantID: out.ApplicantID, StartedAt: submittedAt, SubmittedAt: &submittedAt}
		if err := tx.QueryRowContext(ctx, insertRunSQL, run.ApplicantID, run.StartedAt).Scan(&run.ID); err != nil {
			return fmt.Errorf("%w: insert run: %v", ErrDatabaseInsertFailed, err)
		}
		out.RunID = run.ID

		for _, q := range h.questions {
			text, ok := input.Answers[q.Code]
			if !ok {
				continue
			}
			ans := models.Answer{RunID: run.ID, QuestionCode: q.Code, Text: text, CreatedAt: submittedAt}
			if _, err := tx.ExecContext(ctx, insertAnswerSQL, ans.RunID, ans.QuestionCode, ans.Text, ans.CreatedAt); err != nil {
				return fmt.Errorf("%w: insert answer %s: %v", ErrDatabaseInsertFailed, q.Code, err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateApplication) {
			return nil, apperrors.NewDuplicateSubmissionError(input.DiscordID)
		}
		metrics.StageFailures.WithLabelValues(TaskType, string(apperrors.ErrCodePersistenceFailure)).Inc()
		h.logger.Error("submission transaction failed", map[string]interface{}{
			"discordId": input.DiscordID,
			"error":     err,
		})
		return nil, apperrors.NewPersistenceFailureError("submit", err)
	}

	metrics.ApplicationsSubmitted.Inc()
	h.logger.Info("application submitted", map[string]interface{}{
		"discordId":   input.DiscordID,
		"applicantId": out.ApplicantID,
		"runId":       out.RunID,
		"answers":     len(input.Answers),
	})
	return out, nil
}
