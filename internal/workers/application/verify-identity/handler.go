// internal/workers/application/verify-identity/handler.go
package verifyidentity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"intake-bot/internal/common/database"
	"intake-bot/internal/common/discord"
	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/roblox"
	"intake-bot/internal/models"

	"github.com/lib/pq"
)

const (
	TaskType = "verify-identity"
)

var (
	ErrIdentityTaken = errors.New("IDENTITY_ALREADY_LINKED")
)

const uniqueViolation = "23505"

const (
	upsertLinkSQL = `
		INSERT INTO roblox_verification (discord_id, roblox_id) VALUES ($1, $2)
		ON CONFLICT (discord_id) DO UPDATE SET roblox_id = EXCLUDED.roblox_id`

	updateApplicantIdentitySQL = `
		UPDATE applicants SET roblox_user_id = $1, roblox_username = $2, updated_at = now()
		WHERE discord_id = $3`
)

// Resolver is satisfied by *roblox.Client.
type Resolver interface {
	LookupUser(ctx context.Context, username string) (*roblox.User, error)
}

// Auditor is satisfied by *audit.Sink.
type Auditor interface {
	LogFor(ctx context.Context, userID, title, description string)
}

type Handler struct {
	config   *Config
	db       *sql.DB
	resolver Resolver
	audit    Auditor
	logger   logger.Logger
}

func NewHandler(config *Config, db *sql.DB, resolver Resolver, audit Auditor, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config:   config,
		db:       db,
		resolver: resolver,
		audit:    audit,
		logger:   logger.ForStage(log, TaskType),
	}
}

// Resolve maps a username to the external account.
func (h *Handler) Resolve(ctx context.Context, username string) (*roblox.User, error) {
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}
	return h.resolver.LookupUser(ctx, username)
}

// Link stores the identity link and mirrors it onto the applicant row.
func (h *Handler) Link(ctx context.Context, discordID string, user *roblox.User) (*models.IdentityLink, error) {
	id, err := models.ParseSnowflake(discordID)
	if err != nil {
		return nil, apperrors.NewPersistenceFailureError("link identity", err)
	}

	err = database.WithTx(ctx, h.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertLinkSQL, id, user.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, updateApplicantIdentitySQL, user.ID, user.Name, id)
		return err
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, fmt.Errorf("%w: roblox id %d", ErrIdentityTaken, user.ID)
		}
		return nil, apperrors.NewPersistenceFailureError("link identity", err)
	}

	return &models.IdentityLink{DiscordID: discordID, RobloxID: user.ID, RobloxName: user.Name}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	user, err := h.Resolve(ctx, input.RobloxUsername)
	if err != nil {
		if errors.Is(err, roblox.ErrUserNotFound) {
			return &Output{Message: msgNotFound}, nil
		}
		h.logger.Warn("username lookup failed", map[string]interface{}{
			"discordId": input.DiscordID,
			"error":     err,
		})
		return &Output{Message: msgLookupError}, apperrors.NewExternalServiceError("roblox users", err)
	}

	link, err := h.Link(ctx, input.DiscordID, user)
	if err != nil {
		if errors.Is(err, ErrIdentityTaken) {
			return &Output{Message: msgTaken}, err
		}
		return &Output{Message: msgSaveError}, err
	}

	if h.audit != nil {
		h.audit.LogFor(ctx, input.DiscordID, "Verification Linked",
			fmt.Sprintf("User: %s\nRoblox: **%s** (`%d`)", discord.Mention(input.DiscordID), user.Name, user.ID))
	}
	h.logger.Info("identity linked", map[string]interface{}{
		"discordId": input.DiscordID,
		"robloxId":  user.ID,
	})
	return &Output{Link: link, Message: fmt.Sprintf(msgVerified, user.Name)}, nil
}
