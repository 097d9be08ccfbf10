// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"

	"intake-bot/internal/common/database"
	"intake-bot/internal/common/discord"
	apperrors "intake-bot/internal/common/errors"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/models"
	processapplication "intake-bot/internal/workers/application/process-application"
	verifyidentity "intake-bot/internal/workers/application/verify-identity"

	"github.com/bwmarrin/discordgo"
)

const (
	TaskType = "interaction"

	CommandApply  = "apply"
	CommandVerify = "verify"

	optionUsername = "roblox_username"
)

var (
	ErrMissingDependency = errors.New("MISSING_DEPENDENCY")
)

// Gateway is the applicant bookkeeping done before the first question.
type Gateway interface {
	CheckEligible(ctx context.Context, discordID string) error
	EnsureApplicantRow(ctx context.Context, discordID string) error
}

type Pipeline interface {
	Execute(ctx context.Context, input *processapplication.Input) (*processapplication.Output, error)
}

type Verifier interface {
	Execute(ctx context.Context, input *verifyidentity.Input) (*verifyidentity.Output, error)
}

// Deps is everything the interaction layer calls into. Schema is optional
// and runs once with command registration.
type Deps struct {
	Session   discord.Session
	Waiter    *discord.MessageWaiter
	Questions models.QuestionSet
	Gateway   Gateway
	Pipeline  Pipeline
	Verifier  Verifier
	Schema    func(ctx context.Context) error
}

// App routes chat interactions to the wizard and the pipeline.
type App struct {
	config    *Config
	deps      Deps
	sessions  *SessionRegistry
	bootstrap *database.Bootstrapper
	errs      *apperrors.ErrorHandler
	logger    logger.Logger
}

func New(config *Config, deps Deps, log logger.Logger) (*App, error) {
	if config == nil {
		config = LoadConfig()
	}
	if deps.Session == nil || deps.Gateway == nil || deps.Pipeline == nil {
		return nil, fmt.Errorf("%w: session, gateway and pipeline are required", ErrMissingDependency)
	}
	if len(deps.Questions) == 0 {
		return nil, fmt.Errorf("%w: question set is empty", ErrMissingDependency)
	}
	if deps.Waiter == nil {
		deps.Waiter = discord.NewMessageWaiter()
	}

	scoped := logger.ForStage(log, TaskType)
	a := &App{
		config:   config,
		deps:     deps,
		sessions: NewSessionRegistry(),
		errs:     apperrors.NewErrorHandler(scoped),
		logger:   scoped,
	}
	a.bootstrap = database.NewBootstrapper(a.setup)
	return a, nil
}

func (a *App) Sessions() *SessionRegistry { return a.sessions }

// Ready reports whether the schema and commands are in place.
func (a *App) Ready() bool { return a.bootstrap.Done() }

// Commands are the slash commands the bot registers.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        CommandApply,
			Description: "Apply to the Medical Department",
		},
		{
			Name:        CommandVerify,
			Description: "Link your Roblox account",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionUsername,
					Description: "Your Roblox username",
					Required:    true,
				},
			},
		},
	}
}

// Bootstrap prepares the schema and registers commands once per process.
func (a *App) Bootstrap(ctx context.Context) error {
	return a.bootstrap.Ensure(ctx)
}

func (a *App) setup(ctx context.Context) error {
	if a.deps.Schema != nil {
		if err := a.deps.Schema(ctx); err != nil {
			return err
		}
	}
	if _, err := a.deps.Session.ApplicationCommandBulkOverwrite(a.config.AppID, a.config.GuildID, Commands()); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	a.logger.Info("commands registered", map[string]interface{}{"guildId": a.config.GuildID})
	return nil
}

// OnReady is registered with the gateway session.
func (a *App) OnReady(_ *discordgo.Session, r *discordgo.Ready) {
	if err := a.Bootstrap(context.Background()); err != nil {
		a.logger.Error("bootstrap failed", map[string]interface{}{"error": err})
		return
	}
	if r != nil && r.User != nil {
		a.logger.Info("gateway ready", map[string]interface{}{"user": r.User.Username})
	}
}

// OnInteractionCreate is registered with the gateway session.
func (a *App) OnInteractionCreate(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	if ic == nil || ic.Interaction == nil {
		return
	}
	a.HandleInteraction(context.Background(), ic.Interaction)
}

// OnMessageCreate feeds typed answers to waiting sessions.
func (a *App) OnMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	a.deps.Waiter.OnMessageCreate(s, m)
}
