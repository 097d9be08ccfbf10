// cmd/intake-bot/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"intake-bot/internal/app"
	"intake-bot/internal/common/audit"
	"intake-bot/internal/common/aws"
	"intake-bot/internal/common/config"
	"intake-bot/internal/common/database"
	"intake-bot/internal/common/discord"
	"intake-bot/internal/common/logger"
	"intake-bot/internal/common/observability"
	"intake-bot/internal/common/roblox"
	"intake-bot/internal/models"
	"intake-bot/pkg/registry"

	cpr "intake-bot/internal/workers/application/check-priority-routing"
	crs "intake-bot/internal/workers/application/check-readiness-score"
	car "intake-bot/internal/workers/application/create-application-record"
	om "intake-bot/internal/workers/application/onboard-member"
	pa "intake-bot/internal/workers/application/process-application"
	rd "intake-bot/internal/workers/application/record-decision"
	sn "intake-bot/internal/workers/application/send-notification"
	vi "intake-bot/internal/workers/application/verify-identity"
)

const submitLockPrefix = "intake:submit:"

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, zapLog, log, err := bootLogger()
	if err != nil {
		return err
	}
	defer zapLog.Sync()

	zapLog.Info("Starting intake bot...", zap.String("version", cfg.App.Version), zap.String("environment", cfg.App.Environment))

	questions, err := registry.LoadQuestions(cfg.Application.QuestionsFile)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	obs := observability.New(cfg.Observability.ServiceName, cfg.Observability.TracingEnabled, nil)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := connectStores(ctx, cfg, zapLog)
	if err != nil {
		return err
	}
	defer st.Close(zapLog)

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsDirectMessages

	bot, err := buildApp(ctx, cfg, questions, st, session, obs, log, zapLog)
	if err != nil {
		return err
	}

	session.AddHandler(bot.OnReady)
	session.AddHandler(bot.OnInteractionCreate)
	session.AddHandler(bot.OnMessageCreate)

	if err := session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	zapLog.Info("Gateway session opened")

	// --- Health & Metrics Server ---
	addr := cfg.Server.Address
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           newHealthMux(bot.Ready),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, closing gateway...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := session.Close(); err != nil {
		zapLog.Error("Error closing gateway session", zap.Error(err))
	}

	zapLog.Info("Intake bot stopped gracefully", zap.Int("openSessions", bot.Sessions().Len()))
	return nil
}

// buildApp wires the pipeline stages to the stores and the chat session.
// Optional services are only assigned to interfaces when configured.
func buildApp(
	ctx context.Context,
	cfg *config.Config,
	questions models.QuestionSet,
	st *stores,
	session discord.Session,
	obs *observability.Observability,
	log logger.Logger,
	zapLog *zap.Logger,
) (*app.App, error) {
	db := st.pg.DB

	var indexer audit.Indexer
	if st.es != nil {
		indexer = st.es
	}
	auditSink := audit.NewSink(session, cfg.Application.LogChannelID, indexer, cfg.Database.Elasticsearch.AuditIndex, log)

	locker := database.NewLocker(st.redis.Client, submitLockPrefix)
	ranks := roblox.NewClient(cfg.RankService, st.redis.Client, log)
	if !ranks.Enabled() {
		zapLog.Warn("Rank service not configured; onboarding will skip group steps")
	}

	var email sn.EmailSender
	var alerts sn.AlertPublisher
	if cfg.Notifications.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		email = sesClient
	}
	if cfg.Notifications.Alerts.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		alerts = snsClient
	}

	scoreCfg := crs.FromScoring(cfg.Scoring)
	provider, err := crs.NewProvider(scoreCfg)
	if err != nil {
		return nil, fmt.Errorf("scoring provider: %w", err)
	}

	records := car.NewHandler(nil, db, locker, questions, log)
	scorer := crs.NewHandler(scoreCfg, provider, obs, log)
	ledger := rd.NewHandler(rd.FromApplication(cfg.Application), db, log)
	notifier := sn.NewHandler(sn.FromConfig(cfg), session, email, alerts, log)
	identity := vi.NewHandler(nil, db, ranks, auditSink, log)
	router := cpr.NewHandler(cpr.FromApplication(cfg.Application), log)

	onboarder := om.NewHandler(om.FromConfig(cfg), om.Deps{
		DB:       db,
		Session:  session,
		Ranks:    ranks,
		Identity: identity,
		Notifier: notifier,
		Ledger:   ledger,
		Audit:    auditSink,
		Obs:      obs,
	}, log)

	pipeline := pa.NewHandler(nil, pa.Deps{
		Submitter: records,
		Scorer:    scorer,
		Router:    router,
		Ledger:    ledger,
		Onboarder: onboarder,
		Notifier:  notifier,
		Audit:     auditSink,
		Obs:       obs,
	}, log)

	zapLog.Info("Pipeline stages wired",
		zap.String("scoringProvider", cfg.Scoring.Provider),
		zap.Bool("auditIndex", st.es != nil),
		zap.Bool("staffEmail", email != nil),
		zap.Bool("opsAlerts", alerts != nil),
	)

	return app.New(app.FromConfig(cfg), app.Deps{
		Session:   session,
		Questions: questions,
		Gateway:   records,
		Pipeline:  pipeline,
		Verifier:  identity,
		Schema: func(ctx context.Context) error {
			return database.EnsureSchema(ctx, db, questions)
		},
	}, log)
}
