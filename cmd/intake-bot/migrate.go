// cmd/intake-bot/migrate.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"intake-bot/internal/common/database"
	"intake-bot/pkg/registry"
)

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, zapLog, _, err := bootLogger()
	if err != nil {
		return err
	}
	defer zapLog.Sync()

	questions, err := registry.LoadQuestions(cfg.Application.QuestionsFile)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	pg, err := connectPostgres(ctx, cfg.Database.Postgres, zapLog)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := database.EnsureSchema(ctx, pg.DB, questions); err != nil {
		return fmt.Errorf("schema bootstrap: %w", err)
	}
	zapLog.Info("Schema ready", zap.Int("questions", len(questions)))
	return nil
}
