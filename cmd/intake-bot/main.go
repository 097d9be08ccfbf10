// cmd/intake-bot/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"intake-bot/internal/common/config"
	"intake-bot/internal/common/logger"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "intake-bot",
		Short:         "Medical Department intake and onboarding bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a config file (default: ./configs/config.yaml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Connect to the gateway and handle applications",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the schema and seed the question set, then exit",
			RunE:  runMigrate,
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// bootLogger loads config and builds the process logger from it.
func bootLogger() (*config.Config, *zap.Logger, logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("config load failed: %w", err)
	}
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, zapLog, logger.NewZapAdapter(zapLog), nil
}
