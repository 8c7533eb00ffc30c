package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alana-ai/alana/pkg/config"
	"github.com/alana-ai/alana/pkg/logging"
)

var version = "dev"

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "alana",
		Short:         "Alana: answers questions about your documents",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "alana.yaml", "path to config file")

	root.AddCommand(
		newServeCmd(),
		newAskCmd(),
		newIngestCmd(),
		newCacheCmd(),
		newAuditCmd(),
		newStatsCmd(),
		newBudgetCmd(),
		newMCPCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when it does not exist.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format)
}
