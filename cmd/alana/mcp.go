package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alana-ai/alana/pkg/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the answer pipeline as an MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			deps := mcp.Deps{Asker: a.orch, Version: version, Logger: logger}
			if a.cache != nil {
				deps.Cache = a.cache
			}
			if a.tracker != nil {
				deps.Usage = a.tracker
			}
			if a.enforcer != nil {
				deps.Budget = a.enforcer
			}
			if a.audit != nil {
				deps.Audit = a.audit
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return mcp.New(deps).Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
