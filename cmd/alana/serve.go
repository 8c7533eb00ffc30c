package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alana-ai/alana/pkg/server"
)

func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP chat and upload server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
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

			opts := server.Options{
				Listen:      cfg.Listen,
				Asker:       a.orch,
				Ingester:    a.index,
				Corpus:      a.fingerprint,
				MaxFileSize: cfg.Ingest.MaxFileSize,
				Logger:      logger,
			}
			if a.cache != nil {
				opts.Stats = a.cache.Stats
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("starting alana",
				zap.String("config", configPath),
				zap.String("index", cfg.Index.Root),
				zap.Int("documents", len(a.index.Documents())),
				zap.Bool("cache", a.cache != nil),
			)
			return server.New(opts).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "override the listen address")
	return cmd
}
