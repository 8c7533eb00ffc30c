package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			c, err := openCache(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stats := c.Stats()
			fmt.Printf("Backend: %s\nEntries: %d\nTTL:     %s\nMax:     %d\n",
				backendName(cfg.Cache.Backend), stats.Entries, cfg.Cache.TTL, cfg.Cache.MaxSize)
			return nil
		},
	}

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			c, err := openCache(cfg, logger)
			if err != nil {
				return err
			}
			n := c.Clear(expiredOnly)
			if err := c.Close(); err != nil {
				return err
			}
			if expiredOnly {
				fmt.Printf("%d expired cache entries cleared.\n", n)
			} else {
				fmt.Printf("%d cache entries cleared.\n", n)
			}
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

func backendName(b string) string {
	if b == "" {
		return "file"
	}
	return b
}
