package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alana-ai/alana/pkg/models"
)

func newAskCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
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

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			resp, err := a.orch.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printResponse(resp)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	return cmd
}

func printResponse(r models.Response) {
	fmt.Println(r.Text)
	if r.Confidence != "" {
		fmt.Printf("\nConfianza: %s\n", r.Confidence)
	}
	for _, p := range r.KeyPoints {
		fmt.Printf("  • %s\n", p)
	}
	if len(r.Sources) > 0 {
		fmt.Println("\nFuentes:")
		for _, s := range r.Sources {
			if s.Page != nil {
				fmt.Printf("  %s, p. %d (%.3f)\n", s.Source, *s.Page, s.Score)
			} else {
				fmt.Printf("  %s (%.3f)\n", s.Source, s.Score)
			}
		}
	}
	status := string(r.Outcome)
	if r.Cached {
		status += ", cached"
	}
	fmt.Fprintf(os.Stderr, "\n[%s in %s]\n", status, r.ResponseTime)
}
