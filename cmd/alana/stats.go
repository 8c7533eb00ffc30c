package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alana-ai/alana/pkg/tracker"
)

func newStatsCmd() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show token usage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			tr, err := tracker.New(cfg.Tracker.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			ctx := context.Background()

			if recent > 0 {
				recs, err := tr.Recent(ctx, time.Time{}, recent)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Println("No usage data found.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tPROVIDER\tMODEL\tPROMPT\tCOMPLETION\tTOTAL")
				for _, r := range recs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
						r.CreatedAt.Local().Format("2006-01-02T15:04:05"), r.Provider, r.Model,
						r.PromptTokens, r.CompletionTokens, r.TotalTokens)
				}
				return w.Flush()
			}

			summaries, err := tr.Summary(ctx)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No usage data found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODEL\tREQUESTS\tPROMPT\tCOMPLETION\tTOTAL")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n",
					s.Provider, s.Model, s.RequestCount, s.TotalPrompt, s.TotalCompletion, s.TotalTokens)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&recent, "recent", 0, "list the N most recent model calls instead of the summary")
	return cmd
}
