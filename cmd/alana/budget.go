package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alana-ai/alana/pkg/budget"
	"github.com/alana-ai/alana/pkg/tracker"
)

func newBudgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Inspect token budgets",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show budget usage vs limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Budget.Enabled {
				fmt.Println("Budget enforcement is disabled.")
				return nil
			}

			tr, err := tracker.New(cfg.Tracker.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			statuses, err := budget.New(cfg.Budget.Policies, tr).Status(context.Background())
			if err != nil {
				return err
			}
			if len(statuses) == 0 {
				fmt.Println("No budget policies configured.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tPERIOD\tMAX TOKENS\tUSED\tREMAINING")
			for _, s := range statuses {
				model := s.Policy.Model
				if model == "" {
					model = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n",
					model, s.Policy.Period, s.Policy.MaxTokens, s.Used, s.Remaining)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(statusCmd)
	return cmd
}
