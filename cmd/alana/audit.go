package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alana-ai/alana/pkg/audit"
	"github.com/alana-ai/alana/pkg/models"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and manage the conversation log",
	}

	cmd.AddCommand(
		newAuditSearchCmd(),
		newAuditShowCmd(),
		newAuditStatsCmd(),
		newAuditCleanupCmd(),
	)
	return cmd
}

func newAuditSearchCmd() *cobra.Command {
	var (
		contains   string
		outcome    string
		confidence string
		since      string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search logged conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openConversationLog()
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.AuditQueryOpts{
				Contains: contains,
				Outcome:  models.Outcome(outcome),
				Limit:    limit,
			}
			if confidence != "" {
				opts.Confidence = models.ParseConfidence(confidence)
				if opts.Confidence == "" {
					return fmt.Errorf("invalid --confidence %q (use alta, media or baja)", confidence)
				}
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			rows, err := l.Query(context.Background(), opts)
			if err != nil {
				return err
			}
			fmt.Print(formatConversations(rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&contains, "contains", "", "substring of the question or answer")
	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome")
	cmd.Flags().StringVar(&confidence, "confidence", "", "filter by confidence")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")

	return cmd
}

func newAuditShowCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one logged conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id is required")
			}

			l, cleanup, err := openConversationLog()
			if err != nil {
				return err
			}
			defer cleanup()

			rows, err := l.Query(context.Background(), models.AuditQueryOpts{ID: id, Limit: 1})
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("No conversation found for that ID.")
				return nil
			}

			c := rows[0]
			fmt.Printf("ID:         %s\n", c.ID)
			fmt.Printf("Time:       %s\n", c.CreatedAt.Format(time.RFC3339))
			fmt.Printf("Outcome:    %s\n", c.Outcome)
			fmt.Printf("Confidence: %s\n", c.Confidence)
			fmt.Printf("Cached:     %t\n", c.Cached)
			fmt.Printf("Latency:    %dms\n", c.LatencyMs)
			fmt.Printf("\n--- Question ---\n%s\n", c.Question)
			fmt.Printf("\n--- Answer ---\n%s\n", c.Answer)
			if len(c.Sources) > 0 {
				fmt.Println("\n--- Sources ---")
				for _, s := range c.Sources {
					fmt.Printf("%s (%.3f)\n", s.Source, s.Score)
				}
			}
			for _, ref := range c.Citations {
				fmt.Printf("cita: %s\n", ref)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "conversation ID to show")
	return cmd
}

func newAuditStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show conversation counts by outcome and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openConversationLog()
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := l.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Print(formatAuditStats(stats))
			return nil
		},
	}
}

func newAuditCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete conversations older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openConversationLog()
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := l.Cleanup(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d conversations.\n", deleted)
			return nil
		},
	}
}

func openConversationLog() (*audit.Logger, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	l, err := audit.New(cfg.Audit)
	if err != nil {
		return nil, nil, fmt.Errorf("open conversation log: %w", err)
	}
	return l, func() { _ = l.Close() }, nil
}

func formatConversations(rows []models.Conversation) string {
	if len(rows) == 0 {
		return "No conversations found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-15s %-6s %8s %-20s %s\n",
		"ID", "OUTCOME", "CONF", "LATENCY", "TIME", "QUESTION")
	b.WriteString(strings.Repeat("-", 130) + "\n")
	for _, c := range rows {
		q := strings.Join(strings.Fields(c.Question), " ")
		if r := []rune(q); len(r) > 40 {
			q = string(r[:37]) + "..."
		}
		fmt.Fprintf(&b, "%-36s %-15s %-6s %6dms %-20s %s\n",
			c.ID, c.Outcome, c.Confidence, c.LatencyMs,
			c.CreatedAt.Format("2006-01-02 15:04:05"), q)
	}
	return b.String()
}

func formatAuditStats(stats []models.AuditStat) string {
	if len(stats) == 0 {
		return "No conversation stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-15s %-12s %8s\n", "OUTCOME", "DAY", "COUNT")
	b.WriteString(strings.Repeat("-", 37) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-15s %-12s %8d\n", s.Outcome, s.Day, s.Count)
	}
	return b.String()
}
