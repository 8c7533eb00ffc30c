package mcp

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/alana-ai/alana/pkg/models"
)

func formatResponse(r models.Response) string {
	var b strings.Builder
	b.WriteString(r.Text)
	b.WriteString("\n")
	if r.Confidence != "" {
		fmt.Fprintf(&b, "\nConfianza: %s\n", r.Confidence)
	}
	if len(r.KeyPoints) > 0 {
		b.WriteString("\nPuntos clave:\n")
		for _, p := range r.KeyPoints {
			fmt.Fprintf(&b, "  - %s\n", p)
		}
	}
	if len(r.SpecificCitations) > 0 {
		b.WriteString("\nCitas:\n")
		for _, c := range r.SpecificCitations {
			fmt.Fprintf(&b, "  - %s\n", c)
		}
	}
	if len(r.Sources) > 0 {
		b.WriteString("\nFuentes:\n")
		for _, s := range r.Sources {
			if s.Page != nil {
				fmt.Fprintf(&b, "  - %s (p. %d, score %.3f)\n", s.Source, *s.Page, s.Score)
			} else {
				fmt.Fprintf(&b, "  - %s (score %.3f)\n", s.Source, s.Score)
			}
		}
	}
	if r.MissingInfo != "" {
		fmt.Fprintf(&b, "\nInformación faltante: %s\n", r.MissingInfo)
	}
	fmt.Fprintf(&b, "\n[%s", r.Outcome)
	if r.Cached {
		fmt.Fprintf(&b, ", cached %s", r.CacheType)
	}
	if r.ResponseTime != "" {
		fmt.Fprintf(&b, ", %s", r.ResponseTime)
	}
	b.WriteString("]\n")
	return b.String()
}

func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:   %d\n"+
		"  Hits:      %d\n"+
		"  Misses:    %d\n"+
		"  Evictions: %d\n"+
		"  Hit Rate:  %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, stats.Evictions, hitRate)
}

func formatUsage(rows []models.UsageSummary) string {
	if len(rows) == 0 {
		return "No usage data found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-15s %-25s %8s %10s %10s %10s\n",
		"Provider", "Model", "Requests", "Prompt", "Completion", "Total")
	b.WriteString(strings.Repeat("-", 83) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-15s %-25s %8d %10d %10d %10d\n",
			r.Provider, r.Model, r.RequestCount, r.TotalPrompt, r.TotalCompletion, r.TotalTokens)
	}
	return b.String()
}

func formatBudgetStatus(statuses []models.BudgetStatus) string {
	if len(statuses) == 0 {
		return "No budget policies found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-25s %-8s %12s %12s %12s %6s\n",
		"Model", "Period", "Max Tokens", "Used", "Remaining", "Usage%")
	b.WriteString(strings.Repeat("-", 80) + "\n")
	for _, s := range statuses {
		model := s.Policy.Model
		if model == "" {
			model = "(all)"
		}
		pct := float64(0)
		if s.Policy.MaxTokens > 0 {
			pct = float64(s.Used) / float64(s.Policy.MaxTokens) * 100
		}
		fmt.Fprintf(&b, "%-25s %-8s %12d %12d %12d %5.1f%%\n",
			model, s.Policy.Period, s.Policy.MaxTokens, s.Used, s.Remaining, pct)
	}
	return b.String()
}

func formatConversations(rows []models.Conversation) string {
	if len(rows) == 0 {
		return "No conversations found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-15s %-6s %8s  %s\n", "Time", "Outcome", "Conf", "Latency", "Question")
	b.WriteString(strings.Repeat("-", 90) + "\n")
	for _, c := range rows {
		conf := string(c.Confidence)
		if conf == "" {
			conf = "-"
		}
		fmt.Fprintf(&b, "%-20s %-15s %-6s %6dms  %s\n",
			c.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			c.Outcome, conf, c.LatencyMs, shorten(c.Question, 60))
	}
	return b.String()
}

func shorten(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
