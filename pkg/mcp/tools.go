package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alana-ai/alana/pkg/models"
)

type askArgs struct {
	Question string `json:"question"`
}

type auditSearchArgs struct {
	Contains   string `json:"contains"`
	Outcome    string `json:"outcome"`
	Confidence string `json:"confidence"`
	Since      string `json:"since"`
	Limit      int    `json:"limit"`
}

type tool struct {
	def    ToolDefinition
	handle func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult
}

func object(required []string, props map[string]any) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

var tools = []tool{
	{
		def: ToolDefinition{
			Name:        "alana_ask",
			Description: "Answer a question from the indexed documents, with sources and a confidence level.",
			InputSchema: object([]string{"question"}, map[string]any{
				"question": prop("string", "The question to answer"),
			}),
		},
		handle: handleAsk,
	},
	{
		def: ToolDefinition{
			Name:        "alana_cache_stats",
			Description: "Show response cache entries, hits, misses and evictions.",
			InputSchema: object(nil, map[string]any{}),
		},
		handle: handleCacheStats,
	},
	{
		def: ToolDefinition{
			Name:        "alana_usage",
			Description: "Show token usage aggregated by provider and model.",
			InputSchema: object(nil, map[string]any{}),
		},
		handle: handleUsage,
	},
	{
		def: ToolDefinition{
			Name:        "alana_budget",
			Description: "Show token budget consumption for every configured policy.",
			InputSchema: object(nil, map[string]any{}),
		},
		handle: handleBudget,
	},
	{
		def: ToolDefinition{
			Name:        "alana_audit_search",
			Description: "Search past conversations by text, outcome, confidence or age.",
			InputSchema: object(nil, map[string]any{
				"contains":   prop("string", "Substring of the question or answer"),
				"outcome":    prop("string", "answered, direct, local_fallback, unavailable or cache_hit"),
				"confidence": prop("string", "alta, media or baja"),
				"since":      prop("string", "Only entries newer than this duration, e.g. 24h"),
				"limit":      prop("integer", "Maximum rows (default 20)"),
			}),
		},
		handle: handleAuditSearch,
	},
}

func toolDefinitions() []ToolDefinition {
	defs := make([]ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = t.def
	}
	return defs
}

func toolByName(name string) (tool, bool) {
	for _, t := range tools {
		if t.def.Name == name {
			return t, true
		}
	}
	return tool{}, false
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(msg string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: msg}}, IsError: true}
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func handleAsk(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args askArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	if strings.TrimSpace(args.Question) == "" {
		return errorResult("question is required")
	}
	if s.deps.Asker == nil {
		return errorResult("answering is not configured")
	}
	resp, err := s.deps.Asker.Ask(ctx, args.Question)
	if err != nil {
		return errorResult(fmt.Sprintf("ask: %v", err))
	}
	s.logger.Debug("mcp ask", zap.String("outcome", string(resp.Outcome)), zap.Bool("cached", resp.Cached))
	return textResult(formatResponse(resp))
}

func handleCacheStats(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.deps.Cache == nil {
		return textResult("Cache is not configured.")
	}
	return textResult(formatCacheStats(s.deps.Cache.Stats()))
}

func handleUsage(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.deps.Usage == nil {
		return textResult("Usage tracking is not configured.")
	}
	rows, err := s.deps.Usage.Summary(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("usage summary: %v", err))
	}
	return textResult(formatUsage(rows))
}

func handleBudget(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.deps.Budget == nil {
		return textResult("Budget enforcement is not configured.")
	}
	statuses, err := s.deps.Budget.Status(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("budget status: %v", err))
	}
	return textResult(formatBudgetStatus(statuses))
}

func handleAuditSearch(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	if s.deps.Audit == nil {
		return textResult("Conversation log is not configured.")
	}
	var args auditSearchArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	opts := models.AuditQueryOpts{
		Contains: args.Contains,
		Outcome:  models.Outcome(args.Outcome),
		Limit:    args.Limit,
	}
	if args.Confidence != "" {
		opts.Confidence = models.ParseConfidence(args.Confidence)
		if opts.Confidence == "" {
			return errorResult("confidence must be alta, media or baja")
		}
	}
	if args.Since != "" {
		d, err := time.ParseDuration(args.Since)
		if err != nil {
			return errorResult("invalid since: " + err.Error())
		}
		opts.Since = time.Now().Add(-d)
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	rows, err := s.deps.Audit.Query(ctx, opts)
	if err != nil {
		return errorResult(fmt.Sprintf("audit search: %v", err))
	}
	return textResult(formatConversations(rows))
}
