// Package mcp exposes the question answering pipeline as a Model Context
// Protocol server over stdio, one JSON-RPC message per line.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/alana-ai/alana/pkg/models"
)

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, question string) (models.Response, error)
}

// CacheStatter reports response cache counters.
type CacheStatter interface {
	Stats() models.CacheStats
}

// UsageSummarizer aggregates recorded token usage.
type UsageSummarizer interface {
	Summary(ctx context.Context) ([]models.UsageSummary, error)
}

// BudgetStatuser reports token budget consumption.
type BudgetStatuser interface {
	Status(ctx context.Context) ([]models.BudgetStatus, error)
}

// AuditSearcher queries the conversation log.
type AuditSearcher interface {
	Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.Conversation, error)
}

// Deps are the collaborators behind the tools. Only Asker is required;
// tools whose collaborator is nil report that the feature is off.
type Deps struct {
	Asker   Asker
	Cache   CacheStatter
	Usage   UsageSummarizer
	Budget  BudgetStatuser
	Audit   AuditSearcher
	Version string
	Logger  *zap.Logger
}

// Server is a stdio MCP server.
type Server struct {
	deps   Deps
	logger *zap.Logger
}

// New creates a Server.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Server{deps: deps, logger: deps.Logger}
}

// Run reads requests from r and writes responses to w until r is exhausted
// or ctx is canceled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(enc, rpcError(nil, CodeParseError, "parse error"))
			continue
		}
		if resp := s.dispatch(ctx, &req); resp != nil {
			s.write(enc, resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return result(req.ID, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      ServerInfo{Name: "alana", Version: s.deps.Version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
			Instructions:    "Answers questions about the indexed documents. Use alana_ask for questions.",
		})
	case "ping":
		return result(req.ID, map[string]any{})
	case "tools/list":
		return result(req.ID, ToolsListResult{Tools: toolDefinitions()})
	case "tools/call":
		var params ToolCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return rpcError(req.ID, CodeInvalidParams, "invalid params")
		}
		t, ok := toolByName(params.Name)
		if !ok {
			return result(req.ID, errorResult(fmt.Sprintf("unknown tool: %s", params.Name)))
		}
		return result(req.ID, t.handle(ctx, s, params.Arguments))
	}
	if req.IsNotification() {
		return nil
	}
	return rpcError(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
}

func (s *Server) write(enc *json.Encoder, resp *Response) {
	if err := enc.Encode(resp); err != nil {
		s.logger.Warn("mcp write failed", zap.Error(err))
	}
}
