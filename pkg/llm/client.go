package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/alana-ai/alana/pkg/metrics"
	"github.com/alana-ai/alana/pkg/models"
)

// Config holds the settings of one provider.
type Config struct {
	Name        string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature *float32
	Timeout     time.Duration
	Logger      *zap.Logger
}

// Client is a Completer backed by one OpenAI-compatible provider.
type Client struct {
	client      *openai.Client
	name        string
	model       string
	temperature *float32
	timeout     time.Duration
	logger      *zap.Logger
}

// NewClient creates a Client for cfg.
func NewClient(cfg Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		client:      openai.NewClientWithConfig(clientCfg),
		name:        cfg.Name,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return c.name }

// Model returns the model the client requests.
func (c *Client) Model() string { return c.model }

// Complete implements Completer.
func (c *Client) Complete(ctx context.Context, messages []Message) (Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if c.temperature != nil {
		req.Temperature = *c.temperature
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(c.name, c.model, "error").Inc()
		return Completion{}, c.parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(c.name, c.model, "error").Inc()
		return Completion{}, fmt.Errorf("%s: empty completion: %w", c.name, models.ErrCollaboratorUnavailable)
	}

	metrics.LLMRequestsTotal.WithLabelValues(c.name, c.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(c.name, c.model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues(c.name, c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokensTotal.WithLabelValues(c.name, c.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	c.logger.Debug("completion received",
		zap.String("provider", c.name),
		zap.String("model", c.model),
		zap.String("served_by", resp.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", duration),
	)

	return Completion{
		Text:     resp.Choices[0].Message.Content,
		Provider: c.name,
		Model:    c.model,
		Usage: models.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// StatusError carries the HTTP status an upstream answered with.
type StatusError struct {
	Provider string
	Status   int
	Message  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: upstream error %d: %s", e.Provider, e.Status, e.Message)
}

func (e *StatusError) Unwrap() error { return models.ErrCollaboratorUnavailable }

func (c *Client) parseAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", c.name, models.ErrCollaboratorUnavailable, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := extractMessage(reqErr.Body)
		if msg == "" {
			msg = string(reqErr.Body)
		}
		return &StatusError{Provider: c.name, Status: reqErr.HTTPStatusCode, Message: msg}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: c.name, Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}

	return fmt.Errorf("%s: request failed: %v: %w", c.name, err, models.ErrCollaboratorUnavailable)
}

// extractMessage pulls a readable message out of a non-standard error body.
func extractMessage(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return parsed.Detail
}
