package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/alana-ai/alana/pkg/models"
)

// Fallback tries each Completer in order until one succeeds.
type Fallback struct {
	chain  []Completer
	logger *zap.Logger
}

// NewFallback returns a Fallback over chain.
func NewFallback(logger *zap.Logger, chain ...Completer) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{chain: chain, logger: logger}
}

// Complete implements Completer. A non-retryable error stops the chain.
func (f *Fallback) Complete(ctx context.Context, messages []Message) (Completion, error) {
	if len(f.chain) == 0 {
		return Completion{}, fmt.Errorf("no providers configured: %w", models.ErrCollaboratorUnavailable)
	}

	var errs []error
	for i, c := range f.chain {
		out, err := c.Complete(ctx, messages)
		if err == nil {
			return out, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil || !isRetryable(err) {
			break
		}
		if i+1 < len(f.chain) {
			f.logger.Warn("provider failed, trying next", zap.Int("attempt", i+1), zap.Error(err))
		}
	}
	return Completion{}, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}

// isRetryable reports whether the next provider should be tried. Malformed
// requests are final; auth and missing-model errors are provider specific.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Status >= 500 || se.Status == 0 {
			return true
		}
		switch se.Status {
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return true
		}
		return false
	}
	return true
}
