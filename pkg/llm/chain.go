package llm

import (
	"time"

	"go.uber.org/zap"

	"github.com/alana-ai/alana/pkg/config"
)

// NewChain builds the provider fallback chain from configuration. When
// checker is non-nil every provider is gated by the token budget.
func NewChain(providers []config.ProviderConfig, timeout time.Duration, checker BudgetChecker, logger *zap.Logger) *Fallback {
	chain := make([]Completer, 0, len(providers))
	for _, p := range providers {
		var c Completer = NewClient(Config{
			Name:        p.Name,
			BaseURL:     p.URL,
			APIKey:      p.APIKey,
			Model:       p.Model,
			Temperature: p.Temperature,
			Timeout:     timeout,
			Logger:      logger,
		})
		if checker != nil {
			c = WithBudget(c, p.Model, checker)
		}
		chain = append(chain, c)
	}
	return NewFallback(logger, chain...)
}
