package llm

import (
	"context"
	"fmt"

	"github.com/alana-ai/alana/pkg/models"
)

// BudgetChecker reports whether a model may still be called.
type BudgetChecker interface {
	Check(ctx context.Context, model string) error
}

// Budgeted refuses calls once the budget for the wrapped client's model is used up.
type Budgeted struct {
	next    Completer
	model   string
	checker BudgetChecker
}

// WithBudget wraps next so each call is checked against checker first.
func WithBudget(next Completer, model string, checker BudgetChecker) *Budgeted {
	return &Budgeted{next: next, model: model, checker: checker}
}

// Complete implements Completer.
func (b *Budgeted) Complete(ctx context.Context, messages []Message) (Completion, error) {
	if err := b.checker.Check(ctx, b.model); err != nil {
		return Completion{}, fmt.Errorf("%s: %w: %w", b.model, models.ErrCollaboratorUnavailable, err)
	}
	return b.next.Complete(ctx, messages)
}
