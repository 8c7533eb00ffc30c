// Package llm talks to OpenAI-compatible chat completion endpoints.
package llm

import (
	"context"

	"github.com/alana-ai/alana/pkg/models"
)

// Roles understood by every provider.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one chat message sent to the model.
type Message struct {
	Role    string
	Content string
}

// Completion is the model output plus the provider that produced it.
type Completion struct {
	Text     string
	Provider string
	Model    string
	Usage    models.Usage
}

// Completer returns a completion for a conversation. Implementations wrap
// failures with models.ErrCollaboratorUnavailable.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (Completion, error)
}
