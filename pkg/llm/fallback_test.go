package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alana-ai/alana/pkg/config"
	"github.com/alana-ai/alana/pkg/models"
)

type stubCompleter struct {
	name  string
	err   error
	calls int
}

func (s *stubCompleter) Complete(context.Context, []Message) (Completion, error) {
	s.calls++
	if s.err != nil {
		return Completion{}, s.err
	}
	return Completion{Text: "ok from " + s.name, Provider: s.name}, nil
}

func TestFallbackUsesFirstSuccess(t *testing.T) {
	first := &stubCompleter{name: "a"}
	second := &stubCompleter{name: "b"}

	out, err := NewFallback(nil, first, second).Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "a", out.Provider)
	assert.Equal(t, 0, second.calls)
}

func TestFallbackTriesNextOnServerError(t *testing.T) {
	first := &stubCompleter{name: "a", err: &StatusError{Provider: "a", Status: http.StatusBadGateway}}
	second := &stubCompleter{name: "b"}

	out, err := NewFallback(nil, first, second).Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "b", out.Provider)
}

func TestFallbackStopsOnClientError(t *testing.T) {
	first := &stubCompleter{name: "a", err: &StatusError{Provider: "a", Status: http.StatusBadRequest}}
	second := &stubCompleter{name: "b"}

	_, err := NewFallback(nil, first, second).Complete(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrCollaboratorUnavailable)
	assert.Equal(t, 0, second.calls)
}

func TestFallbackAllFail(t *testing.T) {
	first := &stubCompleter{name: "a", err: errors.New("dial tcp: refused")}
	second := &stubCompleter{name: "b", err: &StatusError{Provider: "b", Status: http.StatusTooManyRequests}}

	_, err := NewFallback(nil, first, second).Complete(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Contains(t, err.Error(), "all providers failed")
}

func TestFallbackEmptyChain(t *testing.T) {
	_, err := NewFallback(nil).Complete(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrCollaboratorUnavailable)
}

func TestFallbackStopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	first := &stubCompleter{name: "a", err: context.Canceled}
	second := &stubCompleter{name: "b"}

	_, err := NewFallback(nil, first, second).Complete(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, 0, second.calls)
}

type fixedChecker struct{ err error }

func (f fixedChecker) Check(context.Context, string) error { return f.err }

func TestBudgetedFallsThroughToNextProvider(t *testing.T) {
	exhausted := &stubCompleter{name: "expensive"}
	cheap := &stubCompleter{name: "cheap"}

	chain := NewFallback(nil,
		WithBudget(exhausted, "gpt-4o", fixedChecker{err: errors.New("budget exceeded")}),
		cheap,
	)
	out, err := chain.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "cheap", out.Provider)
	assert.Equal(t, 0, exhausted.calls)
}

func TestNewChainEndToEnd(t *testing.T) {
	bad := errorServer(t, http.StatusServiceUnavailable)
	good, _ := completionServer(t, "respuesta")

	chain := NewChain([]config.ProviderConfig{
		{Name: "primary", URL: bad.URL + "/v1", APIKey: "test-key", Model: "gpt-4o-mini"},
		{Name: "backup", URL: good.URL + "/v1", APIKey: "test-key", Model: "llama3"},
	}, 0, fixedChecker{}, nil)

	out, err := chain.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hola"}})
	require.NoError(t, err)
	assert.Equal(t, "backup", out.Provider)
	assert.Equal(t, "respuesta", out.Text)
}
