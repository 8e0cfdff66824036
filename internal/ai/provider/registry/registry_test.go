package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedProvider struct {
	name     string
	closeErr error
	closed   bool
}

func (p *namedProvider) CreateChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
	return nil, nil
}

func (p *namedProvider) CreateChatCompletionStream(ctx context.Context, req types.ChatCompletionRequest) (<-chan types.StreamChunk, error) {
	return nil, nil
}

func (p *namedProvider) Name() string { return p.name }

func (p *namedProvider) Close() error {
	p.closed = true
	return p.closeErr
}

func TestResolve(t *testing.T) {
	r := New()
	oa := &namedProvider{name: "openai"}
	an := &namedProvider{name: "anthropic"}
	local := &namedProvider{name: "local"}

	r.Register("openai", oa, Route{Models: []string{"gpt-4o"}, Prefixes: []string{"gpt-", "o1"}})
	r.Register("anthropic", an, Route{Prefixes: []string{"claude-"}})
	r.Register("local", local, Route{Models: []string{"gpt-4o-local"}, Prefixes: []string{"gpt-4o-l"}})
	r.RegisterAlias("sonnet", "claude-3-5-sonnet-20241022")

	tests := []struct {
		model     string
		want      string
		wantModel string
	}{
		{"gpt-4o", "openai", "gpt-4o"},
		{"gpt-4o-mini", "openai", "gpt-4o-mini"},
		{"gpt-4o-local", "local", "gpt-4o-local"},
		{"gpt-4o-large", "local", "gpt-4o-large"}, // 最长前缀优先
		{"claude-3-haiku-20240307", "anthropic", "claude-3-haiku-20240307"},
		{"sonnet", "anthropic", "claude-3-5-sonnet-20241022"},
		{"mistral-large", "openai", "mistral-large"}, // 默认 Provider
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			p, model, err := r.Resolve(tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
			assert.Equal(t, tt.wantModel, model)
		})
	}
}

func TestResolve_Empty(t *testing.T) {
	_, _, err := New().Resolve("gpt-4o")
	assert.ErrorIs(t, err, types.ErrModelNotRouted)
}

func TestSetDefault(t *testing.T) {
	r := New()
	r.Register("a", &namedProvider{name: "a"}, Route{})
	r.Register("b", &namedProvider{name: "b"}, Route{})

	assert.Equal(t, "a", r.Default())
	require.NoError(t, r.SetDefault("b"))
	assert.Equal(t, "b", r.Default())
	assert.Error(t, r.SetDefault("missing"))

	p, _, err := r.Resolve("anything")
	require.NoError(t, err)
	assert.Equal(t, "b", p.Name())
}

func TestListAndClose(t *testing.T) {
	r := New()
	a := &namedProvider{name: "a"}
	b := &namedProvider{name: "b", closeErr: errors.New("boom")}
	r.Register("a", a, Route{Models: []string{"m2", "m1"}})
	r.Register("b", b, Route{})
	r.Register("a", a, Route{})

	assert.Equal(t, []string{"a", "b"}, r.List())
	assert.Equal(t, []string{"m1", "m2"}, r.Models())
	assert.Equal(t, 2, r.Len())

	_, err := r.Get("b")
	require.NoError(t, err)
	_, err = r.Get("c")
	assert.Error(t, err)

	err = r.Close()
	assert.ErrorContains(t, err, "boom")
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
