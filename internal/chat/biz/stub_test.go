package biz

import (
	"context"
	"sync/atomic"

	ptypes "github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
)

type stubProvider struct {
	name       string
	completeFn func(ctx context.Context, req ptypes.ChatCompletionRequest) (*ptypes.ChatCompletionResponse, error)
	streamFn   func(ctx context.Context, req ptypes.ChatCompletionRequest) (<-chan ptypes.StreamChunk, error)
	calls      atomic.Int32
	models     []string
}

func (p *stubProvider) CreateChatCompletion(ctx context.Context, req ptypes.ChatCompletionRequest) (*ptypes.ChatCompletionResponse, error) {
	p.calls.Add(1)
	p.models = append(p.models, req.Model)
	return p.completeFn(ctx, req)
}

func (p *stubProvider) CreateChatCompletionStream(ctx context.Context, req ptypes.ChatCompletionRequest) (<-chan ptypes.StreamChunk, error) {
	p.calls.Add(1)
	return p.streamFn(ctx, req)
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Close() error { return nil }

// mapResolver 按模型 ID 精确匹配 Provider
type mapResolver map[string]ptypes.Provider

func (m mapResolver) Resolve(model string) (ptypes.Provider, string, error) {
	if p, ok := m[model]; ok {
		return p, model, nil
	}
	return nil, model, ptypes.ErrModelNotRouted
}

func textResponse(model, content string) *ptypes.ChatCompletionResponse {
	return &ptypes.ChatCompletionResponse{
		ID:      "resp-" + model,
		Object:  ptypes.ObjectChatCompletion,
		Created: 1700000000,
		Model:   model,
		Choices: []ptypes.Choice{{
			Message:      ptypes.Message{Role: ptypes.RoleAssistant, Content: content},
			FinishReason: ptypes.FinishReasonStop,
		}},
	}
}

func chunks(items ...ptypes.StreamChunk) <-chan ptypes.StreamChunk {
	ch := make(chan ptypes.StreamChunk, len(items))
	for _, item := range items {
		ch <- item
	}
	close(ch)
	return ch
}

func contentChunk(content string) ptypes.StreamChunk {
	return ptypes.StreamChunk{Choices: []ptypes.StreamChoice{{Delta: ptypes.MessageDelta{Content: content}}}}
}
