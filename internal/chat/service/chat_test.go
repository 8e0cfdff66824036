package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/agentic-gateway/internal/ai/provider/registry"
	ptypes "github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
	"github.com/lk2023060901/agentic-gateway/internal/chat/biz"
	"github.com/lk2023060901/agentic-gateway/internal/chat/types"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name     string
	calls    atomic.Int32
	complete func(req ptypes.ChatCompletionRequest) (*ptypes.ChatCompletionResponse, error)
	stream   func(ctx context.Context) (<-chan ptypes.StreamChunk, error)
}

func (p *fakeProvider) CreateChatCompletion(ctx context.Context, req ptypes.ChatCompletionRequest) (*ptypes.ChatCompletionResponse, error) {
	p.calls.Add(1)
	return p.complete(req)
}

func (p *fakeProvider) CreateChatCompletionStream(ctx context.Context, req ptypes.ChatCompletionRequest) (<-chan ptypes.StreamChunk, error) {
	p.calls.Add(1)
	return p.stream(ctx)
}

func (p *fakeProvider) Name() string { return p.name }
func (p *fakeProvider) Close() error { return nil }

func newRouter(t *testing.T, providers map[string]*fakeProvider) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := registry.New()
	for model, p := range providers {
		reg.Register(model, p, registry.Route{Models: []string{model}})
	}

	svc := NewChatService(
		biz.NewEnvelope("gpt-4o", nil),
		biz.NewAdapter(reg, biz.AdapterConfig{FallbackModels: []string{"gpt-4o-mini"}}, nil, logger.Nop()),
		biz.NewRelay(logger.Nop()),
		biz.NewCatalogue(nil, time.Unix(1700000000, 0)),
		logger.Nop(),
	)

	r := gin.New()
	svc.RegisterRoutes(r.Group("/v1"))
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestCreateChatCompletion(t *testing.T) {
	p := &fakeProvider{complete: func(req ptypes.ChatCompletionRequest) (*ptypes.ChatCompletionResponse, error) {
		assert.Equal(t, 0.7, *req.Temperature)
		return &ptypes.ChatCompletionResponse{
			Model:   req.Model,
			Choices: []ptypes.Choice{{Message: ptypes.Message{Role: "assistant", Content: "hello there"}, FinishReason: "stop"}},
		}, nil
	}}
	r := newRouter(t, map[string]*fakeProvider{"gpt-4o": p})

	w := post(r, `{"messages":[{"role":"user","content":"say hi"}]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.ChatCompletionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "gpt-4o", resp.Model)
	assert.Equal(t, "hello there", resp.Choices[0].Message.Content)
	assert.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
	assert.Equal(t, 2, resp.Usage.PromptTokens)
	assert.Equal(t, 2, resp.Usage.CompletionTokens)
}

func TestCreateChatCompletion_ValidationBeforeUpstream(t *testing.T) {
	p := &fakeProvider{}
	r := newRouter(t, map[string]*fakeProvider{"gpt-4o": p})

	w := post(r, `{"model":"gpt-4o","temperature":3.0,"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.EqualValues(t, 0, p.calls.Load())

	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Detail, "temperature")
	assert.Equal(t, 1001, body.Code)

	w = post(r, `{"messages": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateChatCompletion_Exhausted(t *testing.T) {
	primary := &fakeProvider{complete: func(req ptypes.ChatCompletionRequest) (*ptypes.ChatCompletionResponse, error) {
		return nil, errors.New("primary quota exceeded")
	}}
	fallback := &fakeProvider{complete: func(req ptypes.ChatCompletionRequest) (*ptypes.ChatCompletionResponse, error) {
		return nil, errors.New("fallback down")
	}}
	r := newRouter(t, map[string]*fakeProvider{"gpt-4o": primary, "gpt-4o-mini": fallback})

	w := post(r, `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "primary quota exceeded", body.Detail)
	assert.Equal(t, 1100, body.Code)
	assert.EqualValues(t, 1, fallback.calls.Load())
}

func TestCreateChatCompletion_NoProviders(t *testing.T) {
	r := newRouter(t, nil)

	w := post(r, `{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCreateChatCompletion_Stream(t *testing.T) {
	p := &fakeProvider{stream: func(ctx context.Context) (<-chan ptypes.StreamChunk, error) {
		ch := make(chan ptypes.StreamChunk, 3)
		ch <- ptypes.StreamChunk{Choices: []ptypes.StreamChoice{{Delta: ptypes.MessageDelta{Content: "Hel"}}}}
		ch <- ptypes.StreamChunk{Choices: []ptypes.StreamChoice{{Delta: ptypes.MessageDelta{Content: "lo"}}}}
		ch <- ptypes.StreamChunk{Error: errors.New("connection reset")}
		close(ch)
		return ch, nil
	}}
	r := newRouter(t, map[string]*fakeProvider{"gpt-4o": p})

	w := post(r, `{"model":"gpt-4o","stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	frames := strings.Split(strings.TrimSuffix(w.Body.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 4)
	assert.Contains(t, frames[0], `"content":"Hel"`)
	assert.Contains(t, frames[1], `"content":"lo"`)
	assert.Equal(t, `data: {"error":{"message":"connection reset","type":"server_error"}}`, frames[2])
	assert.Equal(t, "data: [DONE]", frames[3])
}

func TestCreateChatCompletion_StreamOpenFailure(t *testing.T) {
	primary := &fakeProvider{stream: func(ctx context.Context) (<-chan ptypes.StreamChunk, error) {
		return nil, errors.New("401 unauthorized")
	}}
	fallback := &fakeProvider{}
	r := newRouter(t, map[string]*fakeProvider{"gpt-4o": primary, "gpt-4o-mini": fallback})

	w := post(r, `{"model":"gpt-4o","stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t,
		"data: {\"error\":{\"message\":\"401 unauthorized\",\"type\":\"server_error\"}}\n\ndata: [DONE]\n\n",
		w.Body.String())
	assert.EqualValues(t, 0, fallback.calls.Load())
}

func TestListModels(t *testing.T) {
	r := newRouter(t, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var list ptypes.ModelsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, "list", list.Object)
	require.Len(t, list.Data, 4)
	assert.Equal(t, "gpt-4o", list.Data[0].ID)
	assert.Equal(t, "anthropic", list.Data[3].OwnedBy)
	assert.Equal(t, int64(1700000000), list.Data[0].Created)
}
