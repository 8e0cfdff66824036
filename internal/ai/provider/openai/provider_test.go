package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := New(&types.Config{
		APIKey:  "sk-test",
		BaseURL: server.URL + "/v1",
		Timeout: 5 * time.Second,
		Headers: map[string]string{"X-Gateway": "test"},
	})
	require.NoError(t, err)
	return p
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestCreateChatCompletion(t *testing.T) {
	var captured map[string]interface{}
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "test", r.Header.Get("X-Gateway"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1700000000, "model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 99}
		}`)
	})

	resp, err := p.CreateChatCompletion(context.Background(), types.ChatCompletionRequest{
		Model:       "gpt-4o",
		Messages:    []types.Message{{Role: types.RoleUser, Content: "hi"}},
		Temperature: floatPtr(0),
		MaxTokens:   intPtr(16),
	})
	require.NoError(t, err)

	assert.Equal(t, "chatcmpl-1", resp.ID)
	assert.Equal(t, "hello", resp.Content())
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 4, resp.Usage.TotalTokens)

	// 显式的 temperature=0 仍需发送给上游
	assert.Contains(t, captured, "temperature")
	assert.EqualValues(t, 16, captured["max_tokens"])
	assert.NotContains(t, captured, "top_p")
}

func TestCreateChatCompletion_ToolCalls(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		tools := req["tools"].([]interface{})
		require.Len(t, tools, 1)

		fmt.Fprint(w, `{
			"id": "chatcmpl-2", "model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {"role": "assistant", "content": "",
				"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "web_search", "arguments": "{\"query\":\"go\"}"}}]}}]
		}`)
	})

	resp, err := p.CreateChatCompletion(context.Background(), types.ChatCompletionRequest{
		Model:    "gpt-4o",
		Messages: []types.Message{{Role: types.RoleUser, Content: "search go"}},
		Tools: []types.Tool{{
			Type: "function",
			Function: types.FunctionDefinition{
				Name:       "web_search",
				Parameters: json.RawMessage(`{"type":"object"}`),
			},
		}},
	})
	require.NoError(t, err)

	require.True(t, resp.HasToolCalls())
	assert.Equal(t, "web_search", resp.Choices[0].Message.ToolCalls[0].Function.Name)
	assert.Nil(t, resp.Usage)
}

func TestCreateChatCompletion_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType types.ErrorType
	}{
		{"rate limit", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, types.ErrorTypeRateLimit},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`, types.ErrorTypeAPI},
		{"empty choices", http.StatusOK, `{"id":"x","choices":[]}`, types.ErrorTypeMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := p.CreateChatCompletion(context.Background(), types.ChatCompletionRequest{
				Model:    "gpt-4o",
				Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
			})
			require.Error(t, err)

			var perr *types.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.wantType, perr.Type)
		})
	}
}

func TestCreateChatCompletionStream(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"content":"Hel"}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":"stop"}]}`,
		}
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	ch, err := p.CreateChatCompletionStream(context.Background(), types.ChatCompletionRequest{
		Model:    "gpt-4o",
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	var chunks []types.StreamChunk
	for c := range ch {
		require.NoError(t, c.Error)
		chunks = append(chunks, c)
	}

	require.Len(t, chunks, 3)
	assert.Equal(t, "assistant", chunks[0].Choices[0].Delta.Role)
	assert.Equal(t, "Hel", chunks[1].Choices[0].Delta.Content)
	require.NotNil(t, chunks[2].Choices[0].FinishReason)
	assert.Equal(t, "stop", *chunks[2].Choices[0].FinishReason)
}

func TestCreateChatCompletionStream_OpenFailure(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	})

	_, err := p.CreateChatCompletionStream(context.Background(), types.ChatCompletionRequest{
		Model:    "gpt-4o",
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
	})

	var perr *types.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ErrorTypeAuthentication, perr.Type)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(&types.Config{BaseURL: "http://localhost"})
	assert.ErrorIs(t, err, types.ErrMissingAPIKey)
}
