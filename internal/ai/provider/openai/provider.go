package openai

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"

	"github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
	goopenai "github.com/sashabaranov/go-openai"
)

// Provider OpenAI 兼容 Provider 实现（基于 go-openai）
type Provider struct {
	config     *types.Config
	client     *goopenai.Client
	httpClient *http.Client
}

// New 创建 OpenAI Provider
func New(config *types.Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// 只限制首字节时间，流式响应的总时长由请求 ctx 控制
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = config.Timeout

	httpClient := &http.Client{
		Transport: &headerTransport{base: transport, headers: config.Headers},
	}

	clientConfig := goopenai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = config.BaseURL
	clientConfig.HTTPClient = httpClient

	return &Provider{
		config:     config,
		client:     goopenai.NewClientWithConfig(clientConfig),
		httpClient: httpClient,
	}, nil
}

// Name 返回 Provider 名称
func (p *Provider) Name() string {
	if p.config.Name != "" {
		return p.config.Name
	}
	return "openai"
}

// CreateChatCompletion 创建聊天补全（同步）
func (p *Provider) CreateChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
	oaReq := p.convertRequest(req)
	oaReq.Stream = false

	resp, err := p.client.CreateChatCompletion(ctx, oaReq)
	if err != nil {
		return nil, p.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, types.NewMalformedError(p.Name(), types.ErrEmptyResponse.Error())
	}

	return p.convertResponse(&resp), nil
}

// CreateChatCompletionStream 创建聊天补全（流式）
func (p *Provider) CreateChatCompletionStream(ctx context.Context, req types.ChatCompletionRequest) (<-chan types.StreamChunk, error) {
	oaReq := p.convertRequest(req)
	oaReq.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, oaReq)
	if err != nil {
		return nil, p.wrapError(err)
	}

	chunks := make(chan types.StreamChunk, 10)

	go func() {
		defer close(chunks)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				send(ctx, chunks, types.StreamChunk{Error: p.wrapError(err)})
				return
			}

			if !send(ctx, chunks, p.convertChunk(&resp)) {
				return
			}
		}
	}()

	return chunks, nil
}

// send 向 channel 发送 chunk，ctx 取消时放弃
func send(ctx context.Context, ch chan<- types.StreamChunk, chunk types.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close 关闭 Provider
func (p *Provider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// convertRequest 将规范请求转换为 go-openai 请求
func (p *Provider) convertRequest(req types.ChatCompletionRequest) goopenai.ChatCompletionRequest {
	oaReq := goopenai.ChatCompletionRequest{
		Model:      req.Model,
		Messages:   make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)),
		Stop:       req.Stop,
		User:       req.User,
		ToolChoice: req.ToolChoice,
	}
	if oaReq.Model == "" {
		oaReq.Model = p.config.Model
	}

	if req.MaxTokens != nil {
		oaReq.MaxTokens = *req.MaxTokens
	}
	// go-openai 以 omitempty 序列化 float32，显式的 0 需要用最小正数保留
	oaReq.Temperature = explicitFloat(req.Temperature)
	oaReq.TopP = explicitFloat(req.TopP)
	if req.FrequencyPenalty != nil {
		oaReq.FrequencyPenalty = float32(*req.FrequencyPenalty)
	}
	if req.PresencePenalty != nil {
		oaReq.PresencePenalty = float32(*req.PresencePenalty)
	}

	for _, msg := range req.Messages {
		oaMsg := goopenai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			oaMsg.ToolCalls = append(oaMsg.ToolCalls, goopenai.ToolCall{
				ID:   tc.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		oaReq.Messages = append(oaReq.Messages, oaMsg)
	}

	for _, tool := range req.Tools {
		oaReq.Tools = append(oaReq.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		})
	}

	return oaReq
}

func explicitFloat(v *float64) float32 {
	if v == nil {
		return 0
	}
	if *v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(*v)
}

// convertResponse 将 go-openai 响应转换为规范响应
func (p *Provider) convertResponse(resp *goopenai.ChatCompletionResponse) *types.ChatCompletionResponse {
	result := &types.ChatCompletionResponse{
		ID:      resp.ID,
		Object:  types.ObjectChatCompletion,
		Created: resp.Created,
		Model:   resp.Model,
		Choices: make([]types.Choice, 0, len(resp.Choices)),
	}

	for _, choice := range resp.Choices {
		msg := types.Message{
			Role:    choice.Message.Role,
			Content: choice.Message.Content,
		}
		for _, tc := range choice.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, types.ToolCall{
				ID:   tc.ID,
				Type: string(tc.Type),
				Function: types.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		result.Choices = append(result.Choices, types.Choice{
			Index:        choice.Index,
			Message:      msg,
			FinishReason: string(choice.FinishReason),
		})
	}

	if resp.Usage.TotalTokens > 0 || resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		result.Usage = &types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.PromptTokens + resp.Usage.CompletionTokens,
		}
	}

	return result
}

// convertChunk 将 go-openai 流式响应转换为规范 chunk
func (p *Provider) convertChunk(resp *goopenai.ChatCompletionStreamResponse) types.StreamChunk {
	chunk := types.StreamChunk{
		ID:      resp.ID,
		Object:  types.ObjectChatCompletionChunk,
		Created: resp.Created,
		Model:   resp.Model,
		Choices: make([]types.StreamChoice, 0, len(resp.Choices)),
	}

	for _, choice := range resp.Choices {
		sc := types.StreamChoice{
			Index: choice.Index,
			Delta: types.MessageDelta{
				Role:    choice.Delta.Role,
				Content: choice.Delta.Content,
			},
		}
		if choice.FinishReason != "" {
			reason := string(choice.FinishReason)
			sc.FinishReason = &reason
		}
		chunk.Choices = append(chunk.Choices, sc)
	}

	if resp.Usage != nil {
		chunk.Usage = &types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.PromptTokens + resp.Usage.CompletionTokens,
		}
	}

	return chunk
}

// wrapError 将 go-openai 错误转换为 ProviderError
func (p *Provider) wrapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return types.NewHTTPError(p.Name(), apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return types.NewHTTPError(p.Name(), reqErr.HTTPStatusCode, reqErr.Error())
	}

	return types.NewProviderError(p.Name(), "request failed", err)
}

// headerTransport 为每个请求附加自定义 headers
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) > 0 {
		req = req.Clone(req.Context())
		for key, value := range t.headers {
			req.Header.Set(key, value)
		}
	}
	return t.base.RoundTrip(req)
}
