package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
)

const (
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 1024

	// Anthropic 的 temperature 取值为 [0,1]
	maxTemperature = 1.0
)

// Provider Anthropic Provider 实现（直接处理协议转换）
type Provider struct {
	config *types.Config
	client *http.Client
}

// New 创建 Anthropic Provider
func New(config *types.Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// 只限制首字节时间，流式响应的总时长由请求 ctx 控制
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = config.Timeout

	return &Provider{
		config: config,
		client: &http.Client{Transport: transport},
	}, nil
}

// Name 返回 Provider 名称
func (p *Provider) Name() string {
	if p.config.Name != "" {
		return p.config.Name
	}
	return "anthropic"
}

// setHeaders 设置请求 headers（包括默认 headers 和自定义 headers）
func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	for key, value := range p.config.Headers {
		req.Header.Set(key, value)
	}
}

// Anthropic 内部请求结构
type anthropicRequest struct {
	Model         string             `json:"model"`
	Messages      []anthropicMessage `json:"messages"`
	System        string             `json:"system,omitempty"`
	MaxTokens     int                `json:"max_tokens"`
	Temperature   *float64           `json:"temperature,omitempty"`
	TopP          *float64           `json:"top_p,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Tools         []anthropicTool    `json:"tools,omitempty"`
	ToolChoice    *anthropicChoice   `json:"tool_choice,omitempty"`
	Metadata      *anthropicMetadata `json:"metadata,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicChoice struct {
	Type string `json:"type"` // auto, any, tool
	Name string `json:"name,omitempty"`
}

type anthropicMetadata struct {
	UserID string `json:"user_id,omitempty"`
}

// Anthropic 内部响应结构
type anthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Anthropic 流式响应事件
type anthropicStreamEvent struct {
	Type    string             `json:"type"`
	Index   int                `json:"index,omitempty"`
	Delta   *anthropicDelta    `json:"delta,omitempty"`
	Message *anthropicResponse `json:"message,omitempty"`
	Usage   *anthropicUsage    `json:"usage,omitempty"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicDelta struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// CreateChatCompletion 创建聊天补全（同步）
// 处理 OpenAI 格式到 Anthropic 格式的转换
func (p *Provider) CreateChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
	anthropicReq, err := p.convertRequest(req)
	if err != nil {
		return nil, err
	}
	anthropicReq.Stream = false

	resp, err := p.do(ctx, anthropicReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewProviderError(p.Name(), "read response failed", err)
	}

	var anthropicResp anthropicResponse
	if err := json.Unmarshal(body, &anthropicResp); err != nil {
		return nil, types.NewMalformedError(p.Name(), "unmarshal response failed: "+err.Error())
	}
	if len(anthropicResp.Content) == 0 {
		return nil, types.NewMalformedError(p.Name(), types.ErrEmptyResponse.Error())
	}

	return p.convertResponse(&anthropicResp), nil
}

// CreateChatCompletionStream 创建聊天补全（流式）
func (p *Provider) CreateChatCompletionStream(ctx context.Context, req types.ChatCompletionRequest) (<-chan types.StreamChunk, error) {
	anthropicReq, err := p.convertRequest(req)
	if err != nil {
		return nil, err
	}
	anthropicReq.Stream = true

	resp, err := p.do(ctx, anthropicReq)
	if err != nil {
		return nil, err
	}

	chunks := make(chan types.StreamChunk, 10)

	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		emit := func(chunk types.StreamChunk) bool {
			select {
			case chunks <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		var messageID, model string

		for scanner.Scan() {
			line := scanner.Text()
			// Anthropic 使用 event: 行标识事件类型，data 中也带有 type，这里只解析 data 行
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			var event anthropicStreamEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				emit(types.StreamChunk{Error: types.NewMalformedError(p.Name(), "unmarshal event failed: "+err.Error())})
				return
			}

			newChunk := func(delta types.MessageDelta, finish *string) types.StreamChunk {
				return types.StreamChunk{
					ID:      messageID,
					Object:  types.ObjectChatCompletionChunk,
					Model:   model,
					Choices: []types.StreamChoice{{Index: 0, Delta: delta, FinishReason: finish}},
				}
			}

			switch event.Type {
			case "message_start":
				if event.Message != nil {
					messageID = event.Message.ID
					model = event.Message.Model
				}
				if !emit(newChunk(types.MessageDelta{Role: types.RoleAssistant}, nil)) {
					return
				}
			case "content_block_delta":
				if event.Delta != nil && event.Delta.Text != "" {
					if !emit(newChunk(types.MessageDelta{Content: event.Delta.Text}, nil)) {
						return
					}
				}
			case "message_delta":
				if event.Delta != nil && event.Delta.StopReason != "" {
					finishReason := convertStopReason(event.Delta.StopReason)
					chunk := newChunk(types.MessageDelta{}, &finishReason)
					if event.Usage != nil {
						chunk.Usage = &types.Usage{CompletionTokens: event.Usage.OutputTokens}
					}
					if !emit(chunk) {
						return
					}
				}
			case "error":
				msg := "stream error"
				if event.Error != nil {
					msg = event.Error.Message
				}
				emit(types.StreamChunk{Error: &types.ProviderError{
					Type:     types.ErrorTypeOverloaded,
					Provider: p.Name(),
					Message:  msg,
				}})
				return
			case "message_stop":
				return
			}
		}

		if err := scanner.Err(); err != nil {
			emit(types.StreamChunk{Error: types.NewProviderError(p.Name(), "read stream failed", err)})
		}
	}()

	return chunks, nil
}

// do 发送请求，非 200 响应转换为 ProviderError
func (p *Provider) do(ctx context.Context, anthropicReq *anthropicRequest) (*http.Response, error) {
	reqBody, err := json.Marshal(anthropicReq)
	if err != nil {
		return nil, types.NewProviderError(p.Name(), "marshal request failed", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/v1/messages", bytes.NewReader(reqBody))
	if err != nil {
		return nil, types.NewProviderError(p.Name(), "create request failed", err)
	}

	p.setHeaders(httpReq)
	if anthropicReq.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewProviderError(p.Name(), "request failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		perr := types.NewHTTPError(p.Name(), resp.StatusCode, string(body))
		perr.RequestID = resp.Header.Get("request-id")
		return nil, perr
	}

	return resp, nil
}

// Close 关闭 Provider
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// convertRequest 将 OpenAI 请求转换为 Anthropic 请求
func (p *Provider) convertRequest(req types.ChatCompletionRequest) (*anthropicRequest, error) {
	anthropicReq := &anthropicRequest{
		Model:         req.Model,
		MaxTokens:     defaultMaxTokens,
		StopSequences: req.Stop,
	}
	anthropicReq.Temperature, anthropicReq.TopP = samplingParams(req.Temperature, req.TopP)

	if anthropicReq.Model == "" {
		anthropicReq.Model = p.config.Model
	}
	if req.MaxTokens != nil {
		anthropicReq.MaxTokens = *req.MaxTokens
	}
	if req.User != "" {
		anthropicReq.Metadata = &anthropicMetadata{UserID: req.User}
	}

	// 分离 system 消息，合并连续的工具结果
	var systemParts []string
	for _, msg := range req.Messages {
		switch msg.Role {
		case types.RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case types.RoleTool:
			block := anthropicContent{Type: "tool_result", ToolUseID: msg.ToolCallID, Content: msg.Content}
			if n := len(anthropicReq.Messages); n > 0 && isToolResultMessage(anthropicReq.Messages[n-1]) {
				anthropicReq.Messages[n-1].Content = append(anthropicReq.Messages[n-1].Content, block)
			} else {
				anthropicReq.Messages = append(anthropicReq.Messages, anthropicMessage{
					Role:    types.RoleUser,
					Content: []anthropicContent{block},
				})
			}
		case types.RoleAssistant:
			var blocks []anthropicContent
			if msg.Content != "" {
				blocks = append(blocks, anthropicContent{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				input := json.RawMessage(tc.Function.Arguments)
				if len(input) == 0 || !json.Valid(input) {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropicContent{Type: "tool_use", ID: tc.ID, Name: tc.Function.Name, Input: input})
			}
			anthropicReq.Messages = append(anthropicReq.Messages, anthropicMessage{Role: msg.Role, Content: blocks})
		default:
			anthropicReq.Messages = append(anthropicReq.Messages, anthropicMessage{
				Role:    types.RoleUser,
				Content: []anthropicContent{{Type: "text", Text: msg.Content}},
			})
		}
	}
	anthropicReq.System = strings.Join(systemParts, "\n\n")

	for _, tool := range req.Tools {
		schema := tool.Function.Parameters
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		anthropicReq.Tools = append(anthropicReq.Tools, anthropicTool{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			InputSchema: schema,
		})
	}

	choice, err := convertToolChoice(req.ToolChoice)
	if err != nil {
		return nil, &types.ProviderError{Type: types.ErrorTypeInvalidRequest, Provider: p.Name(), Message: err.Error()}
	}
	anthropicReq.ToolChoice = choice

	return anthropicReq, nil
}

// samplingParams 只发送一个采样参数：新模型拒绝同时设置 temperature 和 top_p
// top_p 为默认值 1 时视为未设置；否则 top_p 优先
func samplingParams(temperature, topP *float64) (*float64, *float64) {
	if topP != nil && *topP < 1 {
		p := *topP
		return nil, &p
	}
	if temperature == nil {
		return nil, nil
	}
	t := min(*temperature, maxTemperature)
	return &t, nil
}

func isToolResultMessage(msg anthropicMessage) bool {
	return msg.Role == types.RoleUser && len(msg.Content) > 0 && msg.Content[0].Type == "tool_result"
}

// convertToolChoice 将 OpenAI tool_choice（"auto"/"none"/"required" 或 {"function":{"name"}}）转换为 Anthropic 格式
func convertToolChoice(choice interface{}) (*anthropicChoice, error) {
	switch v := choice.(type) {
	case nil:
		return nil, nil
	case string:
		switch v {
		case "auto", "none":
			return nil, nil
		case "required":
			return &anthropicChoice{Type: "any"}, nil
		default:
			return nil, fmt.Errorf("unsupported tool_choice %q", v)
		}
	case map[string]interface{}:
		if fn, ok := v["function"].(map[string]interface{}); ok {
			if name, ok := fn["name"].(string); ok && name != "" {
				return &anthropicChoice{Type: "tool", Name: name}, nil
			}
		}
		return nil, fmt.Errorf("tool_choice object requires function.name")
	default:
		return nil, fmt.Errorf("unsupported tool_choice type %T", choice)
	}
}

// convertResponse 将 Anthropic 响应转换为 OpenAI 响应
func (p *Provider) convertResponse(resp *anthropicResponse) *types.ChatCompletionResponse {
	msg := types.Message{Role: types.RoleAssistant}
	var texts []string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			texts = append(texts, block.Text)
		case "tool_use":
			args := string(block.Input)
			if args == "" {
				args = "{}"
			}
			msg.ToolCalls = append(msg.ToolCalls, types.ToolCall{
				ID:       block.ID,
				Type:     "function",
				Function: types.FunctionCall{Name: block.Name, Arguments: args},
			})
		}
	}
	msg.Content = strings.Join(texts, "")

	return &types.ChatCompletionResponse{
		ID:     resp.ID,
		Object: types.ObjectChatCompletion,
		Model:  resp.Model,
		Choices: []types.Choice{
			{
				Index:        0,
				Message:      msg,
				FinishReason: convertStopReason(resp.StopReason),
			},
		},
		Usage: &types.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}

// convertStopReason 将 Anthropic stop_reason 映射为 OpenAI finish_reason
func convertStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return types.FinishReasonStop
	case "max_tokens":
		return types.FinishReasonLength
	case "tool_use":
		return types.FinishReasonToolCalls
	default:
		return reason
	}
}
