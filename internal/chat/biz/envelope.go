package biz

import (
	"time"

	"github.com/google/uuid"
	ptypes "github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
	"github.com/lk2023060901/agentic-gateway/internal/chat/types"
)

// 未设置时使用的采样参数默认值
const (
	DefaultTemperature      = 0.7
	DefaultTopP             = 1.0
	DefaultFrequencyPenalty = 0.0
	DefaultPresencePenalty  = 0.0

	completionIDPrefix = "chatcmpl-"
)

// Envelope 在 OpenAI 兼容请求/响应与 Provider 请求/结果之间转换
type Envelope struct {
	defaultModel string
	counter      TokenCounter
	now          func() time.Time
}

// NewEnvelope 创建转换器，counter 为 nil 时使用空白分词估算
func NewEnvelope(defaultModel string, counter TokenCounter) *Envelope {
	if counter == nil {
		counter = WhitespaceCounter{}
	}
	return &Envelope{
		defaultModel: defaultModel,
		counter:      counter,
		now:          time.Now,
	}
}

// DefaultModel 返回默认模型
func (e *Envelope) DefaultModel() string {
	return e.defaultModel
}

// BuildRequest 构建上游请求
// 采样参数补齐默认值；其余可选字段只在请求中出现时才下发
func (e *Envelope) BuildRequest(req *types.ChatCompletionRequest) ptypes.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = e.defaultModel
	}

	out := ptypes.ChatCompletionRequest{
		Model:            model,
		Messages:         ToProviderMessages(req.Messages),
		Temperature:      floatOr(req.Temperature, DefaultTemperature),
		TopP:             floatOr(req.TopP, DefaultTopP),
		FrequencyPenalty: floatOr(req.FrequencyPenalty, DefaultFrequencyPenalty),
		PresencePenalty:  floatOr(req.PresencePenalty, DefaultPresencePenalty),
		Stream:           req.Stream,
		User:             req.User,
	}

	if req.MaxTokens != nil {
		maxTokens := *req.MaxTokens
		out.MaxTokens = &maxTokens
	}
	if len(req.Tools) > 0 {
		out.Tools = append([]ptypes.Tool(nil), req.Tools...)
	}
	if req.ToolChoice != nil {
		out.ToolChoice = req.ToolChoice
	}
	if len(req.Stop) > 0 {
		out.Stop = append([]string(nil), req.Stop...)
	}

	return out
}

// BuildResponse 构建返回给客户端的响应
// 上游给出 usage 时透传，否则本地估算；total_tokens 总是重新计算
func (e *Envelope) BuildResponse(result *ptypes.ChatCompletionResponse, req ptypes.ChatCompletionRequest) *types.ChatCompletionResponse {
	resp := &types.ChatCompletionResponse{
		ID:      result.ID,
		Object:  ptypes.ObjectChatCompletion,
		Created: result.Created,
		Model:   result.Model,
	}
	if resp.ID == "" {
		resp.ID = NewCompletionID()
	}
	if resp.Created == 0 {
		resp.Created = e.now().Unix()
	}
	if resp.Model == "" {
		resp.Model = req.Model
	}

	output := ""
	resp.Choices = make([]types.Choice, 0, len(result.Choices))
	for i, choice := range result.Choices {
		if i == 0 {
			output = choice.Message.Content
		}
		c := types.Choice{
			Index:   choice.Index,
			Message: FromProviderMessage(choice.Message),
		}
		if choice.FinishReason != "" {
			reason := choice.FinishReason
			c.FinishReason = &reason
		}
		resp.Choices = append(resp.Choices, c)
	}

	if result.Usage != nil {
		resp.Usage = types.Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
		}
	} else {
		prompts := make([]string, 0, len(req.Messages))
		for _, msg := range req.Messages {
			prompts = append(prompts, msg.Content)
		}
		resp.Usage = e.EstimateUsage(prompts, output)
	}
	resp.Usage.TotalTokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens

	return resp
}

// EstimateUsage 本地估算用量（近似值，不等同于 Provider 计费口径）
func (e *Envelope) EstimateUsage(prompts []string, completion string) types.Usage {
	usage := types.Usage{CompletionTokens: e.counter.Count(completion)}
	for _, p := range prompts {
		usage.PromptTokens += e.counter.Count(p)
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	return usage
}

// NewCompletionID 生成 chatcmpl- 前缀的 ID
func NewCompletionID() string {
	return completionIDPrefix + uuid.NewString()
}

// ToProviderMessages 逐字段复制消息
func ToProviderMessages(messages []types.ChatMessage) []ptypes.Message {
	out := make([]ptypes.Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, ptypes.Message{
			Role:       msg.Role,
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCalls:  msg.ToolCalls,
			ToolCallID: msg.ToolCallID,
		})
	}
	return out
}

// FromProviderMessage Provider 消息转换为对外消息
func FromProviderMessage(msg ptypes.Message) types.ChatMessage {
	return types.ChatMessage{
		Role:       msg.Role,
		Content:    msg.Content,
		Name:       msg.Name,
		ToolCalls:  msg.ToolCalls,
		ToolCallID: msg.ToolCallID,
	}
}

func floatOr(v *float64, def float64) *float64 {
	if v != nil {
		value := *v
		return &value
	}
	return &def
}
