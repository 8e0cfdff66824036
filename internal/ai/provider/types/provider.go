package types

import "context"

// Provider 定义统一的 AI Provider 接口（基于 OpenAI 协议）
type Provider interface {
	// CreateChatCompletion 创建聊天补全（同步）
	CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)

	// CreateChatCompletionStream 创建聊天补全（流式）
	// 返回的 channel 在流结束后关闭；带 Error 的 chunk 为最后一个 chunk。
	// ctx 取消后后台 goroutine 退出并释放上游连接。
	CreateChatCompletionStream(ctx context.Context, req ChatCompletionRequest) (<-chan StreamChunk, error)

	// Name 返回 Provider 名称
	Name() string

	// Close 关闭 Provider，释放资源
	Close() error
}

// Model 模型目录条目
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"` // "model"
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelsResponse 模型列表响应
type ModelsResponse struct {
	Object string  `json:"object"` // "list"
	Data   []Model `json:"data"`
}
