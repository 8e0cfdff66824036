package types

import (
	ptypes "github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
	chattypes "github.com/lk2023060901/agentic-gateway/internal/chat/types"
	"github.com/lk2023060901/agentic-gateway/internal/tools"
)

const (
	ObjectAgentChat       = "agent.chat"
	AgentTypeReact        = "react"
	DefaultConversationID = "default"
)

// AgentChatRequest Agent 对话请求
type AgentChatRequest struct {
	Messages       []chattypes.ChatMessage `json:"messages" binding:"required,min=1"`
	Tools          []string                `json:"tools,omitempty"`
	Stream         bool                    `json:"stream"`
	UserContext    map[string]interface{}  `json:"user_context,omitempty"`
	ConversationID *string                 `json:"conversation_id,omitempty"`
}

// AgentChatResponse Agent 对话响应
type AgentChatResponse struct {
	ID             string                 `json:"id"`
	Object         string                 `json:"object"`
	Created        int64                  `json:"created"`
	ConversationID string                 `json:"conversation_id"`
	Choices        []chattypes.Choice     `json:"choices"`
	Usage          chattypes.Usage        `json:"usage"`
	ToolCalls      []ptypes.ToolCall      `json:"tool_calls"`
	AgentState     map[string]interface{} `json:"agent_state"`
}

// ToolList /agents/tools 响应
type ToolList struct {
	Tools      []tools.Info `json:"tools"`
	TotalCount int          `json:"total_count"`
}

// Status /agents/status 响应
type Status struct {
	Status         string `json:"status"`
	AgentType      string `json:"agent_type"`
	AvailableTools int    `json:"available_tools"`
	LLMProvider    string `json:"llm_provider"`
}
