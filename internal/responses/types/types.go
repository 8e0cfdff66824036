package types

import "errors"

const (
	ObjectResponse     = "response"
	ObjectConversation = "conversation"
	ObjectList         = "list"

	DefaultListLimit = 20
	MaxListLimit     = 100

	// MaxIDLength 与 chats.id、messages.chat_id、messages.parent_message_id 列宽一致
	MaxIDLength = 255
)

var (
	ErrResponseNotFound     = errors.New("response not found")
	ErrConversationNotFound = errors.New("conversation not found")
)

// Response 持久化的响应（对应一条 assistant 消息）
type Response struct {
	ID              string                 `json:"id"`
	Object          string                 `json:"object"`
	Created         int64                  `json:"created"`
	Response        string                 `json:"response"`
	ConversationID  string                 `json:"conversation_id"`
	ParentMessageID *string                `json:"parent_message_id,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// ResponseList 分页列表
type ResponseList struct {
	Object  string      `json:"object"`
	Data    []*Response `json:"data"`
	HasMore bool        `json:"has_more"`
}

// CreateResponseRequest 创建响应请求
type CreateResponseRequest struct {
	Response        string                 `json:"response" binding:"required"`
	ConversationID  *string                `json:"conversation_id"`
	ParentMessageID *string                `json:"parent_message_id"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// ListOptions 列表查询参数
type ListOptions struct {
	ConversationID string
	Limit          int
	After          string // 游标：上一页最后一条记录的 ID
}

// Conversation 会话及其全部消息（按时间正序）
type Conversation struct {
	ID       string                 `json:"id"`
	Object   string                 `json:"object"`
	Title    *string                `json:"title,omitempty"`
	Created  int64                  `json:"created"`
	Messages []*ConversationMessage `json:"messages"`
}

// ConversationMessage 会话中的消息
type ConversationMessage struct {
	ID              string                 `json:"id"`
	Role            string                 `json:"role"`
	Content         string                 `json:"content"`
	ParentMessageID *string                `json:"parent_message_id,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	Created         int64                  `json:"created"`
}

// Deleted 删除结果
type Deleted struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}
