package service

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/agentic-gateway/internal/agent/biz"
	"github.com/lk2023060901/agentic-gateway/internal/agent/types"
	ptypes "github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
	chatbiz "github.com/lk2023060901/agentic-gateway/internal/chat/biz"
	chattypes "github.com/lk2023060901/agentic-gateway/internal/chat/types"
	apperrors "github.com/lk2023060901/agentic-gateway/internal/pkg/errors"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/response"
	"github.com/lk2023060901/agentic-gateway/internal/tools"
	"go.uber.org/zap"
)

// ProviderNamer 返回默认 LLM Provider 名称
type ProviderNamer interface {
	Default() string
}

// AgentService Agent HTTP 服务
type AgentService struct {
	agent     *biz.Agent
	tools     *tools.Registry
	envelope  *chatbiz.Envelope
	providers ProviderNamer
	logger    *logger.Logger
	now       func() time.Time
}

// NewAgentService 创建 Agent 服务
func NewAgentService(agent *biz.Agent, registry *tools.Registry, envelope *chatbiz.Envelope, providers ProviderNamer, logger *logger.Logger) *AgentService {
	return &AgentService{
		agent:     agent,
		tools:     registry,
		envelope:  envelope,
		providers: providers,
		logger:    logger.Named("agent.service"),
		now:       time.Now,
	}
}

// RegisterRoutes 注册路由
func (s *AgentService) RegisterRoutes(r *gin.RouterGroup) {
	agents := r.Group("/agents")
	{
		agents.POST("/chat", s.Chat)
		agents.GET("/tools", s.ListTools)
		agents.GET("/status", s.Status)
	}
}

// Chat 带工具调用的对话
// @Summary Agent chat with tool use
// @Tags agents
// @Accept json
// @Produce json
// @Param request body types.AgentChatRequest true "Agent chat request"
// @Success 200 {object} types.AgentChatResponse
// @Router /agents/chat [post]
func (s *AgentService) Chat(c *gin.Context) {
	var req types.AgentChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	conversationID := types.DefaultConversationID
	if req.ConversationID != nil && *req.ConversationID != "" {
		conversationID = *req.ConversationID
	}

	ctx := c.Request.Context()
	result, err := s.agent.Invoke(ctx, chatbiz.ToProviderMessages(req.Messages), req.Tools, req.UserContext)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.logger.WithContext(ctx).Info("agent chat cancelled by client")
			return
		}
		s.logger.WithContext(ctx).Error("agent chat failed", zap.String("conversation_id", conversationID), zap.Error(err))
		response.HandleError(c, apperrors.Wrap(err, apperrors.ErrAgentFailure, "Agent processing error"))
		return
	}

	result.State["conversation_id"] = conversationID

	prompts := make([]string, 0, len(req.Messages))
	for _, msg := range req.Messages {
		prompts = append(prompts, msg.Content)
	}
	finish := ptypes.FinishReasonStop

	response.OK(c, types.AgentChatResponse{
		ID:             "agent-" + conversationID,
		Object:         types.ObjectAgentChat,
		Created:        s.now().Unix(),
		ConversationID: conversationID,
		Choices: []chattypes.Choice{{
			Index:        0,
			Message:      chattypes.ChatMessage{Role: ptypes.RoleAssistant, Content: result.Content},
			FinishReason: &finish,
		}},
		Usage:      s.envelope.EstimateUsage(prompts, result.Content),
		ToolCalls:  result.ToolCalls,
		AgentState: result.State,
	})
}

// ListTools 列出可用工具
// @Summary List agent tools
// @Tags agents
// @Produce json
// @Success 200 {object} types.ToolList
// @Router /agents/tools [get]
func (s *AgentService) ListTools(c *gin.Context) {
	list := s.tools.List()
	response.OK(c, types.ToolList{Tools: list, TotalCount: len(list)})
}

// Status Agent 状态
// @Summary Agent status
// @Tags agents
// @Produce json
// @Success 200 {object} types.Status
// @Router /agents/status [get]
func (s *AgentService) Status(c *gin.Context) {
	status := "healthy"
	if !s.agent.Ready() {
		status = "unavailable"
	}
	response.OK(c, types.Status{
		Status:         status,
		AgentType:      types.AgentTypeReact,
		AvailableTools: len(s.tools.Names()),
		LLMProvider:    s.providers.Default(),
	})
}
