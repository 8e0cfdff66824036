package service

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/response"
	"github.com/lk2023060901/agentic-gateway/internal/responses/biz"
	"github.com/lk2023060901/agentic-gateway/internal/responses/types"
)

// ResponseService 响应与会话存储接口
type ResponseService struct {
	useCase *biz.ResponseUseCase
}

// NewResponseService 创建 ResponseService
func NewResponseService(useCase *biz.ResponseUseCase) *ResponseService {
	return &ResponseService{useCase: useCase}
}

// RegisterRoutes 注册路由
func (s *ResponseService) RegisterRoutes(r *gin.RouterGroup) {
	responses := r.Group("/responses")
	{
		responses.POST("", s.CreateResponse)
		responses.GET("", s.ListResponses)
		responses.GET("/:id", s.GetResponse)
		responses.DELETE("/:id", s.DeleteResponse)
	}

	conversations := r.Group("/conversations")
	{
		conversations.GET("/:id", s.GetConversation)
		conversations.DELETE("/:id", s.DeleteConversation)
	}
}

// CreateResponse 记录响应
// @Summary Create a response
// @Tags responses
// @Accept json
// @Produce json
// @Param request body types.CreateResponseRequest true "Response"
// @Success 201 {object} types.Response
// @Router /v1/responses [post]
func (s *ResponseService) CreateResponse(c *gin.Context) {
	var req types.CreateResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := s.useCase.CreateResponse(c.Request.Context(), &req)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Created(c, resp)
}

// GetResponse 获取响应
// @Summary Get a response
// @Tags responses
// @Produce json
// @Param id path string true "Response ID"
// @Success 200 {object} types.Response
// @Router /v1/responses/{id} [get]
func (s *ResponseService) GetResponse(c *gin.Context) {
	resp, err := s.useCase.GetResponse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.OK(c, resp)
}

// ListResponses 分页列出响应
// @Summary List responses
// @Tags responses
// @Produce json
// @Param conversation_id query string false "Conversation ID"
// @Param limit query int false "Page size (1-100)"
// @Param after query string false "Cursor"
// @Success 200 {object} types.ResponseList
// @Router /v1/responses [get]
func (s *ResponseService) ListResponses(c *gin.Context) {
	opts := &types.ListOptions{
		ConversationID: c.Query("conversation_id"),
		After:          c.Query("after"),
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			response.BadRequest(c, "limit: must be between 1 and 100")
			return
		}
		opts.Limit = limit
	}

	list, err := s.useCase.ListResponses(c.Request.Context(), opts)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.OK(c, list)
}

// DeleteResponse 删除响应
// @Summary Delete a response
// @Tags responses
// @Produce json
// @Param id path string true "Response ID"
// @Success 200 {object} types.Deleted
// @Router /v1/responses/{id} [delete]
func (s *ResponseService) DeleteResponse(c *gin.Context) {
	deleted, err := s.useCase.DeleteResponse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.OK(c, deleted)
}

// GetConversation 获取会话
// @Summary Get a conversation with its messages
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} types.Conversation
// @Router /v1/conversations/{id} [get]
func (s *ResponseService) GetConversation(c *gin.Context) {
	conv, err := s.useCase.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.OK(c, conv)
}

// DeleteConversation 删除会话及其消息
// @Summary Delete a conversation
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} types.Deleted
// @Router /v1/conversations/{id} [delete]
func (s *ResponseService) DeleteConversation(c *gin.Context) {
	deleted, err := s.useCase.DeleteConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.OK(c, deleted)
}
