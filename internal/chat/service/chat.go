package service

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	ptypes "github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
	"github.com/lk2023060901/agentic-gateway/internal/chat/biz"
	"github.com/lk2023060901/agentic-gateway/internal/chat/types"
	apperrors "github.com/lk2023060901/agentic-gateway/internal/pkg/errors"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/response"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/sse"
	"go.uber.org/zap"
)

// ChatService OpenAI 兼容的聊天接口
type ChatService struct {
	envelope  *biz.Envelope
	adapter   *biz.Adapter
	relay     *biz.Relay
	catalogue []ptypes.Model
	log       *logger.Logger
}

// NewChatService 创建聊天服务
func NewChatService(envelope *biz.Envelope, adapter *biz.Adapter, relay *biz.Relay, catalogue []ptypes.Model, log *logger.Logger) *ChatService {
	return &ChatService{
		envelope:  envelope,
		adapter:   adapter,
		relay:     relay,
		catalogue: catalogue,
		log:       log,
	}
}

// RegisterRoutes 注册路由
func (s *ChatService) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/chat/completions", s.CreateChatCompletion)
	r.GET("/models", s.ListModels)
}

// CreateChatCompletion 聊天补全
// @Summary OpenAI-compatible chat completion
// @Tags chat
// @Accept json
// @Produce json,text/event-stream
// @Param request body types.ChatCompletionRequest true "Chat completion request"
// @Success 200 {object} types.ChatCompletionResponse
// @Router /v1/chat/completions [post]
func (s *ChatService) CreateChatCompletion(c *gin.Context) {
	var req types.ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := biz.Validate(&req); err != nil {
		response.HandleError(c, err)
		return
	}

	upstream := s.envelope.BuildRequest(&req)
	if req.Stream {
		s.stream(c, upstream)
		return
	}

	result, err := s.adapter.Complete(c.Request.Context(), upstream)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.log.WithContext(c.Request.Context()).Info("chat completion cancelled by client",
				zap.String("model", upstream.Model))
			return
		}
		response.HandleError(c, CompletionError(err))
		return
	}

	response.OK(c, s.envelope.BuildResponse(result, upstream))
}

// stream 打开上游流并转发；写失败时取消上游请求
func (s *ChatService) stream(c *gin.Context, upstream ptypes.ChatCompletionRequest) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	w := sse.NewWriter(c.Writer)
	w.SetHeaders()

	source, err := s.adapter.CompleteStream(ctx, upstream)
	if err != nil {
		_ = s.relay.Fail(w, err)
		return
	}

	if err := s.relay.Stream(ctx, w, upstream.Model, source); err != nil {
		s.log.WithContext(c.Request.Context()).Info("chat stream closed by client",
			zap.String("model", upstream.Model), zap.Error(err))
	}
}

// ListModels 模型目录
// @Summary List supported models
// @Tags chat
// @Produce json
// @Success 200 {object} ptypes.ModelsResponse
// @Router /v1/models [get]
func (s *ChatService) ListModels(c *gin.Context) {
	data := s.catalogue
	if data == nil {
		data = []ptypes.Model{}
	}
	response.OK(c, ptypes.ModelsResponse{Object: "list", Data: data})
}

// CompletionError 将补全错误映射为 AppError
// 没有任何可用 Provider 时返回 503，备用模型耗尽时返回 500 并带上主模型的失败原因
func CompletionError(err error) error {
	var exhausted *biz.ExhaustedError
	if errors.As(err, &exhausted) {
		if errors.Is(exhausted.Cause, ptypes.ErrModelNotRouted) {
			return apperrors.NewUnavailableError("no completion provider is configured")
		}
		return apperrors.Wrap(exhausted.Cause, apperrors.ErrProviderExhausted)
	}
	if errors.Is(err, ptypes.ErrModelNotRouted) {
		return apperrors.Wrap(err, apperrors.ErrModelNotRouted)
	}
	return apperrors.Wrap(err, apperrors.ErrUpstream)
}
