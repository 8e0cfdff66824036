package biz

import (
	"context"
	"errors"
	"fmt"

	ptypes "github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
	apperrors "github.com/lk2023060901/agentic-gateway/internal/pkg/errors"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agentic-gateway/internal/responses/types"
	"go.uber.org/zap"
)

// CreateParams 追加消息的参数
type CreateParams struct {
	Role            string
	Content         string
	ConversationID  *string
	ParentMessageID *string
	Metadata        map[string]interface{}
}

// ResponseRepo 会话存储接口，每个操作对存储是原子的
type ResponseRepo interface {
	Create(ctx context.Context, params *CreateParams) (*types.Response, error)
	Get(ctx context.Context, id string) (*types.Response, error)
	List(ctx context.Context, opts *types.ListOptions) ([]*types.Response, bool, error)
	Delete(ctx context.Context, id string) error
	GetConversation(ctx context.Context, id string) (*types.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
}

// ResponseUseCase 会话存储业务逻辑
type ResponseUseCase struct {
	repo ResponseRepo
	log  *logger.Logger
}

// NewResponseUseCase 创建 ResponseUseCase
func NewResponseUseCase(repo ResponseRepo, log *logger.Logger) *ResponseUseCase {
	return &ResponseUseCase{repo: repo, log: log.Named("responses")}
}

// CreateResponse 记录一条 assistant 响应；会话不存在时自动创建
func (uc *ResponseUseCase) CreateResponse(ctx context.Context, req *types.CreateResponseRequest) (*types.Response, error) {
	if req.Response == "" {
		return nil, apperrors.NewValidationError("response", "must not be empty")
	}
	if err := checkID("conversation_id", req.ConversationID); err != nil {
		return nil, err
	}
	if err := checkID("parent_message_id", req.ParentMessageID); err != nil {
		return nil, err
	}

	resp, err := uc.repo.Create(ctx, &CreateParams{
		Role:            ptypes.RoleAssistant,
		Content:         req.Response,
		ConversationID:  req.ConversationID,
		ParentMessageID: req.ParentMessageID,
		Metadata:        req.Metadata,
	})
	if err != nil {
		return nil, uc.storeError(ctx, err, "create response")
	}
	return resp, nil
}

func checkID(field string, id *string) error {
	if id != nil && len(*id) > types.MaxIDLength {
		return apperrors.NewValidationError(field, fmt.Sprintf("must be at most %d characters", types.MaxIDLength))
	}
	return nil
}

// GetResponse 获取单条响应
func (uc *ResponseUseCase) GetResponse(ctx context.Context, id string) (*types.Response, error) {
	resp, err := uc.repo.Get(ctx, id)
	if err != nil {
		return nil, uc.storeError(ctx, err, "get response")
	}
	return resp, nil
}

// ListResponses 按创建时间倒序分页
// limit 为 0 时使用默认值；after 指向的记录不存在时返回空页
func (uc *ResponseUseCase) ListResponses(ctx context.Context, opts *types.ListOptions) (*types.ResponseList, error) {
	if opts.Limit == 0 {
		opts.Limit = types.DefaultListLimit
	}
	if opts.Limit < 1 || opts.Limit > types.MaxListLimit {
		return nil, apperrors.NewValidationError("limit", "must be between 1 and 100")
	}

	data, hasMore, err := uc.repo.List(ctx, opts)
	if err != nil {
		return nil, uc.storeError(ctx, err, "list responses")
	}
	return &types.ResponseList{Object: types.ObjectList, Data: data, HasMore: hasMore}, nil
}

// DeleteResponse 删除单条响应，不影响所属会话
func (uc *ResponseUseCase) DeleteResponse(ctx context.Context, id string) (*types.Deleted, error) {
	if err := uc.repo.Delete(ctx, id); err != nil {
		return nil, uc.storeError(ctx, err, "delete response")
	}
	return &types.Deleted{ID: id, Object: types.ObjectResponse, Deleted: true}, nil
}

// GetConversation 获取会话及全部消息
func (uc *ResponseUseCase) GetConversation(ctx context.Context, id string) (*types.Conversation, error) {
	conv, err := uc.repo.GetConversation(ctx, id)
	if err != nil {
		return nil, uc.storeError(ctx, err, "get conversation")
	}
	return conv, nil
}

// DeleteConversation 删除会话及其全部消息
func (uc *ResponseUseCase) DeleteConversation(ctx context.Context, id string) (*types.Deleted, error) {
	if err := uc.repo.DeleteConversation(ctx, id); err != nil {
		return nil, uc.storeError(ctx, err, "delete conversation")
	}
	return &types.Deleted{ID: id, Object: types.ObjectConversation, Deleted: true}, nil
}

// storeError 将存储错误映射为 AppError
func (uc *ResponseUseCase) storeError(ctx context.Context, err error, op string) error {
	switch {
	case errors.Is(err, types.ErrResponseNotFound):
		return apperrors.NewNotFoundError("response")
	case errors.Is(err, types.ErrConversationNotFound):
		return apperrors.NewNotFoundError("conversation")
	}

	uc.log.WithContext(ctx).Error("conversation store operation failed", zap.String("op", op), zap.Error(err))
	return apperrors.NewStoreError(err, op)
}
