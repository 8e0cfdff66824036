package data

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/database"
	"github.com/lk2023060901/agentic-gateway/internal/responses/biz"
	"github.com/lk2023060901/agentic-gateway/internal/responses/models"
	"github.com/lk2023060901/agentic-gateway/internal/responses/types"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const titleMaxRunes = 50

// ResponseRepo implements biz.ResponseRepo using GORM
// Every method runs in a single transaction
type ResponseRepo struct {
	db  *database.DB
	now func() time.Time
}

// NewResponseRepo creates a new response repository
func NewResponseRepo(db *database.DB) *ResponseRepo {
	return &ResponseRepo{db: db, now: time.Now}
}

var _ biz.ResponseRepo = (*ResponseRepo)(nil)

// Create appends a message, creating the owning chat when it does not exist yet
func (r *ResponseRepo) Create(ctx context.Context, params *biz.CreateParams) (*types.Response, error) {
	chatID := ""
	if params.ConversationID != nil {
		chatID = *params.ConversationID
	}
	if chatID == "" {
		chatID = uuid.NewString()
	}

	// 微秒精度保证 postgres 往返后时间戳不变
	now := r.now().UTC().Truncate(time.Microsecond)
	msg := &models.Message{
		ID:              ulid.Make().String(),
		ChatID:          chatID,
		Role:            params.Role,
		Content:         params.Content,
		ParentMessageID: params.ParentMessageID,
		Metadata:        params.Metadata,
		CreatedAt:       now,
	}

	err := r.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		title := truncateRunes(params.Content, titleMaxRunes)
		chat := &models.Chat{ID: chatID, Title: &title, CreatedAt: now}

		// 并发创建同一会话时只有一个插入生效
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(chat).Error; err != nil {
			return fmt.Errorf("failed to create chat: %w", err)
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return toResponse(msg), nil
}

// Get retrieves a response by message ID
func (r *ResponseRepo) Get(ctx context.Context, id string) (*types.Response, error) {
	var msg models.Message
	err := r.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		return tx.Where("id = ?", id).First(&msg).Error
	})
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, types.ErrResponseNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return toResponse(&msg), nil
}

// List returns one page ordered newest first; hasMore reports whether
// further matching records exist beyond the page
func (r *ResponseRepo) List(ctx context.Context, opts *types.ListOptions) ([]*types.Response, bool, error) {
	var rows []models.Message

	err := r.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		query := tx.Model(&models.Message{})
		if opts.ConversationID != "" {
			query = query.Where("chat_id = ?", opts.ConversationID)
		}

		if opts.After != "" {
			var cursor models.Message
			if err := tx.Where("id = ?", opts.After).First(&cursor).Error; err != nil {
				if database.IsRecordNotFoundError(err) {
					return nil
				}
				return err
			}
			query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))",
				cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
		}

		return query.
			Order("created_at DESC").
			Order("id DESC").
			Limit(opts.Limit + 1).
			Find(&rows).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to list messages: %w", err)
	}

	hasMore := len(rows) > opts.Limit
	if hasMore {
		rows = rows[:opts.Limit]
	}

	out := make([]*types.Response, 0, len(rows))
	for i := range rows {
		out = append(out, toResponse(&rows[i]))
	}
	return out, hasMore, nil
}

// Delete removes a single message
func (r *ResponseRepo) Delete(ctx context.Context, id string) error {
	return r.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&models.Message{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete message: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return types.ErrResponseNotFound
		}
		return nil
	})
}

// GetConversation retrieves a chat with its messages, oldest first
func (r *ResponseRepo) GetConversation(ctx context.Context, id string) (*types.Conversation, error) {
	var chat models.Chat
	err := r.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		return tx.Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).Where("id = ?", id).First(&chat).Error
	})
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, types.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return toConversation(&chat), nil
}

// DeleteConversation removes a chat and all of its messages
func (r *ResponseRepo) DeleteConversation(ctx context.Context, id string) error {
	return r.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&models.Chat{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete chat: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return types.ErrConversationNotFound
		}
		return nil
	})
}

// Stats counts stored chats and messages
func (r *ResponseRepo) Stats(ctx context.Context) (chats, messages int64, err error) {
	err = r.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		if err := tx.Model(&models.Chat{}).Count(&chats).Error; err != nil {
			return fmt.Errorf("failed to count chats: %w", err)
		}
		if err := tx.Model(&models.Message{}).Count(&messages).Error; err != nil {
			return fmt.Errorf("failed to count messages: %w", err)
		}
		return nil
	})
	return chats, messages, err
}

// PruneBefore deletes chats created before cutoff that received no message since,
// together with their messages
func (r *ResponseRepo) PruneBefore(ctx context.Context, cutoff time.Time) (chats, messages int64, err error) {
	cutoff = cutoff.UTC()
	err = r.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		active := tx.Model(&models.Message{}).Select("chat_id").Where("created_at >= ?", cutoff)

		var ids []string
		if err := tx.Model(&models.Chat{}).
			Where("created_at < ?", cutoff).
			Where("id NOT IN (?)", active).
			Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("failed to select stale chats: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		result := tx.Where("chat_id IN ?", ids).Delete(&models.Message{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete messages: %w", result.Error)
		}
		messages = result.RowsAffected

		result = tx.Where("id IN ?", ids).Delete(&models.Chat{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete chats: %w", result.Error)
		}
		chats = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return chats, messages, nil
}

func toResponse(msg *models.Message) *types.Response {
	return &types.Response{
		ID:              msg.ID,
		Object:          types.ObjectResponse,
		Created:         msg.CreatedAt.Unix(),
		Response:        msg.Content,
		ConversationID:  msg.ChatID,
		ParentMessageID: msg.ParentMessageID,
		Metadata:        msg.Metadata,
	}
}

func toConversation(chat *models.Chat) *types.Conversation {
	conv := &types.Conversation{
		ID:       chat.ID,
		Object:   types.ObjectConversation,
		Title:    chat.Title,
		Created:  chat.CreatedAt.Unix(),
		Messages: make([]*types.ConversationMessage, 0, len(chat.Messages)),
	}
	for _, msg := range chat.Messages {
		conv.Messages = append(conv.Messages, &types.ConversationMessage{
			ID:              msg.ID,
			Role:            msg.Role,
			Content:         msg.Content,
			ParentMessageID: msg.ParentMessageID,
			Metadata:        msg.Metadata,
			Created:         msg.CreatedAt.Unix(),
		})
	}
	return conv
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
