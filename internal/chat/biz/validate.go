package biz

import (
	"fmt"

	ptypes "github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
	"github.com/lk2023060901/agentic-gateway/internal/chat/types"
	apperrors "github.com/lk2023060901/agentic-gateway/internal/pkg/errors"
)

var validRoles = map[string]bool{
	ptypes.RoleSystem:    true,
	ptypes.RoleUser:      true,
	ptypes.RoleAssistant: true,
	ptypes.RoleTool:      true,
}

// Validate 校验聊天补全请求；越界的数值直接拒绝，不做截断
func Validate(req *types.ChatCompletionRequest) error {
	if req == nil || len(req.Messages) == 0 {
		return apperrors.NewValidationError("messages", "must not be empty")
	}

	for i, msg := range req.Messages {
		if !validRoles[msg.Role] {
			return apperrors.NewValidationError(fmt.Sprintf("messages[%d].role", i),
				fmt.Sprintf("unsupported role %q", msg.Role))
		}
	}

	if err := checkRange("temperature", req.Temperature, 0, 2); err != nil {
		return err
	}
	if err := checkRange("top_p", req.TopP, 0, 1); err != nil {
		return err
	}
	if err := checkRange("frequency_penalty", req.FrequencyPenalty, -2, 2); err != nil {
		return err
	}
	if err := checkRange("presence_penalty", req.PresencePenalty, -2, 2); err != nil {
		return err
	}
	if req.MaxTokens != nil && *req.MaxTokens <= 0 {
		return apperrors.NewValidationError("max_tokens", "must be greater than 0")
	}

	return nil
}

func checkRange(field string, value *float64, min, max float64) error {
	if value == nil {
		return nil
	}
	if !(*value >= min && *value <= max) {
		return apperrors.NewValidationError(field, fmt.Sprintf("must be between %g and %g, got %g", min, max, *value))
	}
	return nil
}
