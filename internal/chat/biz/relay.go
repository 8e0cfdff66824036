package biz

import (
	"context"
	"time"

	ptypes "github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
	"github.com/lk2023060901/agentic-gateway/internal/chat/types"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"go.uber.org/zap"
)

// FrameWriter SSE 帧输出
type FrameWriter interface {
	WriteJSON(v interface{}) error
	Done() error
}

// Relay 将上游增量流转换为 SSE 帧
type Relay struct {
	log *logger.Logger
	now func() time.Time
}

// NewRelay 创建流式转发器
func NewRelay(log *logger.Logger) *Relay {
	return &Relay{log: log.Named("relay"), now: time.Now}
}

// Stream 逐个转发 source 中的增量，每个增量一帧，保持顺序
// 收到错误 chunk 时写出一个错误帧并停止读取；正常结束或出错后都写出 [DONE]。
// 返回非 nil 表示客户端已断开（写入失败或 ctx 取消），调用方应取消上游请求。
func (r *Relay) Stream(ctx context.Context, w FrameWriter, model string, source <-chan ptypes.StreamChunk) error {
	streamID := NewCompletionID()
	created := r.now().Unix()
	frames := 0

	for {
		select {
		case <-ctx.Done():
			r.log.Debug("stream aborted by client", zap.String("id", streamID), zap.Int("frames", frames))
			return ctx.Err()

		case chunk, ok := <-source:
			if !ok {
				return w.Done()
			}

			if chunk.Error != nil {
				r.log.Warn("upstream stream failed",
					zap.String("id", streamID),
					zap.String("model", model),
					zap.Int("frames", frames),
					zap.Error(chunk.Error),
				)
				return r.Fail(w, chunk.Error)
			}

			if err := w.WriteJSON(toFrame(chunk, streamID, created, model)); err != nil {
				r.log.Debug("stream write failed", zap.String("id", streamID), zap.Error(err))
				return err
			}
			frames++
		}
	}
}

// Fail 写出错误帧和 [DONE]，用于流打开失败或中途出错
func (r *Relay) Fail(w FrameWriter, cause error) error {
	frame := types.StreamError{Error: types.StreamErrorDetail{
		Message: cause.Error(),
		Type:    types.ErrorTypeServer,
	}}
	if err := w.WriteJSON(frame); err != nil {
		return err
	}
	return w.Done()
}

func toFrame(chunk ptypes.StreamChunk, id string, created int64, model string) types.StreamChunk {
	frame := types.StreamChunk{
		ID:      chunk.ID,
		Object:  ptypes.ObjectChatCompletionChunk,
		Created: chunk.Created,
		Model:   chunk.Model,
		Choices: make([]types.StreamChoice, 0, len(chunk.Choices)),
	}
	if frame.ID == "" {
		frame.ID = id
	}
	if frame.Created == 0 {
		frame.Created = created
	}
	if frame.Model == "" {
		frame.Model = model
	}

	for _, choice := range chunk.Choices {
		frame.Choices = append(frame.Choices, types.StreamChoice{
			Index: choice.Index,
			Delta: types.Delta{
				Role:    choice.Delta.Role,
				Content: choice.Delta.Content,
			},
			FinishReason: choice.FinishReason,
		})
	}
	return frame
}
