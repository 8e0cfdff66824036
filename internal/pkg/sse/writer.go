package sse

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
)

// DoneMarker 流结束标记
const DoneMarker = "[DONE]"

// ErrClosed 写入已关闭的流
var ErrClosed = errors.New("sse: stream closed")

// Writer SSE 帧写入器，每帧一次写入并立即刷新
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

// NewWriter 创建写入器
func NewWriter(w http.ResponseWriter) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// SetHeaders 设置 SSE 响应头并写出 200 状态码
func (s *Writer) SetHeaders() {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.flush()
}

// WriteData 写出 "data: <payload>\n\n" 帧
func (s *Writer) WriteData(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, '\n', '\n')

	if _, err := s.w.Write(frame); err != nil {
		s.closed = true
		return err
	}
	s.flush()
	return nil
}

// WriteJSON 将 v 编码为 JSON 后写出一帧
func (s *Writer) WriteJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.WriteData(payload)
}

// Done 写出结束帧，之后的写入均返回 ErrClosed
func (s *Writer) Done() error {
	if err := s.WriteData([]byte(DoneMarker)); err != nil {
		return err
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *Writer) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
