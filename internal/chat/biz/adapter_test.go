package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	ptypes "github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func failing(msg string) *stubProvider {
	return &stubProvider{
		name: "failing",
		completeFn: func(ctx context.Context, req ptypes.ChatCompletionRequest) (*ptypes.ChatCompletionResponse, error) {
			return nil, errors.New(msg)
		},
	}
}

func succeeding(content string) *stubProvider {
	return &stubProvider{
		name: "ok",
		completeFn: func(ctx context.Context, req ptypes.ChatCompletionRequest) (*ptypes.ChatCompletionResponse, error) {
			return textResponse(req.Model, content), nil
		},
	}
}

func TestComplete_PrimarySucceeds(t *testing.T) {
	primary := succeeding("hello")
	fallback := succeeding("unused")
	a := NewAdapter(mapResolver{"gpt-4o": primary, "gpt-4o-mini": fallback}, AdapterConfig{}, nil, logger.Nop())

	resp, err := a.Complete(context.Background(), ptypes.ChatCompletionRequest{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content())
	assert.EqualValues(t, 1, primary.calls.Load())
	assert.EqualValues(t, 0, fallback.calls.Load())
}

func TestComplete_FallbackServes(t *testing.T) {
	primary := failing("primary down")
	fallback := succeeding("from fallback")
	a := NewAdapter(mapResolver{"gpt-4o": primary, "gpt-4o-mini": fallback}, AdapterConfig{}, nil, logger.Nop())

	temp := 0.2
	resp, err := a.Complete(context.Background(), ptypes.ChatCompletionRequest{Model: "gpt-4o", Temperature: &temp})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", resp.Content())
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.EqualValues(t, 1, primary.calls.Load())
	assert.EqualValues(t, 1, fallback.calls.Load())
}

func TestComplete_ExhaustedKeepsPrimaryCause(t *testing.T) {
	primary := failing("primary exploded")
	first := failing("first fallback failed")
	second := failing("second fallback failed")
	a := NewAdapter(mapResolver{
		"gpt-4o":                  primary,
		"gpt-4o-mini":             first,
		"claude-3-haiku-20240307": second,
	}, AdapterConfig{}, nil, logger.Nop())

	_, err := a.Complete(context.Background(), ptypes.ChatCompletionRequest{Model: "gpt-4o"})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "gpt-4o", exhausted.Model)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.EqualError(t, exhausted.Cause, "primary exploded")
	assert.NotContains(t, err.Error(), "second fallback failed")
}

func TestComplete_SkipsOriginalAndDuplicates(t *testing.T) {
	primary := failing("down")
	haiku := failing("also down")
	a := NewAdapter(mapResolver{"gpt-4o-mini": primary, "claude-3-haiku-20240307": haiku}, AdapterConfig{
		FallbackModels: []string{"gpt-4o-mini", "claude-3-haiku-20240307", "claude-3-haiku-20240307"},
	}, nil, logger.Nop())

	_, err := a.Complete(context.Background(), ptypes.ChatCompletionRequest{Model: "gpt-4o-mini"})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.EqualValues(t, 1, primary.calls.Load())
	assert.EqualValues(t, 1, haiku.calls.Load())
}

func TestComplete_EmptyChoicesIsFailure(t *testing.T) {
	empty := &stubProvider{completeFn: func(ctx context.Context, req ptypes.ChatCompletionRequest) (*ptypes.ChatCompletionResponse, error) {
		return &ptypes.ChatCompletionResponse{Model: req.Model}, nil
	}}
	fallback := succeeding("ok")
	a := NewAdapter(mapResolver{"gpt-4o": empty, "gpt-4o-mini": fallback}, AdapterConfig{}, nil, logger.Nop())

	resp, err := a.Complete(context.Background(), ptypes.ChatCompletionRequest{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content())
}

func TestComplete_AttemptTimeout(t *testing.T) {
	slow := &stubProvider{completeFn: func(ctx context.Context, req ptypes.ChatCompletionRequest) (*ptypes.ChatCompletionResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	fallback := succeeding("fast")
	a := NewAdapter(mapResolver{"gpt-4o": slow, "gpt-4o-mini": fallback}, AdapterConfig{
		AttemptTimeout: 20 * time.Millisecond,
	}, nil, logger.Nop())

	resp, err := a.Complete(context.Background(), ptypes.ChatCompletionRequest{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "fast", resp.Content())
}

func TestComplete_CancelStopsChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := &stubProvider{completeFn: func(_ context.Context, req ptypes.ChatCompletionRequest) (*ptypes.ChatCompletionResponse, error) {
		cancel()
		return nil, context.Canceled
	}}
	fallback := succeeding("never")
	a := NewAdapter(mapResolver{"gpt-4o": primary, "gpt-4o-mini": fallback}, AdapterConfig{}, nil, logger.Nop())

	_, err := a.Complete(ctx, ptypes.ChatCompletionRequest{Model: "gpt-4o"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, fallback.calls.Load())
}

func TestComplete_FailureDiagnostics(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reg := prometheus.NewRegistry()
	a := NewAdapter(mapResolver{"gpt-4o": failing("boom"), "gpt-4o-mini": succeeding("ok")},
		AdapterConfig{}, reg, logger.NewFromZap(zap.New(core)))

	_, err := a.Complete(context.Background(), ptypes.ChatCompletionRequest{Model: "gpt-4o"})
	require.NoError(t, err)

	entries := logs.FilterMessage("completion attempt failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "gpt-4o", entries[0].ContextMap()["model"])
	assert.Equal(t, 1.0, testutil.ToFloat64(a.failures.WithLabelValues("gpt-4o")))
	assert.Equal(t, 0.0, testutil.ToFloat64(a.failures.WithLabelValues("gpt-4o-mini")))

	// 重复注册复用已有的计数器
	again := NewAdapter(mapResolver{}, AdapterConfig{}, reg, logger.Nop())
	assert.Same(t, a.failures, again.failures)
}

func TestCompleteStream_NoFallback(t *testing.T) {
	primary := &stubProvider{streamFn: func(ctx context.Context, req ptypes.ChatCompletionRequest) (<-chan ptypes.StreamChunk, error) {
		assert.True(t, req.Stream)
		return nil, errors.New("stream refused")
	}}
	fallback := &stubProvider{streamFn: func(ctx context.Context, req ptypes.ChatCompletionRequest) (<-chan ptypes.StreamChunk, error) {
		return chunks(), nil
	}}
	a := NewAdapter(mapResolver{"gpt-4o": primary, "gpt-4o-mini": fallback}, AdapterConfig{}, nil, logger.Nop())

	_, err := a.CompleteStream(context.Background(), ptypes.ChatCompletionRequest{Model: "gpt-4o"})
	assert.EqualError(t, err, "stream refused")
	assert.EqualValues(t, 0, fallback.calls.Load())
}
