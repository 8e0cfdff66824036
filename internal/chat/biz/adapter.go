package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	ptypes "github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const defaultAttemptTimeout = 60 * time.Second

// DefaultFallbackModels 主模型失败后依次尝试的模型
var DefaultFallbackModels = []string{"gpt-4o-mini", "claude-3-haiku-20240307"}

// ProviderResolver 根据模型 ID 找到 Provider
type ProviderResolver interface {
	Resolve(model string) (ptypes.Provider, string, error)
}

// AdapterConfig 补全适配器配置
type AdapterConfig struct {
	FallbackModels []string
	AttemptTimeout time.Duration
}

// ExhaustedError 主模型和所有备用模型均失败
// Cause 为主模型的失败原因
type ExhaustedError struct {
	Model    string
	Attempts int
	Cause    error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("completion failed for model %s after %d attempts: %v", e.Model, e.Attempts, e.Cause)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Cause
}

// Adapter 补全适配器，非流式请求失败时按顺序切换备用模型
type Adapter struct {
	resolver       ProviderResolver
	fallbacks      []string
	attemptTimeout time.Duration
	failures       *prometheus.CounterVec
	log            *logger.Logger
}

// NewAdapter 创建适配器；reg 为 nil 时不注册指标
func NewAdapter(resolver ProviderResolver, cfg AdapterConfig, reg prometheus.Registerer, log *logger.Logger) *Adapter {
	fallbacks := cfg.FallbackModels
	if fallbacks == nil {
		fallbacks = DefaultFallbackModels
	}
	timeout := cfg.AttemptTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}

	return &Adapter{
		resolver:       resolver,
		fallbacks:      fallbacks,
		attemptTimeout: timeout,
		failures:       registerFailureCounter(reg),
		log:            log.Named("completion"),
	}
}

func registerFailureCounter(reg prometheus.Registerer) *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "completion_failures_total",
		Help:      "Failed completion attempts by model.",
	}, []string{"model"})

	if reg == nil {
		return counter
	}
	if err := reg.Register(counter); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return counter
}

// Complete 非流式补全
// 主模型失败后依次尝试备用模型（跳过与主模型相同或重复的条目），客户端取消时立即停止
func (a *Adapter) Complete(ctx context.Context, req ptypes.ChatCompletionRequest) (*ptypes.ChatCompletionResponse, error) {
	req.Stream = false
	original := req.Model

	resp, err := a.attempt(ctx, req)
	if err == nil {
		return resp, nil
	}
	cause := err
	attempts := 1

	for _, model := range a.fallbackChain(original) {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("completion cancelled: %w", ctx.Err())
		}

		req.Model = model
		attempts++
		resp, err = a.attempt(ctx, req)
		if err == nil {
			a.log.Info("completion served by fallback model",
				zap.String("requested_model", original),
				zap.String("model", model),
				zap.Int("attempts", attempts),
			)
			return resp, nil
		}
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("completion cancelled: %w", ctx.Err())
	}
	return nil, &ExhaustedError{Model: original, Attempts: attempts, Cause: cause}
}

// CompleteStream 流式补全，只尝试一次，不切换备用模型
func (a *Adapter) CompleteStream(ctx context.Context, req ptypes.ChatCompletionRequest) (<-chan ptypes.StreamChunk, error) {
	req.Stream = true

	provider, model, err := a.resolver.Resolve(req.Model)
	if err != nil {
		a.recordFailure(req.Model, err)
		return nil, err
	}
	req.Model = model

	stream, err := provider.CreateChatCompletionStream(ctx, req)
	if err != nil {
		a.recordFailure(model, err)
		return nil, err
	}
	return stream, nil
}

func (a *Adapter) attempt(ctx context.Context, req ptypes.ChatCompletionRequest) (*ptypes.ChatCompletionResponse, error) {
	provider, model, err := a.resolver.Resolve(req.Model)
	if err != nil {
		a.recordFailure(req.Model, err)
		return nil, err
	}
	req.Model = model

	attemptCtx, cancel := context.WithTimeout(ctx, a.attemptTimeout)
	defer cancel()

	resp, err := provider.CreateChatCompletion(attemptCtx, req)
	if err == nil && (resp == nil || len(resp.Choices) == 0) {
		err = ptypes.ErrEmptyResponse
	}
	if err != nil {
		a.recordFailure(model, err)
		return nil, err
	}
	return resp, nil
}

func (a *Adapter) fallbackChain(original string) []string {
	seen := map[string]bool{original: true}
	chain := make([]string, 0, len(a.fallbacks))
	for _, model := range a.fallbacks {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true
		chain = append(chain, model)
	}
	return chain
}

func (a *Adapter) recordFailure(model string, err error) {
	a.failures.WithLabelValues(model).Inc()
	a.log.Warn("completion attempt failed", zap.String("model", model), zap.Error(err))
}
