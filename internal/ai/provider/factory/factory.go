package factory

import (
	"fmt"
	"time"

	"github.com/lk2023060901/agentic-gateway/internal/ai/provider/anthropic"
	"github.com/lk2023060901/agentic-gateway/internal/ai/provider/openai"
	"github.com/lk2023060901/agentic-gateway/internal/ai/provider/registry"
	"github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"go.uber.org/zap"
)

const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"

	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultTimeout          = 30 * time.Second
)

// 各类型 Provider 的默认前缀路由
var defaultPrefixes = map[string][]string{
	KindOpenAI:    {"gpt-", "o1", "o3", "o4"},
	KindAnthropic: {"claude-"},
}

// Params 单个 Provider 的构建参数
type Params struct {
	Name     string
	Kind     string // openai, anthropic
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Model    string
	Headers  map[string]string
	Models   []string
	Prefixes []string
}

// Option 配置选项函数
type Option func(*types.Config)

// WithModel 返回设置默认模型的 Option
func WithModel(model string) Option {
	return func(c *types.Config) {
		if model != "" {
			c.Model = model
		}
	}
}

// WithTimeout 返回设置超时的 Option
func WithTimeout(timeout time.Duration) Option {
	return func(c *types.Config) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// WithHeaders 返回批量设置 Headers 的 Option
func WithHeaders(headers map[string]string) Option {
	return func(c *types.Config) {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		for key, value := range headers {
			c.Headers[key] = value
		}
	}
}

// OpenAI 快速创建 OpenAI（或兼容服务）配置
func OpenAI(apiKey, baseURL string, opts ...Option) *types.Config {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return buildConfig(apiKey, baseURL, opts)
}

// Anthropic 快速创建 Anthropic 配置
func Anthropic(apiKey, baseURL string, opts ...Option) *types.Config {
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return buildConfig(apiKey, baseURL, opts)
}

func buildConfig(apiKey, baseURL string, opts []Option) *types.Config {
	config := &types.Config{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Timeout: defaultTimeout,
		Headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

// New 根据 Params 创建 Provider
func New(p Params) (types.Provider, error) {
	opts := []Option{WithModel(p.Model), WithTimeout(p.Timeout), WithHeaders(p.Headers)}

	switch p.Kind {
	case KindOpenAI:
		cfg := OpenAI(p.APIKey, p.BaseURL, opts...)
		cfg.Name = p.Name
		return openai.New(cfg)
	case KindAnthropic:
		cfg := Anthropic(p.APIKey, p.BaseURL, opts...)
		cfg.Name = p.Name
		return anthropic.New(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider type %q", p.Kind)
	}
}

// BuildRegistry 创建所有已配置 API Key 的 Provider 并注册路由
// 未配置 API Key 的 Provider 被跳过；结果可能是空注册表
func BuildRegistry(params []Params, aliases map[string]string, log *logger.Logger) (*registry.Registry, error) {
	reg := registry.New()

	for _, p := range params {
		if p.Name == "" {
			p.Name = p.Kind
		}
		if p.APIKey == "" {
			log.Info("llm provider skipped, no api key configured", zap.String("provider", p.Name))
			continue
		}

		provider, err := New(p)
		if err != nil {
			_ = reg.Close()
			return nil, fmt.Errorf("create provider %s: %w", p.Name, err)
		}

		prefixes := p.Prefixes
		if len(prefixes) == 0 {
			prefixes = defaultPrefixes[p.Kind]
		}

		reg.Register(p.Name, provider, registry.Route{Models: p.Models, Prefixes: prefixes})
		log.Info("llm provider registered",
			zap.String("provider", p.Name),
			zap.String("type", p.Kind),
			zap.Strings("prefixes", prefixes),
		)
	}

	for alias, model := range aliases {
		reg.RegisterAlias(alias, model)
	}

	return reg, nil
}
