package biz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	ptypes "github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxIterations = 6
	DefaultTemperature   = 0.7
	DefaultMaxTokens     = 4096

	unavailableContent = "Agent service is not available. Please configure API keys (ANTHROPIC_API_KEY or OPENAI_API_KEY) in the .env file to enable chat functionality."
	unavailableError   = "Agent not initialized - missing API keys"
)

// DefaultSystemPrompt 默认系统提示词
const DefaultSystemPrompt = `You are an advanced AI assistant with access to various tools for web search and GitHub integration.

Your capabilities include:
- Web search for current information and news
- GitHub repository and issue search
- Code analysis and recommendations
- Research assistance

Guidelines:
1. Always use tools when you need current information or specific data
2. Provide clear, well-structured responses
3. Cite sources when using web search results
4. Be helpful and accurate in your responses
5. If you're unsure about something, say so and suggest how to find the answer

When using tools:
- Use web_search for general information
- Use web_search_news for recent news and events
- Use github_search_repositories to find relevant code repositories
- Use github_get_repository_info for detailed repository information
- Use github_search_issues to find relevant issues or discussions`

// ErrIterationLimit 超过最大轮数仍在调用工具
var ErrIterationLimit = errors.New("agent exceeded the maximum number of tool iterations")

// Completer 非流式补全，通常为带备用模型的 chat Adapter
type Completer interface {
	Complete(ctx context.Context, req ptypes.ChatCompletionRequest) (*ptypes.ChatCompletionResponse, error)
}

// ToolExecutor 工具定义与执行
type ToolExecutor interface {
	Definitions(names []string) []ptypes.Tool
	Execute(ctx context.Context, name, arguments string) string
}

// Config Agent 配置
type Config struct {
	Model         string `mapstructure:"model"`
	MaxIterations int    `mapstructure:"max_iterations"`
	SystemPrompt  string `mapstructure:"system_prompt"`
}

// Result Agent 执行结果
type Result struct {
	Content   string
	ToolCalls []ptypes.ToolCall
	State     map[string]interface{}
}

// Agent 工具调用循环：模型请求工具则执行并回填结果，直到模型给出最终回答
type Agent struct {
	completer Completer
	tools     ToolExecutor
	cfg       Config
	ready     func() bool
	log       *logger.Logger
}

// NewAgent 创建 Agent；ready 返回 false 表示没有可用的 LLM Provider
func NewAgent(completer Completer, tools ToolExecutor, cfg Config, ready func() bool, log *logger.Logger) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Agent{
		completer: completer,
		tools:     tools,
		cfg:       cfg,
		ready:     ready,
		log:       log.Named("agent"),
	}
}

// Ready 是否有可用的 LLM Provider
func (a *Agent) Ready() bool {
	return a.ready()
}

// Invoke 执行一次 Agent 对话
// toolNames 为空时启用全部工具；userContext 非空时附加到系统提示词之后
// 同一轮的多个工具调用并发执行
func (a *Agent) Invoke(ctx context.Context, messages []ptypes.Message, toolNames []string, userContext map[string]interface{}) (*Result, error) {
	if !a.ready() {
		return &Result{
			Content:   unavailableContent,
			ToolCalls: []ptypes.ToolCall{},
			State:     map[string]interface{}{"error": unavailableError},
		}, nil
	}

	history := make([]ptypes.Message, 0, len(messages)+1)
	history = append(history, ptypes.Message{Role: ptypes.RoleSystem, Content: a.systemPrompt(ctx, userContext)})
	history = append(history, messages...)

	defs := a.tools.Definitions(toolNames)
	if len(defs) == 0 {
		defs = nil
	}

	temperature, maxTokens := DefaultTemperature, DefaultMaxTokens
	trace := []ptypes.ToolCall{}

	for i := 0; i < a.cfg.MaxIterations; i++ {
		resp, err := a.completer.Complete(ctx, ptypes.ChatCompletionRequest{
			Model:       a.cfg.Model,
			Messages:    history,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
			Tools:       defs,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, ptypes.ErrEmptyResponse
		}

		reply := resp.Choices[0].Message
		reply.Role = ptypes.RoleAssistant
		history = append(history, reply)

		if len(reply.ToolCalls) == 0 {
			return &Result{
				Content:   reply.Content,
				ToolCalls: trace,
				State: map[string]interface{}{
					"total_messages": len(history) - 1,
					"tools_used":     len(trace),
				},
			}, nil
		}

		trace = append(trace, reply.ToolCalls...)
		history = append(history, a.runTools(ctx, reply.ToolCalls)...)
	}

	a.log.WithContext(ctx).Warn("agent iteration limit reached",
		zap.Int("max_iterations", a.cfg.MaxIterations),
		zap.Int("tool_calls", len(trace)),
	)
	return nil, fmt.Errorf("%w (%d)", ErrIterationLimit, a.cfg.MaxIterations)
}

// systemPrompt 系统提示词，附带 JSON 形式的用户上下文（键有序）
func (a *Agent) systemPrompt(ctx context.Context, userContext map[string]interface{}) string {
	if len(userContext) == 0 {
		return a.cfg.SystemPrompt
	}
	raw, err := json.MarshalIndent(userContext, "", "  ")
	if err != nil {
		a.log.WithContext(ctx).Warn("user context dropped", zap.Error(err))
		return a.cfg.SystemPrompt
	}
	return a.cfg.SystemPrompt + "\n\nUser context:\n" + string(raw)
}

// runTools 并发执行一轮工具调用，结果按调用顺序返回
func (a *Agent) runTools(ctx context.Context, calls []ptypes.ToolCall) []ptypes.Message {
	results := make([]ptypes.Message, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			output := a.tools.Execute(gctx, call.Function.Name, call.Function.Arguments)
			a.log.Debug("tool executed", zap.String("tool", call.Function.Name), zap.Int("bytes", len(output)))
			results[i] = ptypes.Message{
				Role:       ptypes.RoleTool,
				Content:    output,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
