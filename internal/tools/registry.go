package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
	"github.com/lk2023060901/agentic-gateway/internal/github"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/workerpool"
	"github.com/lk2023060901/agentic-gateway/internal/websearch"
	wstypes "github.com/lk2023060901/agentic-gateway/internal/websearch/types"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	WebSearch                = "web_search"
	WebSearchNews            = "web_search_news"
	WebSearchAcademic        = "web_search_academic"
	GitHubSearchRepositories = "github_search_repositories"
	GitHubGetRepositoryInfo  = "github_get_repository_info"
	GitHubSearchIssues       = "github_search_issues"
)

// ErrUnknownTool 工具不存在
var ErrUnknownTool = errors.New("unknown tool")

// Handler 工具实现，args 为模型给出的 JSON 参数
type Handler func(ctx context.Context, args gjson.Result) (string, error)

// Tool 工具定义
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	handler     Handler
}

// Info 工具描述，用于 /agents/tools
type Info struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Registry 工具注册表
type Registry struct {
	tools map[string]*Tool
	order []string
	cache Cache
	pool  *workerpool.Pool
	log   *logger.Logger
}

// NewRegistry 创建包含 Web 搜索与 GitHub 工具的注册表
// cache 为 nil 时不缓存
func NewRegistry(searcher *websearch.Searcher, gh *github.Client, cache Cache, log *logger.Logger) *Registry {
	r := &Registry{
		tools: make(map[string]*Tool),
		cache: cache,
		log:   log.Named("tools"),
	}

	r.Register(&Tool{
		Name:        WebSearch,
		Description: "Search the web for current information using Tavily API.",
		Parameters: schema(`{
			"query": {"type": "string", "description": "The search query"},
			"num_results": {"type": "integer", "description": "Number of results to return (1-20)", "default": 5},
			"search_type": {"type": "string", "enum": ["general", "news", "academic"], "default": "general"}
		}`, "query"),
		handler: webSearchHandler(searcher, ""),
	})
	r.Register(&Tool{
		Name:        WebSearchNews,
		Description: "Search for recent news articles.",
		Parameters:  schema(numResultsProps, "query"),
		handler:     webSearchHandler(searcher, wstypes.SearchNews),
	})
	r.Register(&Tool{
		Name:        WebSearchAcademic,
		Description: "Search for academic papers and scholarly content.",
		Parameters:  schema(numResultsProps, "query"),
		handler:     webSearchHandler(searcher, wstypes.SearchAcademic),
	})
	r.Register(&Tool{
		Name:        GitHubSearchRepositories,
		Description: "Search GitHub repositories.",
		Parameters: schema(`{
			"query": {"type": "string", "description": "Search query for repositories"},
			"language": {"type": "string", "description": "Programming language filter"},
			"sort": {"type": "string", "enum": ["stars", "forks", "help-wanted-issues", "updated"], "default": "stars"},
			"order": {"type": "string", "enum": ["asc", "desc"], "default": "desc"},
			"per_page": {"type": "integer", "description": "Number of results (1-20)", "default": 5}
		}`, "query"),
		handler: func(ctx context.Context, args gjson.Result) (string, error) {
			return gh.SearchRepositories(ctx, github.RepoSearchOptions{
				Query:    args.Get("query").String(),
				Language: args.Get("language").String(),
				Sort:     args.Get("sort").String(),
				Order:    args.Get("order").String(),
				PerPage:  intOr(args.Get("per_page"), github.DefaultPerPage),
			})
		},
	})
	r.Register(&Tool{
		Name:        GitHubGetRepositoryInfo,
		Description: "Get detailed information about a specific GitHub repository.",
		Parameters: schema(`{
			"owner": {"type": "string", "description": "Repository owner (username or organization)"},
			"repo": {"type": "string", "description": "Repository name"}
		}`, "owner", "repo"),
		handler: func(ctx context.Context, args gjson.Result) (string, error) {
			return gh.GetRepositoryInfo(ctx, args.Get("owner").String(), args.Get("repo").String())
		},
	})
	r.Register(&Tool{
		Name:        GitHubSearchIssues,
		Description: "Search GitHub issues across repositories.",
		Parameters: schema(`{
			"query": {"type": "string", "description": "Search query for issues"},
			"state": {"type": "string", "enum": ["open", "closed", "all"], "default": "open"},
			"sort": {"type": "string", "enum": ["created", "updated", "comments"], "default": "created"},
			"order": {"type": "string", "enum": ["asc", "desc"], "default": "desc"},
			"per_page": {"type": "integer", "description": "Number of results (1-20)", "default": 5}
		}`, "query"),
		handler: func(ctx context.Context, args gjson.Result) (string, error) {
			return gh.SearchIssues(ctx, github.IssueSearchOptions{
				Query:   args.Get("query").String(),
				State:   args.Get("state").String(),
				Sort:    args.Get("sort").String(),
				Order:   args.Get("order").String(),
				PerPage: intOr(args.Get("per_page"), github.DefaultPerPage),
			})
		},
	})

	return r
}

const numResultsProps = `{
	"query": {"type": "string", "description": "The search query"},
	"num_results": {"type": "integer", "description": "Number of results to return (1-20)", "default": 5}
}`

// UsePool 工具调用经由 pool 执行，限制全局并发
func (r *Registry) UsePool(pool *workerpool.Pool) *Registry {
	r.pool = pool
	return r
}

// Register 注册工具，同名覆盖
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// List 按注册顺序返回全部工具描述
func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, Info{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	return out
}

// Names 按注册顺序返回工具名
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Definitions 返回指定工具的函数定义；names 为空时返回全部，未知名称忽略
func (r *Registry) Definitions(names []string) []types.Tool {
	if len(names) == 0 {
		names = r.order
	}

	seen := make(map[string]bool, len(names))
	defs := make([]types.Tool, 0, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		defs = append(defs, types.Tool{
			Type: "function",
			Function: types.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return defs
}

// Execute 执行工具调用，错误以 "Error: ..." 文本返回给模型
func (r *Registry) Execute(ctx context.Context, name, arguments string) string {
	t, ok := r.tools[name]
	if !ok {
		return fmt.Sprintf("Error: %v: %s", ErrUnknownTool, name)
	}

	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}
	if !gjson.Valid(arguments) {
		return fmt.Sprintf("Error: invalid arguments for %s", name)
	}
	args := gjson.Parse(arguments)

	key := cacheKey(name, args)
	if r.cache != nil {
		if cached, hit := r.cache.Get(ctx, key); hit {
			return cached
		}
	}

	result, err := r.run(ctx, t, args)
	if err != nil {
		r.log.WithContext(ctx).Warn("tool execution failed", zap.String("tool", name), zap.Error(err))
		return "Error: " + toolErrorMessage(err)
	}

	if r.cache != nil {
		r.cache.Set(ctx, key, result)
	}
	return result
}

func (r *Registry) run(ctx context.Context, t *Tool, args gjson.Result) (string, error) {
	if r.pool == nil {
		return t.handler(ctx, args)
	}

	var (
		result string
		err    error
	)
	if poolErr := r.pool.Run(ctx, func(ctx context.Context) {
		result, err = t.handler(ctx, args)
	}); poolErr != nil {
		return "", poolErr
	}
	return result, err
}

func webSearchHandler(searcher *websearch.Searcher, fixed wstypes.SearchType) Handler {
	return func(ctx context.Context, args gjson.Result) (string, error) {
		searchType := fixed
		if searchType == "" {
			searchType = wstypes.SearchType(args.Get("search_type").String())
		}
		return searcher.Search(ctx, args.Get("query").String(), intOr(args.Get("num_results"), wstypes.DefaultNumResults), searchType)
	}
}

func toolErrorMessage(err error) string {
	if errors.Is(err, wstypes.ErrProviderNotConfigured) {
		return "Tavily API key not configured"
	}
	return err.Error()
}

func intOr(r gjson.Result, def int) int {
	if !r.Exists() || r.Type == gjson.Null {
		return def
	}
	return int(r.Int())
}

// schema 生成 object 类型的 JSON Schema
func schema(properties string, required ...string) json.RawMessage {
	var props map[string]interface{}
	if err := json.Unmarshal([]byte(properties), &props); err != nil {
		panic(fmt.Sprintf("tools: invalid schema properties: %v", err))
	}
	sort.Strings(required)
	b, _ := json.Marshal(map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	})
	return b
}
