package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lk2023060901/agentic-gateway/internal/ai/provider/types"
)

// Route 描述 Provider 负责的模型
type Route struct {
	Models   []string // 精确匹配的模型 ID
	Prefixes []string // 前缀匹配，如 "gpt-"、"claude-"
}

// Registry Provider 注册表（实例级，无全局状态）
// 解析顺序：别名 -> 精确模型 ID -> 最长前缀 -> 默认 Provider
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]types.Provider
	order       []string
	models      map[string]string // model id -> provider name
	prefixes    map[string]string // prefix -> provider name
	aliases     map[string]string // alias -> model id
	defaultName string
}

// New 创建注册表
func New() *Registry {
	return &Registry{
		providers: make(map[string]types.Provider),
		models:    make(map[string]string),
		prefixes:  make(map[string]string),
		aliases:   make(map[string]string),
	}
}

// Register 注册 Provider 及其路由；第一个注册的 Provider 成为默认 Provider
func (r *Registry) Register(name string, provider types.Provider, route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = provider

	for _, model := range route.Models {
		r.models[model] = name
	}
	for _, prefix := range route.Prefixes {
		r.prefixes[prefix] = name
	}

	if r.defaultName == "" {
		r.defaultName = name
	}
}

// RegisterAlias 注册模型别名
func (r *Registry) RegisterAlias(alias, model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = model
}

// SetDefault 设置默认 Provider
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("provider %s not found", name)
	}
	r.defaultName = name
	return nil
}

// Resolve 根据模型 ID 查找 Provider，返回 Provider 及解析后的模型 ID
func (r *Registry) Resolve(model string) (types.Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if target, ok := r.aliases[model]; ok {
		model = target
	}

	if name, ok := r.models[model]; ok {
		return r.providers[name], model, nil
	}

	if name := r.matchPrefixLocked(model); name != "" {
		return r.providers[name], model, nil
	}

	if r.defaultName != "" {
		return r.providers[r.defaultName], model, nil
	}

	return nil, model, fmt.Errorf("%w: %s", types.ErrModelNotRouted, model)
}

// matchPrefixLocked 返回最长匹配前缀对应的 Provider 名称
func (r *Registry) matchPrefixLocked(model string) string {
	best, bestLen := "", 0
	for prefix, name := range r.prefixes {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = name, len(prefix)
		}
	}
	return best
}

// Get 按名称获取 Provider
func (r *Registry) Get(name string) (types.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found", name)
	}
	return provider, nil
}

// Default 返回默认 Provider 名称，未注册任何 Provider 时为空
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// List 按注册顺序列出 Provider 名称
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Models 列出显式注册的模型 ID（排序后）
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len 返回 Provider 数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Close 关闭所有 Provider
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, name := range r.order {
		if err := r.providers[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close provider %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
