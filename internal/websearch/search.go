package websearch

import (
	"context"
	"fmt"
	"strings"

	"github.com/lk2023060901/agentic-gateway/internal/websearch/provider"
	"github.com/lk2023060901/agentic-gateway/internal/websearch/types"
)

const snippetMaxRunes = 200

// Searcher 执行 Web 搜索并将结果格式化为文本
type Searcher struct {
	provider provider.Provider
}

// NewSearcher 创建 Searcher；p 为 nil 表示未配置搜索服务
func NewSearcher(p provider.Provider) *Searcher {
	return &Searcher{provider: p}
}

// Configured 是否配置了搜索服务
func (s *Searcher) Configured() bool {
	return s != nil && s.provider != nil
}

// Search 按搜索类型构建请求，结果数限制在 [1,20]
// academic 使用 advanced 深度，news 限定新闻站点
func (s *Searcher) Search(ctx context.Context, query string, numResults int, searchType types.SearchType) (string, error) {
	if !s.Configured() {
		return "", types.ErrProviderNotConfigured
	}
	if strings.TrimSpace(query) == "" {
		return "", types.ErrEmptyQuery
	}
	if searchType == "" {
		searchType = types.SearchGeneral
	}

	req := &types.SearchRequest{
		Query:         query,
		MaxResults:    types.ClampResults(numResults),
		SearchDepth:   "basic",
		IncludeAnswer: true,
	}
	switch searchType {
	case types.SearchGeneral:
	case types.SearchAcademic:
		req.SearchDepth = "advanced"
	case types.SearchNews:
		req.IncludeDomains = types.NewsDomains
	default:
		return "", types.ErrInvalidSearchType
	}

	resp, err := s.provider.Search(ctx, req)
	if err != nil {
		return "", err
	}
	return FormatResults(query, resp, req.MaxResults), nil
}

// FormatResults 将搜索结果格式化为带编号的文本
func FormatResults(query string, resp *types.SearchResponse, limit int) string {
	if resp == nil || len(resp.Results) == 0 {
		return fmt.Sprintf("No results found for query: %s", query)
	}

	results := resp.Results
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	entries := make([]string, 0, len(results))
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "No title"
		}
		snippet := r.Content
		if snippet == "" {
			snippet = "No description available"
		}
		entries = append(entries, fmt.Sprintf("%d. **%s**\n   URL: %s\n   %s\n", i+1, title, r.URL, truncate(snippet, snippetMaxRunes)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for '%s':\n\n", query)
	if resp.Answer != "" {
		fmt.Fprintf(&b, "**Quick Answer:** %s\n\n", resp.Answer)
	}
	b.WriteString(strings.Join(entries, "\n"))
	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
