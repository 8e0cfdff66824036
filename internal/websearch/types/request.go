package types

// SearchType 搜索类型
type SearchType string

const (
	SearchGeneral  SearchType = "general"
	SearchNews     SearchType = "news"
	SearchAcademic SearchType = "academic"
)

const (
	DefaultNumResults = 5
	MinNumResults     = 1
	MaxNumResults     = 20
)

// NewsDomains news 搜索限定的站点
var NewsDomains = []string{"news.com", "bbc.com", "reuters.com"}

// SearchRequest represents a search request
type SearchRequest struct {
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results,omitempty"`
	SearchDepth    string   `json:"search_depth,omitempty"` // "basic" or "advanced"
	IncludeDomains []string `json:"include_domains,omitempty"`
	IncludeAnswer  bool     `json:"include_answer,omitempty"`
}

// WebSearchRequest 直接调用的 Web 搜索请求
type WebSearchRequest struct {
	Query      string     `json:"query" binding:"required"`
	NumResults int        `json:"num_results"`
	SearchType SearchType `json:"search_type"`
}

// ClampResults 将结果数限制在 [1,20]，0 表示默认值
func ClampResults(n int) int {
	switch {
	case n == 0:
		return DefaultNumResults
	case n < MinNumResults:
		return MinNumResults
	case n > MaxNumResults:
		return MaxNumResults
	}
	return n
}
