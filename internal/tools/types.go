package tools

// GitHubSearchRequest GitHub 直接搜索请求
type GitHubSearchRequest struct {
	Query    string `json:"query" binding:"required"`
	Type     string `json:"type"` // repositories|issues|code
	Sort     string `json:"sort"`
	Order    string `json:"order"`
	Language string `json:"language"`
	State    string `json:"state"`
}

// 工具健康状态
const (
	StatusHealthy = "healthy"
	StatusPartial = "partial"
	StatusError   = "error"
)

// HealthStatus /tools/health 响应
type HealthStatus struct {
	TavilyAPI     string `json:"tavily_api"`
	GitHubAPI     string `json:"github_api"`
	OverallStatus string `json:"overall_status"`
}

// Overall 由各工具状态汇总整体状态
func Overall(statuses ...string) string {
	healthy := 0
	for _, s := range statuses {
		if s == StatusHealthy {
			healthy++
		}
	}
	switch {
	case healthy == len(statuses):
		return StatusHealthy
	case healthy > 0:
		return StatusPartial
	}
	return StatusError
}
