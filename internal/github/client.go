package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	httpclient "github.com/lk2023060901/agentic-gateway/internal/websearch/http"
	"github.com/tidwall/gjson"
)

const (
	DefaultAPIHost = "https://api.github.com"
	userAgent      = "Agentic-Canvas-LLM-Server"
	acceptHeader   = "application/vnd.github.v3+json"

	DefaultPerPage = 5
	MinPerPage     = 1
	MaxPerPage     = 20

	readmeNotice = "README available (content truncated for brevity)"
)

// Config GitHub 客户端配置
type Config struct {
	APIHost string `mapstructure:"api_host"`
	Token   string `mapstructure:"token"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

// Client GitHub REST v3 客户端，返回格式化文本
type Client struct {
	apiHost    string
	token      string
	httpClient *http.Client
}

// NewClient 创建 Client；Token 为空时匿名访问
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	host := strings.TrimRight(cfg.APIHost, "/")
	if host == "" {
		host = DefaultAPIHost
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiHost:    host,
		token:      cfg.Token,
		httpClient: httpclient.NewHTTPClient(timeout),
	}
}

// RepoSearchOptions 仓库搜索参数
type RepoSearchOptions struct {
	Query    string
	Language string
	Sort     string
	Order    string
	PerPage  int
}

// IssueSearchOptions Issue 搜索参数
type IssueSearchOptions struct {
	Query   string
	State   string
	Sort    string
	Order   string
	PerPage int
}

// ClampPerPage 将 per_page 限制在 [1,20]
func ClampPerPage(n int) int {
	switch {
	case n < MinPerPage:
		return MinPerPage
	case n > MaxPerPage:
		return MaxPerPage
	}
	return n
}

// SearchRepositories 搜索仓库
func (c *Client) SearchRepositories(ctx context.Context, opts RepoSearchOptions) (string, error) {
	q := opts.Query
	if opts.Language != "" {
		q += " language:" + opts.Language
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("sort", orDefault(opts.Sort, "stars"))
	params.Set("order", orDefault(opts.Order, "desc"))
	params.Set("per_page", strconv.Itoa(ClampPerPage(opts.PerPage)))

	status, body, err := c.get(ctx, "/search/repositories?"+params.Encode())
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &APIError{StatusCode: status, Body: string(body)}
	}

	items := gjson.GetBytes(body, "items").Array()
	if len(items) == 0 {
		return fmt.Sprintf("No repositories found for query: %s", opts.Query), nil
	}

	entries := make([]string, 0, len(items))
	for i, repo := range items {
		entries = append(entries, fmt.Sprintf("%d. **%s**\n   ⭐ %d stars | 🍴 %d forks | 💻 %s\n   %s\n   URL: %s\n",
			i+1,
			stringOr(repo.Get("full_name"), "Unknown"),
			repo.Get("stargazers_count").Int(),
			repo.Get("forks_count").Int(),
			stringOr(repo.Get("language"), "Unknown"),
			stringOr(repo.Get("description"), "No description"),
			repo.Get("html_url").String(),
		))
	}

	total := gjson.GetBytes(body, "total_count").Int()
	return fmt.Sprintf("Found %d repositories for '%s':\n\n", total, opts.Query) + strings.Join(entries, "\n"), nil
}

// GetRepositoryInfo 获取仓库详情，并探测 README 是否存在
func (c *Client) GetRepositoryInfo(ctx context.Context, owner, repo string) (string, error) {
	path := fmt.Sprintf("/repos/%s/%s", url.PathEscape(owner), url.PathEscape(repo))

	status, body, err := c.get(ctx, path)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return fmt.Sprintf("Repository %s/%s not found", owner, repo), nil
	}
	if status != http.StatusOK {
		return "", &APIError{StatusCode: status, Body: string(body)}
	}

	data := gjson.ParseBytes(body)
	license := "No license"
	if name := data.Get("license.name"); name.Exists() && name.String() != "" {
		license = name.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Repository: %s**\n\n", data.Get("full_name").String())
	fmt.Fprintf(&b, "Description: %s\n", stringOr(data.Get("description"), "No description"))
	fmt.Fprintf(&b, "Language: %s\n", stringOr(data.Get("language"), "Unknown"))
	fmt.Fprintf(&b, "Stars: %d\n", data.Get("stargazers_count").Int())
	fmt.Fprintf(&b, "Forks: %d\n", data.Get("forks_count").Int())
	fmt.Fprintf(&b, "Open Issues: %d\n", data.Get("open_issues_count").Int())
	fmt.Fprintf(&b, "Created: %s\n", stringOr(data.Get("created_at"), "Unknown"))
	fmt.Fprintf(&b, "Last Updated: %s\n", stringOr(data.Get("updated_at"), "Unknown"))
	fmt.Fprintf(&b, "License: %s\n", license)
	fmt.Fprintf(&b, "URL: %s\n", data.Get("html_url").String())

	if topics := data.Get("topics").Array(); len(topics) > 0 {
		names := make([]string, 0, len(topics))
		for _, t := range topics {
			names = append(names, t.String())
		}
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(names, ", "))
	}

	// README 探测失败不影响结果
	if readmeStatus, _, err := c.get(ctx, path+"/readme"); err == nil && readmeStatus == http.StatusOK {
		b.WriteString("\n" + readmeNotice)
	}

	return b.String(), nil
}

// SearchIssues 搜索 Issue；state 为 all 时不加 state 限定
func (c *Client) SearchIssues(ctx context.Context, opts IssueSearchOptions) (string, error) {
	state := orDefault(opts.State, "open")
	q := opts.Query + " type:issue"
	if state != "all" {
		q += " state:" + state
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("sort", orDefault(opts.Sort, "created"))
	params.Set("order", orDefault(opts.Order, "desc"))
	params.Set("per_page", strconv.Itoa(ClampPerPage(opts.PerPage)))

	status, body, err := c.get(ctx, "/search/issues?"+params.Encode())
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &APIError{StatusCode: status, Body: string(body)}
	}

	items := gjson.GetBytes(body, "items").Array()
	if len(items) == 0 {
		return fmt.Sprintf("No issues found for query: %s", opts.Query), nil
	}

	entries := make([]string, 0, len(items))
	for i, issue := range items {
		emoji := "🔴"
		if issue.Get("state").String() == "open" {
			emoji = "🟢"
		}
		entries = append(entries, fmt.Sprintf("%d. %s **%s**\n   Repository: %s\n   💬 %d comments | Created: %s\n   URL: %s\n",
			i+1,
			emoji,
			stringOr(issue.Get("title"), "Unknown"),
			repoFromURL(issue.Get("repository_url").String()),
			issue.Get("comments").Int(),
			stringOr(issue.Get("created_at"), "Unknown"),
			issue.Get("html_url").String(),
		))
	}

	total := gjson.GetBytes(body, "total_count").Int()
	return fmt.Sprintf("Found %d issues for '%s':\n\n", total, opts.Query) + strings.Join(entries, "\n"), nil
}

func (c *Client) get(ctx context.Context, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiHost+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to connect to GitHub API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read GitHub response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// stringOr 字段缺失或为 null 时返回 def
func stringOr(r gjson.Result, def string) string {
	if !r.Exists() || r.Type == gjson.Null {
		return def
	}
	return r.String()
}

func repoFromURL(u string) string {
	if u == "" {
		return "Unknown"
	}
	parts := strings.Split(strings.TrimRight(u, "/"), "/")
	if len(parts) < 2 {
		return "Unknown"
	}
	return parts[len(parts)-2] + "/" + parts[len(parts)-1]
}
