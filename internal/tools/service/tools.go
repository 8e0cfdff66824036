package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/agentic-gateway/internal/github"
	apperrors "github.com/lk2023060901/agentic-gateway/internal/pkg/errors"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/response"
	"github.com/lk2023060901/agentic-gateway/internal/tools"
	"github.com/lk2023060901/agentic-gateway/internal/websearch"
	wstypes "github.com/lk2023060901/agentic-gateway/internal/websearch/types"
	"go.uber.org/zap"
)

// ToolService 工具直连接口，不经过 Agent
type ToolService struct {
	searcher *websearch.Searcher
	github   *github.Client
	log      *logger.Logger
}

// NewToolService 创建 ToolService
func NewToolService(searcher *websearch.Searcher, gh *github.Client, log *logger.Logger) *ToolService {
	return &ToolService{searcher: searcher, github: gh, log: log.Named("tools.service")}
}

// RegisterRoutes 注册路由
func (s *ToolService) RegisterRoutes(r *gin.RouterGroup) {
	t := r.Group("/tools")
	{
		t.POST("/search/web", s.SearchWeb)
		t.POST("/search/github/repositories", s.SearchGitHubRepositories)
		t.POST("/search/github/issues", s.SearchGitHubIssues)
		t.GET("/search/github/repository/:owner/:repo", s.GetGitHubRepository)
		t.GET("/health", s.Health)
	}
}

// SearchWeb Web 搜索
// @Summary Direct web search
// @Tags tools
// @Accept json
// @Produce json
// @Param request body wstypes.WebSearchRequest true "Search request"
// @Router /tools/search/web [post]
func (s *ToolService) SearchWeb(c *gin.Context) {
	var req wstypes.WebSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.SearchType == "" {
		req.SearchType = wstypes.SearchGeneral
	}
	if req.NumResults == 0 {
		req.NumResults = wstypes.DefaultNumResults
	}

	result, err := s.searcher.Search(c.Request.Context(), req.Query, req.NumResults, req.SearchType)
	if err != nil {
		switch {
		case errors.Is(err, wstypes.ErrProviderNotConfigured):
			response.HandleError(c, apperrors.NewUnavailableError("Tavily API key not configured"))
		case errors.Is(err, wstypes.ErrInvalidSearchType), errors.Is(err, wstypes.ErrEmptyQuery):
			response.BadRequest(c, err.Error())
		default:
			s.log.WithContext(c.Request.Context()).Error("web search failed", zap.Error(err))
			response.HandleError(c, apperrors.Wrap(err, apperrors.ErrToolFailure, "Web search error"))
		}
		return
	}

	response.OK(c, gin.H{
		"query":       req.Query,
		"result":      result,
		"search_type": req.SearchType,
		"num_results": req.NumResults,
	})
}

// SearchGitHubRepositories 搜索 GitHub 仓库
// @Summary Search GitHub repositories
// @Tags tools
// @Accept json
// @Produce json
// @Param request body tools.GitHubSearchRequest true "Search request"
// @Router /tools/search/github/repositories [post]
func (s *ToolService) SearchGitHubRepositories(c *gin.Context) {
	req, ok := bindGitHubRequest(c, "repositories")
	if !ok {
		return
	}

	result, err := s.github.SearchRepositories(c.Request.Context(), github.RepoSearchOptions{
		Query:    req.Query,
		Language: req.Language,
		Sort:     req.Sort,
		Order:    req.Order,
		PerPage:  github.DefaultPerPage,
	})
	if err != nil {
		s.githubError(c, err, "GitHub search error")
		return
	}
	response.OK(c, gin.H{"query": req.Query, "result": result, "type": req.Type})
}

// SearchGitHubIssues 搜索 GitHub Issue
// @Summary Search GitHub issues
// @Tags tools
// @Accept json
// @Produce json
// @Param request body tools.GitHubSearchRequest true "Search request"
// @Router /tools/search/github/issues [post]
func (s *ToolService) SearchGitHubIssues(c *gin.Context) {
	req, ok := bindGitHubRequest(c, "issues")
	if !ok {
		return
	}

	result, err := s.github.SearchIssues(c.Request.Context(), github.IssueSearchOptions{
		Query:   req.Query,
		State:   req.State,
		Sort:    req.Sort,
		Order:   req.Order,
		PerPage: github.DefaultPerPage,
	})
	if err != nil {
		s.githubError(c, err, "GitHub search error")
		return
	}
	response.OK(c, gin.H{"query": req.Query, "result": result, "type": req.Type})
}

// GetGitHubRepository 获取仓库详情
// @Summary Get GitHub repository info
// @Tags tools
// @Produce json
// @Param owner path string true "Owner"
// @Param repo path string true "Repository"
// @Router /tools/search/github/repository/{owner}/{repo} [get]
func (s *ToolService) GetGitHubRepository(c *gin.Context) {
	owner, repo := c.Param("owner"), c.Param("repo")

	result, err := s.github.GetRepositoryInfo(c.Request.Context(), owner, repo)
	if err != nil {
		s.githubError(c, err, "GitHub repository info error")
		return
	}
	response.OK(c, gin.H{"owner": owner, "repo": repo, "result": result})
}

// Health 探测各工具上游
// @Summary Tool health
// @Tags tools
// @Produce json
// @Success 200 {object} tools.HealthStatus
// @Router /tools/health [get]
func (s *ToolService) Health(c *gin.Context) {
	ctx := c.Request.Context()

	status := tools.HealthStatus{
		TavilyAPI: probe(func() (string, error) {
			return s.searcher.Search(ctx, "test", 1, wstypes.SearchGeneral)
		}),
		GitHubAPI: probe(func() (string, error) {
			return s.github.SearchRepositories(ctx, github.RepoSearchOptions{Query: "python", PerPage: 1})
		}),
	}
	status.OverallStatus = tools.Overall(status.TavilyAPI, status.GitHubAPI)

	c.JSON(http.StatusOK, status)
}

func (s *ToolService) githubError(c *gin.Context, err error, detail string) {
	if errors.Is(err, context.Canceled) {
		return
	}
	s.log.WithContext(c.Request.Context()).Error("github request failed", zap.Error(err))
	response.HandleError(c, apperrors.Wrap(err, apperrors.ErrToolFailure, detail))
}

func bindGitHubRequest(c *gin.Context, defaultType string) (*tools.GitHubSearchRequest, bool) {
	var req tools.GitHubSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return nil, false
	}
	if req.Type == "" {
		req.Type = defaultType
	}
	if req.Order != "" && req.Order != "asc" && req.Order != "desc" {
		response.BadRequest(c, "order: must be asc or desc")
		return nil, false
	}
	return &req, true
}

func probe(fn func() (string, error)) string {
	result, err := fn()
	if err != nil || strings.Contains(result, "Error:") {
		return tools.StatusError
	}
	return tools.StatusHealthy
}
