package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lk2023060901/agentic-gateway/internal/websearch/types"
)

// TavilyProvider implements the Tavily search API
type TavilyProvider struct {
	*BaseProvider
}

// NewTavilyProvider creates a new Tavily provider
func NewTavilyProvider(config *types.ProviderConfig) (*TavilyProvider, error) {
	if config.ID == "" {
		config.ID = types.ProviderTavily
	}
	if config.APIHost == "" {
		config.APIHost = types.DefaultTavilyHost
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tavily config: %w", err)
	}
	return &TavilyProvider{BaseProvider: NewBaseProvider(config)}, nil
}

// tavilyRequest represents a Tavily API request
type tavilyRequest struct {
	Query             string   `json:"query"`
	SearchDepth       string   `json:"search_depth,omitempty"`
	MaxResults        int      `json:"max_results,omitempty"`
	IncludeDomains    []string `json:"include_domains,omitempty"`
	IncludeAnswer     bool     `json:"include_answer"`
	IncludeRawContent bool     `json:"include_raw_content"`
}

// tavilyResponse represents a Tavily API response
type tavilyResponse struct {
	Query   string `json:"query"`
	Answer  string `json:"answer"`
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float32 `json:"score"`
		PublishedDate string  `json:"published_date,omitempty"`
	} `json:"results"`
}

// Search executes a search query using the Tavily API
func (p *TavilyProvider) Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	startTime := time.Now()

	// Build request body
	tavilyReq := tavilyRequest{
		Query:          req.Query,
		SearchDepth:    req.SearchDepth,
		MaxResults:     req.MaxResults,
		IncludeDomains: req.IncludeDomains,
		IncludeAnswer:  req.IncludeAnswer,
	}

	if tavilyReq.MaxResults == 0 {
		tavilyReq.MaxResults = types.DefaultNumResults
	}

	if tavilyReq.SearchDepth == "" {
		tavilyReq.SearchDepth = "basic"
	}

	reqBody, err := json.Marshal(tavilyReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/search", p.config.APIHost)
	apiKey := p.GetAPIKey()

	resp, err := p.DoRequest(ctx, func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		for k, v := range p.BuildDefaultHeaders() {
			httpReq.Header.Set(k, v)
		}
		httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))
		return httpReq, nil
	})
	if err != nil {
		return nil, &types.ProviderError{
			Provider: p.GetID(),
			Code:     "REQUEST_FAILED",
			Message:  "Failed to connect to Tavily API",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	// Check status code
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &types.ProviderError{
			Provider:   p.GetID(),
			Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Tavily API returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	// Parse response
	var tavilyResp tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tavilyResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// Convert to standard response
	results := make([]*types.SearchResult, len(tavilyResp.Results))
	for i, r := range tavilyResp.Results {
		results[i] = &types.SearchResult{
			Title:       r.Title,
			URL:         r.URL,
			Content:     r.Content,
			Score:       r.Score,
			PublishedAt: r.PublishedDate,
		}
	}

	return &types.SearchResponse{
		Query:    req.Query,
		Answer:   tavilyResp.Answer,
		Results:  results,
		Took:     time.Since(startTime).Milliseconds(),
		Provider: p.GetID(),
	}, nil
}
