package websearch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lk2023060901/agentic-gateway/internal/websearch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	last *types.SearchRequest
	resp *types.SearchResponse
	err  error
}

func (p *stubProvider) Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error) {
	p.last = req
	return p.resp, p.err
}

func (p *stubProvider) GetID() types.ProviderID { return "stub" }
func (p *stubProvider) GetName() string          { return "stub" }

func TestSearch_RequestShaping(t *testing.T) {
	tests := []struct {
		name       string
		num        int
		searchType types.SearchType
		wantMax    int
		wantDepth  string
		wantDomain []string
	}{
		{"general default", 0, "", 5, "basic", nil},
		{"clamped high", 50, types.SearchGeneral, 20, "basic", nil},
		{"clamped low", -3, types.SearchGeneral, 1, "basic", nil},
		{"academic", 4, types.SearchAcademic, 4, "advanced", nil},
		{"news", 2, types.SearchNews, 2, "basic", []string{"news.com", "bbc.com", "reuters.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubProvider{resp: &types.SearchResponse{}}
			_, err := NewSearcher(p).Search(context.Background(), "q", tt.num, tt.searchType)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMax, p.last.MaxResults)
			assert.Equal(t, tt.wantDepth, p.last.SearchDepth)
			assert.Equal(t, tt.wantDomain, p.last.IncludeDomains)
			assert.True(t, p.last.IncludeAnswer)
		})
	}
}

func TestSearch_Errors(t *testing.T) {
	_, err := NewSearcher(nil).Search(context.Background(), "q", 5, "")
	assert.ErrorIs(t, err, types.ErrProviderNotConfigured)

	s := NewSearcher(&stubProvider{err: errors.New("timeout")})
	_, err = s.Search(context.Background(), "q", 5, "")
	assert.EqualError(t, err, "timeout")

	_, err = s.Search(context.Background(), "q", 5, "images")
	assert.ErrorIs(t, err, types.ErrInvalidSearchType)

	_, err = s.Search(context.Background(), "  ", 5, "")
	assert.ErrorIs(t, err, types.ErrEmptyQuery)
}

func TestFormatResults(t *testing.T) {
	long := strings.Repeat("x", 250)
	text := FormatResults("go", &types.SearchResponse{
		Answer: "A language",
		Results: []*types.SearchResult{
			{Title: "Go", URL: "https://go.dev", Content: "Build simple software"},
			{URL: "https://example.com", Content: long},
			{Title: "Extra", URL: "https://extra"},
		},
	}, 2)

	want := "Search results for 'go':\n\n" +
		"**Quick Answer:** A language\n\n" +
		"1. **Go**\n   URL: https://go.dev\n   Build simple software\n" +
		"\n" +
		"2. **No title**\n   URL: https://example.com\n   " + strings.Repeat("x", 200) + "...\n"
	assert.Equal(t, want, text)

	assert.Equal(t, "No results found for query: go", FormatResults("go", &types.SearchResponse{}, 5))
}
