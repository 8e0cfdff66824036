package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&Config{APIHost: server.URL, Token: "ghp_test"})
}

func TestSearchRepositories(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/repositories", r.URL.Path)
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		assert.Equal(t, "Agentic-Canvas-LLM-Server", r.Header.Get("User-Agent"))
		assert.Equal(t, "token ghp_test", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, "web framework language:go", q.Get("q"))
		assert.Equal(t, "stars", q.Get("sort"))
		assert.Equal(t, "desc", q.Get("order"))
		assert.Equal(t, "20", q.Get("per_page"))

		w.Write([]byte(`{"total_count":42,"items":[
			{"full_name":"gin-gonic/gin","description":"HTTP web framework","stargazers_count":75000,"forks_count":8000,"language":"Go","html_url":"https://github.com/gin-gonic/gin"},
			{"full_name":"x/y","description":null,"stargazers_count":1,"forks_count":0,"language":null,"html_url":"https://github.com/x/y"}
		]}`))
	})

	text, err := c.SearchRepositories(context.Background(), RepoSearchOptions{Query: "web framework", Language: "go", PerPage: 99})
	require.NoError(t, err)

	want := "Found 42 repositories for 'web framework':\n\n" +
		"1. **gin-gonic/gin**\n   ⭐ 75000 stars | 🍴 8000 forks | 💻 Go\n   HTTP web framework\n   URL: https://github.com/gin-gonic/gin\n" +
		"\n" +
		"2. **x/y**\n   ⭐ 1 stars | 🍴 0 forks | 💻 Unknown\n   No description\n   URL: https://github.com/x/y\n"
	assert.Equal(t, want, text)
}

func TestSearchRepositories_EmptyAndError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "boom" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`rate limited`))
			return
		}
		w.Write([]byte(`{"total_count":0,"items":[]}`))
	})

	text, err := c.SearchRepositories(context.Background(), RepoSearchOptions{Query: "nothing", PerPage: 0})
	require.NoError(t, err)
	assert.Equal(t, "No repositories found for query: nothing", text)

	_, err = c.SearchRepositories(context.Background(), RepoSearchOptions{Query: "boom"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.EqualError(t, err, "GitHub API returned status 403: rate limited")
}

func TestGetRepositoryInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/golang/go":
			w.Write([]byte(`{"full_name":"golang/go","description":"The Go programming language","language":"Go",
				"stargazers_count":120000,"forks_count":17000,"open_issues_count":9000,
				"created_at":"2014-08-19T04:33:40Z","updated_at":"2025-01-01T00:00:00Z",
				"license":{"name":"BSD 3-Clause"},"html_url":"https://github.com/golang/go","topics":["go","language"]}`))
		case "/repos/golang/go/readme":
			w.Write([]byte(`{"content":""}`))
		case "/repos/tiny/repo":
			w.Write([]byte(`{"full_name":"tiny/repo","license":null,"html_url":"https://github.com/tiny/repo"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	text, err := c.GetRepositoryInfo(context.Background(), "golang", "go")
	require.NoError(t, err)
	want := "**Repository: golang/go**\n\n" +
		"Description: The Go programming language\n" +
		"Language: Go\n" +
		"Stars: 120000\n" +
		"Forks: 17000\n" +
		"Open Issues: 9000\n" +
		"Created: 2014-08-19T04:33:40Z\n" +
		"Last Updated: 2025-01-01T00:00:00Z\n" +
		"License: BSD 3-Clause\n" +
		"URL: https://github.com/golang/go\n" +
		"Topics: go, language\n" +
		"\nREADME available (content truncated for brevity)"
	assert.Equal(t, want, text)

	text, err = c.GetRepositoryInfo(context.Background(), "tiny", "repo")
	require.NoError(t, err)
	assert.Contains(t, text, "License: No license\n")
	assert.Contains(t, text, "Description: No description\n")
	assert.NotContains(t, text, "README")
	assert.NotContains(t, text, "Topics")

	text, err = c.GetRepositoryInfo(context.Background(), "missing", "repo")
	require.NoError(t, err)
	assert.Equal(t, "Repository missing/repo not found", text)
}

func TestSearchIssues(t *testing.T) {
	tests := []struct {
		name  string
		state string
		wantQ string
	}{
		{"default open", "", "memory leak type:issue state:open"},
		{"closed", "closed", "memory leak type:issue state:closed"},
		{"all", "all", "memory leak type:issue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/search/issues", r.URL.Path)
				assert.Equal(t, tt.wantQ, r.URL.Query().Get("q"))
				assert.Equal(t, "created", r.URL.Query().Get("sort"))
				w.Write([]byte(`{"total_count":2,"items":[
					{"title":"Leak in pool","repository_url":"https://api.github.com/repos/acme/pool","state":"open","comments":3,"created_at":"2025-01-02T00:00:00Z","html_url":"https://github.com/acme/pool/issues/1"},
					{"title":"Old leak","state":"closed","comments":0,"created_at":"2024-01-02T00:00:00Z","html_url":"https://github.com/acme/pool/issues/0"}
				]}`))
			})

			text, err := c.SearchIssues(context.Background(), IssueSearchOptions{Query: "memory leak", State: tt.state, PerPage: 5})
			require.NoError(t, err)
			want := "Found 2 issues for 'memory leak':\n\n" +
				"1. 🟢 **Leak in pool**\n   Repository: acme/pool\n   💬 3 comments | Created: 2025-01-02T00:00:00Z\n   URL: https://github.com/acme/pool/issues/1\n" +
				"\n" +
				"2. 🔴 **Old leak**\n   Repository: Unknown\n   💬 0 comments | Created: 2024-01-02T00:00:00Z\n   URL: https://github.com/acme/pool/issues/0\n"
			assert.Equal(t, want, text)
		})
	}
}

func TestClampPerPage(t *testing.T) {
	assert.Equal(t, 1, ClampPerPage(-5))
	assert.Equal(t, 1, ClampPerPage(0))
	assert.Equal(t, 7, ClampPerPage(7))
	assert.Equal(t, 20, ClampPerPage(21))
}

func TestAnonymousClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	c := NewClient(&Config{APIHost: server.URL + "/"})
	_, err := c.SearchIssues(context.Background(), IssueSearchOptions{Query: "x"})
	require.NoError(t, err)
}
