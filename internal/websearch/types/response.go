package types

// SearchResponse represents a search response
type SearchResponse struct {
	Query    string          `json:"query"`
	Answer   string          `json:"answer,omitempty"`
	Results  []*SearchResult `json:"results"`
	Took     int64           `json:"took"` // milliseconds
	Provider ProviderID      `json:"provider"`
}

// SearchResult represents a single search result
type SearchResult struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Content     string  `json:"content"` // Snippet
	Score       float32 `json:"score,omitempty"`
	PublishedAt string  `json:"published_at,omitempty"`
}
