package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	httpclient "github.com/lk2023060901/agentic-gateway/internal/websearch/http"
	"github.com/lk2023060901/agentic-gateway/internal/websearch/types"
)

// Provider defines the interface for search providers
type Provider interface {
	// Search executes a search query
	Search(ctx context.Context, req *types.SearchRequest) (*types.SearchResponse, error)

	// GetID returns the provider ID
	GetID() types.ProviderID

	// GetName returns the provider name
	GetName() string
}

// BaseProvider provides common functionality for all providers
type BaseProvider struct {
	config     *types.ProviderConfig
	httpClient *http.Client
	backoff    time.Duration

	mu       sync.Mutex
	apiKeys  []string // Support multiple API keys for rotation
	keyIndex int      // Current key index
}

// NewBaseProvider creates a new base provider
func NewBaseProvider(config *types.ProviderConfig) *BaseProvider {
	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	// Parse multiple API keys (comma-separated)
	var apiKeys []string
	for _, key := range strings.Split(config.APIKey, ",") {
		if key = strings.TrimSpace(key); key != "" {
			apiKeys = append(apiKeys, key)
		}
	}

	return &BaseProvider{
		config:     config,
		httpClient: httpclient.NewHTTPClient(timeout),
		backoff:    time.Second,
		apiKeys:    apiKeys,
	}
}

// GetID returns the provider ID
func (b *BaseProvider) GetID() types.ProviderID {
	return b.config.ID
}

// GetName returns the provider name
func (b *BaseProvider) GetName() string {
	if b.config.Name == "" {
		return string(b.config.ID)
	}
	return b.config.Name
}

// GetAPIKey returns the current API key (with rotation support)
func (b *BaseProvider) GetAPIKey() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.apiKeys) == 0 {
		return ""
	}

	key := b.apiKeys[b.keyIndex]
	b.keyIndex = (b.keyIndex + 1) % len(b.apiKeys)
	return key
}

// BuildDefaultHeaders builds default HTTP headers
func (b *BaseProvider) BuildDefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"User-Agent":   "Agentic-Gateway/1.0",
	}
}

// DoRequest executes an HTTP request with retry logic.
// newRequest is called once per attempt so the body can be replayed.
// Transport errors and 5xx responses are retried with exponential backoff.
func (b *BaseProvider) DoRequest(ctx context.Context, newRequest func() (*http.Request, error)) (*http.Response, error) {
	maxRetries := b.config.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		req, err := newRequest()
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := b.httpClient.Do(req.WithContext(ctx))
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}
		if err == nil {
			if i == maxRetries-1 {
				return resp, nil
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
		} else {
			lastErr = err
		}

		// Exponential backoff
		if i < maxRetries-1 {
			timer := time.NewTimer(b.backoff << uint(i))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}
