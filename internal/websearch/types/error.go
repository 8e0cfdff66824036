package types

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrInvalidProviderID = errors.New("invalid provider ID")
	ErrInvalidAPIHost    = errors.New("invalid API host")
	ErrMissingAPIKey     = errors.New("missing API key")

	// Request errors
	ErrEmptyQuery        = errors.New("empty search query")
	ErrInvalidSearchType = errors.New("search_type must be one of general, news, academic")

	// Provider errors
	ErrProviderNotConfigured = errors.New("search provider not configured")
)

// ProviderError wraps provider-specific errors
type ProviderError struct {
	Provider   ProviderID
	Code       string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Provider, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
