package types

type ProviderID string

const (
	ProviderTavily ProviderID = "tavily"

	DefaultTavilyHost = "https://api.tavily.com"
)

// ProviderConfig represents search provider configuration
type ProviderConfig struct {
	ID   ProviderID `json:"id" yaml:"id" mapstructure:"id"`
	Name string     `json:"name" yaml:"name" mapstructure:"name"`

	// API settings
	APIHost string `json:"api_host" yaml:"api_host" mapstructure:"api_host"`
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"` // comma-separated keys rotate per request

	// Optional settings
	Timeout    int `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout"`             // seconds, default 30
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries,omitempty" mapstructure:"max_retries"` // default: 3
}

// Validate validates the provider configuration
func (c *ProviderConfig) Validate() error {
	if c.ID == "" {
		return ErrInvalidProviderID
	}
	if c.APIHost == "" {
		return ErrInvalidAPIHost
	}
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
