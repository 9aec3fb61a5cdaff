package llm

import "time"

const defaultHTTPTimeout = 30 * time.Second

// ProviderSettings carries the backend-specific settings every adapter is
// constructed from. Which fields apply depends on the adapter type; unused
// fields are ignored. Immutable after construction.
type ProviderSettings struct {
	// Endpoint is the base URL of a locally hosted inference server.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	// BaseURL overrides a cloud backend's default API root.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// APIKeyEnv names the environment variable holding the credential.
	// Credentials are never stored in configuration directly.
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	// DefaultModel is the model used for every request.
	DefaultModel string `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	// MaxTokens caps completion length where the backend requires one.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	// Timeout is the HTTP client timeout in seconds. Zero means 30.
	Timeout int `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// MaxRetries is carried for the adapter's transport configuration; the
	// provider layer itself is single-attempt by contract.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}

// HTTPTimeout converts the configured timeout to a duration, applying the
// default when unset.
func (s ProviderSettings) HTTPTimeout() time.Duration {
	if s.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return time.Duration(s.Timeout) * time.Second
}

// ProviderSpec is one named entry in the manager configuration: a type tag
// selecting the adapter, an enabled flag, and the adapter settings.
type ProviderSpec struct {
	Enabled  bool             `json:"enabled" yaml:"enabled"`
	Type     string           `json:"type" yaml:"type"`
	Settings ProviderSettings `json:"config" yaml:"config"`
}

// ManagerConfig is the complete startup configuration for a Manager. It is
// passed in explicitly at construction time; the manager has no ambient
// file-path dependency of its own.
type ManagerConfig struct {
	Providers         map[string]ProviderSpec `json:"providers" yaml:"providers"`
	DefaultProvider   string                  `json:"default_provider" yaml:"default_provider"`
	FallbackProviders []string                `json:"fallback_providers" yaml:"fallback_providers"`
}

// ProviderFactory constructs an adapter for a configuration-supplied type
// tag. An unrecognized tag yields an ErrConfiguration error. Implemented by
// the factory package; injected so this package stays free of adapter
// imports.
type ProviderFactory interface {
	CreateProvider(providerType, name string, settings ProviderSettings) (Provider, error)
}
