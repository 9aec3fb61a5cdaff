package providers

import (
	"os"
	"time"

	"github.com/BaSui01/llmbridge/llm"
)

// BaseProviderConfig holds the fields shared by every adapter. Per-adapter
// configs embed it and add their own.
type BaseProviderConfig struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// OllamaConfig configures the local-inference adapter.
type OllamaConfig struct {
	BaseProviderConfig
	Endpoint string
}

// OpenAIConfig configures the OpenAI adapter.
type OpenAIConfig struct {
	BaseProviderConfig
	BaseURL   string
	APIKeyEnv string
}

// AnthropicConfig configures the Anthropic adapter.
type AnthropicConfig struct {
	BaseProviderConfig
	BaseURL          string
	APIKeyEnv        string
	AnthropicVersion string
}

// ResolveAPIKey reads the credential from the named environment variable,
// falling back to defaultEnv when no name is configured. An absent or empty
// credential is an initialization error for that provider only.
func ResolveAPIKey(provider, apiKeyEnv, defaultEnv string) (string, error) {
	env := apiKeyEnv
	if env == "" {
		env = defaultEnv
	}
	key := os.Getenv(env)
	if key == "" {
		return "", llm.InitializationError(provider, "API key not found in environment variable %s", env)
	}
	return key, nil
}
