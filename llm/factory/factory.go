// Package factory maps configuration-supplied type tags to the concrete
// provider adapters. It imports every adapter subpackage so the llm package
// itself stays free of adapter dependencies, breaking the import cycle that
// would occur if construction lived there directly.
package factory

import (
	"go.uber.org/zap"

	"github.com/BaSui01/llmbridge/llm"
	"github.com/BaSui01/llmbridge/llm/providers"
	"github.com/BaSui01/llmbridge/llm/providers/anthropic"
	"github.com/BaSui01/llmbridge/llm/providers/ollama"
	"github.com/BaSui01/llmbridge/llm/providers/openai"
)

// Known adapter type tags. The set is closed: anything else is a
// configuration error.
const (
	TypeOllama    = "ollama"
	TypeOpenAI    = "openai"
	TypeAnthropic = "anthropic"
)

// Factory is the default llm.ProviderFactory backed by the built-in
// adapters.
type Factory struct {
	logger *zap.Logger
}

var _ llm.ProviderFactory = (*Factory)(nil)

// New creates a Factory. A nil logger is normalized to a no-op logger.
func New(logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{logger: logger}
}

// CreateProvider dispatches the declared type tag to the matching adapter
// constructor. Construction performs no I/O; the manager initializes the
// returned provider separately.
func (f *Factory) CreateProvider(providerType, name string, settings llm.ProviderSettings) (llm.Provider, error) {
	base := providers.BaseProviderConfig{
		Model:     settings.DefaultModel,
		MaxTokens: settings.MaxTokens,
		Timeout:   settings.HTTPTimeout(),
	}

	switch providerType {
	case TypeOllama:
		return ollama.New(name, providers.OllamaConfig{
			BaseProviderConfig: base,
			Endpoint:           settings.Endpoint,
		}, f.logger), nil

	case TypeOpenAI:
		return openai.New(name, providers.OpenAIConfig{
			BaseProviderConfig: base,
			BaseURL:            settings.BaseURL,
			APIKeyEnv:          settings.APIKeyEnv,
		}, f.logger), nil

	case TypeAnthropic:
		return anthropic.New(name, providers.AnthropicConfig{
			BaseProviderConfig: base,
			BaseURL:            settings.BaseURL,
			APIKeyEnv:          settings.APIKeyEnv,
		}, f.logger), nil

	default:
		return nil, llm.ConfigurationError("unknown provider type: %s", providerType)
	}
}

// SupportedTypes returns the built-in adapter type tags.
func SupportedTypes() []string {
	return []string{TypeOllama, TypeOpenAI, TypeAnthropic}
}

// NewManager builds a Manager wired to the default factory in one call.
func NewManager(cfg llm.ManagerConfig, logger *zap.Logger) *llm.Manager {
	return llm.NewManager(cfg, New(logger), logger)
}
