package llm

import (
	"context"
	"fmt"

	"chatstream/internal/config"
	llmSvc "chatstream/internal/domain/services/llm"
	"chatstream/internal/service/llm/providers/anthropic"
	"chatstream/internal/service/llm/providers/google"
	"chatstream/internal/service/llm/providers/lorem"
	"chatstream/internal/service/llm/providers/openai"
)

// ProviderFactory builds provider clients from per-turn credentials.
// Nothing is cached: every call constructs a fresh client.
type ProviderFactory struct {
	config *config.Config
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(cfg *config.Config) *ProviderFactory {
	return &ProviderFactory{
		config: cfg,
	}
}

// GetProvider returns a provider instance for the given provider name
//
// Supported providers:
//   - "openai" - OpenAI Chat Completions
//   - "anthropic" - Claude models via Anthropic API
//   - "google" - Gemini models via the Gemini API
//   - "openrouter" - any routed model via OpenRouter's OpenAI-compatible API
//   - "lorem" - Mock provider for development (no API key required)
func (f *ProviderFactory) GetProvider(providerName, credential string) (llmSvc.Provider, error) {
	switch providerName {
	case llmSvc.ProviderOpenAI:
		return openai.NewOpenAIProvider(credential)

	case llmSvc.ProviderAnthropic:
		return anthropic.NewProvider(credential, config.ReasoningBudgetTokens)

	case llmSvc.ProviderGoogle:
		return google.NewProvider(context.Background(), credential, "")

	case llmSvc.ProviderOpenRouter:
		return openai.NewOpenRouterProvider(credential, f.config.OpenRouterBaseURL, config.ReasoningBudgetTokens)

	case llmSvc.ProviderLorem:
		if !f.config.IsDev() {
			return nil, fmt.Errorf("provider %s is only available in development", providerName)
		}
		return lorem.NewProvider(), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerName)
	}
}

// CreateEngine implements llm.EngineFactory
func (f *ProviderFactory) CreateEngine(providerName, credential string) (llmSvc.Engine, error) {
	provider, err := f.GetProvider(providerName, credential)
	if err != nil {
		return nil, err
	}
	return NewEngine(provider), nil
}

// CreateTextGenerator returns a Gemini client for non-streamed generation (titles)
func (f *ProviderFactory) CreateTextGenerator(ctx context.Context, googleKey string) (llmSvc.TextGenerator, error) {
	return google.NewProvider(ctx, googleKey, "")
}
