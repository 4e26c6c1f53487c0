// Package openai adapts Chat Completions compatible APIs: OpenAI itself and OpenRouter.
package openai

import (
	"errors"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	llmSvc "chatstream/internal/domain/services/llm"
)

// Provider implements llm.Provider over the Chat Completions API.
type Provider struct {
	name   string
	client oai.Client
	// reasoningBudget > 0 sends OpenRouter's flat reasoning.max_tokens parameter
	reasoningBudget int
}

// NewOpenAIProvider creates a provider for api.openai.com.
func NewOpenAIProvider(apiKey string, opts ...option.RequestOption) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai API key is required")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Provider{
		name:   llmSvc.ProviderOpenAI,
		client: oai.NewClient(opts...),
	}, nil
}

// NewOpenRouterProvider creates a provider for OpenRouter's OpenAI-compatible endpoint.
func NewOpenRouterProvider(apiKey, baseURL string, reasoningBudget int, opts ...option.RequestOption) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openrouter API key is required")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithBaseURL(baseURL)}, opts...)
	return &Provider{
		name:            llmSvc.ProviderOpenRouter,
		client:          oai.NewClient(opts...),
		reasoningBudget: reasoningBudget,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return p.name
}

// buildParams maps a step request onto ChatCompletionNewParams plus per-request options
func (p *Provider) buildParams(req *llmSvc.StepRequest) (oai.ChatCompletionNewParams, []option.RequestOption) {
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, oai.SystemMessage(req.System))
	}
	messages = append(messages, convertMessages(req.Messages)...)

	params := oai.ChatCompletionNewParams{
		Model:    oai.ChatModel(req.Model),
		Messages: messages,
		StreamOptions: oai.ChatCompletionStreamOptionsParam{
			IncludeUsage: oai.Bool(true),
		},
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	var opts []option.RequestOption
	if req.Reasoning && p.reasoningBudget > 0 {
		opts = append(opts, option.WithJSONSet("reasoning", map[string]any{"max_tokens": p.reasoningBudget}))
	}
	return params, opts
}
