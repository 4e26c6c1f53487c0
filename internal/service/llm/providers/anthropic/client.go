package anthropic

import (
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	llmSvc "chatstream/internal/domain/services/llm"
)

const (
	defaultMaxTokens = 8192
	// Extended thinking requires max_tokens above the thinking budget
	thinkingMaxTokens = 16000
)

// Provider implements llm.Provider for Anthropic (Claude) models.
type Provider struct {
	client         anthropic.Client
	thinkingBudget int64
}

// NewProvider creates a new Anthropic provider with the given API key.
// Extra request options (base URL, HTTP client) are passed through to the SDK.
func NewProvider(apiKey string, thinkingBudget int, opts ...option.RequestOption) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic API key is required")
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Provider{
		client:         anthropic.NewClient(opts...),
		thinkingBudget: int64(thinkingBudget),
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return llmSvc.ProviderAnthropic
}

// buildParams maps a step request onto MessageNewParams
func (p *Provider) buildParams(req *llmSvc.StepRequest) (anthropic.MessageNewParams, error) {
	messages, err := convertToAnthropicMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: defaultMaxTokens,
	}

	// History system messages have no in-line role here
	if system := req.SystemText(); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	if req.Reasoning && p.thinkingBudget > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(p.thinkingBudget)
		params.MaxTokens = max(thinkingMaxTokens, p.thinkingBudget+defaultMaxTokens)
	}

	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	return params, nil
}
