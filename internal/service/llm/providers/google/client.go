// Package google adapts the Gemini API through google.golang.org/genai.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	llmSvc "chatstream/internal/domain/services/llm"
)

// Provider implements llm.Provider and llm.TextGenerator for Gemini models.
type Provider struct {
	client *genai.Client
}

// NewProvider creates a Gemini API client. baseURL is empty outside tests.
func NewProvider(ctx context.Context, apiKey, baseURL string) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("google API key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return llmSvc.ProviderGoogle
}

// GenerateText runs a single non-streamed completion
func (p *Provider) GenerateText(ctx context.Context, model, system, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// buildConfig carries the system instruction, thinking config and tool declarations
func buildConfig(req *llmSvc.StepRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if system := req.SystemText(); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Reasoning {
		config.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(req.Tools))
		for i, def := range req.Tools {
			decls[i] = &genai.FunctionDeclaration{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  toSchema(def.Parameters),
			}
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return config
}

// toSchema converts a JSON Schema object into genai's OpenAPI subset
func toSchema(js map[string]any) *genai.Schema {
	if js == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := js["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if d, ok := js["description"].(string); ok {
		s.Description = d
	}
	if props, ok := js["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				s.Properties[name] = toSchema(sub)
			}
		}
	}
	if items, ok := js["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}
	switch req := js["required"].(type) {
	case []string:
		s.Required = req
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	return s
}
