package capabilities

import (
	"errors"
	"fmt"
)

// ErrNoCredential means no usable key exists for the requested route
var ErrNoCredential = errors.New("no credential available")

// KeyLookup returns the caller's key for a provider, or "" if none
type KeyLookup func(provider string) string

// EffectiveModel is a model bound to the route and credential a turn will use
type EffectiveModel struct {
	Config       ModelConfig
	Provider     string
	ModelID      string
	Credential   string
	UsingHostKey bool
}

// ResolveEffective picks provider, wire model id and credential.
//
// Priority:
//  1. the caller's key for the selected provider (override, else the registry default)
//  2. the caller's OpenRouter key, routing through the model's OpenRouter id
//  3. the host Google key, only for Google models flagged free_with_host_key
//
// Anything else fails closed with ErrNoCredential.
func ResolveEffective(cfg *ModelConfig, providerOverride string, keys KeyLookup, hostGoogleKey string) (*EffectiveModel, error) {
	provider := cfg.Provider
	if providerOverride != "" {
		provider = providerOverride
	}

	if provider == "lorem" {
		return &EffectiveModel{Config: *cfg, Provider: provider, ModelID: cfg.ModelID}, nil
	}

	if key := keys(provider); key != "" {
		return &EffectiveModel{
			Config:     *cfg,
			Provider:   provider,
			ModelID:    modelIDFor(cfg, provider),
			Credential: key,
		}, nil
	}

	if key := keys("openrouter"); key != "" && cfg.OpenRouterModelID != "" {
		return &EffectiveModel{
			Config:     *cfg,
			Provider:   "openrouter",
			ModelID:    cfg.OpenRouterModelID,
			Credential: key,
		}, nil
	}

	if provider == "google" && cfg.FreeWithHostKey && hostGoogleKey != "" {
		return &EffectiveModel{
			Config:       *cfg,
			Provider:     provider,
			ModelID:      cfg.ModelID,
			Credential:   hostGoogleKey,
			UsingHostKey: true,
		}, nil
	}

	return nil, fmt.Errorf("%w: API key required for provider %s", ErrNoCredential, provider)
}

func modelIDFor(cfg *ModelConfig, provider string) string {
	if provider == "openrouter" && cfg.OpenRouterModelID != "" {
		return cfg.OpenRouterModelID
	}
	return cfg.ModelID
}
