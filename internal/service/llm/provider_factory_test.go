package llm

import (
	"testing"

	"chatstream/internal/config"
)

func TestProviderFactory_GetProvider(t *testing.T) {
	dev := NewProviderFactory(&config.Config{Environment: "dev", OpenRouterBaseURL: "https://openrouter.ai/api/v1"})
	prod := NewProviderFactory(&config.Config{Environment: "prod", OpenRouterBaseURL: "https://openrouter.ai/api/v1"})

	tests := []struct {
		name       string
		factory    *ProviderFactory
		provider   string
		credential string
		wantName   string
		wantErr    bool
	}{
		{"openai", prod, "openai", "sk", "openai", false},
		{"anthropic", prod, "anthropic", "sk-ant", "anthropic", false},
		{"google", prod, "google", "AIza", "google", false},
		{"openrouter", prod, "openrouter", "sk-or", "openrouter", false},
		{"lorem in dev", dev, "lorem", "", "lorem", false},
		{"lorem outside dev", prod, "lorem", "", "", true},
		{"missing credential", prod, "anthropic", "", "", true},
		{"unknown provider", prod, "bedrock", "x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.factory.GetProvider(tt.provider, tt.credential)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}
