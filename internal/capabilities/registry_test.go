package capabilities

import (
	"errors"
	"testing"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(false)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestRegistryResolve(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		key          string
		wantName     string
		wantProvider string
	}{
		{"Gemini 2.5 Flash", "Gemini 2.5 Flash", "google"},
		{"gemini-2.5-flash-preview-04-17", "Gemini 2.5 Flash", "google"},
		{"google/gemini-2.5-flash", "Gemini 2.5 Flash", "google"},
		{"anthropic/claude-sonnet-4", "Claude 4 Sonnet", "anthropic"},
		{"openai/o3", "o3", "openrouter"},
		{"deepseek/deepseek-r1", "DeepSeek R1", "openrouter"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			m, ok := r.Resolve(tt.key)
			if !ok {
				t.Fatalf("Resolve(%q) not found", tt.key)
			}
			if m.Name != tt.wantName || m.Provider != tt.wantProvider {
				t.Errorf("got %s/%s, want %s/%s", m.Name, m.Provider, tt.wantName, tt.wantProvider)
			}
		})
	}

	if _, ok := r.Resolve("gpt-2"); ok {
		t.Error("unknown model should not resolve")
	}
}

func TestRegistryOrderAndDevModels(t *testing.T) {
	r := newTestRegistry(t)
	list := r.List()
	if len(list) != 12 {
		t.Fatalf("got %d models, want 12", len(list))
	}
	if list[0].Name != "Gemini 2.5 Pro" || list[11].Name != "DeepSeek R1" {
		t.Errorf("order not preserved: first=%s last=%s", list[0].Name, list[11].Name)
	}
	if _, ok := r.Resolve("Lorem"); ok {
		t.Error("dev-only model should be hidden")
	}

	dev, err := NewRegistry(true)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := dev.Resolve("Lorem"); !ok {
		t.Error("dev-only model should be present with includeDev")
	}
}

func TestTokenLimit(t *testing.T) {
	r := newTestRegistry(t)
	tests := map[string]int{
		"Gemini 2.5 Pro":                1048576,
		"Gemini 2.5 Flash-Lite Preview": 128000,
		"Claude Haiku 3.5":              200000,
		"GPT-4.1-nano":                  1047576,
		"DeepSeek R1":                   32000,
		"unknown":                       DefaultTokenLimit,
	}
	for name, want := range tests {
		if got := r.TokenLimit(name); got != want {
			t.Errorf("TokenLimit(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestWantsReasoning(t *testing.T) {
	r := newTestRegistry(t)
	tests := []struct {
		model    string
		thinking bool
		want     bool
	}{
		{"Gemini 2.5 Pro", false, true}, // not toggleable: always on
		{"Claude 4 Sonnet", false, false},
		{"Claude 4 Sonnet", true, true},
		{"GPT-4.1", true, false}, // no reasoning support
		{"o4-mini", false, true},
	}
	for _, tt := range tests {
		m, _ := r.Resolve(tt.model)
		if got := m.WantsReasoning(tt.thinking); got != tt.want {
			t.Errorf("%s thinking=%v: got %v, want %v", tt.model, tt.thinking, got, tt.want)
		}
	}
}

func TestResolveEffective(t *testing.T) {
	r := newTestRegistry(t)
	keys := func(m map[string]string) KeyLookup {
		return func(p string) string { return m[p] }
	}

	tests := []struct {
		name         string
		model        string
		override     string
		keys         map[string]string
		hostKey      string
		wantProvider string
		wantModelID  string
		wantHost     bool
		wantErr      bool
	}{
		{
			name:         "native key",
			model:        "Claude 4 Sonnet",
			keys:         map[string]string{"anthropic": "sk-ant"},
			wantProvider: "anthropic",
			wantModelID:  "claude-4-sonnet-20250514",
		},
		{
			name:         "openrouter fallback routes through mapped id",
			model:        "Claude 4 Sonnet",
			keys:         map[string]string{"openrouter": "sk-or"},
			wantProvider: "openrouter",
			wantModelID:  "anthropic/claude-sonnet-4",
		},
		{
			name:         "host google key for free model",
			model:        "Gemini 2.5 Flash",
			hostKey:      "host",
			wantProvider: "google",
			wantModelID:  "gemini-2.5-flash-preview-04-17",
			wantHost:     true,
		},
		{
			name:    "host google key refused for non-free model",
			model:   "Gemini 2.5 Pro",
			hostKey: "host",
			wantErr: true,
		},
		{
			name:    "no keys fails closed",
			model:   "GPT-4.1",
			hostKey: "host",
			wantErr: true,
		},
		{
			name:         "override wins over registry default",
			model:        "GPT-4.1",
			override:     "openrouter",
			keys:         map[string]string{"openrouter": "sk-or"},
			wantProvider: "openrouter",
			wantModelID:  "openai/gpt-4.1",
		},
		{
			name:         "native key preferred over openrouter",
			model:        "GPT-4.1",
			keys:         map[string]string{"openai": "sk", "openrouter": "sk-or"},
			wantProvider: "openai",
			wantModelID:  "gpt-4.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, ok := r.Resolve(tt.model)
			if !ok {
				t.Fatalf("model %s missing", tt.model)
			}
			eff, err := ResolveEffective(cfg, tt.override, keys(tt.keys), tt.hostKey)
			if tt.wantErr {
				if !errors.Is(err, ErrNoCredential) {
					t.Fatalf("err = %v, want ErrNoCredential", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if eff.Provider != tt.wantProvider || eff.ModelID != tt.wantModelID || eff.UsingHostKey != tt.wantHost {
				t.Errorf("got %+v", eff)
			}
			if !eff.Config.SupportsReasoning && cfg.SupportsReasoning {
				t.Error("reasoning flags must be kept on alternate routes")
			}
		})
	}
}
