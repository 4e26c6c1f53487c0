package capabilities

import "gopkg.in/yaml.v3"

// DefaultTokenLimit applies to models without a configured limit
const DefaultTokenLimit = 128000

// ModelConfig is the static routing and capability record for one logical model
type ModelConfig struct {
	// Logical model name (set during YAML unmarshaling)
	Name string `yaml:"-" json:"name"`

	Provider          string `yaml:"provider" json:"provider"`
	ModelID           string `yaml:"model_id" json:"model_id"`
	OpenRouterModelID string `yaml:"openrouter_model_id" json:"openrouter_model_id,omitempty"`

	SupportsReasoning bool `yaml:"supports_reasoning" json:"supports_reasoning"`
	// CanToggleThinking is false when reasoning is always on for a reasoning model
	CanToggleThinking bool `yaml:"can_toggle_thinking" json:"can_toggle_thinking"`

	// MandatoryToolDirective marks models that need an explicit push to call tools
	MandatoryToolDirective bool `yaml:"mandatory_tool_directive" json:"-"`

	// FreeWithHostKey allows the host Google key when the caller has none
	FreeWithHostKey bool `yaml:"free_with_host_key" json:"free_with_host_key"`

	TokenLimit int  `yaml:"token_limit" json:"token_limit"`
	DevOnly    bool `yaml:"dev_only" json:"-"`
}

// WantsReasoning reports whether reasoning configuration must be sent.
// Reasoning models that cannot toggle thinking always request it.
func (m *ModelConfig) WantsReasoning(thinkingEnabled bool) bool {
	return m.SupportsReasoning && (thinkingEnabled || !m.CanToggleThinking)
}

// modelFile is the YAML document shape
type modelFile struct {
	Models []ModelConfig `yaml:"-"`
}

// UnmarshalYAML preserves model order from the YAML mapping
func (f *modelFile) UnmarshalYAML(node *yaml.Node) error {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != "models" {
			continue
		}
		modelsNode := node.Content[i+1]
		// modelsNode.Content alternates: key, value, key, value...
		for j := 0; j+1 < len(modelsNode.Content); j += 2 {
			var m ModelConfig
			if err := modelsNode.Content[j+1].Decode(&m); err != nil {
				return err
			}
			m.Name = modelsNode.Content[j].Value
			if m.TokenLimit == 0 {
				m.TokenLimit = DefaultTokenLimit
			}
			f.Models = append(f.Models, m)
		}
	}
	return nil
}
