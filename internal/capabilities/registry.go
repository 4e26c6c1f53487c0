package capabilities

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Registry maps logical model names and wire ids to model configs.
// It is immutable after construction.
type Registry struct {
	models []ModelConfig
	index  map[string]int
}

// NewRegistry loads the embedded model table. Dev-only models are dropped unless includeDev.
func NewRegistry(includeDev bool) (*Registry, error) {
	data, err := configFiles.ReadFile("config/models.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read models.yaml: %w", err)
	}
	return newRegistryFromYAML(data, includeDev)
}

func newRegistryFromYAML(data []byte, includeDev bool) (*Registry, error) {
	var f modelFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal models.yaml: %w", err)
	}

	r := &Registry{index: make(map[string]int)}
	for _, m := range f.Models {
		if m.DevOnly && !includeDev {
			continue
		}
		if m.Provider == "" || m.ModelID == "" {
			return nil, fmt.Errorf("model %q: provider and model_id are required", m.Name)
		}
		r.models = append(r.models, m)
		pos := len(r.models) - 1

		// Logical name and native id win over an alternate route id shared by another model
		r.index[m.Name] = pos
		r.index[m.ModelID] = pos
		if m.OpenRouterModelID != "" {
			if _, taken := r.index[m.OpenRouterModelID]; !taken {
				r.index[m.OpenRouterModelID] = pos
			}
		}
	}
	return r, nil
}

// Resolve finds a model by logical name, native wire id, or alternate-routing id
func (r *Registry) Resolve(nameOrID string) (*ModelConfig, bool) {
	pos, ok := r.index[nameOrID]
	if !ok {
		return nil, false
	}
	m := r.models[pos]
	return &m, true
}

// List returns all models in configured order
func (r *Registry) List() []ModelConfig {
	out := make([]ModelConfig, len(r.models))
	copy(out, r.models)
	return out
}

// TokenLimit returns the context window for a model, or DefaultTokenLimit if unknown
func (r *Registry) TokenLimit(nameOrID string) int {
	if m, ok := r.Resolve(nameOrID); ok {
		return m.TokenLimit
	}
	return DefaultTokenLimit
}
