package tools

import (
	"chatstream/internal/service/llm/tools/external"
)

// TurnOption adds or tunes a tool offered for one turn
type TurnOption func(*turnTools)

type turnTools struct {
	config *ToolConfig
	search external.SearchClient
}

// WithConfig overrides DefaultToolConfig
func WithConfig(config *ToolConfig) TurnOption {
	return func(t *turnTools) {
		if config != nil {
			t.config = config
		}
	}
}

// WithWebSearch offers web_search backed by client; a nil client offers nothing
func WithWebSearch(client external.SearchClient) TurnOption {
	return func(t *turnTools) { t.search = client }
}

// NewTurnTools builds the registry for one turn. Options may come in any order.
func NewTurnTools(opts ...TurnOption) *ToolRegistry {
	t := &turnTools{config: DefaultToolConfig()}
	for _, opt := range opts {
		opt(t)
	}

	registry := NewToolRegistry()
	if t.search != nil {
		registry.Register(NewWebSearchTool(t.search, t.config))
	}
	return registry
}
