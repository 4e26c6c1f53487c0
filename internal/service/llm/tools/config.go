package tools

import "chatstream/internal/config"

// ToolConfig tunes the tools offered to the model
type ToolConfig struct {
	WebSearchMaxResults int
}

func DefaultToolConfig() *ToolConfig {
	return &ToolConfig{WebSearchMaxResults: config.WebSearchMaxResults}
}
