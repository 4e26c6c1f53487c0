package tools

import (
	"context"

	llmSvc "chatstream/internal/domain/services/llm"
)

// ToolExecutor defines the interface for executing a tool.
// Implementations must be thread-safe and respect context cancellation.
type ToolExecutor interface {
	// Definition returns the name, description and argument schema declared to the model.
	Definition() llmSvc.ToolDefinition

	// Execute runs the tool with the given input parameters.
	// The input map contains the tool-specific parameters as specified in the tool schema.
	// The returned value must be JSON-serializable (maps, slices, primitives).
	Execute(ctx context.Context, input map[string]any) (any, error)
}
