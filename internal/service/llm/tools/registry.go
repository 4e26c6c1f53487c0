package tools

import (
	"context"
	"fmt"
	"sync"

	llmSvc "chatstream/internal/domain/services/llm"
)

// ToolRegistry manages tool executors and handles tool execution.
// It is thread-safe and implements llm.ToolSet.
type ToolRegistry struct {
	mu        sync.RWMutex
	executors map[string]ToolExecutor
	order     []string
}

// NewToolRegistry creates a new tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		executors: make(map[string]ToolExecutor),
	}
}

// Register adds a tool executor under its declared name.
// If a tool with the same name already exists, it will be replaced.
func (r *ToolRegistry) Register(executor ToolExecutor) {
	name := executor.Definition().Name

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[name]; !exists {
		r.order = append(r.order, name)
	}
	r.executors[name] = executor
}

// Get retrieves a tool executor by name.
// Returns nil if the tool is not registered.
func (r *ToolRegistry) Get(name string) ToolExecutor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.executors[name]
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Definitions returns tool declarations in registration order.
func (r *ToolRegistry) Definitions() []llmSvc.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llmSvc.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.executors[name].Definition())
	}
	return defs
}

// Execute runs a single tool and returns the result.
// Failures are reported in the result (IsError with the message as Result) so the
// model can see them; Execute itself never fails.
func (r *ToolRegistry) Execute(ctx context.Context, call llmSvc.ToolCall) llmSvc.ToolResult {
	executor := r.Get(call.Name)
	if executor == nil {
		return llmSvc.ToolResult{
			ToolCallID: call.ID,
			Name:       call.Name,
			Result:     fmt.Sprintf("tool not found: %s", call.Name),
			IsError:    true,
		}
	}

	input := call.Args
	if input == nil {
		input = map[string]any{}
	}

	result, err := executor.Execute(ctx, input)
	if err != nil {
		return llmSvc.ToolResult{
			ToolCallID: call.ID,
			Name:       call.Name,
			Result:     err.Error(),
			IsError:    true,
		}
	}

	return llmSvc.ToolResult{
		ToolCallID: call.ID,
		Name:       call.Name,
		Result:     result,
	}
}
