package llm

import (
	"context"
	"strings"

	models "chatstream/internal/domain/models/chat"
)

// Provider names
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGoogle     = "google"
	ProviderOpenRouter = "openrouter"
	ProviderLorem      = "lorem" // dev-only canned text
)

// MessageRole is the author of a provider-ready message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
	RoleSystem    MessageRole = "system"
)

// Message is a provider-ready message.
//
// User messages carry text and image parts (images already inlined as data URLs).
// Assistant messages carry text and tool-call parts. Tool messages carry tool-result parts.
// System messages carry a single text part.
type Message struct {
	Role  MessageRole
	Parts models.Parts

	// Continuation, when set by the same provider, replaces Parts on the wire
	Continuation any
}

// Text returns the concatenated text parts
func (m Message) Text() string {
	return models.JoinText(m.Parts)
}

// ToolDefinition declares a callable tool with a JSON Schema for its arguments
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// StepRequest is one model round trip
type StepRequest struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []ToolDefinition
	Reasoning bool // inject the provider's reasoning/thinking configuration
}

// SystemText joins the composed system prompt with the text of any system-role
// history messages, in order. Providers without an in-line system role use this
// instead of System.
func (r *StepRequest) SystemText() string {
	var b strings.Builder
	b.WriteString(r.System)
	for _, msg := range r.Messages {
		if msg.Role != RoleSystem {
			continue
		}
		text := msg.Text()
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String()
}

// Provider performs a single streamed round trip against one vendor.
//
// The returned channel yields TextDelta, ReasoningDelta and ToolCall events and is
// closed after exactly one StepFinish or ErrorEvent. Credential and connection
// failures surface either as the returned error or as the first event.
type Provider interface {
	Name() string
	StreamStep(ctx context.Context, req *StepRequest) (<-chan Event, error)
}

// ToolSet executes the tools declared to the model
type ToolSet interface {
	Definitions() []ToolDefinition
	Execute(ctx context.Context, call ToolCall) ToolResult
}

// CompletionRequest is a full, possibly multi-step, completion
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []Message
	Tools     ToolSet // nil disables tool use
	MaxSteps  int
	Reasoning bool
}

// Engine streams a completion, running tool steps until the model answers or
// MaxSteps is reached. The channel ends with Done or ErrorEvent.
type Engine interface {
	StreamCompletion(ctx context.Context, req *CompletionRequest) (<-chan Event, error)
}

// EngineFactory builds a fresh engine per turn from a provider name and credential
type EngineFactory interface {
	CreateEngine(provider, credential string) (Engine, error)
}

// TextGenerator produces a single non-streamed completion (title generation)
type TextGenerator interface {
	GenerateText(ctx context.Context, model, system, prompt string) (string, error)
}
