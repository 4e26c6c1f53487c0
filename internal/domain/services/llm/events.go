package llm

// Event is one item of a normalized completion stream.
// Implementations: TextDelta, ReasoningDelta, ToolCall, ToolResult, StepFinish, ErrorEvent, Done.
type Event interface {
	eventKind() string
}

// TextDelta carries an answer text fragment
type TextDelta struct {
	Text string
}

// ReasoningDelta carries a thinking text fragment
type ReasoningDelta struct {
	Text string
}

// ToolCall is a complete tool invocation emitted by the model
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult is the output of a tool invocation, fed back to the model
type ToolResult struct {
	ToolCallID string
	Name       string
	Result     any
	IsError    bool
}

// Usage reports token counts for one provider step
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// StepFinish ends one provider round trip.
// Continuation is the provider's native form of the assistant message just produced
// (thinking signatures included); it is replayed verbatim in the next tool step.
type StepFinish struct {
	FinishReason string
	Usage        Usage
	Continuation any
}

// ErrorEvent aborts the stream
type ErrorEvent struct {
	Err error
}

// Done terminates a successful stream
type Done struct {
	Usage Usage
}

func (TextDelta) eventKind() string      { return "text-delta" }
func (ReasoningDelta) eventKind() string { return "reasoning-delta" }
func (ToolCall) eventKind() string       { return "tool-call" }
func (ToolResult) eventKind() string     { return "tool-result" }
func (StepFinish) eventKind() string     { return "step-finish" }
func (ErrorEvent) eventKind() string     { return "error" }
func (Done) eventKind() string           { return "done" }

// Kind returns the wire name of an event, used in logs and metrics
func Kind(e Event) string {
	if e == nil {
		return ""
	}
	return e.eventKind()
}
