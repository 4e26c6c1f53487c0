package chat

import "strings"

// ToolCall is the denormalized projection of a ToolCallPart
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolOutput is the denormalized projection of a ToolResultPart
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Result     any    `json:"result"`
}

// AppendText appends delta to the last part when it is text, otherwise pushes a new text part.
func AppendText(parts Parts, delta string) Parts {
	if n := len(parts); n > 0 {
		if last, ok := parts[n-1].(TextPart); ok {
			last.Text += delta
			parts[n-1] = last
			return parts
		}
	}
	return append(parts, TextPart{Text: delta})
}

// UpsertReasoning concatenates delta onto the singleton reasoning part, updating it
// in place, or unshifts a new one to the front. Returns the full reasoning text.
func UpsertReasoning(parts Parts, delta string) (Parts, string) {
	for i, p := range parts {
		if r, ok := p.(ReasoningPart); ok {
			r.Text += delta
			parts[i] = r
			return parts, r.Text
		}
	}
	out := make(Parts, 0, len(parts)+1)
	out = append(out, ReasoningPart{Text: delta})
	out = append(out, parts...)
	return out, delta
}

// FoldReasoning makes sure reasoning is present as the reasoning part.
// An existing reasoning part is replaced; otherwise one is unshifted.
func FoldReasoning(parts Parts, reasoning string) Parts {
	if reasoning == "" {
		return parts
	}
	for i, p := range parts {
		if _, ok := p.(ReasoningPart); ok {
			parts[i] = ReasoningPart{Text: reasoning}
			return parts
		}
	}
	out := make(Parts, 0, len(parts)+1)
	out = append(out, ReasoningPart{Text: reasoning})
	return append(out, parts...)
}

// JoinText concatenates the text parts in order
func JoinText(parts Parts) string {
	var b strings.Builder
	for _, p := range parts {
		if t, ok := p.(TextPart); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// ReasoningText returns the reasoning part's text, or "" when absent
func ReasoningText(parts Parts) string {
	for _, p := range parts {
		if r, ok := p.(ReasoningPart); ok {
			return r.Text
		}
	}
	return ""
}

// ProjectTools splits tool parts into the denormalized toolCalls/toolOutputs lists.
// Results without a matching call are kept.
func ProjectTools(parts Parts) ([]ToolCall, []ToolOutput) {
	calls := []ToolCall{}
	outputs := []ToolOutput{}
	for _, p := range parts {
		switch v := p.(type) {
		case ToolCallPart:
			calls = append(calls, ToolCall{ID: v.ID, Name: v.Name, Args: v.Args})
		case ToolResultPart:
			outputs = append(outputs, ToolOutput{ToolCallID: v.ToolCallID, Result: v.Result})
		}
	}
	return calls, outputs
}

// Clone returns a shallow copy safe to hand to another goroutine
func (ps Parts) Clone() Parts {
	if ps == nil {
		return nil
	}
	out := make(Parts, len(ps))
	copy(out, ps)
	return out
}
