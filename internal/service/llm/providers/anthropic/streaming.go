package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	llmSvc "chatstream/internal/domain/services/llm"
)

// StreamStep runs one round trip against the Messages API.
// Text and thinking deltas are forwarded as they arrive; tool calls are emitted once
// their input JSON is complete (on content_block_stop).
func (p *Provider) StreamStep(ctx context.Context, req *llmSvc.StepRequest) (<-chan llmSvc.Event, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}

	eventChan := make(chan llmSvc.Event, 10)

	go func() {
		defer close(eventChan)

		send := func(ev llmSvc.Event) bool {
			select {
			case <-ctx.Done():
				return false
			case eventChan <- ev:
				return true
			}
		}

		stream := p.client.Messages.NewStreaming(ctx, params)
		defer func() { _ = stream.Close() }()

		message := anthropic.Message{}
		// content block index -> raw input JSON of an open tool_use block
		toolInputs := make(map[int64]*strings.Builder)

		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				send(llmSvc.ErrorEvent{Err: fmt.Errorf("failed to accumulate message: %w", err)})
				return
			}

			var out llmSvc.Event
			switch e := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if e.ContentBlock.Type == "tool_use" {
					toolInputs[e.Index] = &strings.Builder{}
				}

			case anthropic.ContentBlockDeltaEvent:
				switch e.Delta.Type {
				case "text_delta":
					if e.Delta.Text != "" {
						out = llmSvc.TextDelta{Text: e.Delta.Text}
					}
				case "thinking_delta":
					if e.Delta.Thinking != "" {
						out = llmSvc.ReasoningDelta{Text: e.Delta.Thinking}
					}
				case "input_json_delta":
					if buf := toolInputs[e.Index]; buf != nil {
						buf.WriteString(e.Delta.PartialJSON)
					}
				}

			case anthropic.ContentBlockStopEvent:
				if buf := toolInputs[e.Index]; buf != nil {
					call, err := toolCallAt(&message, int(e.Index), buf.String())
					if err != nil {
						send(llmSvc.ErrorEvent{Err: err})
						return
					}
					out = call
				}
			}

			if out != nil && !send(out) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			send(llmSvc.ErrorEvent{Err: fmt.Errorf("anthropic streaming error: %w", err)})
			return
		}

		send(llmSvc.StepFinish{
			FinishReason: string(message.StopReason),
			Usage: llmSvc.Usage{
				InputTokens:  int(message.Usage.InputTokens),
				OutputTokens: int(message.Usage.OutputTokens),
			},
			Continuation: message.ToParam(),
		})
	}()

	return eventChan, nil
}

// toolCallAt reads a finished tool_use block from the accumulated message.
// rawInput is the concatenated input_json_delta stream; the block's own input is the fallback.
func toolCallAt(message *anthropic.Message, idx int, rawInput string) (llmSvc.ToolCall, error) {
	if idx < 0 || idx >= len(message.Content) {
		return llmSvc.ToolCall{}, fmt.Errorf("tool_use block %d out of range", idx)
	}
	block, ok := message.Content[idx].AsAny().(anthropic.ToolUseBlock)
	if !ok {
		return llmSvc.ToolCall{}, fmt.Errorf("content block %d is not tool_use", idx)
	}

	raw := []byte(strings.TrimSpace(rawInput))
	if len(raw) == 0 {
		raw = block.Input
	}

	args := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return llmSvc.ToolCall{}, fmt.Errorf("invalid tool input for %s: %w", block.Name, err)
		}
	}
	return llmSvc.ToolCall{ID: block.ID, Name: block.Name, Args: args}, nil
}
