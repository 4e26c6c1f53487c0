package openai

import (
	"context"
	"encoding/json"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/tidwall/gjson"

	llmSvc "chatstream/internal/domain/services/llm"
)

// StreamStep runs one streamed chat completion.
// Tool calls are emitted when the accumulator reports them finished; any still open
// when the stream ends are flushed before StepFinish.
func (p *Provider) StreamStep(ctx context.Context, req *llmSvc.StepRequest) (<-chan llmSvc.Event, error) {
	params, opts := p.buildParams(req)

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

		stream := p.client.Chat.Completions.NewStreaming(ctx, params, opts...)
		defer func() { _ = stream.Close() }()

		acc := oai.ChatCompletionAccumulator{}
		emitted := make(map[string]bool)
		finishReason := ""

		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if tool, ok := acc.JustFinishedToolCall(); ok {
				call, err := toolCall(tool.ID, tool.Name, tool.Arguments)
				if err != nil {
					send(llmSvc.ErrorEvent{Err: err})
					return
				}
				emitted[tool.ID] = true
				if !send(call) {
					return
				}
			}

			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			if choice.FinishReason != "" {
				finishReason = choice.FinishReason
			}

			// OpenRouter streams reasoning in a non-standard delta field
			if reasoning := gjson.Get(chunk.RawJSON(), "choices.0.delta.reasoning").String(); reasoning != "" {
				if !send(llmSvc.ReasoningDelta{Text: reasoning}) {
					return
				}
			}
			if choice.Delta.Content != "" {
				if !send(llmSvc.TextDelta{Text: choice.Delta.Content}) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			send(llmSvc.ErrorEvent{Err: fmt.Errorf("%s streaming error: %w", p.name, err)})
			return
		}

		finish := llmSvc.StepFinish{
			FinishReason: finishReason,
			Usage: llmSvc.Usage{
				InputTokens:  int(acc.Usage.PromptTokens),
				OutputTokens: int(acc.Usage.CompletionTokens),
			},
		}
		if len(acc.Choices) > 0 {
			message := acc.Choices[0].Message
			for _, tc := range message.ToolCalls {
				if emitted[tc.ID] {
					continue
				}
				call, err := toolCall(tc.ID, tc.Function.Name, tc.Function.Arguments)
				if err != nil {
					send(llmSvc.ErrorEvent{Err: err})
					return
				}
				if !send(call) {
					return
				}
			}
			finish.Continuation = message.ToParam()
		}
		send(finish)
	}()

	return eventChan, nil
}

func toolCall(id, name, arguments string) (llmSvc.ToolCall, error) {
	args := map[string]any{}
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return llmSvc.ToolCall{}, fmt.Errorf("invalid tool arguments for %s: %w", name, err)
		}
	}
	return llmSvc.ToolCall{ID: id, Name: name, Args: args}, nil
}
