package google

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/genai"

	llmSvc "chatstream/internal/domain/services/llm"
)

// StreamStep runs one streamed generateContent call.
// Thought parts become reasoning deltas; function calls arrive whole.
func (p *Provider) StreamStep(ctx context.Context, req *llmSvc.StepRequest) (<-chan llmSvc.Event, error) {
	contents, err := convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}
	config := buildConfig(req)

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

		// Every streamed part, replayed verbatim (thought signatures included) in the next step
		model := &genai.Content{Role: string(genai.RoleModel)}
		finish := llmSvc.StepFinish{}

		for resp, err := range p.client.Models.GenerateContentStream(ctx, req.Model, contents, config) {
			if err != nil {
				send(llmSvc.ErrorEvent{Err: fmt.Errorf("gemini streaming error: %w", err)})
				return
			}

			if resp.UsageMetadata != nil {
				finish.Usage = llmSvc.Usage{
					InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
					OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				}
			}
			if len(resp.Candidates) == 0 {
				continue
			}
			candidate := resp.Candidates[0]
			if candidate.FinishReason != "" {
				finish.FinishReason = string(candidate.FinishReason)
			}
			if candidate.Content == nil {
				continue
			}

			for _, part := range candidate.Content.Parts {
				var out llmSvc.Event
				switch {
				case part.FunctionCall != nil:
					if part.FunctionCall.ID == "" {
						part.FunctionCall.ID = "call_" + uuid.NewString()
					}
					args := part.FunctionCall.Args
					if args == nil {
						args = map[string]any{}
					}
					out = llmSvc.ToolCall{ID: part.FunctionCall.ID, Name: part.FunctionCall.Name, Args: args}
				case part.Thought && part.Text != "":
					out = llmSvc.ReasoningDelta{Text: part.Text}
				case part.Text != "":
					out = llmSvc.TextDelta{Text: part.Text}
				}
				model.Parts = append(model.Parts, part)

				if out != nil && !send(out) {
					return
				}
			}
		}

		if len(model.Parts) > 0 {
			finish.Continuation = model
		}
		send(finish)
	}()

	return eventChan, nil
}
