// Package lorem wraps the mock lorem ipsum provider for development without API keys.
package lorem

import (
	"context"
	"fmt"

	llmprovider "github.com/haowjy/meridian-llm-go"
	"github.com/haowjy/meridian-llm-go/providers/lorem"

	llmSvc "chatstream/internal/domain/services/llm"
)

// Keeps dev replies short; lorem streams one word per token
const defaultMaxTokens = 120

// Provider adapts the library's lorem provider to llm.Provider.
// It never calls tools.
type Provider struct {
	provider  llmprovider.Provider
	maxTokens int
}

// NewProvider creates a lorem provider. No credential is needed.
func NewProvider() *Provider {
	return &Provider{provider: lorem.NewProvider(), maxTokens: defaultMaxTokens}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return llmSvc.ProviderLorem
}

// StreamStep converts library block deltas into text and reasoning deltas
func (p *Provider) StreamStep(ctx context.Context, req *llmSvc.StepRequest) (<-chan llmSvc.Event, error) {
	libEventCh, err := p.provider.StreamResponse(ctx, toLibraryRequest(req, p.maxTokens))
	if err != nil {
		return nil, err
	}

	eventChan := make(chan llmSvc.Event, 10)

	go func() {
		defer close(eventChan)

		blockTypes := make(map[int]string)
		finish := llmSvc.StepFinish{}

		for libEvent := range libEventCh {
			var out llmSvc.Event
			switch {
			case libEvent.Error != nil:
				out = llmSvc.ErrorEvent{Err: fmt.Errorf("lorem streaming error: %w", libEvent.Error)}

			case libEvent.Metadata != nil:
				finish.FinishReason = libEvent.Metadata.StopReason
				finish.Usage = llmSvc.Usage{
					InputTokens:  libEvent.Metadata.InputTokens,
					OutputTokens: libEvent.Metadata.OutputTokens,
				}

			case libEvent.Delta != nil:
				delta := libEvent.Delta
				// Only the first delta of a block carries its type
				if delta.BlockType != nil {
					blockTypes[delta.BlockIndex] = *delta.BlockType
				}
				if delta.TextDelta == nil || *delta.TextDelta == "" {
					break
				}
				if blockTypes[delta.BlockIndex] == llmprovider.BlockTypeThinking {
					out = llmSvc.ReasoningDelta{Text: *delta.TextDelta}
				} else {
					out = llmSvc.TextDelta{Text: *delta.TextDelta}
				}
			}

			if out == nil {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case eventChan <- out:
			}
			if _, failed := out.(llmSvc.ErrorEvent); failed {
				return
			}
		}

		if ctx.Err() == nil {
			eventChan <- finish
		}
	}()

	return eventChan, nil
}

// toLibraryRequest keeps only text content; lorem ignores everything else
func toLibraryRequest(req *llmSvc.StepRequest, maxTokens int) *llmprovider.GenerateRequest {
	messages := make([]llmprovider.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		text := msg.Text()
		role := "user"
		switch msg.Role {
		case llmSvc.RoleAssistant:
			role = "assistant"
		case llmSvc.RoleSystem:
			role = "system"
		}
		messages = append(messages, llmprovider.Message{
			Role: role,
			Blocks: []*llmprovider.Block{{
				BlockType:   llmprovider.BlockTypeText,
				TextContent: &text,
			}},
		})
	}

	thinking := req.Reasoning
	return &llmprovider.GenerateRequest{
		Messages: messages,
		Model:    req.Model,
		Params: &llmprovider.RequestParams{
			MaxTokens:       &maxTokens,
			ThinkingEnabled: &thinking,
		},
	}
}
