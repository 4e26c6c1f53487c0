package llm

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	models "chatstream/internal/domain/models/chat"
	llmSvc "chatstream/internal/domain/services/llm"
)

// ErrStreamInterrupted is reported when a provider closes its stream without finishing a step
var ErrStreamInterrupted = errors.New("provider stream ended unexpectedly")

var tracer = otel.Tracer("chatstream/service/llm")

// Engine runs a multi-step completion over one provider.
// Each step streams one model response; tool calls in it are executed and fed back
// until the model answers without tools or MaxSteps is reached.
type Engine struct {
	provider llmSvc.Provider
}

// NewEngine wraps a provider
func NewEngine(provider llmSvc.Provider) *Engine {
	return &Engine{provider: provider}
}

// StreamCompletion implements llm.Engine.
// A failure to open the first step is returned directly; later failures arrive as ErrorEvent.
func (e *Engine) StreamCompletion(ctx context.Context, req *llmSvc.CompletionRequest) (<-chan llmSvc.Event, error) {
	maxSteps := req.MaxSteps
	if maxSteps < 1 {
		maxSteps = 1
	}

	var defs []llmSvc.ToolDefinition
	if req.Tools != nil {
		defs = req.Tools.Definitions()
	}

	messages := make([]llmSvc.Message, len(req.Messages))
	copy(messages, req.Messages)

	stepCtx, span := e.startStep(ctx, req.Model, 1)
	first, err := e.provider.StreamStep(stepCtx, e.stepRequest(req, messages, defs))
	if err != nil {
		endSpan(span, err)
		return nil, fmt.Errorf("%s: failed to open stream: %w", e.provider.Name(), err)
	}

	out := make(chan llmSvc.Event, 10)

	go func() {
		defer close(out)

		send := func(ev llmSvc.Event) bool {
			select {
			case <-ctx.Done():
				return false
			case out <- ev:
				return true
			}
		}

		var total llmSvc.Usage
		events := first

		for step := 1; ; step++ {
			if step > 1 {
				stepCtx, span = e.startStep(ctx, req.Model, step)
				events, err = e.provider.StreamStep(stepCtx, e.stepRequest(req, messages, defs))
				if err != nil {
					endSpan(span, err)
					send(llmSvc.ErrorEvent{Err: fmt.Errorf("%s: failed to open stream: %w", e.provider.Name(), err)})
					return
				}
			}

			result, err := e.consumeStep(ctx, events, send)
			endSpan(span, err)
			if err != nil {
				send(llmSvc.ErrorEvent{Err: err})
				return
			}
			if result == nil {
				// consumer went away
				return
			}
			total.InputTokens += result.finish.Usage.InputTokens
			total.OutputTokens += result.finish.Usage.OutputTokens

			if len(result.calls) == 0 || req.Tools == nil {
				break
			}

			toolParts := make(models.Parts, 0, len(result.calls))
			for _, call := range result.calls {
				res := e.executeTool(ctx, req.Tools, call)
				toolParts = append(toolParts, models.ToolResultPart{ToolCallID: res.ToolCallID, Result: res.Result})
				if !send(res) {
					return
				}
			}

			if step >= maxSteps {
				break
			}

			messages = append(messages,
				llmSvc.Message{Role: llmSvc.RoleAssistant, Parts: result.parts, Continuation: result.finish.Continuation},
				llmSvc.Message{Role: llmSvc.RoleTool, Parts: toolParts},
			)
		}

		send(llmSvc.Done{Usage: total})
	}()

	return out, nil
}

// stepOutcome is what one provider round trip produced
type stepOutcome struct {
	parts  models.Parts // text and tool-call parts, replayed as the assistant turn
	calls  []llmSvc.ToolCall
	finish llmSvc.StepFinish
}

// consumeStep forwards deltas and tool calls until the step finishes.
// Returns (nil, nil) when the consumer stopped listening.
func (e *Engine) consumeStep(ctx context.Context, events <-chan llmSvc.Event, send func(llmSvc.Event) bool) (*stepOutcome, error) {
	outcome := &stepOutcome{}

	for ev := range events {
		switch v := ev.(type) {
		case llmSvc.TextDelta:
			outcome.parts = models.AppendText(outcome.parts, v.Text)
		case llmSvc.ToolCall:
			outcome.calls = append(outcome.calls, v)
			outcome.parts = append(outcome.parts, models.ToolCallPart{ID: v.ID, Name: v.Name, Args: v.Args})
		case llmSvc.StepFinish:
			outcome.finish = v
			return outcome, nil
		case llmSvc.ErrorEvent:
			return nil, v.Err
		}

		if !send(ev) {
			return nil, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrStreamInterrupted
}

func (e *Engine) executeTool(ctx context.Context, tools llmSvc.ToolSet, call llmSvc.ToolCall) llmSvc.ToolResult {
	ctx, span := tracer.Start(ctx, "llm.tool", trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	))
	defer span.End()

	res := tools.Execute(ctx, call)
	if res.IsError {
		span.SetStatus(codes.Error, llmSvc.ResultText(res.Result))
	}
	return res
}

func (e *Engine) stepRequest(req *llmSvc.CompletionRequest, messages []llmSvc.Message, defs []llmSvc.ToolDefinition) *llmSvc.StepRequest {
	return &llmSvc.StepRequest{
		Model:     req.Model,
		System:    req.System,
		Messages:  messages,
		Tools:     defs,
		Reasoning: req.Reasoning,
	}
}

func (e *Engine) startStep(ctx context.Context, model string, step int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "llm.step", trace.WithAttributes(
		attribute.String("llm.provider", e.provider.Name()),
		attribute.String("llm.model", model),
		attribute.Int("llm.step", step),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
