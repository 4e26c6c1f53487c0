package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	models "chatstream/internal/domain/models/chat"
	llmSvc "chatstream/internal/domain/services/llm"
)

func sseServer(t *testing.T, events [][2]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev[0], ev[1])
		}
	}))
}

func collect(t *testing.T, ch <-chan llmSvc.Event) []llmSvc.Event {
	t.Helper()
	var out []llmSvc.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestStreamStep_TextThinkingAndTool(t *testing.T) {
	server := sseServer(t, [][2]string{
		{"message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":1}}}`},
		{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":"","signature":""}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"consider"}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"signature_delta","signature":"sig"}}`},
		{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		{"content_block_start", `{"type":"content_block_start","index":1,"content_block":{"type":"text","text":""}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"Let me check."}}`},
		{"content_block_stop", `{"type":"content_block_stop","index":1}`},
		{"content_block_start", `{"type":"content_block_start","index":2,"content_block":{"type":"tool_use","id":"toolu_1","name":"web_search","input":{}}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":"{\"query\": \"weather"}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":" Paris\"}"}}`},
		{"content_block_stop", `{"type":"content_block_stop","index":2}`},
		{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":30}}`},
		{"message_stop", `{"type":"message_stop"}`},
	})
	defer server.Close()

	p, err := NewProvider("sk-test", 8000, option.WithBaseURL(server.URL), option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}

	ch, err := p.StreamStep(context.Background(), &llmSvc.StepRequest{
		Model:     "claude-sonnet-4-20250514",
		System:    "be brief",
		Reasoning: true,
		Messages: []llmSvc.Message{
			{Role: llmSvc.RoleUser, Parts: models.Parts{models.TextPart{Text: "weather?"}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, ch)

	if len(events) != 4 {
		t.Fatalf("got %d events: %#v", len(events), events)
	}
	if r, ok := events[0].(llmSvc.ReasoningDelta); !ok || r.Text != "consider" {
		t.Errorf("event 0 = %#v", events[0])
	}
	if tx, ok := events[1].(llmSvc.TextDelta); !ok || tx.Text != "Let me check." {
		t.Errorf("event 1 = %#v", events[1])
	}
	call, ok := events[2].(llmSvc.ToolCall)
	if !ok || call.ID != "toolu_1" || call.Name != "web_search" || call.Args["query"] != "weather Paris" {
		t.Errorf("event 2 = %#v", events[2])
	}
	finish, ok := events[3].(llmSvc.StepFinish)
	if !ok {
		t.Fatalf("event 3 = %#v", events[3])
	}
	if finish.FinishReason != "tool_use" || finish.Usage.InputTokens != 12 || finish.Usage.OutputTokens != 30 {
		t.Errorf("finish = %+v", finish)
	}
	if finish.Continuation == nil {
		t.Error("expected native continuation for the next step")
	}
}

func TestStreamStep_HTTPErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	p, _ := NewProvider("bad", 0, option.WithBaseURL(server.URL), option.WithMaxRetries(0))
	ch, err := p.StreamStep(context.Background(), &llmSvc.StepRequest{
		Model:    "claude-3-5-haiku-20241022",
		Messages: []llmSvc.Message{{Role: llmSvc.RoleUser, Parts: models.Parts{models.TextPart{Text: "hi"}}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, ch)
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}
	if e, ok := events[0].(llmSvc.ErrorEvent); !ok || !strings.Contains(e.Err.Error(), "anthropic streaming error") {
		t.Errorf("expected error event, got %#v", events[0])
	}
}

func TestBuildParams(t *testing.T) {
	p, _ := NewProvider("sk", 8000)

	params, err := p.buildParams(&llmSvc.StepRequest{
		Model:     "claude-sonnet-4-20250514",
		Reasoning: true,
		Tools: []llmSvc.ToolDefinition{{
			Name:        "web_search",
			Description: "search",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}, "required": []any{"query"}},
		}},
		Messages: []llmSvc.Message{
			{Role: llmSvc.RoleUser, Parts: models.Parts{
				models.TextPart{Text: "look"},
				models.ImagePart{Image: "data:image/png;base64,AAAA"},
				models.ImagePart{Image: "https://example.com/not-inlined.png"},
			}},
			{Role: llmSvc.RoleAssistant, Parts: models.Parts{models.ToolCallPart{ID: "t1", Name: "web_search", Args: map[string]any{"query": "x"}}}},
			{Role: llmSvc.RoleTool, Parts: models.Parts{models.ToolResultPart{ToolCallID: "t1", Result: "[]"}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if params.MaxTokens <= 8000 {
		t.Errorf("max tokens %d must exceed thinking budget", params.MaxTokens)
	}
	if params.Thinking.OfEnabled == nil || params.Thinking.OfEnabled.BudgetTokens != 8000 {
		t.Errorf("thinking not enabled: %+v", params.Thinking)
	}
	if len(params.Messages) != 3 {
		t.Fatalf("got %d messages", len(params.Messages))
	}
	if n := len(params.Messages[0].Content); n != 2 {
		t.Errorf("user content blocks = %d, want text + inline image", n)
	}
	if len(params.Tools) != 1 || params.Tools[0].OfTool.InputSchema.Required[0] != "query" {
		t.Errorf("tools = %+v", params.Tools)
	}

	plain, _ := p.buildParams(&llmSvc.StepRequest{Model: "m", Messages: []llmSvc.Message{{Role: llmSvc.RoleUser, Parts: models.Parts{models.TextPart{Text: "x"}}}}})
	if plain.Thinking.OfEnabled != nil {
		t.Error("thinking must be omitted when reasoning is off")
	}
}

func TestBuildParams_FoldsHistorySystemMessages(t *testing.T) {
	p, _ := NewProvider("sk", 0)

	params, err := p.buildParams(&llmSvc.StepRequest{
		Model:  "m",
		System: "base",
		Messages: []llmSvc.Message{
			{Role: llmSvc.RoleSystem, Parts: models.Parts{models.TextPart{Text: "Be terse."}}},
			{Role: llmSvc.RoleUser, Parts: models.Parts{models.TextPart{Text: "hi"}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(params.Messages) != 1 {
		t.Fatalf("got %d messages, want only the user turn", len(params.Messages))
	}
	if len(params.System) != 1 || params.System[0].Text != "base\n\nBe terse." {
		t.Errorf("system = %+v", params.System)
	}
}
