package chat

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestPartsRoundTrip(t *testing.T) {
	raw := `[
		{"type":"reasoning","text":"think"},
		{"type":"text","text":"Hello"},
		{"type":"image","image":"data:image/png;base64,AAAA","mime_type":"image/png"},
		{"type":"image","image":"https://example.com/a.jpg"},
		{"type":"tool-call","id":"1","name":"web_search","args":{"query":"weather Paris","n":2}},
		{"type":"tool-result","tool_call_id":"1","result":{"ok":true,"items":[1,"two",null]}},
		{"type":"tool-result","tool_call_id":"orphan","result":"Error performing web search: boom"}
	]`

	var first Parts
	if err := json.Unmarshal([]byte(raw), &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(first) != 7 {
		t.Fatalf("got %d parts, want 7", len(first))
	}

	encoded, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var second Parts
	if err := json.Unmarshal(encoded, &second); err != nil {
		t.Fatalf("unmarshal again: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("round trip changed parts:\nfirst:  %#v\nsecond: %#v", first, second)
	}
}

func TestParsePartRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{"unknown type", `{"type":"video","url":"x"}`, "unknown part type"},
		{"tool call without id", `{"type":"tool-call","name":"x","args":{}}`, "id and name are required"},
		{"tool result without id", `{"type":"tool-result","result":1}`, "tool_call_id is required"},
		{"image without url", `{"type":"image"}`, "image is required"},
		{"not an object", `"text"`, "decode part type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePart(json.RawMessage(tt.raw))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestAccumulationSequence(t *testing.T) {
	var parts Parts
	parts = AppendText(parts, "Hel")
	parts = AppendText(parts, "lo")
	parts, _ = UpsertReasoning(parts, "think")
	parts = append(parts, ToolCallPart{ID: "1", Name: "X", Args: map[string]any{}})
	parts = append(parts, ToolResultPart{ToolCallID: "1", Result: map[string]any{"ok": true}})

	want := Parts{
		ReasoningPart{Text: "think"},
		TextPart{Text: "Hello"},
		ToolCallPart{ID: "1", Name: "X", Args: map[string]any{}},
		ToolResultPart{ToolCallID: "1", Result: map[string]any{"ok": true}},
	}
	if !reflect.DeepEqual(parts, want) {
		t.Errorf("parts = %#v\nwant %#v", parts, want)
	}
}

func TestUpsertReasoning(t *testing.T) {
	t.Run("consecutive deltas merge into one part", func(t *testing.T) {
		var parts Parts
		parts, _ = UpsertReasoning(parts, "a")
		parts, full := UpsertReasoning(parts, "b")

		if full != "ab" {
			t.Errorf("full = %q, want ab", full)
		}
		count := 0
		for _, p := range parts {
			if _, ok := p.(ReasoningPart); ok {
				count++
			}
		}
		if count != 1 {
			t.Errorf("got %d reasoning parts, want 1", count)
		}
	})

	t.Run("updated in place after text", func(t *testing.T) {
		parts := Parts{ReasoningPart{Text: "a"}, TextPart{Text: "x"}}
		parts, _ = UpsertReasoning(parts, "b")
		want := Parts{ReasoningPart{Text: "ab"}, TextPart{Text: "x"}}
		if !reflect.DeepEqual(parts, want) {
			t.Errorf("parts = %#v", parts)
		}
	})

	t.Run("unshifted when text came first", func(t *testing.T) {
		parts := Parts{TextPart{Text: "x"}}
		parts, _ = UpsertReasoning(parts, "r")
		if _, ok := parts[0].(ReasoningPart); !ok {
			t.Errorf("first part is %T, want ReasoningPart", parts[0])
		}
	})
}

func TestAppendTextAfterToolCall(t *testing.T) {
	parts := Parts{TextPart{Text: "a"}, ToolCallPart{ID: "1", Name: "t"}}
	parts = AppendText(parts, "b")
	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3", len(parts))
	}
	if JoinText(parts) != "ab" {
		t.Errorf("JoinText = %q", JoinText(parts))
	}
}

func TestFoldReasoning(t *testing.T) {
	tests := []struct {
		name      string
		parts     Parts
		reasoning string
		want      Parts
	}{
		{"empty reasoning is a no-op", Parts{TextPart{Text: "x"}}, "", Parts{TextPart{Text: "x"}}},
		{"missing part is unshifted", Parts{TextPart{Text: "x"}}, "r", Parts{ReasoningPart{Text: "r"}, TextPart{Text: "x"}}},
		{"existing part is replaced", Parts{ReasoningPart{Text: "old"}, TextPart{Text: "x"}}, "new", Parts{ReasoningPart{Text: "new"}, TextPart{Text: "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FoldReasoning(tt.parts, tt.reasoning)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestProjectToolsKeepsOrphanResults(t *testing.T) {
	parts := Parts{
		ToolResultPart{ToolCallID: "missing", Result: "r"},
		ToolCallPart{ID: "1", Name: "web_search", Args: map[string]any{"query": "q"}},
	}
	calls, outputs := ProjectTools(parts)
	if len(calls) != 1 || calls[0].Name != "web_search" {
		t.Errorf("calls = %#v", calls)
	}
	if len(outputs) != 1 || outputs[0].ToolCallID != "missing" {
		t.Errorf("outputs = %#v", outputs)
	}
}

func TestNewSnapshot(t *testing.T) {
	parts := Parts{ReasoningPart{Text: "r"}, TextPart{Text: "hi"}}
	snap := NewSnapshot(parts, "")
	if snap.Content != "hi" || snap.Reasoning != "r" {
		t.Errorf("snapshot = %+v", snap)
	}

	snap.Parts[1] = TextPart{Text: "changed"}
	if parts[1].(TextPart).Text != "hi" {
		t.Error("snapshot must not alias the accumulator")
	}
}

func TestConversationReadableBy(t *testing.T) {
	user := "user-1"
	session := "sess-1"

	tests := []struct {
		name   string
		conv   Conversation
		caller Caller
		want   bool
	}{
		{"owner", Conversation{UserID: &user}, Caller{UserID: user}, true},
		{"other user", Conversation{UserID: &user}, Caller{UserID: "user-2"}, false},
		{"public", Conversation{UserID: &user, IsPublic: true}, Caller{}, true},
		{"guest session", Conversation{SessionID: &session}, Caller{SessionID: session}, true},
		{"authenticated caller with matching session", Conversation{SessionID: &session}, Caller{UserID: user, SessionID: session}, false},
		{"anonymous", Conversation{SessionID: &session}, Caller{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.conv.ReadableBy(tt.caller); got != tt.want {
				t.Errorf("ReadableBy = %v, want %v", got, tt.want)
			}
		})
	}
}
