package llm

import (
	"testing"

	models "chatstream/internal/domain/models/chat"
)

func TestStepRequest_SystemText(t *testing.T) {
	system := func(text string) Message {
		return Message{Role: RoleSystem, Parts: models.Parts{models.TextPart{Text: text}}}
	}
	user := Message{Role: RoleUser, Parts: models.Parts{models.TextPart{Text: "hi"}}}

	tests := []struct {
		name string
		req  StepRequest
		want string
	}{
		{name: "prompt only", req: StepRequest{System: "base", Messages: []Message{user}}, want: "base"},
		{name: "history only", req: StepRequest{Messages: []Message{system("Be terse."), user}}, want: "Be terse."},
		{name: "prompt then history in order", req: StepRequest{
			System:   "base",
			Messages: []Message{system("one"), user, system(""), system("two")},
		}, want: "base\n\none\n\ntwo"},
		{name: "empty", req: StepRequest{Messages: []Message{user}}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.SystemText(); got != tt.want {
				t.Errorf("SystemText() = %q, want %q", got, tt.want)
			}
		})
	}
}
