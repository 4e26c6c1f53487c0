package google

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"

	models "chatstream/internal/domain/models/chat"
	llmSvc "chatstream/internal/domain/services/llm"
)

// convertMessages maps provider-ready messages to genai contents.
// Function responses need the function name, recovered from the matching call.
func convertMessages(messages []llmSvc.Message) ([]*genai.Content, error) {
	callNames := make(map[string]string)
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if call, ok := part.(models.ToolCallPart); ok {
				callNames[call.ID] = call.Name
			}
		}
	}

	out := make([]*genai.Content, 0, len(messages))
	for i, msg := range messages {
		if native, ok := msg.Continuation.(*genai.Content); ok {
			out = append(out, native)
			continue
		}

		if msg.Role == llmSvc.RoleSystem {
			continue // folded into SystemInstruction
		}

		role := string(genai.RoleUser)
		if msg.Role == llmSvc.RoleAssistant {
			role = string(genai.RoleModel)
		}

		parts := make([]*genai.Part, 0, len(msg.Parts))
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case models.TextPart:
				if p.Text != "" {
					parts = append(parts, genai.NewPartFromText(p.Text))
				}
			case models.ImagePart:
				mimeType, payload, ok := llmSvc.ParseDataURL(p.Image)
				if !ok {
					continue
				}
				data, err := base64.StdEncoding.DecodeString(payload)
				if err != nil {
					return nil, fmt.Errorf("message %d: invalid inline image: %w", i, err)
				}
				if mimeType == "" {
					mimeType = p.MimeType
				}
				parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}})
			case models.ToolCallPart:
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: p.ID, Name: p.Name, Args: p.Args}})
			case models.ToolResultPart:
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       p.ToolCallID,
					Name:     callNames[p.ToolCallID],
					Response: llmSvc.ResultObject(p.Result),
				}})
			}
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}
	return out, nil
}
