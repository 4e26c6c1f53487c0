package anthropic

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	models "chatstream/internal/domain/models/chat"
	llmSvc "chatstream/internal/domain/services/llm"
)

// convertToAnthropicMessages converts provider-ready messages to Anthropic SDK format.
// Tool results travel as user messages, as the Messages API requires.
func convertToAnthropicMessages(messages []llmSvc.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))

	for i, msg := range messages {
		if native, ok := msg.Continuation.(anthropic.MessageParam); ok {
			result = append(result, native)
			continue
		}

		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Parts))
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case models.TextPart:
				if p.Text != "" {
					blocks = append(blocks, anthropic.NewTextBlock(p.Text))
				}
			case models.ImagePart:
				mimeType, data, ok := llmSvc.ParseDataURL(p.Image)
				if !ok {
					// Only inline images reach providers; anything else was dropped upstream
					continue
				}
				if mimeType == "" {
					mimeType = p.MimeType
				}
				blocks = append(blocks, anthropic.NewImageBlockBase64(mimeType, data))
			case models.ToolCallPart:
				blocks = append(blocks, anthropic.NewToolUseBlock(p.ID, p.Args, p.Name))
			case models.ToolResultPart:
				blocks = append(blocks, anthropic.NewToolResultBlock(p.ToolCallID, llmSvc.ResultText(p.Result), false))
			}
		}
		if len(blocks) == 0 {
			continue
		}

		switch msg.Role {
		case llmSvc.RoleUser, llmSvc.RoleTool:
			result = append(result, anthropic.NewUserMessage(blocks...))
		case llmSvc.RoleAssistant:
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		case llmSvc.RoleSystem:
			// carried in params.System
		default:
			return nil, fmt.Errorf("message %d: unsupported role '%s'", i, msg.Role)
		}
	}

	return result, nil
}

// convertTools declares tools with their JSON Schema inputs
func convertTools(defs []llmSvc.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		var required []string
		if raw, ok := def.Parameters["required"].([]any); ok {
			for _, r := range raw {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
		}
		param := anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: def.Parameters["properties"],
				Required:   required,
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &param})
	}
	return out
}
