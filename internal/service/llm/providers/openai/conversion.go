package openai

import (
	"encoding/json"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	models "chatstream/internal/domain/models/chat"
	llmSvc "chatstream/internal/domain/services/llm"
)

// convertMessages maps provider-ready messages to chat completion messages.
// A tool message becomes one tool-role message per result.
func convertMessages(messages []llmSvc.Message) []oai.ChatCompletionMessageParamUnion {
	out := make([]oai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		if native, ok := msg.Continuation.(oai.ChatCompletionMessageParamUnion); ok {
			out = append(out, native)
			continue
		}

		switch msg.Role {
		case llmSvc.RoleUser:
			out = append(out, userMessage(msg.Parts))

		case llmSvc.RoleSystem:
			out = append(out, oai.SystemMessage(msg.Text()))

		case llmSvc.RoleAssistant:
			var toolCalls []oai.ChatCompletionMessageToolCallParam
			for _, part := range msg.Parts {
				if call, ok := part.(models.ToolCallPart); ok {
					args, _ := json.Marshal(call.Args)
					toolCalls = append(toolCalls, oai.ChatCompletionMessageToolCallParam{
						ID: call.ID,
						Function: oai.ChatCompletionMessageToolCallFunctionParam{
							Name:      call.Name,
							Arguments: string(args),
						},
					})
				}
			}
			if len(toolCalls) == 0 {
				out = append(out, oai.AssistantMessage(msg.Text()))
				continue
			}
			assistant := oai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
			if text := msg.Text(); text != "" {
				assistant.Content = oai.ChatCompletionAssistantMessageParamContentUnion{OfString: oai.String(text)}
			}
			out = append(out, oai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

		case llmSvc.RoleTool:
			for _, part := range msg.Parts {
				if res, ok := part.(models.ToolResultPart); ok {
					out = append(out, oai.ToolMessage(llmSvc.ResultText(res.Result), res.ToolCallID))
				}
			}
		}
	}
	return out
}

// userMessage sends plain text when there are no images, else a content array
func userMessage(parts models.Parts) oai.ChatCompletionMessageParamUnion {
	hasImage := false
	for _, part := range parts {
		if _, ok := part.(models.ImagePart); ok {
			hasImage = true
			break
		}
	}
	if !hasImage {
		return oai.UserMessage(models.JoinText(parts))
	}

	content := make([]oai.ChatCompletionContentPartUnionParam, 0, len(parts))
	for _, part := range parts {
		switch p := part.(type) {
		case models.TextPart:
			content = append(content, oai.TextContentPart(p.Text))
		case models.ImagePart:
			if !strings.HasPrefix(p.Image, "data:") {
				continue
			}
			content = append(content, oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{URL: p.Image}))
		}
	}
	return oai.UserMessage(content)
}

func convertTools(defs []llmSvc.ToolDefinition) []oai.ChatCompletionToolParam {
	out := make([]oai.ChatCompletionToolParam, len(defs))
	for i, def := range defs {
		out[i] = oai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        def.Name,
				Description: oai.String(def.Description),
				Parameters:  shared.FunctionParameters(def.Parameters),
			},
		}
	}
	return out
}
