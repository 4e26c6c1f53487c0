package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/invopop/jsonschema"

	llmSvc "chatstream/internal/domain/services/llm"
	"chatstream/internal/service/llm/tools/external"
)

// WebSearchToolName is the name declared to the model
const WebSearchToolName = "web_search"

const webSearchDescription = "Search the web for current information. Use this tool when you need up-to-date information about recent events, current affairs, real-time data (stock prices, weather, sports scores), or specific facts that may have changed recently. Always provide clear citations when using search results."

// webSearchInput is reflected into the tool's argument schema
type webSearchInput struct {
	Query string `json:"query" jsonschema:"required" jsonschema_description:"The search query to use. Be specific and concise. Focus on key terms relevant to the user's question."`
}

// webSearchResult is one entry of the JSON payload returned to the model
type webSearchResult struct {
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Content    string   `json:"content"`
	RawContent *string  `json:"raw_content,omitempty"`
	Score      *float64 `json:"score,omitempty"`
}

// WebSearchTool implements the 'web_search' tool for searching the web via external APIs.
type WebSearchTool struct {
	client external.SearchClient
	config *ToolConfig
	schema map[string]any
}

// NewWebSearchTool creates a new WebSearchTool instance.
func NewWebSearchTool(
	client external.SearchClient,
	config *ToolConfig,
) *WebSearchTool {
	if config == nil {
		config = DefaultToolConfig()
	}
	return &WebSearchTool{
		client: client,
		config: config,
		schema: schemaFor(&webSearchInput{}),
	}
}

// Definition implements ToolExecutor.
func (t *WebSearchTool) Definition() llmSvc.ToolDefinition {
	return llmSvc.ToolDefinition{
		Name:        WebSearchToolName,
		Description: webSearchDescription,
		Parameters:  t.schema,
	}
}

// Execute implements ToolExecutor interface.
// Returns a JSON array string of results. Upstream failures come back as
// "Error performing web search: <msg>" so the model can react to them.
func (t *WebSearchTool) Execute(ctx context.Context, input map[string]any) (any, error) {
	query, ok := input["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, errors.New("missing required parameter: query (string)")
	}

	response, err := t.client.Search(ctx, strings.TrimSpace(query), external.SearchOptions{
		MaxResults: t.config.WebSearchMaxResults,
	})
	if err != nil {
		return "Error performing web search: " + err.Error(), nil
	}

	results := make([]webSearchResult, len(response.Results))
	for i, r := range response.Results {
		title := r.Title
		if title == "" {
			title = "Untitled"
		}
		results[i] = webSearchResult{
			Title:      title,
			URL:        r.URL,
			Content:    r.Snippet,
			RawContent: r.RawContent,
			Score:      r.Score,
		}
	}

	data, err := json.Marshal(results)
	if err != nil {
		return "Error performing web search: " + err.Error(), nil
	}
	return string(data), nil
}

// schemaFor reflects a Go struct into a plain JSON Schema object
func schemaFor(v any) map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(v)

	raw, err := json.Marshal(schema)
	if err != nil {
		panic("tools: unreflectable schema: " + err.Error())
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		panic("tools: unreflectable schema: " + err.Error())
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}
