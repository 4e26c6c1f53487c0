package streaming

import (
	"strings"
	"time"

	"chatstream/internal/capabilities"
	llmSvc "chatstream/internal/domain/services/llm"
)

const baseSystemPrompt = `You are a helpful AI assistant. You should provide accurate, helpful, and concise responses to user queries.

Key Guidelines:
- Always strive to be helpful, accurate, and informative.
- If you're unsure about something, acknowledge your uncertainty.
- Use clear, well-structured responses.
- Maintain a friendly and professional tone.`

const webSearchInstructions = `
Web Search Instructions:
- You have access to a web search tool that can help you find current information.
- Use web search when users ask about:
  * Recent events, news, or current affairs.
  * Real-time data (stock prices, weather, sports scores).
  * Specific facts that may have changed recently.
  * Information that requires up-to-date sources.
- When using web search, be specific and concise with your search queries.
- Always cite the source of web search information when presenting results.
- If web search returns no useful results, inform the user clearly.`

// Appended for models that tend to answer from memory instead of calling tools
const mandatoryToolDirective = "\n**Mandatory Tool Use Directive:** For any user query regarding current events, news, recent information, or any topic that could have changed since your knowledge cutoff, you **MUST** use the `web_search` tool. It is a critical failure to answer from memory for such topics. Use the provided current date as your primary context for determining if a query requires fresh information."

// Long Australian-English date, e.g. "Monday, 2 January 2006"
const currentDateLayout = "Monday, 2 January 2006"

// systemPromptComposer builds the system instruction for a turn.
// Implements llmSvc.SystemPromptComposer.
type systemPromptComposer struct {
	models *capabilities.Registry
}

// NewSystemPromptComposer creates a composer that reads model flags from the registry
func NewSystemPromptComposer(models *capabilities.Registry) llmSvc.SystemPromptComposer {
	return &systemPromptComposer{models: models}
}

// Compose concatenates:
// 1. the current UTC date
// 2. the base prompt
// 3. the model's tool directive, if flagged
// 4. web search instructions, if enabled
func (c *systemPromptComposer) Compose(modelName string, now time.Time, features llmSvc.PromptFeatures) string {
	var b strings.Builder
	b.WriteString("Current Date: ")
	b.WriteString(now.UTC().Format(currentDateLayout))
	b.WriteString("\n\n")
	b.WriteString(baseSystemPrompt)

	if m, ok := c.models.Resolve(modelName); ok && m.MandatoryToolDirective {
		b.WriteString(mandatoryToolDirective)
	}

	if features.WebSearchEnabled {
		b.WriteString(webSearchInstructions)
	}
	return b.String()
}
