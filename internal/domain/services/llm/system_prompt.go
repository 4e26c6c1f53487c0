package llm

import "time"

// PromptFeatures are the per-turn toggles that change the system instruction
type PromptFeatures struct {
	WebSearchEnabled bool
}

// SystemPromptComposer builds the system instruction for a turn.
// It is deterministic for a given model, calendar day and feature set.
type SystemPromptComposer interface {
	Compose(modelName string, now time.Time, features PromptFeatures) string
}
