package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"chatstream/internal/config"
	chatSvc "chatstream/internal/domain/services/chat"
)

// TokenCountHandler annotates attachments with a prompt-token estimate
type TokenCountHandler struct {
	attachments chatSvc.AttachmentService
}

// NewTokenCountHandler creates the token annotation job handler
func NewTokenCountHandler(attachments chatSvc.AttachmentService) *TokenCountHandler {
	return &TokenCountHandler{attachments: attachments}
}

func (h *TokenCountHandler) Handle(ctx context.Context, payload json.RawMessage) error {
	var job chatSvc.TokenCountJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return Permanent(fmt.Errorf("decode token count job: %w", err))
	}
	if len(job.AttachmentIDs) == 0 {
		return nil
	}
	tokens := EstimatePromptTokens(job.FinalContent)
	if err := h.attachments.UpdateTokenCount(ctx, job.AttachmentIDs, tokens); err != nil {
		return fmt.Errorf("update token count: %w", err)
	}
	return nil
}

// EstimatePromptTokens is a length-based estimate: a quarter of the character
// count, never below the attachment floor
func EstimatePromptTokens(content string) int {
	est := math.Max(config.AttachmentTokenFloor, float64(len([]rune(content)))/4)
	return int(math.Round(est))
}
