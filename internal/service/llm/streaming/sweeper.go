package streaming

import (
	"context"
	"log/slog"
	"time"

	chatRepo "chatstream/internal/domain/repositories/chat"
)

// abandonedReply is the text of a placeholder that never got an answer
const abandonedReply = errorPrefix + "this reply was interrupted before it finished."

// AbandonedSweeper seals assistant messages whose writer stopped without finalizing:
// a crashed process, or a claim or finalize that kept failing.
type AbandonedSweeper struct {
	messages chatRepo.MessageRepository
	age      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewAbandonedSweeper seals messages left incomplete for longer than age
func NewAbandonedSweeper(messages chatRepo.MessageRepository, age time.Duration, logger *slog.Logger) *AbandonedSweeper {
	return &AbandonedSweeper{
		messages: messages,
		age:      age,
		logger:   logger,
		now:      time.Now,
	}
}

// Sweep seals every abandoned message once and reports how many it closed
func (s *AbandonedSweeper) Sweep(ctx context.Context) (int64, error) {
	sealed, err := s.messages.SealAbandoned(ctx, s.now().Add(-s.age), abandonedReply)
	if err != nil {
		return 0, err
	}
	if sealed > 0 {
		s.logger.Warn("sealed abandoned assistant messages", "count", sealed)
	}
	return sealed, nil
}

// Run sweeps every interval until ctx is done. Errors are logged and retried next tick.
func (s *AbandonedSweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("abandoned message sweep failed", "error", err)
			}
		}
	}
}
