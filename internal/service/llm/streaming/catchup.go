package streaming

import (
	"context"
	"fmt"
	"log/slog"

	mstream "github.com/haowjy/meridian-stream-go"

	chatRepo "chatstream/internal/domain/repositories/chat"
)

// buildCatchupFunc replays the persisted message as a single snapshot event.
// Every delta is durably written before it is sent, so the row already contains
// everything a reconnecting client missed.
func buildCatchupFunc(messages chatRepo.MessageReader, logger *slog.Logger) mstream.CatchupFunc {
	return func(streamID string, lastEventID string) ([]mstream.Event, error) {
		messageID := streamID

		msg, err := messages.Get(context.Background(), messageID)
		if err != nil {
			logger.Error("failed to get message for catchup",
				"message_id", messageID,
				"error", err,
			)
			return nil, fmt.Errorf("failed to get message: %w", err)
		}

		ev, err := newEvent(SSEEventMessageSnapshot, msg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode snapshot: %w", err)
		}

		logger.Debug("catchup snapshot built",
			"message_id", messageID,
			"last_event_id", lastEventID,
			"is_complete", msg.IsComplete,
		)
		return []mstream.Event{ev}, nil
	}
}
