package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	chatSvc "chatstream/internal/domain/services/chat"
)

// RedisNotifier delivers changes across processes over Redis pub/sub,
// one channel per conversation
type RedisNotifier struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisNotifier creates a notifier publishing on "<prefix><conversationID>"
func NewRedisNotifier(client *redis.Client, prefix string, logger *slog.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, prefix: prefix, logger: logger}
}

var _ chatSvc.ChangeNotifier = (*RedisNotifier)(nil)

func (n *RedisNotifier) channel(conversationID string) string {
	return n.prefix + conversationID
}

func (n *RedisNotifier) Publish(ctx context.Context, change chatSvc.MessageChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel(change.ConversationID), data).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context, conversationID string) (<-chan chatSvc.MessageChange, func(), error) {
	ps := n.client.Subscribe(ctx, n.channel(conversationID))
	// Wait for the subscription confirmation so no publish after return is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan chatSvc.MessageChange, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var change chatSvc.MessageChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				n.logger.Warn("dropping malformed change", "error", err, "channel", msg.Channel)
				continue
			}
			select {
			case out <- change:
			default:
			}
		}
	}()

	cancel := func() { _ = ps.Close() }
	go func() {
		<-ctx.Done()
		cancel()
	}()

	return out, cancel, nil
}
