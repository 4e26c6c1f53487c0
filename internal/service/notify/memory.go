// Package notify fans message-change notifications out to live observers
package notify

import (
	"context"
	"sync"

	chatSvc "chatstream/internal/domain/services/chat"
)

// subscriberBuffer is how many unread changes a subscriber may lag behind.
// Further changes are dropped; the observer re-reads the whole conversation
// on the next one it receives.
const subscriberBuffer = 16

// MemoryNotifier delivers changes within one process
type MemoryNotifier struct {
	mu     sync.Mutex
	byConv map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch   chan chatSvc.MessageChange
	once sync.Once
}

// NewMemoryNotifier creates an in-process notifier
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{byConv: make(map[string]map[*subscriber]struct{})}
}

var _ chatSvc.ChangeNotifier = (*MemoryNotifier)(nil)

func (n *MemoryNotifier) Publish(ctx context.Context, change chatSvc.MessageChange) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for sub := range n.byConv[change.ConversationID] {
		select {
		case sub.ch <- change:
		default:
		}
	}
	return nil
}

func (n *MemoryNotifier) Subscribe(ctx context.Context, conversationID string) (<-chan chatSvc.MessageChange, func(), error) {
	sub := &subscriber{ch: make(chan chatSvc.MessageChange, subscriberBuffer)}

	n.mu.Lock()
	subs := n.byConv[conversationID]
	if subs == nil {
		subs = make(map[*subscriber]struct{})
		n.byConv[conversationID] = subs
	}
	subs[sub] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			n.mu.Lock()
			if subs := n.byConv[conversationID]; subs != nil {
				delete(subs, sub)
				if len(subs) == 0 {
					delete(n.byConv, conversationID)
				}
			}
			close(sub.ch)
			n.mu.Unlock()
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return sub.ch, cancel, nil
}
