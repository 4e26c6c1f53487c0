package chat

import "context"

// MessageChange announces that a message row was written
type MessageChange struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// ChangeNotifier fans message changes out to live observers.
// Delivery is best effort: observers re-read state, so a dropped notification
// only delays a refresh until the next one.
type ChangeNotifier interface {
	Publish(ctx context.Context, change MessageChange) error

	// Subscribe returns changes for one conversation until ctx is done or cancel is called
	Subscribe(ctx context.Context, conversationID string) (changes <-chan MessageChange, cancel func(), err error)
}
