package streaming

import (
	"encoding/json"

	mstream "github.com/haowjy/meridian-stream-go"

	models "chatstream/internal/domain/models/chat"
)

// SSE event types
const (
	SSEEventMessageSnapshot = "message_snapshot"
	SSEEventMessageDelta    = "message_delta"
	SSEEventMessageComplete = "message_complete"
	SSEEventMessageError    = "message_error"
)

// DeltaEvent mirrors one normalized stream event applied to the message
type DeltaEvent struct {
	MessageID  string             `json:"message_id"`
	Kind       string             `json:"kind"`
	Text       string             `json:"text,omitempty"`
	ToolCall   *models.ToolCall   `json:"tool_call,omitempty"`
	ToolOutput *models.ToolOutput `json:"tool_output,omitempty"`
}

// CompleteEvent is sent once the message is sealed
type CompleteEvent struct {
	MessageID string `json:"message_id"`
	Outcome   string `json:"outcome"`
	Content   string `json:"content"`
}

// ErrorEvent is sent when the turn failed; Content is the persisted apology text
type ErrorEvent struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
	Content   string `json:"content"`
}

// newEvent encodes data as an mstream event of the given type
func newEvent(eventType string, data any) (mstream.Event, error) {
	var ev mstream.Event
	raw, err := json.Marshal(data)
	if err != nil {
		return ev, err
	}
	return mstream.NewEvent(raw).WithType(eventType), nil
}
