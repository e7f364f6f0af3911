package agent

import (
	"time"

	"github.com/markdave123-py/CodeInsight/internal/models"
)

// EventType represents the type of generation event
type EventType string

const (
	EventMessageStart EventType = "message_start"
	EventTextDelta    EventType = "text_delta"
	EventToolCall     EventType = "tool_call"
	EventToolResult   EventType = "tool_result"
	EventComplete     EventType = "complete"
	EventError        EventType = "error"
)

// Event is one step of an assistant reply as it is produced.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	MessageID string                 `json:"message_id"`
	Content   string                 `json:"content,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Tool      *models.ToolInvocation `json:"tool,omitempty"`
	Message   *models.ChatMessage    `json:"message,omitempty"`
}

func newEvent(t EventType, messageID string) Event {
	return Event{Type: t, Timestamp: time.Now(), MessageID: messageID}
}
