package chat

import "time"

// Message is a single transcript entry, created locally when the user submits
// input or when a server response arrives. Rendered once, then immutable
// except for a later reasoning annotation attached by message ID.
type Message struct {
	ID             string    `json:"id,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	Content        string    `json:"content"`
	FromUser       bool      `json:"fromUser"`
	Reasoning      string    `json:"reasoning,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SendResponse is the backend reply to POST /api/chat/send.
type SendResponse struct {
	ConversationID    string `json:"conversation_id"`
	AssistantResponse string `json:"assistant_response"`
	MessageID         string `json:"message_id,omitempty"`
}
