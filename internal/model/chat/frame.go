package chat

import (
	"encoding/json"
	"fmt"
)

// FrameType discriminates WebSocket frames on the wire.
type FrameType string

const (
	FrameAuth           FrameType = "auth"
	FrameMessage        FrameType = "message"
	FrameThinking       FrameType = "thinking"
	FrameAnswer         FrameType = "answer"
	FrameMessageCreated FrameType = "message_created"
	FrameError          FrameType = "error"
)

// AuthFrame is the first client frame on a fresh connection.
type AuthFrame struct {
	Type  FrameType `json:"type"`
	Token string    `json:"token"`
}

// NewAuthFrame builds the auth frame for the given session token.
func NewAuthFrame(token string) AuthFrame {
	return AuthFrame{Type: FrameAuth, Token: token}
}

// MessageFrame is a client-to-server chat message.
type MessageFrame struct {
	Type           FrameType `json:"type"`
	Message        string    `json:"message"`
	ConversationID string    `json:"conversation_id,omitempty"`
}

// NewMessageFrame builds an outbound message frame.
func NewMessageFrame(message, conversationID string) MessageFrame {
	return MessageFrame{Type: FrameMessage, Message: message, ConversationID: conversationID}
}

// ThinkingFrame carries live partial reasoning; each one replaces the prior
// display rather than appending to it.
type ThinkingFrame struct {
	Content   string
	MessageID string
}

// AnswerFrame carries the final assistant message for the current turn.
type AnswerFrame struct {
	Content        string
	MessageID      string
	Reasoning      string
	ConversationID string
}

// MessageCreatedFrame correlates subsequently arriving events to message IDs.
type MessageCreatedFrame struct {
	MessageID      string
	ConversationID string
}

// ErrorFrame is a backend-reported error to show as a distinct bubble.
type ErrorFrame struct {
	Content string
}

// ServerFrame is the decoded form of an inbound frame. Exactly one variant
// pointer is non-nil.
type ServerFrame struct {
	Thinking *ThinkingFrame
	Answer   *AnswerFrame
	Created  *MessageCreatedFrame
	Err      *ErrorFrame
}

// wireFrame is the superset envelope the server sends; frames share a flat
// JSON object discriminated by the type field.
type wireFrame struct {
	Type           FrameType `json:"type"`
	Content        string    `json:"content"`
	Message        string    `json:"message"`
	MessageID      string    `json:"message_id"`
	Reasoning      string    `json:"reasoning"`
	ConversationID string    `json:"conversation_id"`
}

// ErrUnknownFrame reports a frame type this client does not handle.
type ErrUnknownFrame struct {
	Type FrameType
}

func (e *ErrUnknownFrame) Error() string {
	return fmt.Sprintf("unknown frame type %q", string(e.Type))
}

// DecodeServerFrame parses an inbound frame once at the socket boundary.
// Unknown frame types return *ErrUnknownFrame so the reader can skip them.
func DecodeServerFrame(data []byte) (ServerFrame, error) {
	var wire wireFrame
	if err := json.Unmarshal(data, &wire); err != nil {
		return ServerFrame{}, fmt.Errorf("decode frame: %w", err)
	}

	switch wire.Type {
	case FrameThinking:
		return ServerFrame{Thinking: &ThinkingFrame{
			Content:   wire.Content,
			MessageID: wire.MessageID,
		}}, nil
	case FrameAnswer:
		return ServerFrame{Answer: &AnswerFrame{
			Content:        wire.Content,
			MessageID:      wire.MessageID,
			Reasoning:      wire.Reasoning,
			ConversationID: wire.ConversationID,
		}}, nil
	case FrameMessageCreated:
		return ServerFrame{Created: &MessageCreatedFrame{
			MessageID:      wire.MessageID,
			ConversationID: wire.ConversationID,
		}}, nil
	case FrameError:
		content := wire.Content
		if content == "" {
			content = wire.Message
		}
		return ServerFrame{Err: &ErrorFrame{Content: content}}, nil
	default:
		return ServerFrame{}, &ErrUnknownFrame{Type: wire.Type}
	}
}
