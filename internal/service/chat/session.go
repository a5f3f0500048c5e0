package chat

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	model "github.com/pravochat/cli/internal/model/chat"
	"github.com/pravochat/cli/internal/service/api"
	"github.com/pravochat/cli/internal/token"
)

var (
	// ErrNotAuthenticated means a send was attempted without a stored token.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSessionExpired means the backend rejected the token mid-session.
	// The token and transcript are already reset when this is returned.
	ErrSessionExpired = errors.New("session expired")
)

// Session holds the state of one chat conversation: the transcript, the
// conversation ID once the backend assigns one, and the live thinking text
// streamed over the socket.
type Session struct {
	mu             sync.Mutex
	client         *api.Client
	tokens         *token.Store
	transcript     *Transcript
	conversationID string

	// onThinking receives live partial reasoning; each call replaces the
	// previous display.
	onThinking func(content string)
}

// NewSession builds a session against the given backend client.
func NewSession(client *api.Client, tokens *token.Store) *Session {
	return &Session{
		client:     client,
		tokens:     tokens,
		transcript: NewTranscript(),
	}
}

// Transcript exposes the session transcript.
func (s *Session) Transcript() *Transcript {
	return s.transcript
}

// ConversationID returns the current conversation ID, empty before the first
// settled exchange.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// OnThinking registers the live reasoning callback.
func (s *Session) OnThinking(fn func(content string)) {
	s.mu.Lock()
	s.onThinking = fn
	s.mu.Unlock()
}

// Send submits text with an optional attachment over the HTTP path. The user
// entry appears immediately as pending and settles when the backend answers.
// Blank input with no attachment is a no-op. A 401 clears the token, resets
// the session and returns ErrSessionExpired.
func (s *Session) Send(ctx context.Context, text string, attachment *api.FilePart) error {
	text = strings.TrimSpace(text)
	if text == "" && attachment == nil {
		return nil
	}

	tok, ok := s.tokens.Get()
	if !ok {
		return ErrNotAuthenticated
	}

	display := text
	if display == "" {
		display = attachment.Filename
	}
	localID := s.transcript.AppendUser(display)

	fields := map[string]string{"message": text}
	if id := s.ConversationID(); id != "" {
		fields["conversation_id"] = id
	}

	body, contentType, err := api.MultipartBody(fields, attachment)
	if err != nil {
		s.transcript.Fail(localID)
		return err
	}

	req, err := s.client.NewRequest(ctx, http.MethodPost, "/api/chat/send", body)
	if err != nil {
		s.transcript.Fail(localID)
		return err
	}
	req.Header.Set("Content-Type", contentType)
	api.WithBearer(req, tok)
	s.client.WithCSRF(req)

	resp, err := s.client.Do(req)
	if err != nil {
		s.transcript.Fail(localID)
		s.transcript.AppendError("Could not reach the server. Please try again.")
		return err
	}

	var result model.SendResponse
	if err := api.DecodeJSON(resp, &result); err != nil {
		if api.IsStatus(err, http.StatusUnauthorized) {
			log.Printf("[chat] token rejected, resetting session")
			if clearErr := s.tokens.Clear(); clearErr != nil {
				log.Printf("[chat] clear token: %v", clearErr)
			}
			s.Reset()
			return ErrSessionExpired
		}

		s.transcript.Fail(localID)
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			s.transcript.AppendError(apiErr.Detail)
		} else {
			s.transcript.AppendError(err.Error())
		}
		return err
	}

	s.transcript.Confirm(localID, "", result.ConversationID)
	s.setConversationID(result.ConversationID)
	s.transcript.AppendAssistant(model.Message{
		ID:             result.MessageID,
		ConversationID: result.ConversationID,
		Content:        result.AssistantResponse,
	})
	return nil
}

// Apply folds a decoded socket frame into the session.
func (s *Session) Apply(frame model.ServerFrame) {
	switch {
	case frame.Thinking != nil:
		s.mu.Lock()
		fn := s.onThinking
		s.mu.Unlock()
		if fn != nil {
			fn(frame.Thinking.Content)
		}

	case frame.Answer != nil:
		if frame.Answer.ConversationID != "" {
			s.setConversationID(frame.Answer.ConversationID)
		}
		// The HTTP path may have already appended this message; in that
		// case the frame only contributes the reasoning.
		if s.transcript.AttachReasoning(frame.Answer.MessageID, frame.Answer.Reasoning) {
			return
		}
		s.transcript.AppendAssistant(model.Message{
			ID:             frame.Answer.MessageID,
			ConversationID: frame.Answer.ConversationID,
			Content:        frame.Answer.Content,
			Reasoning:      frame.Answer.Reasoning,
		})

	case frame.Created != nil:
		if frame.Created.ConversationID != "" {
			s.setConversationID(frame.Created.ConversationID)
		}

	case frame.Err != nil:
		s.transcript.AppendError(frame.Err.Content)
	}
}

// Reset drops the transcript and conversation ID, returning the session to
// its initial state.
func (s *Session) Reset() {
	s.mu.Lock()
	s.conversationID = ""
	s.mu.Unlock()
	s.transcript.Reset()
}

func (s *Session) setConversationID(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	s.conversationID = id
	s.mu.Unlock()
}
