// Package chat owns the conversation state of a running session: the ordered
// transcript, the HTTP send path with its optimistic updates, and the
// WebSocket that streams live assistant events.
package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	model "github.com/pravochat/cli/internal/model/chat"
)

// EntryState tracks a transcript entry through the optimistic send cycle.
type EntryState int

const (
	// EntryPending is a user entry shown before the backend settles it.
	EntryPending EntryState = iota
	// EntryConfirmed means the backend accepted the message.
	EntryConfirmed
	// EntryFailed means the send did not go through; the entry stays
	// visible so the user can see what was lost.
	EntryFailed
)

// Entry is one transcript line. LocalID identifies the entry before the
// backend has assigned a message ID.
type Entry struct {
	LocalID string
	State   EntryState
	Message model.Message
}

// Transcript is the append-ordered list of entries for one session. Entries
// are immutable once appended except for state settlement and a later
// reasoning annotation keyed by message ID.
type Transcript struct {
	mu       sync.RWMutex
	entries  []*Entry
	onChange func()
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// OnChange registers a callback invoked after every mutation, for redraws.
func (t *Transcript) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

func (t *Transcript) notify() {
	t.mu.RLock()
	fn := t.onChange
	t.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// AppendUser adds a pending user entry and returns its local ID.
func (t *Transcript) AppendUser(content string) string {
	entry := &Entry{
		LocalID: uuid.NewString(),
		State:   EntryPending,
		Message: model.Message{
			Content:   content,
			FromUser:  true,
			CreatedAt: time.Now(),
		},
	}

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.mu.Unlock()

	t.notify()
	return entry.LocalID
}

// Confirm settles a pending entry with the IDs the backend assigned.
func (t *Transcript) Confirm(localID, messageID, conversationID string) {
	t.mu.Lock()
	if entry := t.find(localID); entry != nil {
		entry.State = EntryConfirmed
		entry.Message.ID = messageID
		entry.Message.ConversationID = conversationID
	}
	t.mu.Unlock()
	t.notify()
}

// Fail marks a pending entry as not delivered.
func (t *Transcript) Fail(localID string) {
	t.mu.Lock()
	if entry := t.find(localID); entry != nil {
		entry.State = EntryFailed
	}
	t.mu.Unlock()
	t.notify()
}

// AppendAssistant adds a settled assistant entry.
func (t *Transcript) AppendAssistant(msg model.Message) {
	msg.FromUser = false
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	t.mu.Lock()
	t.entries = append(t.entries, &Entry{
		LocalID: uuid.NewString(),
		State:   EntryConfirmed,
		Message: msg,
	})
	t.mu.Unlock()
	t.notify()
}

// AppendError adds an error bubble. Error entries read like assistant output
// but carry the failed state so the UI can style them apart.
func (t *Transcript) AppendError(content string) {
	t.mu.Lock()
	t.entries = append(t.entries, &Entry{
		LocalID: uuid.NewString(),
		State:   EntryFailed,
		Message: model.Message{
			Content:   content,
			CreatedAt: time.Now(),
		},
	})
	t.mu.Unlock()
	t.notify()
}

// AttachReasoning annotates the entry with the given message ID. It reports
// whether a matching entry was found.
func (t *Transcript) AttachReasoning(messageID, reasoning string) bool {
	if messageID == "" || reasoning == "" {
		return false
	}

	t.mu.Lock()
	var found bool
	for _, entry := range t.entries {
		if entry.Message.ID == messageID {
			entry.Message.Reasoning = reasoning
			found = true
			break
		}
	}
	t.mu.Unlock()

	if found {
		t.notify()
	}
	return found
}

// Entries returns a snapshot in append order.
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, len(t.entries))
	for i, entry := range t.entries {
		out[i] = *entry
	}
	return out
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Reset drops every entry, as on logout or session expiry.
func (t *Transcript) Reset() {
	t.mu.Lock()
	t.entries = nil
	t.mu.Unlock()
	t.notify()
}

// find returns the entry with localID; callers hold the lock.
func (t *Transcript) find(localID string) *Entry {
	for _, entry := range t.entries {
		if entry.LocalID == localID {
			return entry
		}
	}
	return nil
}
