package chat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	model "github.com/pravochat/cli/internal/model/chat"
	"github.com/pravochat/cli/internal/service/api"
	"github.com/pravochat/cli/internal/token"
)

func newTestSession(t *testing.T, handler http.Handler) (*Session, *token.Store) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := token.NewStore(filepath.Join(t.TempDir(), "token"))
	if err != nil {
		t.Fatalf("NewStore err: %v", err)
	}

	client := api.NewClient(server.URL, "csrf-test", 0)
	return NewSession(client, store), store
}

func TestSendSettlesExchange(t *testing.T) {
	var gotMessage, gotConversation string
	session, store := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm err: %v", err)
		}
		gotMessage = r.FormValue("message")
		gotConversation = r.FormValue("conversation_id")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"conversation_id":"c1","assistant_response":"Hi there","message_id":"m1"}`))
	}))
	if err := store.Set("tok"); err != nil {
		t.Fatalf("Set err: %v", err)
	}

	if err := session.Send(context.Background(), "Hello", nil); err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if gotMessage != "Hello" || gotConversation != "" {
		t.Fatalf("form = message %q conversation_id %q", gotMessage, gotConversation)
	}

	entries := session.Transcript().Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if !entries[0].Message.FromUser || entries[0].State != EntryConfirmed {
		t.Fatalf("user entry = %+v", entries[0])
	}
	if entries[1].Message.FromUser || entries[1].Message.Content != "Hi there" {
		t.Fatalf("assistant entry = %+v", entries[1])
	}
	if session.ConversationID() != "c1" {
		t.Fatalf("ConversationID = %q", session.ConversationID())
	}

	// The next send carries the settled conversation ID.
	if err := session.Send(context.Background(), "again", nil); err != nil {
		t.Fatalf("second Send err: %v", err)
	}
	if gotConversation != "c1" {
		t.Fatalf("second send conversation_id = %q", gotConversation)
	}
}

func TestSendBlankInputIsNoop(t *testing.T) {
	var calls atomic.Int32
	session, store := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	if err := store.Set("tok"); err != nil {
		t.Fatalf("Set err: %v", err)
	}

	if err := session.Send(context.Background(), "   \n", nil); err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatal("blank input reached the network")
	}
	if session.Transcript().Len() != 0 {
		t.Fatal("blank input added a transcript entry")
	}
}

func TestSendWithoutToken(t *testing.T) {
	session, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend should not be called")
	}))

	err := session.Send(context.Background(), "hi", nil)
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestSendUnauthorizedResetsSession(t *testing.T) {
	session, store := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Token expired"}`))
	}))
	if err := store.Set("stale"); err != nil {
		t.Fatalf("Set err: %v", err)
	}

	err := session.Send(context.Background(), "hi", nil)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if _, ok := store.Get(); ok {
		t.Fatal("token not cleared after 401")
	}
	if session.Transcript().Len() != 0 {
		t.Fatal("transcript not reset after 401")
	}
	if session.ConversationID() != "" {
		t.Fatal("conversation id not reset after 401")
	}
}

func TestSendBackendErrorAddsErrorEntry(t *testing.T) {
	session, store := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Message too long"}`))
	}))
	if err := store.Set("tok"); err != nil {
		t.Fatalf("Set err: %v", err)
	}

	if err := session.Send(context.Background(), "hi", nil); err == nil {
		t.Fatal("expected error")
	}

	entries := session.Transcript().Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want failed user entry plus error entry", len(entries))
	}
	if entries[0].State != EntryFailed {
		t.Fatalf("user entry state = %v", entries[0].State)
	}
	if entries[1].Message.Content != "Message too long" {
		t.Fatalf("error entry = %q", entries[1].Message.Content)
	}
}

func TestSendTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	store, err := token.NewStore(filepath.Join(t.TempDir(), "token"))
	if err != nil {
		t.Fatalf("NewStore err: %v", err)
	}
	if err := store.Set("tok"); err != nil {
		t.Fatalf("Set err: %v", err)
	}
	session := NewSession(api.NewClient(server.URL, "", 0), store)

	if err := session.Send(context.Background(), "hi", nil); err == nil {
		t.Fatal("expected transport error")
	}

	entries := session.Transcript().Entries()
	if len(entries) != 2 || entries[0].State != EntryFailed {
		t.Fatalf("entries = %+v", entries)
	}
	if !strings.Contains(entries[1].Message.Content, "Could not reach the server") {
		t.Fatalf("error entry = %q", entries[1].Message.Content)
	}
}

func TestSendWithAttachment(t *testing.T) {
	var gotFilename, gotField string
	session, store := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm err: %v", err)
		}
		for field, files := range r.MultipartForm.File {
			gotField = field
			gotFilename = files[0].Filename
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"conversation_id":"c1","assistant_response":"got it"}`))
	}))
	if err := store.Set("tok"); err != nil {
		t.Fatalf("Set err: %v", err)
	}

	attachment := &api.FilePart{
		FieldName: "file",
		Filename:  "notes.txt",
		Reader:    strings.NewReader("contents"),
	}
	if err := session.Send(context.Background(), "see attached", attachment); err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if gotField != "file" || gotFilename != "notes.txt" {
		t.Fatalf("file part = %s/%s", gotField, gotFilename)
	}
}

func TestSendFileWithoutText(t *testing.T) {
	session, store := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"conversation_id":"c1","assistant_response":"received"}`))
	}))
	if err := store.Set("tok"); err != nil {
		t.Fatalf("Set err: %v", err)
	}

	attachment := &api.FilePart{
		FieldName: "file",
		Filename:  "contract.pdf",
		Reader:    strings.NewReader("%PDF"),
	}
	if err := session.Send(context.Background(), "", attachment); err != nil {
		t.Fatalf("Send err: %v", err)
	}

	entries := session.Transcript().Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	// The user entry shows the filename when there is no text.
	if entries[0].Message.Content != "contract.pdf" {
		t.Fatalf("user entry = %q", entries[0].Message.Content)
	}
}

func TestApplyThinkingFrame(t *testing.T) {
	session, _ := newTestSession(t, http.NotFoundHandler())

	var got []string
	session.OnThinking(func(content string) { got = append(got, content) })

	session.Apply(model.ServerFrame{Thinking: &model.ThinkingFrame{Content: "step 1"}})
	session.Apply(model.ServerFrame{Thinking: &model.ThinkingFrame{Content: "step 2"}})

	if len(got) != 2 || got[1] != "step 2" {
		t.Fatalf("thinking updates = %v", got)
	}
	if session.Transcript().Len() != 0 {
		t.Fatal("thinking frames must not touch the transcript")
	}
}

func TestApplyAnswerFrame(t *testing.T) {
	session, _ := newTestSession(t, http.NotFoundHandler())

	session.Apply(model.ServerFrame{Answer: &model.AnswerFrame{
		Content:        "final",
		MessageID:      "m1",
		Reasoning:      "because",
		ConversationID: "c9",
	}})

	entries := session.Transcript().Entries()
	if len(entries) != 1 || entries[0].Message.Content != "final" {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Message.Reasoning != "because" {
		t.Fatalf("Reasoning = %q", entries[0].Message.Reasoning)
	}
	if session.ConversationID() != "c9" {
		t.Fatalf("ConversationID = %q", session.ConversationID())
	}
}

func TestApplyAnswerFrameAttachesToExistingMessage(t *testing.T) {
	session, _ := newTestSession(t, http.NotFoundHandler())
	session.Transcript().AppendAssistant(model.Message{ID: "m1", Content: "already here"})

	session.Apply(model.ServerFrame{Answer: &model.AnswerFrame{
		MessageID: "m1",
		Content:   "already here",
		Reasoning: "late reasoning",
	}})

	entries := session.Transcript().Entries()
	if len(entries) != 1 {
		t.Fatalf("duplicate entry appended: %+v", entries)
	}
	if entries[0].Message.Reasoning != "late reasoning" {
		t.Fatalf("Reasoning = %q", entries[0].Message.Reasoning)
	}
}

func TestApplyErrorFrame(t *testing.T) {
	session, _ := newTestSession(t, http.NotFoundHandler())

	session.Apply(model.ServerFrame{Err: &model.ErrorFrame{Content: "model unavailable"}})

	entries := session.Transcript().Entries()
	if len(entries) != 1 || entries[0].State != EntryFailed {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Message.Content != "model unavailable" {
		t.Fatalf("content = %q", entries[0].Message.Content)
	}
}

func TestApplyCreatedFrameUpdatesConversation(t *testing.T) {
	session, _ := newTestSession(t, http.NotFoundHandler())

	session.Apply(model.ServerFrame{Created: &model.MessageCreatedFrame{
		MessageID:      "m1",
		ConversationID: "c3",
	}})

	if session.ConversationID() != "c3" {
		t.Fatalf("ConversationID = %q", session.ConversationID())
	}
	if session.Transcript().Len() != 0 {
		t.Fatal("created frame must not add entries")
	}
}
