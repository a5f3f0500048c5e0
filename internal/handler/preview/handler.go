// Package preview serves the session transcript as a local web page, with the
// same rendering the messages get in the terminal: highlighted code blocks,
// copy controls, and safe external links.
package preview

import (
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pravochat/cli/internal/markdown"
	chatService "github.com/pravochat/cli/internal/service/chat"
	"github.com/pravochat/cli/pkg/utils"
)

// Handler renders the transcript preview pages.
type Handler struct {
	session  *chatService.Session
	renderer *markdown.Renderer
}

// New builds the preview handler.
func New(session *chatService.Session, renderer *markdown.Renderer) *Handler {
	return &Handler{session: session, renderer: renderer}
}

// RegisterRoutes mounts the preview endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handlePage)
	r.Get("/transcript", h.handleTranscript)
	r.Get("/healthz", h.handleHealth)
}

// handlePage serves the transcript as a standalone HTML document.
func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	b.WriteString(pageHeader)

	entries := h.session.Transcript().Entries()
	if len(entries) == 0 {
		b.WriteString(`<p class="empty">No messages yet.</p>`)
	}
	for _, entry := range entries {
		h.writeEntry(&b, entry)
	}

	b.WriteString(pageFooter)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(b.String()))
}

func (h *Handler) writeEntry(b *strings.Builder, entry chatService.Entry) {
	class := "assistant"
	if entry.Message.FromUser {
		class = "user"
	}
	if entry.State == chatService.EntryFailed {
		class += " failed"
	}
	fmt.Fprintf(b, `<div class="message %s">`, class)

	if entry.Message.FromUser {
		// User input is shown as written, never interpreted as markup.
		fmt.Fprintf(b, "<p>%s</p>", html.EscapeString(entry.Message.Content))
	} else {
		b.WriteString(h.renderer.Render(entry.Message.Content).HTML)
	}

	if entry.Message.Reasoning != "" {
		fmt.Fprintf(b, `<details class="reasoning"><summary>Reasoning</summary><pre>%s</pre></details>`,
			html.EscapeString(entry.Message.Reasoning))
	}
	b.WriteString("</div>\n")
}

// transcriptEntry is the JSON shape of one transcript line.
type transcriptEntry struct {
	ID        string `json:"id,omitempty"`
	Content   string `json:"content"`
	FromUser  bool   `json:"fromUser"`
	Reasoning string `json:"reasoning,omitempty"`
	State     string `json:"state"`
}

// handleTranscript serves the raw transcript as JSON.
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	entries := h.session.Transcript().Entries()

	out := make([]transcriptEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, transcriptEntry{
			ID:        entry.Message.ID,
			Content:   entry.Message.Content,
			FromUser:  entry.Message.FromUser,
			Reasoning: entry.Message.Reasoning,
			State:     stateLabel(entry.State),
		})
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"conversationId": h.session.ConversationID(),
		"entries":        out,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func stateLabel(state chatService.EntryState) string {
	switch state {
	case chatService.EntryPending:
		return "pending"
	case chatService.EntryFailed:
		return "failed"
	default:
		return "confirmed"
	}
}

const pageHeader = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>PravoChat transcript</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
.message { margin: 1rem 0; padding: 0.75rem 1rem; border-radius: 8px; }
.message.user { background: #eef3fb; }
.message.assistant { background: #f6f6f6; }
.message.failed { background: #fbeeee; }
.code-block-container { position: relative; }
.copy-code-button { position: absolute; top: 4px; right: 4px; }
.external-link::after { content: "\2197"; font-size: 0.8em; }
.empty { color: #888; }
</style>
</head>
<body>
<h1>Transcript</h1>
`

const pageFooter = `</body>
</html>
`
