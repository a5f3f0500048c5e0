// Package handler wires the local preview HTTP surface.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pravochat/cli/internal/handler/preview"
	"github.com/pravochat/cli/internal/markdown"
	chatService "github.com/pravochat/cli/internal/service/chat"
)

// NewRouter builds the preview server routes. The server binds to loopback
// and exposes the live transcript for reading in a browser.
func NewRouter(session *chatService.Session, renderer *markdown.Renderer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	previewHandler := preview.New(session, renderer)
	previewHandler.RegisterRoutes(r)

	return r
}
