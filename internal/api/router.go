package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/sunna/internal/workbench"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *workbench.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Tree and file CRUD.
	r.Get("/tree", h.Tree)
	r.Get("/files", h.ListFiles)
	r.Post("/files", h.CreateFile)
	r.Get("/files/*", h.GetFile)
	r.Put("/files/*", h.UpdateFile)
	r.Delete("/files/*", h.DeleteFile)
	r.Post("/rename", h.Rename)
	r.Post("/ops", h.ApplyOps)

	// Project snapshot import/export.
	r.Get("/snapshot", h.GetSnapshot)
	r.Put("/snapshot", h.PutSnapshot)

	// Chat transcript.
	r.Get("/messages", h.ListMessages)
	r.Post("/messages", h.AppendMessage)

	// Preview.
	r.Get("/preview", h.Preview)
	r.Get("/preview/status", h.PreviewStatus)
	r.Post("/preview/rebuild", h.Rebuild)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
