package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/askwiki/internal/kbservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events behind the same auth.
func NewRouter(svc *kbservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	auth := AuthMiddleware(authEnabled, token)

	r := chi.NewRouter()

	// The event stream also accepts ?access_token= for EventSource clients.
	if sseHandler != nil {
		r.With(QueryTokenMiddleware, auth).Get("/events", sseHandler.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(auth)
		mountRoutes(r, h)
	})

	return r
}

func mountRoutes(r chi.Router, h *Handler) {
	// Questions.
	r.Get("/ask", h.Ask)
	r.Post("/ask/batch", h.AskBatch)
	r.Get("/search", h.Search)

	// Entries of the active snapshot.
	r.Get("/entries", h.ListEntries)
	r.Get("/entries/{id}", h.GetEntry)

	// Snapshot lifecycle.
	r.Get("/status", h.Status)
	r.Post("/reload", h.Reload)
	r.Put("/source", h.ReplaceSource)

	// Build history.
	r.Get("/generations", h.ListGenerations)
	r.Get("/generations/{id}", h.GetGeneration)
}
