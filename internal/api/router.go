package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/novatask/novatask/internal/taskservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *taskservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	th := NewTransferHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Tasks CRUD.
	r.Get("/tasks", h.ListTasks)
	r.Post("/tasks", h.CreateTask)
	r.Post("/tasks/quick", h.QuickAdd)
	r.Get("/tasks/{id}", h.GetTask)
	r.Patch("/tasks/{id}", h.UpdateTask)
	r.Post("/tasks/{id}/toggle", h.ToggleTask)
	r.Delete("/tasks/{id}", h.DeleteTask)

	// Search and aggregates.
	r.Get("/search", h.Search)
	r.Get("/categories", h.Categories)
	r.Get("/stats", h.Stats)

	// Maintenance.
	r.Post("/clear", h.Clear)
	r.Get("/export", th.Export)
	r.Post("/import", th.Import)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
