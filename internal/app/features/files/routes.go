// internal/app/features/files/routes.go
package files

import "github.com/go-chi/chi/v5"

// Routes returns a chi.Router with the /files endpoints. Every route
// except data requires an X-Token; data also serves public files anonymously.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.show)
	r.Put("/{id}/publish", h.publish)
	r.Put("/{id}/unpublish", h.unpublish)
	r.Get("/{id}/data", h.data)
	return r
}
