// internal/app/features/status/routes.go
package status

import "github.com/go-chi/chi/v5"

// MountRootEndpoints adds /status and /stats directly on the root router.
func MountRootEndpoints(r chi.Router, h *Handler) {
	r.Get("/status", h.Status)
	r.Get("/stats", h.Stats)
}
