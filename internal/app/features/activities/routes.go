// internal/app/features/activities/routes.go
package activities

import (
	"github.com/dalemusser/groupdeal/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	// Reads are open to any signed-in user.
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/", h.ServeList)
		pr.Get("/{id}", h.ServeGet)
		pr.Get("/{id}/stats", h.ServeStats)
	})

	// Mutations are admin-only.
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRole("admin"))

		pr.Post("/", h.HandleCreate)
		pr.Patch("/{id}", h.HandleUpdate)
		pr.Post("/{id}/start", h.HandleStart)
		pr.Post("/{id}/end", h.HandleEnd)
	})

	return r
}
