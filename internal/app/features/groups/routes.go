// internal/app/features/groups/routes.go
package groups

import (
	"github.com/dalemusser/groupdeal/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Post("/initiate", h.HandleInitiate)
	r.Post("/{id}/join", h.HandleJoin)
	r.Get("/{id}", h.ServeDetail)

	return r
}
