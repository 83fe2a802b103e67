package registry

import (
	"github.com/go-chi/chi/v5"
	"github.com/repoqa/repoqa-backend/internal/api/middleware"
	"github.com/repoqa/repoqa-backend/internal/pkg/auth"
)

// RegisterRoutes registers repository routes
func RegisterRoutes(r chi.Router, h *Handler, gate *auth.Gate) {
	r.Route("/repositories", func(r chi.Router) {
		r.With(middleware.RequireAction(gate, auth.ActionMutate)).Post("/", h.ConfigureRepository)
		r.With(middleware.RequireAction(gate, auth.ActionQuery)).Get("/", h.ListRepositories)

		r.Route("/{repo}", func(r chi.Router) {
			r.With(middleware.RequireAction(gate, auth.ActionQuery)).Get("/status", h.GetStatus)
			r.With(middleware.RequireAction(gate, auth.ActionMutate)).Post("/resync", h.ResyncRepository)
		})
	})
}
