package query

import (
	"github.com/go-chi/chi/v5"
	"github.com/repoqa/repoqa-backend/internal/api/middleware"
	"github.com/repoqa/repoqa-backend/internal/pkg/auth"
)

// RegisterRoutes registers query routes
func RegisterRoutes(r chi.Router, h *Handler, gate *auth.Gate) {
	r.With(middleware.RequireAction(gate, auth.ActionQuery)).Post("/query", h.Query)
}
